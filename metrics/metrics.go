// Copyright 2025 The go-ezchain Authors
// This file is part of the go-ezchain library.
//
// The go-ezchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ezchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ezchain library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics keeps the submission service's counters and the bounded
// transaction latency ring behind a single mutex; readers block writers
// only for the duration of a snapshot.
package metrics

import (
	"sync"
	"time"
)

// latencyRingSize bounds the number of retained latency samples.
const latencyRingSize = 500

// Collector accumulates request counters, the error-code distribution and
// transaction confirmation latencies.
type Collector struct {
	mu sync.Mutex

	start time.Time

	requestsTotal     uint64
	txSendSuccess     uint64
	txSendFailed      uint64
	nodeStatusChecks  uint64
	nodeStatusRunning uint64
	errorCodes        map[string]uint64

	latencies []float64 // ring of at most latencyRingSize samples, ms
	ringNext  int
}

// TxStats is the transactions section of a snapshot.
type TxStats struct {
	SendSuccess         uint64  `json:"send_success"`
	SendFailed          uint64  `json:"send_failed"`
	SuccessRate         float64 `json:"success_rate"`
	AvgConfirmLatencyMs float64 `json:"avg_confirmation_latency_ms"`
}

// Snapshot is the /metrics response body.
type Snapshot struct {
	UptimeSeconds         float64           `json:"uptime_seconds"`
	RequestsTotal         uint64            `json:"requests_total"`
	Transactions          TxStats           `json:"transactions"`
	NodeOnlineRate        float64           `json:"node_online_rate"`
	ErrorCodeDistribution map[string]uint64 `json:"error_code_distribution"`
}

// New creates a collector with the uptime clock starting now.
func New() *Collector {
	return &Collector{
		start:      time.Now(),
		errorCodes: make(map[string]uint64),
	}
}

// IncRequest counts one handled HTTP request.
func (c *Collector) IncRequest() {
	c.mu.Lock()
	c.requestsTotal++
	c.mu.Unlock()
}

// IncError counts one response carrying the given error code.
func (c *Collector) IncError(code string) {
	if code == "" {
		return
	}
	c.mu.Lock()
	c.errorCodes[code]++
	c.mu.Unlock()
}

// TxSendSuccess counts a successful submission and records its latency.
func (c *Collector) TxSendSuccess(latency time.Duration) {
	c.mu.Lock()
	c.txSendSuccess++
	ms := float64(latency.Microseconds()) / 1000.0
	if len(c.latencies) < latencyRingSize {
		c.latencies = append(c.latencies, ms)
	} else {
		c.latencies[c.ringNext] = ms
	}
	c.ringNext = (c.ringNext + 1) % latencyRingSize
	c.mu.Unlock()
}

// TxSendFailed counts a failed submission.
func (c *Collector) TxSendFailed() {
	c.mu.Lock()
	c.txSendFailed++
	c.mu.Unlock()
}

// NodeStatusCheck counts one /node/status probe and its outcome.
func (c *Collector) NodeStatusCheck(running bool) {
	c.mu.Lock()
	c.nodeStatusChecks++
	if running {
		c.nodeStatusRunning++
	}
	c.mu.Unlock()
}

// Snapshot returns the current metric state. currentNodeStatus feeds the
// node_online_rate fallback when no status checks happened yet.
func (c *Collector) Snapshot(currentNodeStatus string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg float64
	if len(c.latencies) > 0 {
		var sum float64
		for _, ms := range c.latencies {
			sum += ms
		}
		avg = sum / float64(len(c.latencies))
	}
	totalSends := c.txSendSuccess + c.txSendFailed
	successRate := 1.0
	if totalSends > 0 {
		successRate = float64(c.txSendSuccess) / float64(totalSends)
	}
	onlineRate := 0.0
	if c.nodeStatusChecks > 0 {
		onlineRate = float64(c.nodeStatusRunning) / float64(c.nodeStatusChecks)
	} else if currentNodeStatus == "running" {
		onlineRate = 1.0
	}
	dist := make(map[string]uint64, len(c.errorCodes))
	for code, n := range c.errorCodes {
		dist[code] = n
	}
	return Snapshot{
		UptimeSeconds: time.Since(c.start).Seconds(),
		RequestsTotal: c.requestsTotal,
		Transactions: TxStats{
			SendSuccess:         c.txSendSuccess,
			SendFailed:          c.txSendFailed,
			SuccessRate:         successRate,
			AvgConfirmLatencyMs: avg,
		},
		NodeOnlineRate:        onlineRate,
		ErrorCodeDistribution: dist,
	}
}
