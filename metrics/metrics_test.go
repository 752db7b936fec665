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

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersAndDistribution(t *testing.T) {
	c := New()
	c.IncRequest()
	c.IncRequest()
	c.IncError("unauthorized")
	c.IncError("unauthorized")
	c.IncError("not_found")
	c.IncError("") // no code, not counted

	snap := c.Snapshot("stopped")
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.Equal(t, uint64(2), snap.ErrorCodeDistribution["unauthorized"])
	assert.Equal(t, uint64(1), snap.ErrorCodeDistribution["not_found"])
	assert.Len(t, snap.ErrorCodeDistribution, 2)
}

func TestSuccessRate(t *testing.T) {
	c := New()
	assert.Equal(t, 1.0, c.Snapshot("stopped").Transactions.SuccessRate, "no sends reads as 1.0")

	c.TxSendSuccess(10 * time.Millisecond)
	c.TxSendSuccess(30 * time.Millisecond)
	c.TxSendFailed()

	snap := c.Snapshot("stopped")
	assert.Equal(t, uint64(2), snap.Transactions.SendSuccess)
	assert.Equal(t, uint64(1), snap.Transactions.SendFailed)
	assert.InDelta(t, 2.0/3.0, snap.Transactions.SuccessRate, 1e-9)
	assert.InDelta(t, 20.0, snap.Transactions.AvgConfirmLatencyMs, 0.5)
}

func TestLatencyRingBounded(t *testing.T) {
	c := New()
	// Fill well past the ring size; the average must reflect only the
	// newest 500 samples.
	for i := 0; i < 600; i++ {
		c.TxSendSuccess(time.Duration(i) * time.Millisecond)
	}
	snap := c.Snapshot("stopped")
	// Samples 100..599 survive, average 349.5.
	assert.InDelta(t, 349.5, snap.Transactions.AvgConfirmLatencyMs, 1.0)
}

func TestNodeOnlineRate(t *testing.T) {
	c := New()
	assert.Equal(t, 0.0, c.Snapshot("stopped").NodeOnlineRate)
	assert.Equal(t, 1.0, c.Snapshot("running").NodeOnlineRate, "no checks yet, current status wins")

	c.NodeStatusCheck(true)
	c.NodeStatusCheck(true)
	c.NodeStatusCheck(false)
	c.NodeStatusCheck(false)
	assert.InDelta(t, 0.5, c.Snapshot("stopped").NodeOnlineRate, 1e-9)
}

func TestUptimeAdvances(t *testing.T) {
	c := New()
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, c.Snapshot("stopped").UptimeSeconds, 0.0)
}
