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

// Package node manages the lifecycle of the local node cluster. On
// local networks it spawns the node runner as a detached child of the
// current binary and tracks it through a pid file; on externally
// operated networks start/stop only flip a marker and status comes from
// probing the bootstrap endpoints.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ezchain/go-ezchain/config"
)

// ErrAlreadyRunning is returned by Start when a live pid file exists.
var ErrAlreadyRunning = errors.New("node already running")

// Status values reported by the manager.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Manager controls the local node cluster for one data directory.
type Manager struct {
	cfg    *config.Config
	logger log.Logger
}

// NewManager creates a manager for cfg's data directory.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, logger: log.New("pkg", "node")}
}

func (m *Manager) pidPath() string {
	return filepath.Join(m.cfg.App.DataDir, "node.pid")
}

func (m *Manager) externalStatePath() string {
	return filepath.Join(m.cfg.App.DataDir, "external_node_state.json")
}

// externalState is the persisted marker for externally operated networks.
type externalState struct {
	Attached  bool   `json:"attached"`
	Network   string `json:"network"`
	UpdatedAt string `json:"updated_at"`
}

// Start launches the node runner, or on external networks records
// attachment without spawning anything.
func (m *Manager) Start() error {
	if config.IsExternalNetwork(m.cfg) {
		return m.setExternalAttached(true)
	}
	if pid, ok := m.livePID(); ok {
		m.logger.Warn("Node already running", "pid", pid)
		return ErrAlreadyRunning
	}
	self, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(self, "node", "run",
		"--consensus", strconv.Itoa(m.cfg.Network.ConsensusNodes),
		"--accounts", strconv.Itoa(m.cfg.Network.AccountNodes),
		"--start-port", strconv.Itoa(m.cfg.Network.StartPort),
		"--data-dir", m.cfg.App.DataDir,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn node runner: %w", err)
	}
	pid := cmd.Process.Pid
	if err := os.WriteFile(m.pidPath(), []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		cmd.Process.Kill()
		return err
	}
	// Reaped by init once we exit; Release detaches the handle now.
	cmd.Process.Release()
	m.logger.Info("Node runner started", "pid", pid,
		"consensus", m.cfg.Network.ConsensusNodes, "accounts", m.cfg.Network.AccountNodes)
	return nil
}

// Stop terminates the node runner with SIGTERM and removes the pid file.
func (m *Manager) Stop() error {
	if config.IsExternalNetwork(m.cfg) {
		return m.setExternalAttached(false)
	}
	pid, ok := m.livePID()
	if !ok {
		os.Remove(m.pidPath())
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	os.Remove(m.pidPath())
	m.logger.Info("Node runner stopped", "pid", pid)
	return nil
}

// Status reports whether the node is running, plus mode details.
func (m *Manager) Status() map[string]interface{} {
	if config.IsExternalNetwork(m.cfg) {
		st := m.readExternalState()
		status := StatusStopped
		if st.Attached {
			status = StatusRunning
		}
		return map[string]interface{}{
			"mode":    "external",
			"status":  status,
			"network": m.cfg.Network.Name,
		}
	}
	status := StatusStopped
	pid := 0
	if p, ok := m.livePID(); ok {
		status = StatusRunning
		pid = p
	}
	out := map[string]interface{}{
		"mode":    "local",
		"status":  status,
		"network": m.cfg.Network.Name,
	}
	if pid != 0 {
		out["pid"] = pid
	}
	return out
}

// Running reports whether the node counts as up.
func (m *Manager) Running() bool {
	return m.Status()["status"] == StatusRunning
}

// livePID returns the pid file's process if it is still alive.
func (m *Manager) livePID() (int, bool) {
	data, err := os.ReadFile(m.pidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		return 0, false
	}
	return pid, true
}

func (m *Manager) setExternalAttached(attached bool) error {
	st := externalState{
		Attached:  attached,
		Network:   m.cfg.Network.Name,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.cfg.App.DataDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(m.externalStatePath(), data, 0o600)
}

func (m *Manager) readExternalState() externalState {
	var st externalState
	data, err := os.ReadFile(m.externalStatePath())
	if err != nil {
		return st
	}
	json.Unmarshal(data, &st)
	return st
}

// ProbeResult is the reachability outcome for one bootstrap endpoint.
type ProbeResult struct {
	Endpoint  string `json:"endpoint"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// ProbeBootstrap dials each configured bootstrap endpoint with a short
// timeout and reports per-endpoint reachability.
func (m *Manager) ProbeBootstrap(timeout time.Duration) map[string]interface{} {
	results := make([]ProbeResult, 0, len(m.cfg.Network.BootstrapNodes))
	reachable := 0
	for _, ep := range m.cfg.Network.BootstrapNodes {
		res := ProbeResult{Endpoint: ep}
		conn, err := net.DialTimeout("tcp", ep, timeout)
		if err != nil {
			res.Error = err.Error()
		} else {
			conn.Close()
			res.Reachable = true
			reachable++
		}
		results = append(results, res)
	}
	return map[string]interface{}{
		"endpoints":  results,
		"reachable":  reachable,
		"total":      len(results),
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}
}
