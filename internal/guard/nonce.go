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

// Package guard holds the submission pipeline's replay protections: the
// per-request nonce guard and the per-sender transaction idempotency
// store. Both persist as plain JSON files under the data directory and
// rewrite the whole file under their mutex, via temp file and rename, so
// no reader in the same process ever observes a partial map.
package guard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ezchain/go-ezchain/params"
)

// NonceGuard is the persistent set of recently used request nonces.
// A nonce may be claimed only if absent or expired; claiming reinserts it
// with a fresh TTL.
type NonceGuard struct {
	mu     sync.Mutex
	path   string
	ttl    time.Duration
	logger log.Logger
}

// NewNonceGuard creates a guard persisting at path. TTLs below one second
// are raised to one second.
func NewNonceGuard(path string, ttl time.Duration) *NonceGuard {
	if ttl < params.MinNonceTTL {
		ttl = params.MinNonceTTL
	}
	return &NonceGuard{
		path:   path,
		ttl:    ttl,
		logger: log.New("pkg", "nonceguard"),
	}
}

// TTL returns the configured nonce lifetime.
func (g *NonceGuard) TTL() time.Duration { return g.ttl }

// Claim atomically loads the persisted map, sweeps expired entries,
// rejects if the nonce is still live, and otherwise inserts it with a
// fresh expiry and persists. A persistence failure after the in-memory
// claim is logged, not surfaced: the service fails safe-open locally.
func (g *NonceGuard) Claim(nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	nonces := g.load()
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	for n, expiry := range nonces {
		if expiry <= now {
			delete(nonces, n)
		}
	}
	if _, live := nonces[nonce]; live {
		return false
	}
	nonces[nonce] = now + g.ttl.Seconds()
	if err := writeJSONFile(g.path, nonces); err != nil {
		g.logger.Warn("Nonce persist failed", "path", g.path, "err", err)
	}
	return true
}

// load reads the persisted nonce map. Corruption resets to empty without
// crashing.
func (g *NonceGuard) load() map[string]float64 {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return make(map[string]float64)
	}
	var nonces map[string]float64
	if err := json.Unmarshal(data, &nonces); err != nil || nonces == nil {
		g.logger.Warn("Nonce file corrupt, resetting", "path", g.path)
		return make(map[string]float64)
	}
	return nonces
}

// writeJSONFile rewrites path atomically through a temp file in the same
// directory.
func writeJSONFile(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
