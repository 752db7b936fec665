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

package guard

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// TxRecord is the prior result stored for a completed submission.
type TxRecord struct {
	TxHash     string `json:"tx_hash"`
	SubmitHash string `json:"submit_hash"`
	Amount     int64  `json:"amount"`
	Recipient  string `json:"recipient"`
	RecordedAt string `json:"recorded_at"`
}

// IdempotencyStore is the persistent mapping of
// "{sender_address}:{client_tx_id}" to the prior submission result.
// Records are written only after a successful delegation; there is no
// sweep, entries live as long as the data directory.
type IdempotencyStore struct {
	mu      sync.Mutex
	path    string
	pending map[string]struct{}
	logger  log.Logger
}

// NewIdempotencyStore creates a store persisting at path.
func NewIdempotencyStore(path string) *IdempotencyStore {
	return &IdempotencyStore{
		path:    path,
		pending: make(map[string]struct{}),
		logger:  log.New("pkg", "idempotency"),
	}
}

// Key builds the store key for a sender and client-supplied tx id.
func Key(sender, clientTxID string) string {
	return sender + ":" + clientTxID
}

// Lookup returns the prior record for key, if any.
func (s *IdempotencyStore) Lookup(key string) (*TxRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	rec, ok := records[key]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Claim reserves key for one in-flight submission. It returns the prior
// record and false when the key was already recorded, or nil and false
// when another submission currently holds the reservation. A successful
// claim is absorbed by Record, or dropped by Release when the
// submission fails.
func (s *IdempotencyStore) Claim(key string) (*TxRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load()
	if rec, ok := records[key]; ok {
		return &rec, false
	}
	if _, held := s.pending[key]; held {
		return nil, false
	}
	s.pending[key] = struct{}{}
	return nil, true
}

// Release drops a reservation taken by Claim without recording a result.
func (s *IdempotencyStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

// Record persists the result of a successful submission under key and
// clears any reservation held on it.
func (s *IdempotencyStore) Record(key string, rec TxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	records := s.load()
	records[key] = rec
	if err := writeJSONFile(s.path, records); err != nil {
		s.logger.Warn("Idempotency persist failed", "path", s.path, "err", err)
		return err
	}
	return nil
}

func (s *IdempotencyStore) load() map[string]TxRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return make(map[string]TxRecord)
	}
	var records map[string]TxRecord
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		s.logger.Warn("Idempotency file corrupt, resetting", "path", s.path)
		return make(map[string]TxRecord)
	}
	return records
}
