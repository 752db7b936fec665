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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "0xabc:cid-1", Key("0xabc", "cid-1"))
}

func TestIdempotencyLookupRecord(t *testing.T) {
	s := NewIdempotencyStore(filepath.Join(t.TempDir(), "idem.json"))

	_, found := s.Lookup("0xabc:cid-1")
	assert.False(t, found)

	rec := TxRecord{TxHash: "hash-1", SubmitHash: "sub-1", Amount: 50, Recipient: "0xdef", RecordedAt: "2026-01-01T00:00:00Z"}
	require.NoError(t, s.Record("0xabc:cid-1", rec))

	got, found := s.Lookup("0xabc:cid-1")
	require.True(t, found)
	assert.Equal(t, rec, *got)

	// Same client id under a different sender is a distinct key.
	_, found = s.Lookup("0xother:cid-1")
	assert.False(t, found)
}

func TestIdempotencyClaimReservesKey(t *testing.T) {
	s := NewIdempotencyStore(filepath.Join(t.TempDir(), "idem.json"))

	prior, claimed := s.Claim("0xabc:cid-1")
	require.True(t, claimed)
	assert.Nil(t, prior)

	// A second claimant is refused while the first is in flight.
	prior, claimed = s.Claim("0xabc:cid-1")
	assert.False(t, claimed)
	assert.Nil(t, prior)

	// Releasing reopens the key, so a failed submission can be retried.
	s.Release("0xabc:cid-1")
	_, claimed = s.Claim("0xabc:cid-1")
	require.True(t, claimed)

	// Recording absorbs the reservation and pins the result.
	require.NoError(t, s.Record("0xabc:cid-1", TxRecord{TxHash: "hash-1"}))
	prior, claimed = s.Claim("0xabc:cid-1")
	assert.False(t, claimed)
	require.NotNil(t, prior)
	assert.Equal(t, "hash-1", prior.TxHash)
}

func TestIdempotencyConcurrentClaims(t *testing.T) {
	s := NewIdempotencyStore(filepath.Join(t.TempDir(), "idem.json"))

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, claimed := s.Claim("0xabc:cid-1"); claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load(), "exactly one claimant wins")
}

func TestIdempotencyPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.json")

	s1 := NewIdempotencyStore(path)
	require.NoError(t, s1.Record("0xabc:cid-1", TxRecord{TxHash: "hash-1"}))

	s2 := NewIdempotencyStore(path)
	got, found := s2.Lookup("0xabc:cid-1")
	require.True(t, found)
	assert.Equal(t, "hash-1", got.TxHash)
}

func TestIdempotencyCorruptFileResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2,3"), 0o600))

	s := NewIdempotencyStore(path)
	_, found := s.Lookup("any")
	assert.False(t, found)
	require.NoError(t, s.Record("k", TxRecord{TxHash: "h"}))
}
