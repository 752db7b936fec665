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

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *LocalEngine {
	t.Helper()
	return NewLocalEngine(t.TempDir(), 1000)
}

func TestFaucetAndBalance(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Faucet("0xabc", 186)
	require.NoError(t, err)
	assert.Equal(t, "submitted", res.Status)
	assert.Len(t, res.TxHash, 64)

	bal, err := e.Balance("0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(186), bal.Total)
	// Greedy split: 100 + 50 + 20 + 10 + 5 + 1.
	assert.Equal(t, int64(1), bal.Chunks[100])
	assert.Equal(t, int64(1), bal.Chunks[50])
	assert.Equal(t, int64(1), bal.Chunks[20])
	assert.Equal(t, int64(1), bal.Chunks[10])
	assert.Equal(t, int64(1), bal.Chunks[5])
	assert.Equal(t, int64(1), bal.Chunks[1])
}

func TestSendValidation(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Faucet("0xabc", 300)
	require.NoError(t, err)

	_, err = e.Send("0xabc", "0xdef", 0)
	assert.ErrorIs(t, err, ErrAmountMustBePositive)
	_, err = e.Send("0xabc", "0xdef", -5)
	assert.ErrorIs(t, err, ErrAmountMustBePositive)
	_, err = e.Send("0xabc", "", 50)
	assert.ErrorIs(t, err, ErrRecipientRequired)
	_, err = e.Send("0xabc", "0xdef", 1001)
	assert.ErrorIs(t, err, ErrAmountExceedsLimit)
	_, err = e.Send("0xabc", "0xdef", 301)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Validation failures leave the stock untouched.
	bal, err := e.Balance("0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal.Total)
}

func TestSendConsumesStock(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Faucet("0xabc", 300)
	require.NoError(t, err)

	res, err := e.Send("0xabc", "0xdef", 50)
	require.NoError(t, err)
	assert.Equal(t, "submitted", res.Status)
	assert.NotEqual(t, res.TxHash, res.SubmitHash)

	bal, err := e.Balance("0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(250), bal.Total)
}

func TestSendBreaksLargeChunk(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Faucet("0xabc", 100) // a single 100 chunk
	require.NoError(t, err)

	_, err = e.Send("0xabc", "0xdef", 37)
	require.NoError(t, err)

	bal, err := e.Balance("0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(63), bal.Total, "change from a broken chunk is retained")
}

func TestStockPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	e1 := NewLocalEngine(dir, 1000)
	_, err := e1.Faucet("0xabc", 75)
	require.NoError(t, err)

	e2 := NewLocalEngine(dir, 1000)
	bal, err := e2.Balance("0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(75), bal.Total)
}

func TestUnlimitedMaxAmount(t *testing.T) {
	e := NewLocalEngine(t.TempDir(), 0)
	_, err := e.Faucet("0xabc", 5000)
	require.NoError(t, err)
	_, err = e.Send("0xabc", "0xdef", 5000)
	require.NoError(t, err, "zero limit disables the amount cap")
}
