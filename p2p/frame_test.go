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

package p2p

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("{}"),
		[]byte(`{"type":"HELLO"}`),
		bytes.Repeat([]byte("x"), 64*1024),
	}
	var buf bytes.Buffer
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p, 1<<21))
	}
	for _, p := range payloads {
		got, err := ReadFrame(&buf, 1<<21)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestWriteFrameOversize(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, bytes.Repeat([]byte("x"), 2049), 2048)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Zero(t, buf.Len(), "nothing must be written for an oversize payload")
}

func TestReadFrameOversizeHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 4096)
	buf.Write(header[:])
	buf.Write(bytes.Repeat([]byte("x"), 4096))

	_, err := ReadFrame(&buf, 2048)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestReadFrameShortBody(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 100)
	buf.Write(header[:])
	buf.Write([]byte("only a few bytes"))

	_, err := ReadFrame(&buf, 2048)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), 2048)
	require.ErrorIs(t, err, io.EOF)
}
