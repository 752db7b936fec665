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
	"encoding/binary"
	"errors"
	"io"
)

// Wire frames are a 4-byte big-endian unsigned length followed by exactly
// that many bytes of UTF-8 JSON.
const frameHeaderSize = 4

var (
	// ErrInvalidFrame is returned when a frame header announces more than
	// the configured limit or the body is not a valid envelope object.
	ErrInvalidFrame = errors.New("invalid_frame")

	// ErrPayloadTooLarge is returned when encoding a message that exceeds
	// the transport frame limit.
	ErrPayloadTooLarge = errors.New("payload_too_large")
)

// WriteFrame frames payload and writes it to w in a single call, so two
// concurrent writers holding the same lock cannot interleave header and
// body.
func WriteFrame(w io.Writer, payload []byte, limit uint32) error {
	if limit > 0 && uint32(len(payload)) > limit {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:frameHeaderSize], uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame from r. A header announcing
// more than limit bytes fails with ErrInvalidFrame before any body byte is
// consumed. Short reads surface as the underlying io error and are treated
// by callers as connection close.
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if limit > 0 && length > limit {
		return nil, ErrInvalidFrame
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
