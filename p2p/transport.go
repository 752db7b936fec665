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
	"errors"
	"fmt"
	"time"

	"github.com/ezchain/go-ezchain/params"
)

var (
	// ErrDialFailed wraps a failure to establish an outbound connection.
	ErrDialFailed = errors.New("dial_failed")

	// ErrSendTimeout wraps a write that did not complete within the
	// configured send timeout.
	ErrSendTimeout = errors.New("send_timeout")

	// ErrTransportClosed is returned from operations on a stopped
	// transport.
	ErrTransportClosed = errors.New("transport closed")
)

// Transport backend selectors accepted in configuration.
const (
	TransportTCP       = "tcp"
	TransportWebsocket = "ws"
)

// ReplyContext identifies the exact inbound connection a frame arrived on.
// Writing through it never dials and never consults the outbound pool.
type ReplyContext interface {
	// WriteFrame frames data and writes it on the originating connection.
	WriteFrame(data []byte) error

	// RemoteID returns the host:port identity of the remote endpoint.
	RemoteID() string
}

// OnFrame is invoked for every complete inbound frame. Frames arriving on
// a single connection are delivered sequentially, in arrival order.
type OnFrame func(data []byte, remoteID string, ctx ReplyContext)

// Transport moves opaque frames between this node and its peers. Backends
// are interchangeable behind this interface and selected at configuration
// time.
type Transport interface {
	// SetOnFrame registers the inbound frame callback. Must be called
	// before Start.
	SetOnFrame(fn OnFrame)

	// Start begins accepting inbound connections on the configured
	// listen endpoint.
	Start() error

	// Stop closes the listener and all connections.
	Stop() error

	// Send ensures an outbound connection to addr exists and writes one
	// framed message on it. At most one dial per address is in flight.
	Send(addr string, data []byte) error

	// SendViaContext writes a framed message on the exact inbound
	// connection that produced a frame.
	SendViaContext(ctx ReplyContext, data []byte) error

	// LocalAddr returns the bound listen address, valid after Start.
	LocalAddr() string
}

// TransportConfig carries the backend-independent tunables.
type TransportConfig struct {
	ListenHost   string
	ListenPort   int
	DialTimeout  time.Duration
	SendTimeout  time.Duration
	MaxFrameSize uint32
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = params.DialTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = params.SendTimeout
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = params.MaxFrameSize
	}
	return c
}

// NewTransport instantiates the backend named by selector. Requesting an
// unknown backend fails fast so a misconfigured node does not come up
// half-connected.
func NewTransport(selector string, cfg TransportConfig) (Transport, error) {
	switch selector {
	case "", TransportTCP:
		return NewTCPTransport(cfg), nil
	case TransportWebsocket:
		return NewWSTransport(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", selector)
	}
}
