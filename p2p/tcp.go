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
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/singleflight"
)

// TCPTransport is the mandatory direct-TCP backend. Outbound connections
// are pooled per host:port; frames are read strictly as a 4-byte header
// followed by the announced body, and an incomplete read closes the
// connection without surfacing an error event to the router.
type TCPTransport struct {
	cfg     TransportConfig
	logger  log.Logger
	onFrame OnFrame

	mu       sync.Mutex
	conns    map[string]*tcpConn // outbound pool, keyed by dialed address
	listener net.Listener
	closed   bool

	dialing singleflight.Group
	wg      sync.WaitGroup
}

type tcpConn struct {
	conn net.Conn
	wmu  sync.Mutex // serializes header+body writes
}

func (c *tcpConn) writeFrame(data []byte, limit uint32, timeout time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return WriteFrame(c.conn, data, limit)
}

type tcpReplyContext struct {
	t      *TCPTransport
	c      *tcpConn
	remote string
}

func (r *tcpReplyContext) WriteFrame(data []byte) error {
	err := r.c.writeFrame(data, r.t.cfg.MaxFrameSize, r.t.cfg.SendTimeout)
	return r.t.classifyWriteErr(err)
}

func (r *tcpReplyContext) RemoteID() string { return r.remote }

// NewTCPTransport creates an unstarted TCP backend.
func NewTCPTransport(cfg TransportConfig) *TCPTransport {
	return &TCPTransport{
		cfg:    cfg.withDefaults(),
		logger: log.New("p2p", "tcp"),
		conns:  make(map[string]*tcpConn),
	}
}

// SetOnFrame implements Transport.
func (t *TCPTransport) SetOnFrame(fn OnFrame) { t.onFrame = fn }

// Start implements Transport.
func (t *TCPTransport) Start() error {
	addr := net.JoinHostPort(t.cfg.ListenHost, fmt.Sprintf("%d", t.cfg.ListenPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()
	t.logger.Info("Listener up", "addr", ln.Addr())
	t.wg.Add(1)
	go t.acceptLoop(ln)
	return nil
}

// Stop implements Transport.
func (t *TCPTransport) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.listener != nil {
		t.listener.Close()
	}
	for addr, c := range t.conns {
		c.conn.Close()
		delete(t.conns, addr)
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}

// LocalAddr implements Transport.
func (t *TCPTransport) LocalAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *TCPTransport) acceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			t.logger.Debug("Accept failed", "err", err)
			continue
		}
		c := &tcpConn{conn: conn}
		t.wg.Add(1)
		go t.readLoop(c, conn.RemoteAddr().String(), "")
	}
}

// readLoop drains frames from one connection and delivers them in order.
// outboundKey is non-empty for pooled outbound connections so they can be
// evicted from the pool when the remote side goes away.
func (t *TCPTransport) readLoop(c *tcpConn, remote, outboundKey string) {
	defer t.wg.Done()
	defer c.conn.Close()
	if outboundKey != "" {
		defer func() {
			t.mu.Lock()
			if t.conns[outboundKey] == c {
				delete(t.conns, outboundKey)
			}
			t.mu.Unlock()
		}()
	}
	ctx := &tcpReplyContext{t: t, c: c, remote: remote}
	for {
		data, err := ReadFrame(c.conn, t.cfg.MaxFrameSize)
		if err != nil {
			// Incomplete reads and resets are connection close, not
			// router-visible errors.
			t.logger.Trace("Connection closed", "remote", remote, "err", err)
			return
		}
		if t.onFrame != nil {
			t.onFrame(data, remote, ctx)
		}
	}
}

// Send implements Transport.
func (t *TCPTransport) Send(addr string, data []byte) error {
	if t.cfg.MaxFrameSize > 0 && uint32(len(data)) > t.cfg.MaxFrameSize {
		return ErrPayloadTooLarge
	}
	c, err := t.dial(addr)
	if err != nil {
		return err
	}
	if err := c.writeFrame(data, t.cfg.MaxFrameSize, t.cfg.SendTimeout); err != nil {
		t.drop(addr, c)
		return t.classifyWriteErr(err)
	}
	return nil
}

// SendViaContext implements Transport. It writes on the originating
// connection only; it never dials and never consults the outbound pool.
func (t *TCPTransport) SendViaContext(ctx ReplyContext, data []byte) error {
	if ctx == nil {
		return fmt.Errorf("nil reply context")
	}
	return ctx.WriteFrame(data)
}

// dial returns the pooled connection for addr, establishing it if needed.
// Concurrent callers for the same address share a single dial.
func (t *TCPTransport) dial(addr string) (*tcpConn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if c, ok := t.conns[addr]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	v, err, _ := t.dialing.Do(addr, func() (interface{}, error) {
		t.mu.Lock()
		if c, ok := t.conns[addr]; ok {
			t.mu.Unlock()
			return c, nil
		}
		t.mu.Unlock()

		conn, err := net.DialTimeout("tcp", addr, t.cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, addr, err)
		}
		c := &tcpConn{conn: conn}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return nil, ErrTransportClosed
		}
		t.conns[addr] = c
		t.mu.Unlock()
		// Replies such as WELCOME and PONG arrive on the outbound
		// connection, so it gets a read loop too.
		t.wg.Add(1)
		go t.readLoop(c, addr, addr)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tcpConn), nil
}

func (t *TCPTransport) drop(addr string, c *tcpConn) {
	t.mu.Lock()
	if t.conns[addr] == c {
		delete(t.conns, addr)
	}
	t.mu.Unlock()
	c.conn.Close()
}

func (t *TCPTransport) classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	return err
}
