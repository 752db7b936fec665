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
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"
)

// wsPath is the upgrade endpoint of the websocket backend.
const wsPath = "/ez"

// WSTransport is the optional second backend. It carries one envelope per
// binary websocket message; the websocket layer supplies the message
// boundaries that the TCP backend gets from the 4-byte length prefix.
type WSTransport struct {
	cfg     TransportConfig
	logger  log.Logger
	onFrame OnFrame

	mu       sync.Mutex
	conns    map[string]*wsConn
	listener net.Listener
	server   *http.Server
	closed   bool

	dialing singleflight.Group
	wg      sync.WaitGroup

	upgrader websocket.Upgrader
}

type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *wsConn) writeFrame(data []byte, timeout time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

type wsReplyContext struct {
	t      *WSTransport
	c      *wsConn
	remote string
}

func (r *wsReplyContext) WriteFrame(data []byte) error {
	if r.t.cfg.MaxFrameSize > 0 && uint32(len(data)) > r.t.cfg.MaxFrameSize {
		return ErrPayloadTooLarge
	}
	return r.c.writeFrame(data, r.t.cfg.SendTimeout)
}

func (r *wsReplyContext) RemoteID() string { return r.remote }

// NewWSTransport creates an unstarted websocket backend.
func NewWSTransport(cfg TransportConfig) *WSTransport {
	return &WSTransport{
		cfg:    cfg.withDefaults(),
		logger: log.New("p2p", "ws"),
		conns:  make(map[string]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetOnFrame implements Transport.
func (t *WSTransport) SetOnFrame(fn OnFrame) { t.onFrame = fn }

// Start implements Transport.
func (t *WSTransport) Start() error {
	addr := net.JoinHostPort(t.cfg.ListenHost, fmt.Sprintf("%d", t.cfg.ListenPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, t.handleUpgrade)
	srv := &http.Server{Handler: mux}

	t.mu.Lock()
	t.listener = ln
	t.server = srv
	t.mu.Unlock()

	t.logger.Info("Listener up", "addr", ln.Addr())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		srv.Serve(ln)
	}()
	return nil
}

// Stop implements Transport.
func (t *WSTransport) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.server != nil {
		t.server.Close()
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
func (t *WSTransport) LocalAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *WSTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Debug("Upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &wsConn{conn: conn}
	t.wg.Add(1)
	go t.readLoop(c, r.RemoteAddr, "")
}

func (t *WSTransport) readLoop(c *wsConn, remote, outboundKey string) {
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
	if t.cfg.MaxFrameSize > 0 {
		c.conn.SetReadLimit(int64(t.cfg.MaxFrameSize))
	}
	ctx := &wsReplyContext{t: t, c: c, remote: remote}
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			t.logger.Trace("Connection closed", "remote", remote, "err", err)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if t.onFrame != nil {
			t.onFrame(data, remote, ctx)
		}
	}
}

// Send implements Transport.
func (t *WSTransport) Send(addr string, data []byte) error {
	if t.cfg.MaxFrameSize > 0 && uint32(len(data)) > t.cfg.MaxFrameSize {
		return ErrPayloadTooLarge
	}
	c, err := t.dial(addr)
	if err != nil {
		return err
	}
	if err := c.writeFrame(data, t.cfg.SendTimeout); err != nil {
		t.drop(addr, c)
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return fmt.Errorf("%w: %v", ErrSendTimeout, err)
		}
		return err
	}
	return nil
}

// SendViaContext implements Transport.
func (t *WSTransport) SendViaContext(ctx ReplyContext, data []byte) error {
	if ctx == nil {
		return fmt.Errorf("nil reply context")
	}
	return ctx.WriteFrame(data)
}

func (t *WSTransport) dial(addr string) (*wsConn, error) {
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

		dialer := websocket.Dialer{HandshakeTimeout: t.cfg.DialTimeout}
		conn, _, err := dialer.Dial("ws://"+addr+wsPath, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, addr, err)
		}
		c := &wsConn{conn: conn}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return nil, ErrTransportClosed
		}
		t.conns[addr] = c
		t.mu.Unlock()
		t.wg.Add(1)
		go t.readLoop(c, addr, addr)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*wsConn), nil
}

func (t *WSTransport) drop(addr string, c *wsConn) {
	t.mu.Lock()
	if t.conns[addr] == c {
		delete(t.conns, addr)
	}
	t.mu.Unlock()
	c.conn.Close()
}
