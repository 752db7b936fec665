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
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ezchain/go-ezchain/crypto"
	"github.com/ezchain/go-ezchain/params"
)

// seenCacheSize bounds the msg_id dedup window; entries also age out by
// timestamp so the cache size only matters under flood.
const seenCacheSize = 4096

// Handler processes one dispatched envelope. remoteID is the host:port of
// the originating connection and ctx allows replying on that exact
// connection.
type Handler func(env *Envelope, remoteID string, ctx ReplyContext)

// Config assembles a router.
type Config struct {
	NodeRole   string
	ListenHost string
	ListenPort int

	// Transport selects the backend, "tcp" (default) or "ws". An unknown
	// selector makes NewRouter fail fast.
	Transport string

	PeerSeeds       []string
	NetworkID       string
	ProtocolVersion string
	MaxNeighbors    int

	// NodeID is optional; when empty it is derived from the identity key
	// fingerprint, or synthesized randomly if there is no key either.
	NodeID string

	IdentityPrivateKey          []byte // PEM, optional
	IdentityPublicKey           []byte // PEM, optional
	EnforceIdentityVerification bool
	SignedMessageTypes          []string

	DialTimeout  time.Duration
	SendTimeout  time.Duration
	MaxFrameSize uint32

	// RetryCount is the number of extra attempts after a failed directed
	// send. Zero selects the default; a negative value disables retries.
	RetryCount   int
	RetryBackoff time.Duration

	MaintenanceInterval time.Duration
	SeedRetryBase       time.Duration
	SeedRetryMax        time.Duration
	DegradedNoPeer      time.Duration
	DedupWindow         time.Duration

	Logger log.Logger
}

func (c Config) withDefaults() Config {
	if c.NodeRole == "" {
		c.NodeRole = params.RoleAccount
	}
	if c.ListenHost == "" {
		c.ListenHost = "127.0.0.1"
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = params.ProtocolVersion
	}
	if c.MaxNeighbors <= 0 {
		c.MaxNeighbors = params.MaxNeighbors
	}
	if c.RetryCount == 0 {
		c.RetryCount = params.SendRetryCount
	} else if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = params.SendRetryBackoff
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = params.MaintenanceInterval
	}
	if c.SeedRetryBase <= 0 {
		c.SeedRetryBase = params.SeedRetryBase
	}
	if c.SeedRetryMax <= 0 {
		c.SeedRetryMax = params.SeedRetryMax
	}
	if c.DegradedNoPeer <= 0 {
		c.DegradedNoPeer = params.DegradedNoPeer
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = params.DedupWindow
	}
	if c.Logger == nil {
		c.Logger = log.New("p2p", "router")
	}
	return c
}

// SeedState names a position in the per-seed lifecycle.
type SeedState int

const (
	SeedIdle SeedState = iota
	SeedDialing
	SeedHealthy
	SeedFailing
	SeedBackoff
)

func (s SeedState) String() string {
	switch s {
	case SeedIdle:
		return "idle"
	case SeedDialing:
		return "dialing"
	case SeedHealthy:
		return "healthy"
	case SeedFailing:
		return "failing"
	case SeedBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// SeedInfo is a snapshot of one seed's lifecycle state.
type SeedInfo struct {
	Address   string
	State     SeedState
	Failures  int
	NextRetry time.Time
	LastError string
}

type seedEntry struct {
	state     SeedState
	failures  int
	nextRetry time.Time
	lastErr   string
}

// Health is the router's self-reported condition.
type Health struct {
	PeerCount int  `json:"peer_count"`
	Degraded  bool `json:"degraded"`
}

// Router dispatches decoded envelopes to registered handlers, drives the
// HELLO/WELCOME/PING/PONG handshake, and keeps seed links alive with
// exponential backoff. All envelope validation is fail-closed: a dropped
// message is logged locally and never answered, so a misbehaving peer
// cannot observe which check tripped.
type Router struct {
	cfg       Config
	nodeID    string
	logger    log.Logger
	transport Transport
	peers     *PeerSet

	handlerMu sync.RWMutex
	handlers  map[string]Handler

	signedTypes mapset.Set[string]
	seen        *lru.Cache[string, int64]

	seedMu sync.Mutex
	seeds  map[string]*seedEntry

	lastSeenMu   sync.Mutex
	lastPeerSeen time.Time

	quit    chan struct{}
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

// NewRouter builds a router and its transport. The transport is not
// started until Start.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if !params.ValidRole(cfg.NodeRole) {
		return nil, fmt.Errorf("unknown node role %q", cfg.NodeRole)
	}
	nodeID := cfg.NodeID
	if nodeID == "" {
		if len(cfg.IdentityPublicKey) > 0 {
			nodeID = crypto.Fingerprint(cfg.IdentityPublicKey)
		} else {
			nodeID = strings.ReplaceAll(NewMsgID(), "-", "")
		}
	}
	transport, err := NewTransport(cfg.Transport, TransportConfig{
		ListenHost:   cfg.ListenHost,
		ListenPort:   cfg.ListenPort,
		DialTimeout:  cfg.DialTimeout,
		SendTimeout:  cfg.SendTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
	})
	if err != nil {
		return nil, err
	}
	seen, err := lru.New[string, int64](seenCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Router{
		cfg:         cfg,
		nodeID:      nodeID,
		logger:      cfg.Logger.New("node", nodeID[:8], "role", cfg.NodeRole),
		transport:   transport,
		peers:       NewPeerSet(cfg.MaxNeighbors),
		handlers:    make(map[string]Handler),
		signedTypes: mapset.NewSet(cfg.SignedMessageTypes...),
		seen:        seen,
		seeds:       make(map[string]*seedEntry),
		quit:        make(chan struct{}),
	}
	for _, seed := range cfg.PeerSeeds {
		r.seeds[seed] = &seedEntry{state: SeedIdle}
	}
	transport.SetOnFrame(r.onFrame)

	r.RegisterHandler(params.MsgHello, r.handleHello)
	r.RegisterHandler(params.MsgWelcome, r.handleWelcome)
	r.RegisterHandler(params.MsgPing, r.handlePing)
	r.RegisterHandler(params.MsgPong, r.handlePong)
	return r, nil
}

// NodeID returns the local node identity token.
func (r *Router) NodeID() string { return r.nodeID }

// Peers returns the router's peer directory.
func (r *Router) Peers() *PeerSet { return r.peers }

// LocalAddr returns the transport listen address, valid after Start.
func (r *Router) LocalAddr() string { return r.transport.LocalAddr() }

// RegisterHandler installs the handler for a message type. Registration
// happens at startup; there is no unregister.
func (r *Router) RegisterHandler(msgType string, h Handler) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.handlers[msgType] = h
}

// Start brings up the transport, greets all seeds best-effort and launches
// the maintenance loop. Individual seed failures do not fail Start; they
// are scheduled for retry.
func (r *Router) Start() error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return errors.New("router already started")
	}
	if err := r.transport.Start(); err != nil {
		return err
	}
	r.started = true
	r.touchPeerSeen()
	r.logger.Info("Router up", "listen", r.transport.LocalAddr(), "seeds", len(r.seeds))
	for seed := range r.seeds {
		r.wg.Add(1)
		go func(addr string) {
			defer r.wg.Done()
			r.dialSeed(addr)
		}(seed)
	}
	r.wg.Add(1)
	go r.maintenanceLoop()
	return nil
}

// Stop cancels the maintenance loop, closes the transport and waits for
// in-flight work to drain.
func (r *Router) Stop() error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if !r.started {
		return nil
	}
	r.started = false
	close(r.quit)
	err := r.transport.Stop()
	r.wg.Wait()
	r.logger.Info("Router down")
	return err
}

// Health reports the degraded flag: no peers and none seen for longer
// than the configured threshold.
func (r *Router) Health() Health {
	peerCount := r.peers.Len()
	r.lastSeenMu.Lock()
	last := r.lastPeerSeen
	r.lastSeenMu.Unlock()
	degraded := peerCount == 0 && !last.IsZero() && time.Since(last) > r.cfg.DegradedNoPeer
	return Health{PeerCount: peerCount, Degraded: degraded}
}

// SeedStates returns a snapshot of all seed lifecycle entries.
func (r *Router) SeedStates() []SeedInfo {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	out := make([]SeedInfo, 0, len(r.seeds))
	for addr, e := range r.seeds {
		out = append(out, SeedInfo{
			Address:   addr,
			State:     e.state,
			Failures:  e.failures,
			NextRetry: e.nextRetry,
			LastError: e.lastErr,
		})
	}
	return out
}

// touchPeerSeen moves the last-peer-seen clock to now. Called on every
// successful inbound dispatch and outbound send completion.
func (r *Router) touchPeerSeen() {
	r.lastSeenMu.Lock()
	r.lastPeerSeen = time.Now()
	r.lastSeenMu.Unlock()
}

// ---------------------------------------------------------------- dispatch

func (r *Router) onFrame(data []byte, remoteID string, ctx ReplyContext) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		r.logger.Warn("decode_failed", "remote", remoteID, "err", err)
		return
	}
	if !versionCompatible(r.cfg.ProtocolVersion, env.Version) {
		r.logger.Info("drop_incompatible_version", "local", r.cfg.ProtocolVersion, "remote", env.Version)
		return
	}
	if env.MsgID == "" || env.Timestamp == 0 {
		r.logger.Info("drop_invalid_envelope", "remote", remoteID)
		return
	}
	// Handshake types are exempt from the network check: the sender does
	// not yet know which network the far side serves.
	if env.Type != params.MsgHello && env.Type != params.MsgWelcome {
		if env.Network != r.expectedNetwork() {
			r.logger.Info("drop_network_mismatch", "want", r.expectedNetwork(), "got", env.Network, "type", env.Type)
			return
		}
	}
	if r.isReplayOrDuplicate(env) {
		r.logger.Info("drop_replay", "msg_id", env.MsgID, "remote", remoteID)
		return
	}
	if r.cfg.EnforceIdentityVerification || r.signedTypes.Contains(env.Type) {
		if env.Auth == nil {
			r.logger.Info("drop_unsigned", "type", env.Type, "remote", remoteID)
			return
		}
		if !env.VerifySignature() {
			r.logger.Info("drop_bad_signature", "type", env.Type, "remote", remoteID)
			return
		}
	}
	r.handlerMu.RLock()
	handler := r.handlers[env.Type]
	r.handlerMu.RUnlock()
	if handler == nil {
		r.logger.Info("drop_unknown_type", "type", env.Type)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler_panic", "type", env.Type, "err", rec)
		}
	}()
	handler(env, remoteID, ctx)
	r.touchPeerSeen()
}

func (r *Router) expectedNetwork() string {
	return r.cfg.NodeRole
}

// versionCompatible accepts any remote version sharing the local major
// component.
func versionCompatible(local, remote string) bool {
	if remote == "" {
		return false
	}
	major := func(v string) string {
		if i := strings.IndexByte(v, '.'); i >= 0 {
			return v[:i]
		}
		return v
	}
	return major(local) == major(remote)
}

// isReplayOrDuplicate drops envelopes whose msg_id was already seen inside
// the dedup window, and envelopes whose producer timestamp is older than
// the window or unreasonably far in the future.
func (r *Router) isReplayOrDuplicate(env *Envelope) bool {
	now := time.Now().UnixMilli()
	window := r.cfg.DedupWindow.Milliseconds()
	if env.Timestamp < now-window {
		return true
	}
	if env.Timestamp > now+params.ClockFutureSkew.Milliseconds() {
		return true
	}
	if ts, ok := r.seen.Get(env.MsgID); ok && now-ts <= window {
		return true
	}
	r.seen.Add(env.MsgID, env.Timestamp)
	return false
}

// ---------------------------------------------------------- built-in types

func (r *Router) helloPayload() *HelloPayload {
	return &HelloPayload{
		NodeID:          r.nodeID,
		Role:            r.cfg.NodeRole,
		ProtocolVersion: r.cfg.ProtocolVersion,
		NetworkID:       r.cfg.NetworkID,
		LatestIndex:     0,
	}
}

func (r *Router) peerFromHello(p *HelloPayload, remoteID string) *Peer {
	return &Peer{
		NodeID:      p.NodeID,
		Role:        p.Role,
		NetworkID:   p.NetworkID,
		LatestIndex: p.LatestIndex,
		Address:     remoteID,
		LastSeen:    time.Now(),
	}
}

func (r *Router) handleHello(env *Envelope, remoteID string, ctx ReplyContext) {
	var p HelloPayload
	if err := env.DecodePayload(&p); err != nil {
		r.logger.Warn("hello_bad_payload", "remote", remoteID, "err", err)
		return
	}
	if !r.peers.Add(r.peerFromHello(&p, remoteID)) {
		r.logger.Debug("peer_table_full", "remote", remoteID)
	}
	// WELCOME goes back on the same connection so we never dial an
	// ephemeral port.
	reply, err := NewEnvelope(env.Network, params.MsgWelcome, r.helloPayload())
	if err != nil {
		return
	}
	reply.SenderID = r.nodeID
	if err := r.signIfRequired(reply); err != nil {
		r.logger.Warn("welcome_sign_failed", "err", err)
		return
	}
	data, err := reply.Encode()
	if err != nil {
		return
	}
	if err := r.transport.SendViaContext(ctx, data); err != nil {
		r.logger.Warn("welcome_send_failed", "remote", remoteID, "err", err)
		return
	}
	r.logger.Info("hello_recv", "from", remoteID, "role", p.Role)
}

func (r *Router) handleWelcome(env *Envelope, remoteID string, ctx ReplyContext) {
	var p HelloPayload
	if err := env.DecodePayload(&p); err != nil {
		r.logger.Warn("welcome_bad_payload", "remote", remoteID, "err", err)
		return
	}
	if !r.peers.Add(r.peerFromHello(&p, remoteID)) {
		r.logger.Debug("peer_table_full", "remote", remoteID)
	}
	r.logger.Info("welcome_recv", "from", remoteID, "role", p.Role)
}

func (r *Router) handlePing(env *Envelope, remoteID string, ctx ReplyContext) {
	var p PingPayload
	if err := env.DecodePayload(&p); err != nil {
		return
	}
	reply, err := NewEnvelope(env.Network, params.MsgPong, &PingPayload{TS: p.TS})
	if err != nil {
		return
	}
	reply.SenderID = r.nodeID
	if err := r.signIfRequired(reply); err != nil {
		return
	}
	data, err := reply.Encode()
	if err != nil {
		return
	}
	if err := r.transport.SendViaContext(ctx, data); err != nil {
		r.logger.Warn("pong_send_failed", "remote", remoteID, "err", err)
		return
	}
	r.logger.Debug("ping_recv", "from", remoteID)
}

func (r *Router) handlePong(env *Envelope, remoteID string, ctx ReplyContext) {
	r.logger.Debug("pong_recv", "from", remoteID)
}

// ------------------------------------------------------------------- sends

// BroadcastToRole sends payload to every known peer of the given role.
// Per-peer failures are logged; there is no retry beyond the per-send
// retry budget.
func (r *Router) BroadcastToRole(role string, payload interface{}, msgType string) {
	for _, p := range r.peers.SelectByRole(role) {
		if err := r.sendToAddr(p.Address, payload, msgType, role); err != nil {
			r.logger.Warn("broadcast_send_failed", "peer", p.NodeID, "addr", p.Address, "err", err)
		}
	}
}

// SendToAddress performs a one-shot directed send. network labels the
// destination network of the envelope.
func (r *Router) SendToAddress(addr string, payload interface{}, msgType, network string) error {
	return r.sendToAddr(addr, payload, msgType, network)
}

// Ping sends a PING carrying the current monotonic-ish clock in
// milliseconds.
func (r *Router) Ping(addr string) error {
	return r.sendToAddr(addr, &PingPayload{TS: time.Now().UnixMilli()}, params.MsgPing, r.cfg.NodeRole)
}

func (r *Router) signIfRequired(env *Envelope) error {
	if !r.cfg.EnforceIdentityVerification && !r.signedTypes.Contains(env.Type) {
		return nil
	}
	if len(r.cfg.IdentityPrivateKey) == 0 || len(r.cfg.IdentityPublicKey) == 0 {
		return errors.New("identity key required for signed message type")
	}
	return env.SignWith(r.cfg.IdentityPrivateKey, r.cfg.IdentityPublicKey)
}

func (r *Router) sendToAddr(addr string, payload interface{}, msgType, network string) error {
	env, err := NewEnvelope(network, msgType, payload)
	if err != nil {
		return err
	}
	env.SenderID = r.nodeID
	if err := r.signIfRequired(env); err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt <= r.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := r.cfg.RetryBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-r.quit:
				return ErrTransportClosed
			}
		}
		if lastErr = r.transport.Send(addr, data); lastErr == nil {
			r.touchPeerSeen()
			return nil
		}
	}
	return fmt.Errorf("send_failed: %s %s: %w", addr, msgType, lastErr)
}

func (r *Router) sendHello(addr string) error {
	network := params.RoleConsensus
	if r.cfg.NodeRole == params.RoleAccount {
		network = params.RoleAccount
	}
	return r.sendToAddr(addr, r.helloPayload(), params.MsgHello, network)
}

// ------------------------------------------------------------------- seeds

// dialSeed walks one seed through DIALING and into HEALTHY or BACKOFF.
// A successful HELLO send counts as healthy even before WELCOME arrives.
func (r *Router) dialSeed(addr string) {
	r.seedMu.Lock()
	e, ok := r.seeds[addr]
	if !ok || e.state == SeedDialing {
		r.seedMu.Unlock()
		return
	}
	e.state = SeedDialing
	r.seedMu.Unlock()

	err := r.sendHello(addr)

	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	if err == nil {
		e.state = SeedHealthy
		e.failures = 0
		e.lastErr = ""
		return
	}
	e.state = SeedFailing
	e.failures++
	e.lastErr = err.Error()
	e.nextRetry = time.Now().Add(seedBackoff(r.cfg.SeedRetryBase, r.cfg.SeedRetryMax, e.failures))
	e.state = SeedBackoff
	r.logger.Warn("seed_connect_failed", "seed", addr, "failures", e.failures, "err", err)
}

// seedBackoff computes min(base * 2^(failures-1), max).
func seedBackoff(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (r *Router) maintenanceLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			r.maintainSeeds()
		}
	}
}

// maintainSeeds promotes BACKOFF seeds whose retry deadline passed, and
// keeps greeting seeds while the peer table is empty so a disconnected
// node can recover.
func (r *Router) maintainSeeds() {
	noPeers := r.peers.Len() == 0
	now := time.Now()

	var due []string
	r.seedMu.Lock()
	for addr, e := range r.seeds {
		switch e.state {
		case SeedBackoff:
			if !now.Before(e.nextRetry) {
				due = append(due, addr)
			}
		case SeedIdle:
			due = append(due, addr)
		case SeedHealthy:
			if noPeers {
				due = append(due, addr)
			}
		}
	}
	r.seedMu.Unlock()

	for _, addr := range due {
		r.wg.Add(1)
		go func(a string) {
			defer r.wg.Done()
			r.dialSeed(a)
		}(addr)
	}
}
