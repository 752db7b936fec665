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
	"sync"
	"time"
)

// Peer is a directory entry for a known remote node. It holds only the
// address string and ids, never a connection handle: the transport owns
// sockets, keyed by address.
type Peer struct {
	NodeID      string `json:"node_id"`
	Role        string `json:"role"`
	NetworkID   string `json:"network_id"`
	LatestIndex uint64 `json:"latest_index"`
	Address     string `json:"address"`

	LastSeen time.Time `json:"-"`
}

// PeerSet is the in-memory peer directory, capped at a maximum neighbour
// count. There is no eviction: admission at capacity is refused.
type PeerSet struct {
	mu    sync.RWMutex
	max   int
	peers map[string]*Peer // keyed by node id
}

// NewPeerSet creates a peer set holding at most max entries.
func NewPeerSet(max int) *PeerSet {
	return &PeerSet{max: max, peers: make(map[string]*Peer)}
}

// Add inserts or refreshes a peer. It returns false when the entry is new
// and the set is at capacity; refreshing an existing entry always
// succeeds.
func (ps *PeerSet) Add(p *Peer) bool {
	if p == nil || p.NodeID == "" {
		return false
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, known := ps.peers[p.NodeID]; !known && len(ps.peers) >= ps.max {
		return false
	}
	cp := *p
	if cp.LastSeen.IsZero() {
		cp.LastSeen = time.Now()
	}
	ps.peers[p.NodeID] = &cp
	return true
}

// Remove deletes a peer by node id.
func (ps *PeerSet) Remove(nodeID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.peers, nodeID)
}

// Get returns the peer with the given node id, or nil.
func (ps *PeerSet) Get(nodeID string) *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if p, ok := ps.peers[nodeID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// List returns a snapshot of all peers.
func (ps *PeerSet) List() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// SelectByRole returns the peers whose role matches.
func (ps *PeerSet) SelectByRole(role string) []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var out []*Peer
	for _, p := range ps.peers {
		if p.Role == role {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.peers)
}
