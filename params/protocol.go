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

package params

import "time"

// ProtocolVersion is the wire protocol version carried in every envelope.
// Versions are compatible when their major component matches.
const ProtocolVersion = "0.1"

// Node roles. The role of a node determines which network label its
// envelopes carry and which peers it exchanges application messages with.
const (
	RoleConsensus   = "consensus"
	RoleAccount     = "account"
	RolePoolGateway = "pool_gateway"
)

// ValidRole reports whether role is one of the three known node roles.
func ValidRole(role string) bool {
	switch role {
	case RoleConsensus, RoleAccount, RolePoolGateway:
		return true
	}
	return false
}

// Built-in message types driven by the router itself.
const (
	MsgHello   = "HELLO"
	MsgWelcome = "WELCOME"
	MsgPing    = "PING"
	MsgPong    = "PONG"
)

// SignatureAlgorithm is the only envelope signature scheme supported.
const SignatureAlgorithm = "ecdsa-p256-sha256"

// Transport and router defaults.
const (
	MaxFrameSize        = 2 * 1024 * 1024 // hard cap on a single wire frame
	DialTimeout         = 3 * time.Second
	SendTimeout         = 3 * time.Second
	MaxNeighbors        = 8
	SendRetryCount      = 2
	SendRetryBackoff    = 300 * time.Millisecond
	MaintenanceInterval = 5 * time.Second
	SeedRetryBase       = 1 * time.Second
	SeedRetryMax        = 60 * time.Second
	DegradedNoPeer      = 30 * time.Second
	DedupWindow         = 5 * time.Minute
	ClockFutureSkew     = 30 * time.Second
)

// Submission service defaults.
const (
	DefaultMaxPayloadBytes = 65536
	DefaultMaxTxAmount     = 100000000
	DefaultNonceTTL        = 600 * time.Second
	MinNonceTTL            = 1 * time.Second
	ShutdownDrainTimeout   = 2 * time.Second
)
