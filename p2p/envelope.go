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
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ezchain/go-ezchain/crypto"
	"github.com/ezchain/go-ezchain/params"
)

// Auth carries the optional identity proof of an envelope. The signature
// covers SHA-256 of the canonical envelope bytes, which exclude this field.
type Auth struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// Envelope is the outer object wrapping every P2P message. It travels as
// UTF-8 JSON inside a length-prefixed frame.
type Envelope struct {
	Version   string          `json:"version"`
	Network   string          `json:"network"`
	Type      string          `json:"type"`
	MsgID     string          `json:"msg_id"`
	Timestamp int64           `json:"timestamp"` // milliseconds since epoch, producer clock
	SenderID  string          `json:"sender_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Auth      *Auth           `json:"auth,omitempty"`
}

// NewMsgID returns a fresh producer-assigned message id.
func NewMsgID() string {
	return uuid.New().String()
}

// NewEnvelope assembles an envelope around the given payload object. The
// payload is marshalled immediately so later mutation of v has no effect.
func NewEnvelope(network, msgType string, v interface{}) (*Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:   params.ProtocolVersion,
		Network:   network,
		Type:      msgType,
		MsgID:     NewMsgID(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}, nil
}

// Encode serializes the envelope to its wire JSON form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses wire bytes into an envelope. The body must be a
// JSON object carrying at least version, type and payload; anything else
// fails with ErrInvalidFrame.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrInvalidFrame
	}
	if e.Version == "" || e.Type == "" || len(e.Payload) == 0 {
		return nil, ErrInvalidFrame
	}
	return &e, nil
}

// DecodePayload unmarshals the payload into v.
func (e *Envelope) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// CanonicalBytes returns the deterministic serialization used for signing:
// the JSON object {version, network, type, msg_id, timestamp, sender_id,
// payload} with sorted keys and no insignificant whitespace. Auth and any
// transport-added fields are excluded so a receiver that strips auth before
// hashing reproduces the same bytes.
func (e *Envelope) CanonicalBytes() ([]byte, error) {
	var payload interface{}
	if len(e.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(e.Payload))
		dec.UseNumber() // preserve number literals across the round trip
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
	} else {
		payload = map[string]interface{}{}
	}
	canon := map[string]interface{}{
		"version":   e.Version,
		"network":   e.Network,
		"type":      e.Type,
		"msg_id":    e.MsgID,
		"timestamp": e.Timestamp,
		"sender_id": e.SenderID,
		"payload":   payload,
	}
	// encoding/json emits map keys in sorted order with no extra whitespace.
	return json.Marshal(canon)
}

// SignWith signs the envelope with the given PEM private key and attaches
// the auth block.
func (e *Envelope) SignWith(privPEM, pubPEM []byte) error {
	canon, err := e.CanonicalBytes()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(canon, privPEM)
	if err != nil {
		return err
	}
	e.Auth = &Auth{
		Algorithm: params.SignatureAlgorithm,
		PublicKey: string(pubPEM),
		Signature: sig,
	}
	return nil
}

// VerifySignature reports whether the attached auth block is present, uses
// the supported algorithm and carries a valid signature over the canonical
// bytes. It never returns an error: all failure modes read as false.
func (e *Envelope) VerifySignature() bool {
	if e.Auth == nil || e.Auth.Algorithm != params.SignatureAlgorithm {
		return false
	}
	canon, err := e.CanonicalBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(canon, e.Auth.Signature, []byte(e.Auth.PublicKey))
}

// HelloPayload is the payload of HELLO and WELCOME messages.
type HelloPayload struct {
	NodeID          string `json:"node_id"`
	Role            string `json:"role"`
	ProtocolVersion string `json:"protocol_version"`
	NetworkID       string `json:"network_id"`
	LatestIndex     uint64 `json:"latest_index"`
}

// PingPayload is the payload of PING and PONG messages; PONG echoes the
// ts field unchanged.
type PingPayload struct {
	TS int64 `json:"ts"`
}
