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

// Package crypto implements the identity primitives of the EZchain wire
// protocol: ECDSA P-256 signatures over SHA-256 digests, PEM key handling
// and the mnemonic-based wallet key derivation.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	// ErrNotECKey is returned when a PEM block does not contain a P-256
	// key.
	ErrNotECKey = errors.New("identity key must be an EC P-256 key")

	// ErrBadPEM is returned for undecodable PEM input.
	ErrBadPEM = errors.New("malformed PEM block")
)

// ParsePrivateKey decodes a PEM-encoded P-256 private key (PKCS#8 or SEC1).
func ParsePrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrBadPEM
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if ec, ok := key.(*ecdsa.PrivateKey); ok && ec.Curve == elliptic.P256() {
			return ec, nil
		}
		return nil, ErrNotECKey
	}
	if ec, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		if ec.Curve == elliptic.P256() {
			return ec, nil
		}
		return nil, ErrNotECKey
	}
	return nil, ErrBadPEM
}

// ParsePublicKey decodes a PEM-encoded P-256 public key (SPKI).
func ParsePublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrBadPEM
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrBadPEM
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok || ec.Curve != elliptic.P256() {
		return nil, ErrNotECKey
	}
	return ec, nil
}

// Sign produces the hex ASN.1 ECDSA signature of SHA-256(data) with the
// given PEM private key.
func Sign(data []byte, privPEM []byte) (string, error) {
	key, err := ParsePrivateKey(privPEM)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether sigHex is a well-formed signature of
// SHA-256(data) under the given PEM public key. Malformed keys,
// malformed signatures and mismatches all read as false; Verify has no
// other side effect.
func Verify(data []byte, sigHex string, pubPEM []byte) bool {
	key, err := ParsePublicKey(pubPEM)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(key, digest[:], sig)
}

// Fingerprint returns hex(sha256(pub)) over the raw PEM bytes, used as a
// stable identity token.
func Fingerprint(pubPEM []byte) string {
	sum := sha256.Sum256(pubPEM)
	return hex.EncodeToString(sum[:])
}

// MarshalPrivateKeyPEM encodes a private key as PKCS#8 PEM.
func MarshalPrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// MarshalPublicKeyPEM encodes a public key as SPKI PEM.
func MarshalPublicKeyPEM(key *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// DerivePublicKeyPEM extracts the SPKI PEM public key from a PEM private
// key.
func DerivePublicKeyPEM(privPEM []byte) ([]byte, error) {
	key, err := ParsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}
	return MarshalPublicKeyPEM(&key.PublicKey)
}

// GenerateIdentityKey creates a fresh P-256 keypair and returns both PEM
// encodings.
func GenerateIdentityKey() (privPEM, pubPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate identity key: %w", err)
	}
	privPEM, err = MarshalPrivateKeyPEM(key)
	if err != nil {
		return nil, nil, err
	}
	pubPEM, err = MarshalPublicKeyPEM(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	return privPEM, pubPEM, nil
}
