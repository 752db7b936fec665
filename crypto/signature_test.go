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

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateIdentityKey()
	require.NoError(t, err)

	msg := []byte(`{"type":"HELLO","payload":{}}`)
	sig, err := Sign(msg, priv)
	require.NoError(t, err)
	assert.True(t, Verify(msg, sig, pub))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, pub, err := GenerateIdentityKey()
	require.NoError(t, err)

	msg := []byte("original message")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)

	// Flip a single bit of the message.
	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0x01
	assert.False(t, Verify(tampered, sig, pub))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _, err := GenerateIdentityKey()
	require.NoError(t, err)
	_, otherPub, err := GenerateIdentityKey()
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)
	assert.False(t, Verify(msg, sig, otherPub))
}

func TestVerifyNeverPanicsOnGarbage(t *testing.T) {
	_, pub, err := GenerateIdentityKey()
	require.NoError(t, err)

	assert.False(t, Verify([]byte("msg"), "not-hex", pub))
	assert.False(t, Verify([]byte("msg"), "abcd", pub))
	assert.False(t, Verify([]byte("msg"), "abcd", []byte("not a pem key")))
}

func TestFingerprintStable(t *testing.T) {
	_, pub, err := GenerateIdentityKey()
	require.NoError(t, err)

	fp1 := Fingerprint(pub)
	fp2 := Fingerprint(pub)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "hex sha256")

	_, other, err := GenerateIdentityKey()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, Fingerprint(other))
}

func TestDerivePublicKeyPEM(t *testing.T) {
	priv, pub, err := GenerateIdentityKey()
	require.NoError(t, err)

	derived, err := DerivePublicKeyPEM(priv)
	require.NoError(t, err)
	assert.Equal(t, string(pub), string(derived))
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKey([]byte("garbage"))
	require.ErrorIs(t, err, ErrBadPEM)
}
