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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)
	assert.True(t, ValidateMnemonic(m))
	assert.False(t, ValidateMnemonic("definitely not a valid mnemonic phrase at all"))
}

func TestDeriveKeypairDeterministic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)

	kp1, err := DeriveKeypair(m, "pw123")
	require.NoError(t, err)
	kp2, err := DeriveKeypair(m, "pw123")
	require.NoError(t, err)

	assert.Equal(t, kp1.Address, kp2.Address)
	assert.Equal(t, kp1.PublicKeyPEM, kp2.PublicKeyPEM)
	assert.True(t, strings.HasPrefix(kp1.Address, "0x"))
	assert.Len(t, kp1.Address, 42)

	// A different passphrase yields a different key.
	kp3, err := DeriveKeypair(m, "other")
	require.NoError(t, err)
	assert.NotEqual(t, kp1.Address, kp3.Address)
}

func TestDerivedKeySigns(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)
	kp, err := DeriveKeypair(m, "pw123")
	require.NoError(t, err)

	sig, err := Sign([]byte("payload"), []byte(kp.PrivateKeyPEM))
	require.NoError(t, err)
	assert.True(t, Verify([]byte("payload"), sig, []byte(kp.PublicKeyPEM)))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptText("secret key material", "pw123")
	require.NoError(t, err)

	plain, err := DecryptText(enc, "pw123")
	require.NoError(t, err)
	assert.Equal(t, "secret key material", plain)

	_, err = DecryptText(enc, "wrong")
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestEncryptTextFreshNonce(t *testing.T) {
	a, err := EncryptText("same text", "pw")
	require.NoError(t, err)
	b, err := EncryptText("same text", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext, "nonce must be fresh per encryption")
}
