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
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"math/big"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfIterations matches the wallet format: PBKDF2-HMAC-SHA256 with
	// 200k rounds for both seed and password derivation.
	kdfIterations = 200000

	mnemonicSalt = "ezchain-mnemonic-"
)

// ErrDecryptFailed is returned when a ciphertext does not authenticate,
// usually because of a wrong password.
var ErrDecryptFailed = errors.New("decryption failed")

// DerivedKeypair is the deterministic wallet identity produced from a
// mnemonic.
type DerivedKeypair struct {
	Mnemonic      string
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	Address       string
}

// GenerateMnemonic returns a fresh 12-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether the mnemonic is well formed.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// AddressFromPublicKeyPEM derives the wallet address:
// "0x" + hex(sha256(DER SPKI))[:40].
func AddressFromPublicKeyPEM(pubPEM []byte) (string, error) {
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return "", ErrBadPEM
	}
	sum := sha256.Sum256(block.Bytes)
	return "0x" + hex.EncodeToString(sum[:])[:40], nil
}

// DeriveKeypair deterministically derives a P-256 keypair from a
// mnemonic. The 32-byte seed comes from PBKDF2 over the mnemonic text and
// is reduced into the curve's scalar range.
func DeriveKeypair(mnemonic, passphrase string) (*DerivedKeypair, error) {
	seed := pbkdf2.Key([]byte(mnemonic), []byte(mnemonicSalt+passphrase), kdfIterations, 32, sha256.New)

	order := elliptic.P256().Params().N
	d := new(big.Int).SetBytes(seed)
	d.Mod(d, new(big.Int).Sub(order, big.NewInt(1)))
	d.Add(d, big.NewInt(1))

	key := new(ecdsa.PrivateKey)
	key.Curve = elliptic.P256()
	key.D = d
	key.X, key.Y = key.Curve.ScalarBaseMult(d.Bytes())

	privPEM, err := MarshalPrivateKeyPEM(key)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	sum := sha256.Sum256(pubDER)
	return &DerivedKeypair{
		Mnemonic:      mnemonic,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
		Address:       "0x" + hex.EncodeToString(sum[:])[:40],
	}, nil
}

// Encrypted is the at-rest form of a password-protected secret.
type Encrypted struct {
	Salt       string `json:"salt"`       // base64 raw salt
	Nonce      string `json:"nonce"`      // base64 GCM nonce
	Ciphertext string `json:"ciphertext"` // base64 AES-256-GCM output
}

func passwordKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New)
}

// EncryptText seals plaintext under a password with AES-256-GCM and a
// PBKDF2-derived key.
func EncryptText(plaintext, password string) (*Encrypted, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(passwordKey(password, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return &Encrypted{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// DecryptText reverses EncryptText. A wrong password surfaces as
// ErrDecryptFailed.
func DecryptText(enc *Encrypted, password string) (string, error) {
	salt, err := base64.StdEncoding.DecodeString(enc.Salt)
	if err != nil {
		return "", ErrDecryptFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(enc.Nonce)
	if err != nil {
		return "", ErrDecryptFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}
	block, err := aes.NewCipher(passwordKey(password, salt))
	if err != nil {
		return "", ErrDecryptFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrDecryptFailed
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}
