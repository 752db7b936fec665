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

// Package wallet manages the on-disk wallet file and the local
// transaction history. Keys are derived deterministically from a BIP-39
// mnemonic and a password; the private key is stored only encrypted, the
// mnemonic in the clear so the wallet file itself serves as the backup.
package wallet

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ezchain/go-ezchain/crypto"
)

var (
	// ErrNotFound is returned when no wallet file exists yet.
	ErrNotFound = errors.New("wallet_not_found")
	// ErrExists is returned when creating over an existing wallet.
	ErrExists = errors.New("wallet_exists")
)

// Wallet is the persisted wallet file.
type Wallet struct {
	Name                string           `json:"name"`
	Address             string           `json:"address"`
	PublicKeyPEM        string           `json:"public_key_pem"`
	EncryptedPrivateKey crypto.Encrypted `json:"encrypted_private_key"`
	Mnemonic            string           `json:"mnemonic"`
	CreatedAt           string           `json:"created_at"`
}

// HistoryEntry is one locally recorded transaction.
type HistoryEntry struct {
	TxHash    string `json:"tx_hash"`
	Direction string `json:"direction"` // "sent" or "faucet"
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Store reads and writes wallet.json and tx_history.json inside a data
// directory.
type Store struct {
	mu      sync.Mutex
	dataDir string
	logger  log.Logger
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		logger:  log.New("pkg", "wallet"),
	}
}

func (s *Store) walletPath() string  { return filepath.Join(s.dataDir, "wallet.json") }
func (s *Store) historyPath() string { return filepath.Join(s.dataDir, "tx_history.json") }

// Exists reports whether a wallet file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.walletPath())
	return err == nil
}

// Create derives a fresh wallet from a new mnemonic and persists it.
// Fails if a wallet already exists.
func (s *Store) Create(name, password string) (*Wallet, error) {
	mnemonic, err := crypto.GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	return s.Import(name, mnemonic, password)
}

// Import derives the wallet from an existing mnemonic and persists it.
// Fails if a wallet already exists.
func (s *Store) Import(name, mnemonic, password string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.walletPath()); err == nil {
		return nil, ErrExists
	}
	if !crypto.ValidateMnemonic(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	kp, err := crypto.DeriveKeypair(mnemonic, password)
	if err != nil {
		return nil, err
	}
	enc, err := crypto.EncryptText(string(kp.PrivateKeyPEM), password)
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		Name:                name,
		Address:             kp.Address,
		PublicKeyPEM:        string(kp.PublicKeyPEM),
		EncryptedPrivateKey: *enc,
		Mnemonic:            mnemonic,
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.writeJSON(s.walletPath(), w); err != nil {
		return nil, err
	}
	s.logger.Info("Wallet created", "name", name, "address", w.Address)
	return w, nil
}

// Summary returns the public portion of the wallet, never key material.
func (s *Store) Summary() (map[string]interface{}, error) {
	w, err := s.read()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"name":       w.Name,
		"address":    w.Address,
		"created_at": w.CreatedAt,
	}, nil
}

// Load returns the wallet with its private key decrypted using password.
func (s *Store) Load(password string) (*Wallet, string, error) {
	w, err := s.read()
	if err != nil {
		return nil, "", err
	}
	privPEM, err := crypto.DecryptText(&w.EncryptedPrivateKey, password)
	if err != nil {
		return nil, "", err
	}
	return w, privPEM, nil
}

// Address returns the wallet address without touching key material.
func (s *Store) Address() (string, error) {
	w, err := s.read()
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

func (s *Store) read() (*Wallet, error) {
	data, err := os.ReadFile(s.walletPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// AppendHistory adds one entry to the local transaction history.
func (s *Store) AppendHistory(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.loadHistory()
	entries = append(entries, entry)
	return s.writeJSON(s.historyPath(), entries)
}

// History returns the recorded transactions, oldest first.
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHistory()
}

func (s *Store) loadHistory() []HistoryEntry {
	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		return []HistoryEntry{}
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("History file corrupt, resetting", "path", s.historyPath())
		return []HistoryEntry{}
	}
	return entries
}

func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
