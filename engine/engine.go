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

// Package engine delegates transaction submission. The LocalEngine keeps
// a denominated value stock on disk and settles against it directly;
// deployments pointing at a live consensus network swap in an engine that
// forwards over the wire instead.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Validation failures the submission layer maps to client errors.
var (
	ErrAmountMustBePositive = errors.New("amount_must_be_positive")
	ErrRecipientRequired    = errors.New("recipient_required")
	ErrAmountExceedsLimit   = errors.New("amount_exceeds_limit")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
)

// denominations are the chunk sizes the value stock is held in, largest
// first so change-making is greedy.
var denominations = []int64{100, 50, 20, 10, 5, 1}

// Result is the outcome of an accepted submission.
type Result struct {
	TxHash     string `json:"tx_hash"`
	SubmitHash string `json:"submit_hash"`
	Status     string `json:"status"`
}

// Balance is the current value stock, total plus per-denomination counts.
type Balance struct {
	Total  int64           `json:"total"`
	Chunks map[int64]int64 `json:"chunks"`
}

// Engine is the submission backend the HTTP layer delegates to.
type Engine interface {
	Send(sender, recipient string, amount int64) (*Result, error)
	Faucet(address string, amount int64) (*Result, error)
	Balance(address string) (*Balance, error)
}

// LocalEngine settles transactions against a persisted local value stock.
type LocalEngine struct {
	mu          sync.Mutex
	path        string
	maxTxAmount int64
	logger      log.Logger
}

// NewLocalEngine creates an engine persisting its stock under dataDir.
func NewLocalEngine(dataDir string, maxTxAmount int64) *LocalEngine {
	return &LocalEngine{
		path:        filepath.Join(dataDir, "value_stock.json"),
		maxTxAmount: maxTxAmount,
		logger:      log.New("pkg", "engine"),
	}
}

// Send validates and settles a transfer, consuming chunks from the stock.
func (e *LocalEngine) Send(sender, recipient string, amount int64) (*Result, error) {
	if amount <= 0 {
		return nil, ErrAmountMustBePositive
	}
	if recipient == "" {
		return nil, ErrRecipientRequired
	}
	if e.maxTxAmount > 0 && amount > e.maxTxAmount {
		return nil, ErrAmountExceedsLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	stock := e.load()
	if total(stock) < amount {
		return nil, ErrInsufficientBalance
	}
	consume(stock, amount)
	if err := e.persist(stock); err != nil {
		return nil, err
	}

	res := buildResult(sender, recipient, amount)
	e.logger.Info("Transaction settled", "sender", sender, "recipient", recipient, "amount", amount, "txhash", res.TxHash)
	return res, nil
}

// Faucet credits the stock with amount, split greedily into chunks.
func (e *LocalEngine) Faucet(address string, amount int64) (*Result, error) {
	if amount <= 0 {
		return nil, ErrAmountMustBePositive
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	stock := e.load()
	credit(stock, amount)
	if err := e.persist(stock); err != nil {
		return nil, err
	}
	res := buildResult("faucet", address, amount)
	e.logger.Info("Faucet credit", "address", address, "amount", amount)
	return res, nil
}

// Balance returns the stock total and chunk breakdown.
func (e *LocalEngine) Balance(address string) (*Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stock := e.load()
	chunks := make(map[int64]int64, len(stock))
	for d, n := range stock {
		chunks[d] = n
	}
	return &Balance{Total: total(stock), Chunks: chunks}, nil
}

func buildResult(sender, recipient string, amount int64) *Result {
	seed := fmt.Sprintf("%s|%s|%d|%d", sender, recipient, amount, time.Now().UnixNano())
	txHash := sha256.Sum256([]byte(seed))
	submitHash := sha256.Sum256(txHash[:])
	return &Result{
		TxHash:     hex.EncodeToString(txHash[:]),
		SubmitHash: hex.EncodeToString(submitHash[:]),
		Status:     "submitted",
	}
}

func total(stock map[int64]int64) int64 {
	var sum int64
	for d, n := range stock {
		sum += d * n
	}
	return sum
}

// credit splits amount into denomination chunks, largest first.
func credit(stock map[int64]int64, amount int64) {
	for _, d := range denominations {
		for amount >= d {
			stock[d]++
			amount -= d
		}
	}
}

// consume removes amount from the stock. Greedy from the largest chunk;
// when exact change is impossible a large chunk is broken into ones.
func consume(stock map[int64]int64, amount int64) {
	for _, d := range denominations {
		for amount >= d && stock[d] > 0 {
			stock[d]--
			amount -= d
		}
	}
	for _, d := range denominations {
		for amount > 0 && stock[d] > 0 {
			stock[d]--
			if d > amount {
				credit(stock, d-amount)
				amount = 0
			} else {
				amount -= d
			}
		}
	}
}

func (e *LocalEngine) load() map[int64]int64 {
	stock := make(map[int64]int64)
	data, err := os.ReadFile(e.path)
	if err != nil {
		return stock
	}
	// JSON object keys are strings; denominations round-trip as text.
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		e.logger.Warn("Value stock corrupt, resetting", "path", e.path)
		return stock
	}
	for k, n := range raw {
		var d int64
		if _, err := fmt.Sscanf(k, "%d", &d); err == nil {
			stock[d] = n
		}
	}
	return stock
}

func (e *LocalEngine) persist(stock map[int64]int64) error {
	raw := make(map[string]int64, len(stock))
	for d, n := range stock {
		if n > 0 {
			raw[fmt.Sprintf("%d", d)] = n
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(e.path), "value_stock.tmp-*")
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
	return os.Rename(name, e.path)
}
