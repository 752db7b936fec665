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

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ezchain/go-ezchain/config"
	"github.com/ezchain/go-ezchain/engine"
	"github.com/ezchain/go-ezchain/internal/guard"
	"github.com/ezchain/go-ezchain/wallet"
)

const (
	maxNonceLen      = 128
	maxClientTxIDLen = 64
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, r, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if st := stateFrom(r); st != nil {
		st.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(uiPanel))
}

func (s *Server) handleWalletShow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.wallets.Summary()
	if errors.Is(err, wallet.ErrNotFound) {
		s.fail(w, r, CodeWalletNotFound, "")
		return
	}
	if err != nil {
		s.fail(w, r, CodeInternalError, "")
		return
	}
	s.ok(w, r, summary)
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	password := r.Header.Get("X-EZ-Password")
	if password == "" {
		s.fail(w, r, CodePasswordRequired, "")
		return
	}
	_, _, err := s.wallets.Load(password)
	if errors.Is(err, wallet.ErrNotFound) {
		s.fail(w, r, CodeWalletNotFound, "")
		return
	}
	if err != nil {
		s.fail(w, r, CodeBalanceFailed, "wallet could not be unlocked")
		return
	}
	address, err := s.wallets.Address()
	if err != nil {
		s.fail(w, r, CodeBalanceFailed, "")
		return
	}
	bal, err := s.engine.Balance(address)
	if err != nil {
		s.fail(w, r, CodeBalanceFailed, "")
		return
	}
	s.ok(w, r, map[string]interface{}{
		"address": address,
		"total":   bal.Total,
		"chunks":  bal.Chunks,
	})
}

func (s *Server) handleTxHistory(w http.ResponseWriter, r *http.Request) {
	s.ok(w, r, map[string]interface{}{"items": s.wallets.History()})
}

func (s *Server) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	status := s.nodes.Status()
	s.metrics.NodeStatusCheck(status["status"] == "running")
	s.ok(w, r, status)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	current, _ := s.nodes.Status()["status"].(string)
	s.ok(w, r, s.metrics.Snapshot(current))
}

func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	mode := "local"
	if config.IsExternalNetwork(s.cfg) {
		mode = "external"
	}
	info := map[string]interface{}{
		"network":   s.cfg.Network.Name,
		"mode":      mode,
		"bootstrap": s.nodes.ProbeBootstrap(2 * time.Second),
	}
	if s.router != nil {
		h := s.router.Health()
		info["p2p"] = map[string]interface{}{
			"peer_count": h.PeerCount,
			"degraded":   h.Degraded,
		}
	}
	s.ok(w, r, info)
}

func (s *Server) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		s.fail(w, r, CodeInvalidRequest, "password is required")
		return
	}
	if req.Name == "" {
		req.Name = "default"
	}
	wlt, err := s.wallets.Create(req.Name, req.Password)
	if errors.Is(err, wallet.ErrExists) {
		s.fail(w, r, CodeInvalidRequest, "wallet already exists")
		return
	}
	if err != nil {
		s.fail(w, r, CodeInternalError, "")
		return
	}
	s.ok(w, r, map[string]interface{}{
		"address":  wlt.Address,
		"mnemonic": wlt.Mnemonic,
	})
}

func (s *Server) handleWalletImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Mnemonic == "" || req.Password == "" {
		s.fail(w, r, CodeInvalidRequest, "mnemonic and password are required")
		return
	}
	if req.Name == "" {
		req.Name = "default"
	}
	wlt, err := s.wallets.Import(req.Name, req.Mnemonic, req.Password)
	if errors.Is(err, wallet.ErrExists) {
		s.fail(w, r, CodeInvalidRequest, "wallet already exists")
		return
	}
	if err != nil {
		s.fail(w, r, CodeInvalidRequest, "mnemonic could not be imported")
		return
	}
	s.ok(w, r, map[string]interface{}{"address": wlt.Address})
}

func (s *Server) handleTxFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   int64  `json:"amount"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	address, err := s.wallets.Address()
	if errors.Is(err, wallet.ErrNotFound) {
		s.fail(w, r, CodeWalletNotFound, "")
		return
	}
	if err != nil {
		s.fail(w, r, CodeInternalError, "")
		return
	}
	res, err := s.engine.Faucet(address, req.Amount)
	if err != nil {
		s.failEngine(w, r, err)
		return
	}
	s.wallets.AppendHistory(wallet.HistoryEntry{
		TxHash:    res.TxHash,
		Direction: "faucet",
		Amount:    req.Amount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	s.ok(w, r, map[string]interface{}{
		"tx_hash": res.TxHash,
		"amount":  req.Amount,
		"status":  res.Status,
	})
}

// handleTxSend is the guarded submission pipeline: nonce claim first,
// then client_tx_id idempotency, then the engine. A duplicate
// client_tx_id is rejected even with a fresh nonce, and a reused nonce
// even with a fresh client_tx_id.
func (s *Server) handleTxSend(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	nonce := r.Header.Get("X-EZ-Nonce")
	if nonce == "" {
		s.fail(w, r, CodeNonceRequired, "")
		return
	}
	if !validNonce(nonce) {
		s.fail(w, r, CodeInvalidNonceFormat, "")
		return
	}
	if !s.nonces.Claim(nonce) {
		s.fail(w, r, CodeReplayDetected, "")
		return
	}

	var req struct {
		Recipient  string `json:"recipient"`
		Amount     int64  `json:"amount"`
		Password   string `json:"password"`
		ClientTxID string `json:"client_tx_id"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ClientTxID == "" {
		req.ClientTxID = uuid.NewString()
	} else if !validClientTxID(req.ClientTxID) {
		s.fail(w, r, CodeInvalidClientTxID, "")
		return
	}

	sender, err := s.wallets.Address()
	if errors.Is(err, wallet.ErrNotFound) {
		s.fail(w, r, CodeWalletNotFound, "")
		return
	}
	if err != nil {
		s.fail(w, r, CodeInternalError, "")
		return
	}

	// Claiming reserves the key before the engine runs, so two racing
	// submissions with the same client_tx_id cannot both delegate.
	key := guard.Key(sender, req.ClientTxID)
	prior, claimed := s.idem.Claim(key)
	if !claimed {
		msg := ""
		if prior != nil {
			msg = "already submitted as " + prior.TxHash
		}
		s.fail(w, r, CodeDuplicateTransaction, msg)
		return
	}

	if _, _, err := s.wallets.Load(req.Password); err != nil {
		s.idem.Release(key)
		s.fail(w, r, CodeInvalidRequest, "wallet could not be unlocked")
		return
	}

	// The engine runs without any service-level lock held; only the
	// reservation on key is outstanding.
	res, err := s.engine.Send(sender, req.Recipient, req.Amount)
	if err != nil {
		s.idem.Release(key)
		s.metrics.TxSendFailed()
		s.failEngine(w, r, err)
		return
	}

	s.idem.Record(key, guard.TxRecord{
		TxHash:     res.TxHash,
		SubmitHash: res.SubmitHash,
		Amount:     req.Amount,
		Recipient:  req.Recipient,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	})
	s.wallets.AppendHistory(wallet.HistoryEntry{
		TxHash:    res.TxHash,
		Direction: "sent",
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	s.metrics.TxSendSuccess(time.Since(started))

	s.ok(w, r, map[string]interface{}{
		"tx_hash":      res.TxHash,
		"submit_hash":  res.SubmitHash,
		"amount":       req.Amount,
		"recipient":    req.Recipient,
		"status":       res.Status,
		"client_tx_id": req.ClientTxID,
	})
}

func (s *Server) handleNodeStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Consensus int `json:"consensus"`
		Accounts  int `json:"accounts"`
		StartPort int `json:"start_port"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Consensus > 0 {
		s.cfg.Network.ConsensusNodes = req.Consensus
	}
	if req.Accounts > 0 {
		s.cfg.Network.AccountNodes = req.Accounts
	}
	if req.StartPort > 0 {
		s.cfg.Network.StartPort = req.StartPort
	}
	if err := s.nodes.Start(); err != nil {
		s.fail(w, r, CodeInvalidRequest, err.Error())
		return
	}
	s.ok(w, r, s.nodes.Status())
}

func (s *Server) handleNodeStop(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.nodes.Stop(); err != nil {
		s.fail(w, r, CodeInternalError, err.Error())
		return
	}
	s.ok(w, r, s.nodes.Status())
}

// failEngine maps engine validation errors onto the closed code set;
// anything unclassified is a 500 send_failed.
func (s *Server) failEngine(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrAmountMustBePositive):
		s.fail(w, r, CodeAmountMustBePositive, "")
	case errors.Is(err, engine.ErrRecipientRequired):
		s.fail(w, r, CodeRecipientRequired, "")
	case errors.Is(err, engine.ErrAmountExceedsLimit):
		s.fail(w, r, CodeAmountExceedsLimit, "")
	case errors.Is(err, engine.ErrInsufficientBalance):
		s.fail(w, r, CodeInsufficientBalance, "")
	default:
		s.fail(w, r, CodeSendFailed, "")
	}
}

// validNonce accepts non-empty printable ASCII without spaces, bounded.
func validNonce(nonce string) bool {
	if len(nonce) == 0 || len(nonce) > maxNonceLen {
		return false
	}
	for i := 0; i < len(nonce); i++ {
		if nonce[i] <= 0x20 || nonce[i] > 0x7e {
			return false
		}
	}
	return true
}

// validClientTxID accepts bounded printable ASCII without spaces.
func validClientTxID(id string) bool {
	if len(id) == 0 || len(id) > maxClientTxIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= 0x20 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
