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

// Package api serves the local HTTP submission surface. Every response
// body is either {ok:true, data:...} or {ok:false, error:{code,message}},
// with the code drawn from a closed set; every outcome is counted in the
// metrics collector and written to the audit log after redaction.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/ezchain/go-ezchain/config"
	"github.com/ezchain/go-ezchain/engine"
	"github.com/ezchain/go-ezchain/internal/audit"
	"github.com/ezchain/go-ezchain/internal/guard"
	"github.com/ezchain/go-ezchain/metrics"
	"github.com/ezchain/go-ezchain/node"
	"github.com/ezchain/go-ezchain/p2p"
	"github.com/ezchain/go-ezchain/params"
	"github.com/ezchain/go-ezchain/wallet"
)

// Server is the submission service. All fields are set at construction;
// per-request state lives in the request context.
type Server struct {
	cfg     *config.Config
	token   string
	engine  engine.Engine
	wallets *wallet.Store
	nodes   *node.Manager
	nonces  *guard.NonceGuard
	idem    *guard.IdempotencyStore
	audit   *audit.Logger
	metrics *metrics.Collector
	router  *p2p.Router // optional, enriches /network/info
	logger  log.Logger

	srv *http.Server
	ln  net.Listener
}

// Deps bundles the collaborators a Server needs.
type Deps struct {
	Config  *config.Config
	Token   string
	Engine  engine.Engine
	Wallets *wallet.Store
	Nodes   *node.Manager
	Nonces  *guard.NonceGuard
	Idem    *guard.IdempotencyStore
	Audit   *audit.Logger
	Metrics *metrics.Collector
	Router  *p2p.Router
}

// NewServer wires the submission service. It does not start listening.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:     d.Config,
		token:   d.Token,
		engine:  d.Engine,
		wallets: d.Wallets,
		nodes:   d.Nodes,
		nonces:  d.Nonces,
		idem:    d.Idem,
		audit:   d.Audit,
		metrics: d.Metrics,
		router:  d.Router,
		logger:  log.New("pkg", "api"),
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can mount
// it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleUI)
	r.Get("/ui", s.handleUI)
	r.Get("/wallet/show", s.handleWalletShow)
	r.Get("/wallet/balance", s.requireToken(s.handleWalletBalance))
	r.Get("/tx/history", s.handleTxHistory)
	r.Get("/node/status", s.handleNodeStatus)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/network/info", s.handleNetworkInfo)

	post := func(pattern string, h http.HandlerFunc) {
		r.Post(pattern, s.requireToken(s.gateBody(h)))
	}
	post("/wallet/create", s.handleWalletCreate)
	post("/wallet/import", s.handleWalletImport)
	post("/tx/faucet", s.handleTxFaucet)
	post("/tx/send", s.handleTxSend)
	post("/node/start", s.handleNodeStart)
	post("/node/stop", s.handleNodeStop)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, CodeNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, CodeHTTPError, "method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-EZ-Token", "X-EZ-Nonce", "X-EZ-Password"},
	})
	return c.Handler(r)
}

// Start binds the configured address and begins serving.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.App.APIHost, s.cfg.App.APIPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("Submission service listening", "addr", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Submission service failed", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests for a bounded interval, then closes.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), params.ShutdownDrainTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return s.srv.Close()
	}
	return nil
}

// ok writes a success envelope.
func (s *Server) ok(w http.ResponseWriter, r *http.Request, data interface{}) {
	st := stateFrom(r)
	if st != nil {
		st.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "data": data})
}

// fail writes an error envelope for code. message overrides the table
// default when non-empty.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, code, message string) {
	spec, known := errorTable[code]
	if !known {
		code, spec = CodeInternalError, errorTable[CodeInternalError]
	}
	if message == "" {
		message = spec.message
	}
	if st := stateFrom(r); st != nil {
		st.status = spec.status
		st.errorCode = code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(spec.status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
