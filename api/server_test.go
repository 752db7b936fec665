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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezchain/go-ezchain/config"
	"github.com/ezchain/go-ezchain/engine"
	"github.com/ezchain/go-ezchain/internal/audit"
	"github.com/ezchain/go-ezchain/internal/guard"
	"github.com/ezchain/go-ezchain/metrics"
	"github.com/ezchain/go-ezchain/node"
	"github.com/ezchain/go-ezchain/wallet"
)

const testToken = "test-token-0123456789abcdef"

// stubEngine counts delegations so tests can assert the engine was (not)
// reached.
type stubEngine struct {
	sends   atomic.Int64
	faucets atomic.Int64
	fail    error
	total   int64
}

func (e *stubEngine) Send(sender, recipient string, amount int64) (*engine.Result, error) {
	n := e.sends.Add(1)
	if e.fail != nil {
		return nil, e.fail
	}
	return &engine.Result{
		TxHash:     fmt.Sprintf("hash-%d", n),
		SubmitHash: fmt.Sprintf("sub-%d", n),
		Status:     "submitted",
	}, nil
}

func (e *stubEngine) Faucet(address string, amount int64) (*engine.Result, error) {
	n := e.faucets.Add(1)
	if e.fail != nil {
		return nil, e.fail
	}
	return &engine.Result{TxHash: fmt.Sprintf("faucet-%d", n), SubmitHash: "s", Status: "submitted"}, nil
}

func (e *stubEngine) Balance(address string) (*engine.Balance, error) {
	return &engine.Balance{Total: e.total, Chunks: map[int64]int64{}}, nil
}

type testEnv struct {
	srv     *httptest.Server
	eng     *stubEngine
	wallets *wallet.Store
	dataDir string
	logDir  string
}

func newTestEnv(t *testing.T, withWallet bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.App.DataDir = dir
	cfg.App.LogDir = filepath.Join(dir, "logs")
	cfg.App.APITokenFile = filepath.Join(dir, "api.token")
	require.NoError(t, config.EnsureDirectories(cfg))

	eng := &stubEngine{total: 300}
	wallets := wallet.NewStore(dir)
	if withWallet {
		_, err := wallets.Create("demo", "pw123")
		require.NoError(t, err)
	}
	auditLog := audit.New(filepath.Join(cfg.App.LogDir, "service_audit.log"))
	t.Cleanup(func() { auditLog.Close() })

	s := NewServer(Deps{
		Config:  cfg,
		Token:   testToken,
		Engine:  eng,
		Wallets: wallets,
		Nodes:   node.NewManager(cfg),
		Nonces:  guard.NewNonceGuard(filepath.Join(dir, "used_nonces.json"), time.Minute),
		Idem:    guard.NewIdempotencyStore(filepath.Join(dir, "tx_idempotency.json")),
		Audit:   auditLog,
		Metrics: metrics.New(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, eng: eng, wallets: wallets, dataDir: dir, logDir: cfg.App.LogDir}
}

type envelope struct {
	OK    bool                   `json:"ok"`
	Data  map[string]interface{} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, *envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, &env
}

func authed(extra ...string) map[string]string {
	h := map[string]string{"X-EZ-Token": testToken}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func sendBody(clientTxID string) map[string]interface{} {
	body := map[string]interface{}{
		"recipient": "0xabc123",
		"amount":    50,
		"password":  "pw123",
	}
	if clientTxID != "" {
		body["client_tx_id"] = clientTxID
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.OK)
	assert.Equal(t, "ok", out.Data["status"])
	assert.NotEmpty(t, out.Data["time"])
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, false)
	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/definitely/not/a/route", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, out.Error)
	assert.Equal(t, CodeNotFound, out.Error.Code)
}

func TestPostRequiresToken(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/faucet", map[string]interface{}{"amount": 10}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthorized, out.Error.Code)

	resp, out = doJSON(t, http.MethodPost, env.srv.URL+"/tx/faucet", map[string]interface{}{"amount": 10},
		map[string]string{"X-EZ-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthorized, out.Error.Code)

	assert.Zero(t, env.eng.faucets.Load(), "unauthorized requests never reach the engine")
}

func TestBalanceRequiresTokenAndPassword(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/wallet/balance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthorized, out.Error.Code)

	resp, out = doJSON(t, http.MethodGet, env.srv.URL+"/wallet/balance", nil, authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodePasswordRequired, out.Error.Code)

	resp, out = doJSON(t, http.MethodGet, env.srv.URL+"/wallet/balance", nil, authed("X-EZ-Password", "pw123"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(300), out.Data["total"])
}

func TestContentLengthRequired(t *testing.T) {
	env := newTestEnv(t, true)

	// A bare io.Reader forces chunked encoding, so the server sees no
	// Content-Length header.
	body := struct{ io.Reader }{strings.NewReader(`{"amount":10}`)}
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/tx/faucet", body)
	require.NoError(t, err)
	req.Header.Set("X-EZ-Token", testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidContentLength, out.Error.Code)
}

func TestContentTypeMustBeJSON(t *testing.T) {
	env := newTestEnv(t, true)

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/tx/faucet", strings.NewReader(`{"amount":10}`))
		require.NoError(t, err)
		req.Header.Set("X-EZ-Token", testToken)
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		var out envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidRequest, out.Error.Code)
	}
	assert.Zero(t, env.eng.faucets.Load(), "mismatched bodies never reach the engine")

	// A charset parameter is fine.
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/tx/faucet", strings.NewReader(`{"amount":10}`))
	require.NoError(t, err)
	req.Header.Set("X-EZ-Token", testToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOversizeRejectedBeforeRead(t *testing.T) {
	env := newTestEnv(t, false)

	big := bytes.Repeat([]byte("a"), 70000)
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/wallet/create", bytes.NewReader(big))
	require.NoError(t, err)
	req.Header.Set("X-EZ-Token", testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, CodePayloadTooLarge, out.Error.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t, false)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/wallet/create", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("X-EZ-Token", testToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, out.Error.Code)
}

func TestWalletShow(t *testing.T) {
	env := newTestEnv(t, false)

	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/wallet/show", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeWalletNotFound, out.Error.Code)

	_, err := env.wallets.Create("demo", "pw123")
	require.NoError(t, err)

	resp, out = doJSON(t, http.MethodGet, env.srv.URL+"/wallet/show", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "demo", out.Data["name"])
	assert.NotEmpty(t, out.Data["address"])
	_, leaked := out.Data["mnemonic"]
	assert.False(t, leaked)
}

func TestWalletCreateAndAuditRedaction(t *testing.T) {
	env := newTestEnv(t, false)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/wallet/create",
		map[string]interface{}{"name": "demo", "password": "pw123"}, authed())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out.Data["address"])
	assert.NotEmpty(t, out.Data["mnemonic"])

	// The audit line for the request is standalone JSON and carries no
	// trace of the password.
	data, err := os.ReadFile(filepath.Join(env.logDir, "service_audit.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)))
		assert.NotContains(t, line, "pw123")
	}

	// A second create is refused.
	resp, out = doJSON(t, http.MethodPost, env.srv.URL+"/wallet/create",
		map[string]interface{}{"name": "again", "password": "pw456"}, authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, out.Error.Code)
}

func TestTxSendHappyPath(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-1"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.OK)
	assert.Equal(t, "submitted", out.Data["status"])
	assert.Equal(t, "cid-1", out.Data["client_tx_id"])
	assert.Equal(t, int64(1), env.eng.sends.Load())

	// History grew by one.
	_, hist := doJSON(t, http.MethodGet, env.srv.URL+"/tx/history", nil, nil)
	items := hist.Data["items"].([]interface{})
	assert.Len(t, items, 1)

	// Guard state lands under the documented file names.
	assert.FileExists(t, filepath.Join(env.dataDir, "used_nonces.json"))
	assert.FileExists(t, filepath.Join(env.dataDir, "tx_idempotency.json"))
}

func TestTxSendReplayNonce(t *testing.T) {
	env := newTestEnv(t, true)

	resp, _ := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Same nonce, fresh client tx id.
	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-2"),
		authed("X-EZ-Nonce", "nonce-1"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeReplayDetected, out.Error.Code)
	assert.Equal(t, int64(1), env.eng.sends.Load(), "the engine is not reached on replay")
}

func TestTxSendDuplicateClientTxID(t *testing.T) {
	env := newTestEnv(t, true)

	resp, _ := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Fresh nonce, same client tx id.
	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-2"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeDuplicateTransaction, out.Error.Code)
	assert.Equal(t, int64(1), env.eng.sends.Load(), "the engine is not reached on duplicates")
}

func TestTxSendNonceValidation(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody(""), authed())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeNonceRequired, out.Error.Code)

	resp, out = doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody(""),
		authed("X-EZ-Nonce", strings.Repeat("n", 200)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidNonceFormat, out.Error.Code)

	assert.Zero(t, env.eng.sends.Load())
}

func TestTxSendInvalidClientTxID(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("has space"),
		authed("X-EZ-Nonce", "nonce-1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidClientTxID, out.Error.Code)
	assert.Zero(t, env.eng.sends.Load())
}

func TestTxSendSynthesizesClientTxID(t *testing.T) {
	env := newTestEnv(t, true)

	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody(""),
		authed("X-EZ-Nonce", "nonce-1"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out.Data["client_tx_id"], "an id is synthesized when absent")
}

func TestTxSendEngineClassification(t *testing.T) {
	for _, tc := range []struct {
		fail       error
		wantStatus int
		wantCode   string
	}{
		{engine.ErrInsufficientBalance, http.StatusBadRequest, CodeInsufficientBalance},
		{engine.ErrAmountMustBePositive, http.StatusBadRequest, CodeAmountMustBePositive},
		{engine.ErrRecipientRequired, http.StatusBadRequest, CodeRecipientRequired},
		{engine.ErrAmountExceedsLimit, http.StatusBadRequest, CodeAmountExceedsLimit},
		{fmt.Errorf("engine exploded"), http.StatusInternalServerError, CodeSendFailed},
	} {
		env := newTestEnv(t, true)
		env.eng.fail = tc.fail

		resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
			authed("X-EZ-Nonce", "nonce-1"))
		assert.Equal(t, tc.wantStatus, resp.StatusCode)
		assert.Equal(t, tc.wantCode, out.Error.Code)
	}
}

func TestTxSendFailureFreesClientTxID(t *testing.T) {
	env := newTestEnv(t, true)

	env.eng.fail = engine.ErrInsufficientBalance
	resp, _ := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-1"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A failed delegation leaves no idempotency record or reservation, so
	// the same client_tx_id may be retried with a fresh nonce.
	env.eng.fail = nil
	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"),
		authed("X-EZ-Nonce", "nonce-2"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.OK)
}

func TestTxSendWrongPassword(t *testing.T) {
	env := newTestEnv(t, true)

	body := sendBody("cid-1")
	body["password"] = "wrong"
	resp, out := doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", body,
		authed("X-EZ-Nonce", "nonce-1"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, out.Error.Code)
	assert.Zero(t, env.eng.sends.Load())
}

func TestNodeStatus(t *testing.T) {
	env := newTestEnv(t, false)
	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/node/status", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stopped", out.Data["status"])
	assert.Equal(t, "local", out.Data["mode"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	// Produce one success and one auth failure.
	doJSON(t, http.MethodPost, env.srv.URL+"/tx/send", sendBody("cid-1"), authed("X-EZ-Nonce", "nonce-1"))
	doJSON(t, http.MethodPost, env.srv.URL+"/tx/faucet", map[string]interface{}{"amount": 1}, nil)

	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, out.Data["requests_total"].(float64), float64(2))

	txs := out.Data["transactions"].(map[string]interface{})
	assert.Equal(t, float64(1), txs["send_success"])
	dist := out.Data["error_code_distribution"].(map[string]interface{})
	assert.Equal(t, float64(1), dist[CodeUnauthorized])
}

func TestNetworkInfo(t *testing.T) {
	env := newTestEnv(t, false)
	resp, out := doJSON(t, http.MethodGet, env.srv.URL+"/network/info", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "testnet", out.Data["network"])
	assert.Equal(t, "local", out.Data["mode"])
	assert.Contains(t, out.Data, "bootstrap")
}
