// Copyright 2025 The go-ezchain Authors
// This file is part of go-ezchain.
//
// go-ezchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ezchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ezchain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ezchain/go-ezchain/config"
)

// apiClient is the thin HTTP client the CLI uses against a running
// submission service.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(cfg *config.Config) (*apiClient, error) {
	token, err := config.LoadAPIToken(cfg)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base:  fmt.Sprintf("http://%s:%d", cfg.App.APIHost, cfg.App.APIPort),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// apiResponse is the common response envelope.
type apiResponse struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// post sends an authenticated JSON request. withNonce attaches a fresh
// X-EZ-Nonce for the guarded submission route.
func (c *apiClient) post(path string, body interface{}, withNonce bool) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EZ-Token", c.token)
	req.ContentLength = int64(len(payload))
	if withNonce {
		req.Header.Set("X-EZ-Nonce", uuid.NewString())
	}
	return c.do(req)
}

func (c *apiClient) get(path string, headers map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-EZ-Token", c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission service unreachable (is `ezchain serve` running?): %w", err)
	}
	defer resp.Body.Close()
	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if !envelope.OK {
		if envelope.Error != nil {
			return nil, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return envelope.Data, nil
}
