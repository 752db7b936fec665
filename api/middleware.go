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
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"
)

type ctxKey struct{}

// requestState accumulates the outcome of one request for the audit line
// and the metrics counters.
type requestState struct {
	status    int
	errorCode string
}

func stateFrom(r *http.Request) *requestState {
	st, _ := r.Context().Value(ctxKey{}).(*requestState)
	return st
}

// instrument counts the request, runs the handler, then emits exactly one
// audit line describing the outcome.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.IncRequest()
		st := &requestState{status: http.StatusOK}
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, st))

		next.ServeHTTP(w, r)

		if st.errorCode != "" {
			s.metrics.IncError(st.errorCode)
		}
		s.audit.Log(map[string]interface{}{
			"time":       time.Now().UTC().Format(time.RFC3339Nano),
			"remote":     r.RemoteAddr,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     st.status,
			"ok":         st.errorCode == "",
			"error_code": st.errorCode,
		})
	})
}

// requireToken enforces the X-EZ-Token header against the process token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-EZ-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			s.fail(w, r, CodeUnauthorized, "")
			return
		}
		next(w, r)
	}
}

// gateBody enforces the POST body rules: Content-Length must be present,
// an oversize declaration is rejected before any read, and a non-empty
// body must declare itself as JSON.
func (s *Server) gateBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength < 0 || r.Header.Get("Content-Length") == "" {
			s.fail(w, r, CodeInvalidContentLength, "")
			return
		}
		max := int64(s.cfg.Security.MaxPayloadBytes)
		if r.ContentLength > max {
			s.fail(w, r, CodePayloadTooLarge, "")
			return
		}
		if r.ContentLength > 0 {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				s.fail(w, r, CodeInvalidRequest, "Content-Type must be application/json")
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next(w, r)
	}
}

// decodeJSON reads the body into v. Returns false after writing the
// error response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, CodePayloadTooLarge, "")
		return false
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.fail(w, r, CodeInvalidRequest, "")
		return false
	}
	return true
}
