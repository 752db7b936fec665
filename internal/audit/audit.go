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

// Package audit writes the submission service's append-only JSON-per-line
// event log. Sensitive fields are redacted before serialization, so
// secrets never reach the writer.
package audit

import (
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// RedactionToken replaces every redacted value verbatim.
const RedactionToken = "[REDACTED]"

// redactedKeys is the closed set of field names whose values never reach
// the log, matched at any nesting depth.
var redactedKeys = map[string]struct{}{
	"password":              {},
	"mnemonic":              {},
	"encrypted_private_key": {},
	"X-EZ-Password":         {},
	"X-EZ-Token":            {},
}

// Logger appends one JSON line per event to the audit file, rotating it
// when it grows too large.
type Logger struct {
	mu     sync.Mutex
	out    *lumberjack.Logger
	logger log.Logger
}

// New creates an audit logger writing to path.
func New(path string) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    32, // MiB
			MaxBackups: 4,
		},
		logger: log.New("pkg", "audit"),
	}
}

// Log redacts event and appends it as one JSON line. The write completes
// before the lock is released; failures are logged and swallowed, the
// request that produced the event is not aborted.
func (l *Logger) Log(event map[string]interface{}) {
	line, err := json.Marshal(Redact(event))
	if err != nil {
		l.logger.Warn("Audit marshal failed", "err", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		l.logger.Warn("Audit write failed", "err", err)
	}
}

// Close releases the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// Redact walks v recursively and replaces the value of every key in the
// redaction set with RedactionToken. Input maps and slices are not
// mutated; redacted copies are returned.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if _, sensitive := redactedKeys[k]; sensitive {
				out[k] = RedactionToken
			} else {
				out[k] = Redact(inner)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = Redact(inner)
		}
		return out
	default:
		return v
	}
}
