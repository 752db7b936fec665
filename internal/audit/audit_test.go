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

package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactTopLevel(t *testing.T) {
	out := Redact(map[string]interface{}{
		"password": "pw123",
		"method":   "POST",
	}).(map[string]interface{})

	assert.Equal(t, RedactionToken, out["password"])
	assert.Equal(t, "POST", out["method"])
}

func TestRedactNested(t *testing.T) {
	event := map[string]interface{}{
		"body": map[string]interface{}{
			"name":     "demo",
			"password": "pw123",
			"keys": []interface{}{
				map[string]interface{}{"mnemonic": "apple banana cherry"},
			},
		},
		"headers": map[string]interface{}{
			"X-EZ-Token": "secret-token",
		},
	}
	out := Redact(event).(map[string]interface{})

	body := out["body"].(map[string]interface{})
	assert.Equal(t, RedactionToken, body["password"])
	assert.Equal(t, "demo", body["name"])
	inner := body["keys"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, RedactionToken, inner["mnemonic"])
	headers := out["headers"].(map[string]interface{})
	assert.Equal(t, RedactionToken, headers["X-EZ-Token"])

	// The input must not be mutated.
	assert.Equal(t, "pw123", event["body"].(map[string]interface{})["password"])
}

func TestLogLineRedacted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service_audit.log")
	l := New(path)
	defer l.Close()

	l.Log(map[string]interface{}{
		"method": "POST",
		"path":   "/wallet/create",
		"body": map[string]interface{}{
			"name":     "demo",
			"password": "pw123",
		},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &parsed), "each line is standalone JSON")
	assert.NotContains(t, line, "pw123", "the secret must not appear anywhere on the line")
	assert.Contains(t, line, RedactionToken)
}

func TestLogAppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service_audit.log")
	l := New(path)
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.Log(map[string]interface{}{"seq": i})
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)))
	}
}
