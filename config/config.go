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

// Package config loads the application configuration. A config file may
// be strict JSON, YAML, or the restricted two-level "section / key:
// value" grammar the first releases shipped with; all three parse into
// the same structure, merged over built-in defaults.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	yaml "gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = "ezchain.yaml"

// Meta carries config file versioning.
type Meta struct {
	ConfigVersion int `yaml:"config_version" json:"config_version"`
}

// Network describes the network profile the node participates in.
type Network struct {
	Name           string   `yaml:"name" json:"name"`
	BootstrapNodes []string `yaml:"bootstrap_nodes" json:"bootstrap_nodes"`
	ConsensusNodes int      `yaml:"consensus_nodes" json:"consensus_nodes"`
	AccountNodes   int      `yaml:"account_nodes" json:"account_nodes"`
	StartPort      int      `yaml:"start_port" json:"start_port"`
}

// App holds filesystem layout and API bind settings.
type App struct {
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	LogDir       string `yaml:"log_dir" json:"log_dir"`
	APIHost      string `yaml:"api_host" json:"api_host"`
	APIPort      int    `yaml:"api_port" json:"api_port"`
	APITokenFile string `yaml:"api_token_file" json:"api_token_file"`
}

// Security holds the submission hardening limits.
type Security struct {
	MaxPayloadBytes int   `yaml:"max_payload_bytes" json:"max_payload_bytes"`
	MaxTxAmount     int64 `yaml:"max_tx_amount" json:"max_tx_amount"`
	NonceTTLSeconds int   `yaml:"nonce_ttl_seconds" json:"nonce_ttl_seconds"`
}

// Config is the full application configuration.
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Network  Network  `yaml:"network" json:"network"`
	App      App      `yaml:"app" json:"app"`
	Security Security `yaml:"security" json:"security"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Meta: Meta{ConfigVersion: 1},
		Network: Network{
			Name:           "testnet",
			BootstrapNodes: []string{"127.0.0.1:19500"},
			ConsensusNodes: 1,
			AccountNodes:   1,
			StartPort:      19500,
		},
		App: App{
			DataDir:      ".ezchain",
			LogDir:       ".ezchain/logs",
			APIHost:      "127.0.0.1",
			APIPort:      8787,
			APITokenFile: ".ezchain/api.token",
		},
		Security: Security{
			MaxPayloadBytes: 65536,
			MaxTxAmount:     100000000,
			NonceTTLSeconds: 600,
		},
	}
}

// Load reads path and merges it over Defaults. A missing file yields pure
// defaults; a present but unparseable file is an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	expanded, err := homedir.Expand(path)
	if err == nil {
		path = expanded
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	// JSON first: a JSON document is also valid YAML but the strict
	// decoder gives better errors.
	if json.Valid(data) {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Fall back to the restricted grammar of early releases.
		sections, merr := parseMinimal(string(data))
		if merr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		applySections(cfg, sections)
	}
	return cfg, nil
}

// parseMinimal understands unindented "section:" headers followed by
// two-space-indented "key: value" pairs. Values are JSON-parsed when
// possible, booleans matched case-insensitively, and unquoted strings
// stripped of surrounding quotes.
func parseMinimal(text string) (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{})
	var section string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if !strings.HasPrefix(line, " ") && strings.HasSuffix(line, ":") {
			section = strings.TrimSpace(strings.TrimSuffix(line, ":"))
			out[section] = make(map[string]interface{})
			continue
		}
		if section == "" || !strings.HasPrefix(line, "  ") || !strings.Contains(line, ":") {
			continue
		}
		key, val, _ := strings.Cut(strings.TrimSpace(line), ":")
		out[section][strings.TrimSpace(key)] = parseScalar(strings.TrimSpace(val))
	}
	if len(out) == 0 {
		return nil, errors.New("no sections found")
	}
	return out, nil
}

func parseScalar(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(value), &parsed); err == nil {
		return parsed
	}
	return strings.Trim(value, `"`)
}

func applySections(cfg *Config, sections map[string]map[string]interface{}) {
	if meta, ok := sections["meta"]; ok {
		if v, ok := asInt(meta["config_version"]); ok {
			cfg.Meta.ConfigVersion = v
		}
	}
	if network, ok := sections["network"]; ok {
		if v, ok := network["name"].(string); ok {
			cfg.Network.Name = v
		}
		if v, ok := network["bootstrap_nodes"].([]interface{}); ok {
			nodes := make([]string, 0, len(v))
			for _, n := range v {
				if s, ok := n.(string); ok {
					nodes = append(nodes, s)
				}
			}
			cfg.Network.BootstrapNodes = nodes
		}
		if v, ok := asInt(network["consensus_nodes"]); ok {
			cfg.Network.ConsensusNodes = v
		}
		if v, ok := asInt(network["account_nodes"]); ok {
			cfg.Network.AccountNodes = v
		}
		if v, ok := asInt(network["start_port"]); ok {
			cfg.Network.StartPort = v
		}
	}
	if app, ok := sections["app"]; ok {
		if v, ok := app["data_dir"].(string); ok {
			cfg.App.DataDir = v
		}
		if v, ok := app["log_dir"].(string); ok {
			cfg.App.LogDir = v
		}
		if v, ok := app["api_host"].(string); ok {
			cfg.App.APIHost = v
		}
		if v, ok := asInt(app["api_port"]); ok {
			cfg.App.APIPort = v
		}
		if v, ok := app["api_token_file"].(string); ok {
			cfg.App.APITokenFile = v
		}
	}
	if sec, ok := sections["security"]; ok {
		if v, ok := asInt(sec["max_payload_bytes"]); ok {
			cfg.Security.MaxPayloadBytes = v
		}
		if v, ok := asInt(sec["max_tx_amount"]); ok {
			cfg.Security.MaxTxAmount = int64(v)
		}
		if v, ok := asInt(sec["nonce_ttl_seconds"]); ok {
			cfg.Security.NonceTTLSeconds = v
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// EnsureDirectories creates the data, log and token directories.
func EnsureDirectories(cfg *Config) error {
	for _, dir := range []string{cfg.App.DataDir, cfg.App.LogDir, filepath.Dir(cfg.App.APITokenFile)} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// LoadAPIToken reads the process token, generating a fresh one on first
// run. Tokens are a single line of at least 16 printable ASCII
// characters.
func LoadAPIToken(cfg *Config) (string, error) {
	path := cfg.App.APITokenFile
	data, err := os.ReadFile(path)
	if err == nil {
		token := strings.TrimSpace(string(data))
		if len(token) >= 16 {
			return token, nil
		}
		// Short or empty token files are regenerated.
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := EnsureDirectories(cfg); err != nil {
		return "", err
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", err
	}
	return token, nil
}
