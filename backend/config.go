// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ttbt-io/pitchdeck/backend/browser"
	"github.com/ttbt-io/pitchdeck/backend/deck"
)

// Config is the service configuration. It is read from TOML and then
// overridden by DECK_* environment variables.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Export  ExportConfig  `toml:"export"`
	Browser BrowserConfig `toml:"browser"`
	Deck    DeckConfig    `toml:"deck"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// BaseURL is the origin the export browser loads the print view from.
	BaseURL string `toml:"base_url"`
	// PublicHost is used as https://<host> when BaseURL is empty.
	PublicHost string `toml:"public_host"`
	TLSCert    string `toml:"tls_cert"`
	TLSKey     string `toml:"tls_key"`
}

type ExportConfig struct {
	// RatePerMinute is the sustained export rate. Zero disables limiting.
	RatePerMinute float64 `toml:"rate_per_minute"`
	Burst         int     `toml:"burst"`
	// Timeout bounds one export end to end.
	Timeout      string `toml:"timeout"`
	HistoryLimit int    `toml:"history_limit"`
}

// GetTimeout parses the export timeout, falling back to 90s.
func (c *ExportConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}

type BrowserConfig struct {
	ChromePath string `toml:"chrome_path"`
	ChromeURL  string `toml:"chrome_url"`
	Serverless bool   `toml:"serverless"`
	CacheDir   string `toml:"cache_dir"`
}

// LaunchConfig converts the section to what browser.SelectLauncher takes.
func (c BrowserConfig) LaunchConfig() browser.LaunchConfig {
	return browser.LaunchConfig{
		RemoteURL:  c.ChromeURL,
		Serverless: c.Serverless,
		ExecPath:   c.ChromePath,
		CacheDir:   c.CacheDir,
	}
}

type DeckConfig struct {
	Variant string `toml:"variant"`
	// File, when set, replaces the embedded variant with a YAML file on disk.
	File  string `toml:"file"`
	Watch bool   `toml:"watch"`
}

type StorageConfig struct {
	DataDir     string `toml:"data_dir"`
	Compression bool   `toml:"compression"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Export: ExportConfig{
			RatePerMinute: 6,
			Burst:         2,
			Timeout:       "90s",
			HistoryLimit:  DefaultHistoryLimit,
		},
		Deck: DeckConfig{
			Variant: deck.DefaultVariant,
		},
		Storage: StorageConfig{
			DataDir:     "data",
			Compression: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads the defaults, merges each existing file in order and
// applies environment overrides. Missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DECK_ADDR"); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv("DECK_BASE_URL"); v != "" {
		config.Server.BaseURL = v
	}
	if v := os.Getenv("DECK_PUBLIC_HOST"); v != "" {
		config.Server.PublicHost = v
	}
	if v := os.Getenv(ServerlessEnv); v != "" && v != "0" && !strings.EqualFold(v, "false") {
		config.Browser.Serverless = true
	}
	if v := os.Getenv("DECK_CHROME_PATH"); v != "" {
		config.Browser.ChromePath = v
	}
	if v := os.Getenv("DECK_CHROME_URL"); v != "" {
		config.Browser.ChromeURL = v
	}
	if v := os.Getenv("DECK_VARIANT"); v != "" {
		config.Deck.Variant = v
	}
	if v := os.Getenv("DECK_DATA_DIR"); v != "" {
		config.Storage.DataDir = v
	}
}

// TLS reports whether the server is configured to serve HTTPS only.
func (c ServerConfig) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// ResolveBaseURL picks the origin of the print view: the explicit base URL,
// then https://<public host>, then localhost with the listen port.
func (c *Config) ResolveBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	if c.Server.PublicHost != "" {
		return "https://" + strings.TrimRight(c.Server.PublicHost, "/")
	}
	return LocalBaseURL(c.Server.Addr, c.Server.TLS())
}

// usesLocalTLS reports whether the print view is loaded from the local
// HTTPS listener, whose certificate will not name localhost.
func (c *Config) usesLocalTLS() bool {
	return c.Server.BaseURL == "" && c.Server.PublicHost == "" && c.Server.TLS()
}

// LocalBaseURL derives http(s)://localhost:<port> from a listen address.
func LocalBaseURL(addr string, tls bool) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		port = "8080"
	}
	if tls {
		return "https://localhost:" + port
	}
	return "http://localhost:" + port
}
