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

// Environment
const (
	// ServerlessEnv selects the downloaded minimal Chromium when set.
	ServerlessEnv = "DECK_SERVERLESS"
	// MasterKeyEnv is the passphrase protecting the storage master key.
	MasterKeyEnv = "DECK_MASTER_KEY"
)

// Export responses
const (
	exportErrorMessage = "PDF export failed"
	exportErrorHint    = "Ensure Chromium is installed and reachable."
	retryAfterExport   = "10"
)

// Export history
const (
	DefaultHistoryLimit = 50
	HistoryFile         = "exports/history.json"
)

// Cache-Control values
const (
	cacheAPI     = "private, no-cache, no-transform"
	cacheFonts   = "public, max-age=31536000, immutable"
	cacheImages  = "public, max-age=2592000, stale-while-revalidate=86400"
	cacheDefault = "public, max-age=300, proxy-revalidate, no-transform"
)

// WebSocket message types
const (
	MsgTypeExport = "export"
	MsgTypeDeck   = "deck"
	MsgTypePing   = "PING"
	MsgTypePong   = "PONG"
	MsgTypeError  = "ERROR"
)
