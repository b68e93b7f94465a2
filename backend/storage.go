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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"go.uber.org/zap"
)

// ErrUnencryptedWithKey is returned when a master key file exists but no
// passphrase was given.
var ErrUnencryptedWithKey = errors.New("master key exists but no passphrase was provided")

// OpenStorage opens dataDir. With a passphrase, the master key in
// dataDir/master.key is loaded, or created on first use, and every file is
// encrypted. Without one, data is stored in the clear, unless a key file
// already exists.
func OpenStorage(dataDir, passphrase string, compression bool, logger *zap.Logger) (*storage.Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keyFile := filepath.Join(dataDir, "master.key")

	var masterKey crypto.MasterKey
	if passphrase != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		switch {
		case os.IsNotExist(err):
			logger.Info("Initializing new master encryption key", zap.String("file", keyFile))
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("creating master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("saving master key: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("reading master key: %w", err)
		default:
			logger.Info("Loaded master encryption key")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, fmt.Errorf("%s: %w", keyFile, ErrUnencryptedWithKey)
		}
		logger.Warn("No " + MasterKeyEnv + " provided, export history is stored unencrypted")
	}

	s := storage.New(dataDir, masterKey)
	s.EnableCompression(compression)
	return s, nil
}
