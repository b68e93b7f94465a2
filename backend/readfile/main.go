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

// Command readfile decrypts stored export history and prints it as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend"
)

var (
	dataDir = flag.String("data-dir", "data", "Directory holding the export history")
)

func main() {
	flag.Parse()

	store, err := backend.OpenStorage(*dataDir, os.Getenv(backend.MasterKeyEnv), false, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	files := flag.Args()
	if len(files) == 0 {
		files = []string{backend.HistoryFile}
	}
	for _, arg := range files {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, *dataDir), "/")
		var h backend.ExportHistory
		if err := store.ReadDataFile(arg, &h); err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		fmt.Printf("=========== %s (%d records) ===========\n", arg, len(h.Records))
		if err := enc.Encode(h); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
}
