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
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// ExportRecord is one entry in the export history.
type ExportRecord struct {
	ID        string    `json:"id"`
	Variant   string    `json:"variant"`
	Started   time.Time `json:"started"`
	ElapsedMS int64     `json:"elapsedMs"`
	Bytes     int       `json:"bytes"`
	Slides    int       `json:"slides"`
	Pages     int       `json:"pages"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

// ExportHistory is the persisted form of the history.
type ExportHistory struct {
	Records []ExportRecord `json:"records"`
}

// ExportStore keeps the most recent export records, newest first.
type ExportStore struct {
	mu      sync.Mutex
	storage *storage.Storage
	limit   int
	records []ExportRecord
}

// NewExportStore loads the saved history, if any. A nil storage keeps the
// history in memory only.
func NewExportStore(s *storage.Storage, limit int) (*ExportStore, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	es := &ExportStore{storage: s, limit: limit}
	if s == nil {
		return es, nil
	}
	var h ExportHistory
	if err := s.ReadDataFile(HistoryFile, &h); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return es, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	es.records = h.Records
	if len(es.records) > limit {
		es.records = es.records[:limit]
	}
	return es, nil
}

// Add records an export and saves the history.
func (es *ExportStore) Add(r ExportRecord) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	records := make([]ExportRecord, 0, min(len(es.records)+1, es.limit))
	records = append(records, r)
	for _, old := range es.records {
		if len(records) == es.limit {
			break
		}
		records = append(records, old)
	}
	es.records = records

	if es.storage == nil {
		return nil
	}
	if err := es.storage.SaveDataFile(HistoryFile, &ExportHistory{Records: records}); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (es *ExportStore) List(limit int) []ExportRecord {
	es.mu.Lock()
	defer es.mu.Unlock()
	n := len(es.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ExportRecord, n)
	copy(out, es.records[:n])
	return out
}

// Len is the number of records held.
func (es *ExportStore) Len() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return len(es.records)
}
