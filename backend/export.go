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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
)

// PDFExporter produces the deck PDF. *pdfexport.Exporter implements it.
type PDFExporter interface {
	Export(ctx context.Context) (*pdfexport.Result, error)
}

// ExportError is the JSON body of a failed export.
type ExportError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

type exportHandler struct {
	exporter PDFExporter
	limiter  *rate.Limiter
	timeout  time.Duration
	history  *ExportStore
	metrics  *ExportMetrics
	decks    *deck.Store
	logger   *zap.Logger
}

// newExportLimiter returns nil, meaning unlimited, when perMinute is not
// positive.
func newExportLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

func writeExportError(w http.ResponseWriter, status int, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ExportError{
		Error:   exportErrorMessage,
		Details: details,
		Hint:    exportErrorHint,
	})
}

// attachmentName quotes filename for Content-Disposition.
func attachmentName(filename string) string {
	if filename == "" {
		filename = "deck.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		filename += ".pdf"
	}
	r := strings.NewReplacer(`"`, "'", "\r", "", "\n", "", `\`, "")
	return fmt.Sprintf("attachment; filename=%q", r.Replace(filename))
}

func (h *exportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeExportError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		h.metrics.Limited()
		w.Header().Set("Retry-After", retryAfterExport)
		writeExportError(w, http.StatusTooManyRequests, "too many export requests, try again shortly")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	d := h.decks.Deck()
	record := ExportRecord{
		Variant:   d.Variant,
		Started:   time.Now().UTC(),
		RequestID: w.Header().Get(requestIDHeader),
	}
	finish := h.metrics.Begin()
	res, err := h.exporter.Export(ctx)
	elapsed := time.Since(record.Started)
	record.ElapsedMS = elapsed.Milliseconds()

	if err != nil {
		finish(elapsed, 0, err)
		record.ID = uuid.New().String()
		record.Error = err.Error()
		var ee *pdfexport.Error
		if errors.As(err, &ee) {
			record.Stage = string(ee.Stage)
		}
		h.save(record)
		writeExportError(w, http.StatusInternalServerError, err.Error())
		return
	}

	finish(res.Elapsed, res.Slides, nil)
	record.ID = res.ID
	record.Bytes = len(res.PDF)
	record.Slides = res.Slides
	record.Pages = res.Pages
	record.ElapsedMS = res.Elapsed.Milliseconds()
	h.save(record)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachmentName(d.ExportName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(res.PDF)
}

func (h *exportHandler) save(rec ExportRecord) {
	if err := h.history.Add(rec); err != nil {
		h.logger.Warn("Saving export history", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// historyHandler serves /api/export/history?limit=N.
func historyHandler(history *ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			if val, err := strconv.Atoi(l); err == nil {
				limit = val
			}
		}
		writeJSON(w, map[string]any{"records": history.List(limit)})
	}
}
