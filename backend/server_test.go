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
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
)

var fakePDF = []byte("%PDF-1.4\n% fake\n")

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExporter) Export(ctx context.Context) (*pdfexport.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &pdfexport.Result{ID: "exp-1", PDF: fakePDF, Slides: 14, Pages: 14, Elapsed: 250 * time.Millisecond}, nil
}

func newTestHandler(t *testing.T, opts Options) *Handler {
	t.Helper()
	if opts.Exporter == nil {
		opts.Exporter = &fakeExporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h, err := NewServerHandler(opts)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandlers(t *testing.T) {
	h := newTestHandler(t, Options{Metrics: true})

	t.Run("Index", func(t *testing.T) {
		rec := get(t, h, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `<section id="cover"`)
		assert.Contains(t, rec.Body.String(), `id="export-pdf"`)
	})

	t.Run("Print", func(t *testing.T) {
		rec := get(t, h, "/print")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<div id="print-root">`)
		assert.Equal(t, 14, strings.Count(body, `class="slide-page`))
	})

	t.Run("SecurityHeaders", func(t *testing.T) {
		rec := get(t, h, "/")
		hdr := rec.Header()
		assert.Equal(t, "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:", hdr.Get("Content-Security-Policy"))
		assert.Equal(t, "DENY", hdr.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", hdr.Get("X-Content-Type-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", hdr.Get("Referrer-Policy"))
		assert.Equal(t, "camera=(), microphone=(), geolocation=()", hdr.Get("Permissions-Policy"))
		assert.Len(t, hdr.Get("X-Request-ID"), 8)
	})

	t.Run("CacheControl", func(t *testing.T) {
		for path, want := range map[string]string{
			"/":                       cacheDefault,
			"/css/deck.css":           cacheDefault,
			"/images/site-aerial.svg": cacheImages,
			"/fonts/missing.woff2":    cacheFonts,
			"/api/deck":               cacheAPI,
		} {
			assert.Equal(t, want, get(t, h, path).Header().Get("Cache-Control"), path)
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		rec := get(t, h, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("Deck", func(t *testing.T) {
		rec := get(t, h, "/api/deck")
		require.Equal(t, http.StatusOK, rec.Code)
		var d deck.Deck
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
		assert.Equal(t, "mining", d.Variant)
		assert.Len(t, d.Scenarios, 3)
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := get(t, h, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "pitchdeck_export_duration_seconds")
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, h, "/nope.txt").Code)
		assert.Equal(t, http.StatusNotFound, get(t, h, "/css").Code)
	})
}

func TestMetricsDisabled(t *testing.T) {
	h := newTestHandler(t, Options{})
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestExportPDF(t *testing.T) {
	fake := &fakeExporter{}
	h := newTestHandler(t, Options{Exporter: fake})

	rec := get(t, h, "/api/export-pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Aurelia Gold Corp Investor Deck.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, fakePDF, rec.Body.Bytes())

	recs := h.History.List(0)
	require.Len(t, recs, 1)
	assert.Equal(t, "exp-1", recs[0].ID)
	assert.Equal(t, "mining", recs[0].Variant)
	assert.Equal(t, 14, recs[0].Slides)
	assert.Equal(t, len(fakePDF), recs[0].Bytes)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), recs[0].RequestID)

	stats := get(t, h, "/api/export/stats")
	var s struct {
		Succeeded uint64  `json:"succeeded"`
		P50MS     float64 `json:"p50Ms"`
	}
	require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &s))
	assert.Equal(t, uint64(1), s.Succeeded)
	assert.Equal(t, 300.0, s.P50MS)

	hist := get(t, h, "/api/export/history?limit=5")
	var body struct {
		Records []ExportRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &body))
	assert.Len(t, body.Records, 1)
}

func TestExportPDFFailure(t *testing.T) {
	fake := &fakeExporter{err: &pdfexport.Error{Stage: pdfexport.StageNavigate, Err: errors.New("net::ERR_CONNECTION_REFUSED")}}
	h := newTestHandler(t, Options{Exporter: fake})

	rec := get(t, h, "/api/export-pdf")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ExportError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ExportError{
		Error:   "PDF export failed",
		Details: "navigate: net::ERR_CONNECTION_REFUSED",
		Hint:    "Ensure Chromium is installed and reachable.",
	}, body)

	recs := h.History.List(0)
	require.Len(t, recs, 1)
	assert.Equal(t, "navigate", recs[0].Stage)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, uint64(1), h.Metrics.Snapshot().Failed)
}

func TestExportPDFMethodNotAllowed(t *testing.T) {
	fake := &fakeExporter{}
	h := newTestHandler(t, Options{Exporter: fake})

	req := httptest.NewRequest(http.MethodPost, "/api/export-pdf", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET", rec.Header().Get("Allow"))
	assert.Zero(t, fake.calls)
}

func TestExportPDFRateLimited(t *testing.T) {
	fake := &fakeExporter{}
	h := newTestHandler(t, Options{Exporter: fake, ExportRatePerMinute: 1, ExportBurst: 1})

	require.Equal(t, http.StatusOK, get(t, h, "/api/export-pdf").Code)

	rec := get(t, h, "/api/export-pdf")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	var body ExportError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PDF export failed", body.Error)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, uint64(1), h.Metrics.Snapshot().Limited)
}

func TestExportUsesCurrentDeck(t *testing.T) {
	d, err := deck.Load("realestate")
	require.NoError(t, err)
	h := newTestHandler(t, Options{Decks: deck.NewStore(d, nil)})

	rec := get(t, h, "/api/export-pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="Craigmore Drive Investor Deck.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "realestate", h.History.List(1)[0].Variant)
}

func TestStaticETag(t *testing.T) {
	h := newTestHandler(t, Options{})

	rec := get(t, h, "/css/deck.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.True(t, strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`))

	rec = get(t, h, "/css/deck.css", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = get(t, h, "/css/deck.css", "If-None-Match", `"stale"`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticGzip(t *testing.T) {
	h := newTestHandler(t, Options{})

	rec := get(t, h, "/css/deck.css", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(plain), ".deck-section")
	gzETag := rec.Header().Get("ETag")

	rec = get(t, h, "/css/deck.css")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	etag := rec.Header().Get("ETag")
	assert.NotEqual(t, etag, gzETag, "compressed body needs its own validator")
	assert.Equal(t, strings.TrimSuffix(etag, `"`)+`-gzip"`, gzETag)

	rec = get(t, h, "/css/deck.css", "Accept-Encoding", "gzip", "If-None-Match", gzETag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, gzETag, rec.Header().Get("ETag"))
}

func TestMatchETag(t *testing.T) {
	assert.True(t, matchETag(`"abc"`, `"abc"`))
	assert.True(t, matchETag(`"abc-gzip"`, `"abc"`))
	assert.False(t, matchETag(`"abd"`, `"abc"`))
	assert.False(t, matchETag("", `"abc"`))
}

func TestStaticTraversal(t *testing.T) {
	fsys := fstest.MapFS{
		"css/a.css": {Data: []byte("body{}")},
	}
	s := &staticHandler{fsys: fsys}

	for _, p := range []string{"/css/../../etc/passwd", "/../secret", `/css/..\..\x`} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/a.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(zap.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, `attachment; filename="deck.pdf"`, attachmentName(""))
	assert.Equal(t, `attachment; filename="Deck.pdf"`, attachmentName("Deck"))
	assert.Equal(t, `attachment; filename="a'b.pdf"`, attachmentName("a\"b\r\n.pdf"))
}

func TestStartServerAndShutdown(t *testing.T) {
	srv, err := StartServer(Options{Addr: "127.0.0.1:0", Exporter: &fakeExporter{}})
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, err = http.Get("http://" + srv.Addr().String() + "/healthz")
	assert.Error(t, err)
}

func TestDeckReloadNotifiesClients(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("deck", "data", "mining.yaml"))
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "deck.yaml")
	require.NoError(t, os.WriteFile(name, raw, 0o644))

	d, err := deck.LoadFile(name)
	require.NoError(t, err)
	store := deck.NewStore(d, nil)
	h := newTestHandler(t, Options{Decks: store})
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	conn := dial(t, server)
	require.Eventually(t, func() bool { return h.Hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Reload(name))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeDeck, msg.Type)
	assert.Equal(t, "mining", msg.Variant)
}
