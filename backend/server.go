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
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend/browser"
	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
	"github.com/ttbt-io/pitchdeck/backend/render"
	"github.com/ttbt-io/pitchdeck/frontend"
)

const requestIDHeader = "X-Request-ID"

// Options represent server options.
type Options struct {
	Addr     string
	Listener net.Listener
	Cert     *tls.Certificate
	// BaseURL is where the export browser finds /print. Defaults to
	// http://localhost with the listen port.
	BaseURL string
	Debug   bool
	Logger  *zap.Logger

	Decks   *deck.Store
	Storage *storage.Storage

	// Sessions is the shared browser. When nil, a browser.Manager is built
	// from Browser and closed with the handler.
	Sessions pdfexport.Sessions
	Browser  browser.LaunchConfig
	// Exporter replaces the chromedp exporter, mostly for tests.
	Exporter PDFExporter

	ExportRatePerMinute float64
	ExportBurst         int
	ExportTimeout       time.Duration
	HistoryLimit        int

	Metrics  bool
	Registry *prometheus.Registry
}

// OptionsFromConfig maps the file configuration onto server options.
func OptionsFromConfig(cfg *Config) Options {
	opts := Options{
		Addr:                cfg.Server.Addr,
		BaseURL:             cfg.ResolveBaseURL(),
		Browser:             cfg.Browser.LaunchConfig(),
		ExportRatePerMinute: cfg.Export.RatePerMinute,
		ExportBurst:         cfg.Export.Burst,
		ExportTimeout:       cfg.Export.GetTimeout(),
		HistoryLimit:        cfg.Export.HistoryLimit,
		Metrics:             cfg.Metrics.Enabled,
	}
	opts.Browser.IgnoreCertErrors = cfg.usesLocalTLS()
	return opts
}

// Handler is the application handler plus the parts that outlive a request.
type Handler struct {
	http.Handler

	Hub     *Hub
	History *ExportStore
	Metrics *ExportMetrics

	// owned is the browser manager created by NewServerHandler, if any.
	owned *browser.Manager
}

// Close stops the hub and the browser this handler launched.
func (h *Handler) Close() error {
	h.Hub.Close()
	if h.owned != nil {
		return h.owned.Shutdown()
	}
	return nil
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	listener   net.Listener
	logger     *zap.Logger
}

// Addr is the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown gracefully stops the HTTP server, then the hub and the browser.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}
	if err := s.handler.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("browser: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger

	ln := opts.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
		}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = LocalBaseURL(ln.Addr().String(), opts.Cert != nil)
		opts.Browser.IgnoreCertErrors = opts.Cert != nil
	}

	handler, err := NewServerHandler(opts)
	if err != nil {
		ln.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		if httpServer.TLSConfig != nil {
			logger.Info("Starting HTTPS server", zap.Stringer("addr", ln.Addr()))
			err = httpServer.ServeTLS(ln, "", "")
		} else {
			logger.Info("Starting HTTP server", zap.Stringer("addr", ln.Addr()))
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		listener:   ln,
		logger:     logger,
	}, nil
}

type sessionStats interface {
	Connected() bool
	Launches() int
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) (*Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Decks == nil {
		d, err := deck.Load(deck.DefaultVariant)
		if err != nil {
			return nil, err
		}
		opts.Decks = deck.NewStore(d, logger)
	}
	decks := opts.Decks

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	history, err := NewExportStore(opts.Storage, opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("export history: %w", err)
	}

	reg := opts.Registry
	if reg == nil && opts.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	metrics := NewExportMetrics(registerer)

	hub := NewHub(logger.Named("hub"))
	decks.OnReload(func(d *deck.Deck) {
		hub.Broadcast(Message{Type: MsgTypeDeck, Variant: d.Variant})
	})
	h := &Handler{Hub: hub, History: history, Metrics: metrics}

	sessions := opts.Sessions
	exporter := opts.Exporter
	if exporter == nil {
		if sessions == nil {
			h.owned = browser.NewManager(browser.SelectLauncher(opts.Browser, logger.Named("browser")), logger.Named("browser"))
			sessions = h.owned
		}
		exporter = pdfexport.New(sessions, pdfexport.Options{BaseURL: opts.BaseURL}, logger.Named("export"), hub.PublishExport)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderer.Index(w, decks.Deck()); err != nil {
			logger.Error("Rendering deck", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/print", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderer.Print(w, decks.Deck()); err != nil {
			logger.Error("Rendering print view", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})

	mux.Handle("/api/export-pdf", &exportHandler{
		exporter: exporter,
		limiter:  newExportLimiter(opts.ExportRatePerMinute, opts.ExportBurst),
		timeout:  opts.ExportTimeout,
		history:  history,
		metrics:  metrics,
		decks:    decks,
		logger:   logger.Named("export"),
	})

	mux.HandleFunc("/api/export/history", historyHandler(history))

	mux.HandleFunc("/api/export/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Snapshot()
		if s, ok := sessions.(sessionStats); ok {
			stats.Browser = BrowserStats{Connected: s.Connected(), Launches: s.Launches()}
		}
		writeJSON(w, stats)
	})

	mux.HandleFunc("/api/ws", hub.ServeWS)

	mux.HandleFunc("/api/deck", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, decks.Deck())
	})

	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	// Serve embedded frontend
	contentStatic, err := fs.Sub(frontend.FS, ".")
	if err != nil {
		return nil, err
	}
	static, err := newStaticHandler(contentStatic)
	if err != nil {
		return nil, err
	}
	mux.Handle("/", static)

	handler := http.Handler(mux)
	handler = recoveryMiddleware(logger, handler)
	handler = loggingMiddleware(logger, metrics, handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	h.Handler = handler
	return h, nil
}

// cacheControlMiddleware sets Cache-Control by path. Handlers may override it.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case strings.HasPrefix(p, "/api/"):
			w.Header().Set("Cache-Control", cacheAPI)
		case strings.HasPrefix(p, "/fonts/"):
			w.Header().Set("Cache-Control", cacheFonts)
		case strings.HasPrefix(p, "/images/"):
			w.Header().Set("Cache-Control", cacheImages)
		default:
			w.Header().Set("Cache-Control", cacheDefault)
		}
		next.ServeHTTP(w, r)
	})
}

func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack lets /api/ws upgrade through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.status = http.StatusSwitchingProtocols
	return http.NewResponseController(s.ResponseWriter).Hijack()
}

// loggingMiddleware logs every request with a short request id, which is
// also returned in X-Request-ID.
func loggingMiddleware(logger *zap.Logger, metrics *ExportMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "other"
		}
		metrics.ObserveRequest(route, rec.status, elapsed)
		logger.Info("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", elapsed),
		)
	})
}

// recoveryMiddleware turns a panic into a 500.
func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("panic serving request",
					zap.String("path", r.URL.Path),
					zap.Any("panic", v),
					zap.Stack("stack"),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
