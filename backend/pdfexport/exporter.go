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

// Package pdfexport captures the deck's print view into a PDF using the
// shared headless browser.
package pdfexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend/browser"
)

// Stage names the step an export is in.
type Stage string

const (
	StageLaunch   Stage = "launch"
	StagePage     Stage = "page"
	StageNavigate Stage = "navigate"
	StageReady    Stage = "ready"
	StageCapture  Stage = "capture"
	StageDone     Stage = "done"
)

// Error is an export failure tagged with the stage that failed.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyPDF is returned when the browser produced no bytes.
var ErrEmptyPDF = errors.New("browser returned an empty PDF")

// Options control the capture. Zero values take the defaults below.
type Options struct {
	BaseURL   string
	PrintPath string

	Width  int
	Height int
	Scale  float64

	NavigateTimeout time.Duration
	ReadyTimeout    time.Duration
	// AssetBudget caps the wait for images.
	AssetBudget time.Duration
	// Settle is the pause before capture. A negative value disables it.
	Settle time.Duration

	ReadySelector string
	SlideSelector string
}

const (
	DefaultPrintPath       = "/print"
	DefaultWidth           = 1280
	DefaultHeight          = 720
	DefaultScale           = 2.0
	DefaultNavigateTimeout = 45 * time.Second
	DefaultReadyTimeout    = 10 * time.Second
	DefaultAssetBudget     = 3 * time.Second
	DefaultSettle          = 200 * time.Millisecond
	DefaultReadySelector   = "#print-root"
	DefaultSlideSelector   = ".slide-page"
)

func (o Options) withDefaults() Options {
	if o.PrintPath == "" {
		o.PrintPath = DefaultPrintPath
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = DefaultNavigateTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.AssetBudget <= 0 {
		o.AssetBudget = DefaultAssetBudget
	}
	if o.Settle < 0 {
		o.Settle = 0
	} else if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	if o.ReadySelector == "" {
		o.ReadySelector = DefaultReadySelector
	}
	if o.SlideSelector == "" {
		o.SlideSelector = DefaultSlideSelector
	}
	return o
}

// Result is a finished export.
type Result struct {
	ID      string
	PDF     []byte
	Slides  int
	Pages   int
	Elapsed time.Duration
}

// Event reports progress of one export.
type Event struct {
	ID    string    `json:"id"`
	Stage Stage     `json:"stage"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
}

// Sessions is what the exporter needs from browser.Manager.
type Sessions interface {
	Get(ctx context.Context) (browser.Browser, error)
}

// Exporter runs exports against a shared browser session.
type Exporter struct {
	sessions Sessions
	opts     Options
	logger   *zap.Logger
	observe  func(Event)
	now      func() time.Time
}

// New returns an Exporter. observe, if non-nil, receives progress events.
func New(sessions Sessions, opts Options, logger *zap.Logger, observe func(Event)) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observe == nil {
		observe = func(Event) {}
	}
	return &Exporter{
		sessions: sessions,
		opts:     opts.withDefaults(),
		logger:   logger,
		observe:  observe,
		now:      time.Now,
	}
}

// TargetURL is the page the exporter captures.
func (e *Exporter) TargetURL() string {
	return strings.TrimRight(e.opts.BaseURL, "/") + e.opts.PrintPath
}

// readinessScript waits for web fonts and, for at most budgetMS, for every
// image to load or fail.
const readinessScript = `Promise.all([
  document.fonts.ready,
  Promise.race([
    Promise.all(Array.from(document.querySelectorAll("img")).map(function (img) {
      return img.complete ? Promise.resolve() : new Promise(function (resolve) {
        img.addEventListener("load", resolve, { once: true });
        img.addEventListener("error", resolve, { once: true });
      });
    })),
    new Promise(function (resolve) { setTimeout(resolve, %d); })
  ])
]).then(function () { return true; })`

// Export captures the print view. Steps run strictly in order and any
// failure ends the export with an *Error; nothing is retried. The page is
// always closed, while the shared browser stays up for the next export.
func (e *Exporter) Export(ctx context.Context) (res *Result, err error) {
	start := e.now()
	id := uuid.New().String()
	stage := StageLaunch
	log := e.logger.With(zap.String("export", id))

	defer func() {
		ev := Event{ID: id, Stage: StageDone, Time: e.now()}
		if err != nil {
			ev.Stage = stage
			ev.Error = err.Error()
			log.Error("PDF export failed", zap.String("stage", string(stage)), zap.Error(err))
		}
		e.observe(ev)
	}()
	fail := func(err error) error {
		return &Error{Stage: stage, Err: err}
	}
	enter := func(s Stage) {
		stage = s
		e.observe(Event{ID: id, Stage: s, Time: e.now()})
	}

	enter(StageLaunch)
	b, err := e.sessions.Get(ctx)
	if err != nil {
		return nil, fail(err)
	}

	enter(StagePage)
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, fail(err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			log.Debug("Closing page", zap.Error(cerr))
		}
	}()

	if err := p.SetViewport(ctx, e.opts.Width, e.opts.Height, e.opts.Scale); err != nil {
		return nil, fail(err)
	}

	enter(StageNavigate)
	target := e.TargetURL()
	if err := withTimeout(ctx, e.opts.NavigateTimeout, func(ctx context.Context) error {
		return p.Navigate(ctx, target)
	}); err != nil {
		return nil, fail(fmt.Errorf("navigating to %s: %w", target, err))
	}

	enter(StageReady)
	if err := withTimeout(ctx, e.opts.ReadyTimeout, func(ctx context.Context) error {
		return p.WaitReady(ctx, e.opts.ReadySelector)
	}); err != nil {
		return nil, fail(fmt.Errorf("waiting for %s: %w", e.opts.ReadySelector, err))
	}
	var ready bool
	if err := p.Evaluate(ctx, fmt.Sprintf(readinessScript, e.opts.AssetBudget.Milliseconds()), &ready); err != nil {
		return nil, fail(fmt.Errorf("waiting for fonts and images: %w", err))
	}
	if err := sleep(ctx, e.opts.Settle); err != nil {
		return nil, fail(err)
	}

	var slides int
	if err := p.Evaluate(ctx, fmt.Sprintf("document.querySelectorAll(%q).length", e.opts.SlideSelector), &slides); err != nil {
		return nil, fail(fmt.Errorf("counting slides: %w", err))
	}

	enter(StageCapture)
	data, err := p.PrintPDF(ctx, browser.PDFOptions{
		WidthPx:         float64(e.opts.Width),
		HeightPx:        float64(e.opts.Height),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fail(err)
	}
	if len(data) == 0 {
		return nil, fail(ErrEmptyPDF)
	}

	pages, perr := CountPages(data)
	if perr != nil {
		log.Warn("Reading PDF page count", zap.Error(perr))
	} else if pages != slides {
		log.Warn("PDF page count differs from slide count", zap.Int("pages", pages), zap.Int("slides", slides))
	}

	elapsed := e.now().Sub(start)
	log.Info("PDF generated",
		zap.Int("slides", slides),
		zap.Int("pages", pages),
		zap.Int("bytes", len(data)),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
	)
	return &Result{ID: id, PDF: data, Slides: slides, Pages: pages, Elapsed: elapsed}, nil
}

// CountPages returns the number of pages in a PDF document.
func CountPages(data []byte) (n int, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

func withTimeout(ctx context.Context, d time.Duration, f func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return f(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
