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

package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// cssPixelsPerInch converts CSS pixels to the inches PrintToPDF expects.
const cssPixelsPerInch = 96.0

// Flags used for a locally installed Chromium.
var localFlags = []chromedp.ExecAllocatorOption{
	chromedp.NoSandbox,
	chromedp.Flag("disable-setuid-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
	chromedp.DisableGPU,
	chromedp.Flag("font-render-hinting", "none"),
	chromedp.Flag("disable-web-security", true),
}

// Flags for the constrained serverless runtime: no sandbox, no zygote and
// no shared memory.
var serverlessFlags = []chromedp.ExecAllocatorOption{
	chromedp.NoSandbox,
	chromedp.Flag("disable-setuid-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
	chromedp.DisableGPU,
	chromedp.Flag("no-zygote", true),
	chromedp.Flag("single-process", true),
	chromedp.Flag("font-render-hinting", "none"),
	chromedp.Flag("hide-scrollbars", true),
	chromedp.Flag("mute-audio", true),
}

// LaunchConfig selects how the export browser is obtained.
type LaunchConfig struct {
	// RemoteURL is a DevTools websocket or http endpoint of an already
	// running browser.
	RemoteURL string
	// Serverless selects a downloaded minimal Chromium.
	Serverless bool
	// ExecPath overrides the Chromium binary for local launches.
	ExecPath string
	// CacheDir is where the serverless Chromium is downloaded.
	CacheDir string
	// IgnoreCertErrors lets a launched browser load the print view over
	// https://localhost with a certificate issued for the public host.
	IgnoreCertErrors bool
}

// SelectLauncher returns the launcher for cfg: remote when a URL is given,
// serverless when the sentinel is set, local otherwise.
func SelectLauncher(cfg LaunchConfig, logger *zap.Logger) Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.RemoteURL != "":
		return &RemoteLauncher{URL: cfg.RemoteURL, Logger: logger}
	case cfg.Serverless:
		return &ServerlessLauncher{CacheDir: cfg.CacheDir, IgnoreCertErrors: cfg.IgnoreCertErrors, Logger: logger}
	default:
		return &LocalLauncher{ExecPath: cfg.ExecPath, IgnoreCertErrors: cfg.IgnoreCertErrors, Logger: logger}
	}
}

// LocalLauncher starts a Chromium installed on the host.
type LocalLauncher struct {
	ExecPath         string
	IgnoreCertErrors bool
	Logger           *zap.Logger
}

// Launch implements Launcher.
func (l *LocalLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], localFlags...)
	path := l.ExecPath
	if path == "" {
		if found, ok := launcher.LookPath(); ok {
			path = found
		}
	}
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if l.IgnoreCertErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	l.Logger.Info("Launching local browser", zap.String("path", path))
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return startChrome(ctx, allocCtx, allocCancel, l.Logger)
}

// ServerlessLauncher downloads a minimal Chromium build on first use and
// runs it with flags suited to a constrained runtime.
type ServerlessLauncher struct {
	CacheDir         string
	IgnoreCertErrors bool
	Logger           *zap.Logger
}

// Launch implements Launcher.
func (l *ServerlessLauncher) Launch(ctx context.Context) (Browser, error) {
	b := launcher.NewBrowser()
	b.Context = ctx
	b.Logger = printlnLogger{l.Logger.Sugar()}
	if l.CacheDir != "" {
		b.RootDir = l.CacheDir
	}
	path, err := b.Get()
	if err != nil {
		return nil, fmt.Errorf("fetching chromium: %w", err)
	}
	l.Logger.Info("Launching serverless browser", zap.String("path", path))

	opts := append(chromedp.DefaultExecAllocatorOptions[:], serverlessFlags...)
	opts = append(opts, chromedp.ExecPath(path))
	if l.IgnoreCertErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return startChrome(ctx, allocCtx, allocCancel, l.Logger)
}

// RemoteLauncher attaches to a browser that is already running.
type RemoteLauncher struct {
	URL    string
	Logger *zap.Logger
}

// Launch implements Launcher.
func (l *RemoteLauncher) Launch(ctx context.Context) (Browser, error) {
	l.Logger.Info("Connecting to remote browser", zap.String("url", l.URL))
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), l.URL)
	return startChrome(ctx, allocCtx, allocCancel, l.Logger)
}

type printlnLogger struct {
	s *zap.SugaredLogger
}

func (p printlnLogger) Println(v ...interface{}) {
	p.s.Info(v...)
}

// chromeBrowser is a Browser backed by a chromedp browser context. The
// context is detached from the request that launched it so the browser
// outlives that request.
type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	lost        <-chan struct{}
	logger      *zap.Logger
}

func startChrome(ctx, allocCtx context.Context, allocCancel context.CancelFunc, logger *zap.Logger) (*chromeBrowser, error) {
	sugar := logger.Sugar()
	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(sugar.Errorf), chromedp.WithDebugf(sugar.Debugf))

	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(bctx)
	}()
	select {
	case err := <-errc:
		if err != nil {
			cancel()
			allocCancel()
			return nil, fmt.Errorf("starting browser: %w", err)
		}
	case <-ctx.Done():
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", ctx.Err())
	}

	b := &chromeBrowser{
		ctx:         bctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}
	if c := chromedp.FromContext(bctx); c != nil && c.Browser != nil {
		b.lost = c.Browser.LostConnection
	}
	return b, nil
}

func (b *chromeBrowser) Connected() bool {
	select {
	case <-b.lost:
		return false
	case <-b.ctx.Done():
		return false
	default:
		return true
	}
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tctx, cancel := chromedp.NewContext(b.ctx)

	// The first Run binds the target to the context it is given, so it
	// must be the tab context itself rather than one derived from ctx.
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(tctx)
	}()
	select {
	case err := <-errc:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("opening tab: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, fmt.Errorf("opening tab: %w", ctx.Err())
	}
	return &chromePage{ctx: tctx, cancel: cancel}, nil
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

// chromePage is one tab. Its chromedp context belongs to the browser; the
// per-call ctx only bounds a single step.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int, scale float64) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height), chromedp.EmulateScale(scale)))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Evaluate(ctx context.Context, expr string, res any) error {
	return p.run(ctx, chromedp.Evaluate(expr, res, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}))
}

func (p *chromePage) PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(opts.WidthPx / cssPixelsPerInch).
			WithPaperHeight(opts.HeightPx / cssPixelsPerInch).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			WithPreferCSSPageSize(false).
			Do(ctx)
		buf = data
		return err
	}))
	return buf, err
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
