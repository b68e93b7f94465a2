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

// Package browser owns the shared headless browser used for PDF export.
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultLaunchTimeout bounds a single browser launch, including the first
// serverless Chromium download.
const DefaultLaunchTimeout = 2 * time.Minute

// ErrClosed is returned by Manager.Get after Shutdown.
var ErrClosed = errors.New("browser manager is shut down")

// PDFOptions describe the printed page geometry. Sizes are in CSS pixels.
type PDFOptions struct {
	WidthPx         float64
	HeightPx        float64
	PrintBackground bool
}

// Page is a single tab. Every method blocks until the step finishes or ctx
// expires.
type Page interface {
	SetViewport(ctx context.Context, width, height int, scale float64) error
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string) error
	// Evaluate runs expr, awaiting it if it returns a promise, and decodes
	// the result into res when res is non-nil.
	Evaluate(ctx context.Context, expr string, res any) error
	PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error)
	Close() error
}

// Browser is a running browser process or connection.
type Browser interface {
	Connected() bool
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts a Browser.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) {
	return f(ctx)
}

// Manager hands out one shared Browser, launching it on first use and
// relaunching it when it stops reporting itself connected. A connected
// browser is never relaunched.
type Manager struct {
	launcher      Launcher
	logger        *zap.Logger
	group         singleflight.Group
	launchTimeout time.Duration

	mu       sync.Mutex
	browser  Browser
	launches int
	closed   bool
}

// NewManager returns a Manager that launches browsers with l.
func NewManager(l Launcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{launcher: l, logger: logger, launchTimeout: DefaultLaunchTimeout}
}

// Get returns the shared browser, creating it if needed. Concurrent callers
// that find no connected browser share a single launch.
func (m *Manager) Get(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if b := m.browser; b != nil && b.Connected() {
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	ch := m.group.DoChan("browser", func() (any, error) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		stale := m.browser
		if stale != nil && stale.Connected() {
			m.mu.Unlock()
			return stale, nil
		}
		m.browser = nil
		m.mu.Unlock()

		if stale != nil {
			m.logger.Info("Stale browser connection detected, relaunching")
			if err := stale.Close(); err != nil {
				m.logger.Debug("Closing stale browser", zap.Error(err))
			}
		}

		// Shared by every waiter, so detached from the caller's cancellation.
		launchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.launchTimeout)
		defer cancel()
		b, err := m.launcher.Launch(launchCtx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.launches++
		if m.closed {
			b.Close()
			return nil, ErrClosed
		}
		m.browser = b
		m.logger.Info("Browser launched", zap.Int("launches", m.launches))
		return b, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Browser), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connected reports whether a browser is held and connected.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil && m.browser.Connected()
}

// Launches returns how many browsers have been launched.
func (m *Manager) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launches
}

// Shutdown closes the held browser. Later calls to Get fail with ErrClosed.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	return err
}
