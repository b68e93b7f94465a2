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

package e2ehelpers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ttbt-io/pitchdeck/backend"
	"github.com/ttbt-io/pitchdeck/backend/browser"
	"github.com/ttbt-io/pitchdeck/backend/deck"
)

// Logger interface allows passing *testing.T or log.Printf
type Logger interface {
	Logf(format string, args ...any)
}

// ServerOptions configure StartServer.
type ServerOptions struct {
	// Host is the name the remote browser uses to reach this process.
	Host string
	// ChromeURL is the devtools endpoint the exporter connects to. Empty
	// means a local Chromium.
	ChromeURL string
	Variant   string
	DataDir   string
	Logger    *zap.Logger
}

// TestServer is a running deck server.
type TestServer struct {
	// BaseURL is the address as seen by the browser.
	BaseURL string
	// LocalURL is the loopback address, for direct HTTP checks.
	LocalURL string

	server *backend.Server
}

// StartServer starts an in-process deck server on all interfaces.
func StartServer(opts ServerOptions) (*TestServer, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Variant == "" {
		opts.Variant = deck.DefaultVariant
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	d, err := deck.Load(opts.Variant)
	if err != nil {
		return nil, err
	}
	var store *storage.Storage
	if opts.DataDir != "" {
		store = storage.New(opts.DataDir, nil)
	}

	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	baseURL := fmt.Sprintf("http://%s:%s", opts.Host, port)

	server, err := backend.StartServer(backend.Options{
		Listener:     l,
		BaseURL:      baseURL,
		Logger:       opts.Logger,
		Decks:        deck.NewStore(d, opts.Logger),
		Storage:      store,
		Browser:      browser.LaunchConfig{RemoteURL: opts.ChromeURL},
		HistoryLimit: backend.DefaultHistoryLimit,
	})
	if err != nil {
		l.Close()
		return nil, err
	}
	ts := &TestServer{
		BaseURL:  baseURL,
		LocalURL: "http://localhost:" + port,
		server:   server,
	}
	if err := WaitForServer(ts.LocalURL+"/healthz", 5*time.Second); err != nil {
		ts.Close()
		return nil, err
	}
	return ts, nil
}

// Close shuts the server down.
func (ts *TestServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ts.server.Shutdown(ctx)
}

// WaitForServer polls url until it answers 200 OK.
func WaitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server at %s", url)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// CaptureScreenshot captures a screenshot and saves it to the specified filename.
func CaptureScreenshot(ctx context.Context, filename string) error {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeImage(filename, buf)
}

func writeImage(filename string, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for screenshot: %w", err)
	}
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot to file: %w", err)
	}
	log.Printf("Saved screenshot to %s", filename)
	return nil
}

func DisableCSSAnimations() chromedp.ActionFunc {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(`
                        const style = document.createElement('style');
                        style.innerHTML = '*{-webkit-transition-duration:0s!important;transition-duration:0s!important;-webkit-animation-duration:0s!important;animation-duration:0s!important;scroll-behavior:auto!important;}';
                        document.head.appendChild(style);
                `, nil).Do(ctx)
	})
}

// SlideViewport sizes the page to one print slide.
func SlideViewport() chromedp.Action {
	return emulation.SetDeviceMetricsOverride(1280, 720, 1, false)
}

func WaitAnyVisible(sel string, match *string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		for {
			select {
			case <-ticker.C:
				err := chromedp.Evaluate(fmt.Sprintf(
					`(function(selectors) {
					const elements = document.querySelectorAll(selectors);
					for (let i = 0; i < elements.length; i++) {
						const el = elements[i];
						const style = window.getComputedStyle(el);
						if (el.offsetHeight !== 0 && style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0') {
							return el.tagName.toLowerCase() + (el.id ? '#' + el.id : '');
						}
					}
					return '';
				})('%s')`, sel), match).Do(ctx)
				if err == nil && *match != "" {
					return nil
				}
			case <-timeoutCtx.Done():
				return fmt.Errorf("timeout waiting for any element from list to become visible: %w", timeoutCtx.Err())
			}
		}
	})
}

// --- Deck page ---

// OpenDeck loads the interactive deck and waits for the cover.
func OpenDeck(ctx context.Context, baseURL string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(baseURL+"/"),
		chromedp.WaitVisible(`#cover`, chromedp.ByQuery),
		DisableCSSAnimations(),
	)
}

// GotoSection clicks the nav link of section id and waits until the
// progress counter shows its position.
func GotoSection(ctx context.Context, id string) error {
	var position int
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(
		`Array.prototype.indexOf.call(document.querySelectorAll('.deck-section'), document.getElementById(%q)) + 1`, id), &position)); err != nil {
		return err
	}
	if position == 0 {
		return fmt.Errorf("no section %q", id)
	}
	return chromedp.Run(ctx,
		JSClick(fmt.Sprintf(`.nav-links a[data-section="%s"]`, id)),
		chromedp.Poll(fmt.Sprintf(`document.getElementById('progress-current').textContent === '%d'`, position), nil,
			chromedp.WithPollingInterval(100*time.Millisecond), chromedp.WithPollingTimeout(5*time.Second)),
	)
}

// PressKey dispatches a keydown for key, such as "End" or "ArrowDown".
func PressKey(key string) chromedp.Action {
	return chromedp.Evaluate(fmt.Sprintf(
		`document.dispatchEvent(new KeyboardEvent('keydown', {key: %q, bubbles: true}))`, key), nil)
}

// WaitCountupsSettled waits until every count-up inside sel shows its final
// value.
func WaitCountupsSettled(sel string, timeout time.Duration) chromedp.Action {
	return chromedp.Poll(fmt.Sprintf(`
		(() => {
			const els = document.querySelectorAll('%s .countup');
			if (els.length === 0) return false;
			return Array.prototype.every.call(els, el => el.textContent === el.dataset.raw);
		})()
	`, sel), nil, chromedp.WithPollingInterval(100*time.Millisecond), chromedp.WithPollingTimeout(timeout))
}

// CountupTexts returns the text of every count-up inside sel.
func CountupTexts(sel string, texts *[]string) chromedp.Action {
	return chromedp.Evaluate(fmt.Sprintf(
		`Array.prototype.map.call(document.querySelectorAll('%s .countup'), el => el.textContent)`, sel), texts)
}

// SelectScenario clicks the first toggle for scenario key and waits for its
// panels to show.
func SelectScenario(ctx context.Context, key string) error {
	return chromedp.Run(ctx,
		JSClick(fmt.Sprintf(`.scenario-toggle[data-scenario="%s"]`, key)),
		chromedp.Poll(fmt.Sprintf(`
			(() => {
				const panels = document.querySelectorAll('.scenario-panel');
				return panels.length > 0 && Array.prototype.every.call(panels, p => p.hidden === (p.dataset.scenario !== '%s'));
			})()
		`, key), nil, chromedp.WithPollingInterval(100*time.Millisecond), chromedp.WithPollingTimeout(5*time.Second)),
	)
}

// JSClick clicks an element using JavaScript.
func JSClick(selector string) chromedp.Action {
	return chromedp.Evaluate(fmt.Sprintf(`
		(() => {
			const el = document.querySelector('%s');
			if (el) {
				el.dispatchEvent(new MouseEvent('click', {bubbles: true}));
			} else {
				throw new Error("JSClick: Element not found: " + '%s');
			}
		})()
	`, selector, selector), nil)
}

// --- Print view ---

// SlideInfo describes one .slide-page of the print view.
type SlideInfo struct {
	Kind    string  `json:"kind"`
	Section string  `json:"section"`
	Number  string  `json:"number"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// OpenPrint loads /print at slide size.
func OpenPrint(ctx context.Context, baseURL string) error {
	return chromedp.Run(ctx,
		SlideViewport(),
		chromedp.Navigate(baseURL+"/print"),
		chromedp.WaitReady(`#print-root`, chromedp.ByQuery),
	)
}

// PrintSlides lists the slides of the loaded print view.
func PrintSlides(slides *[]SlideInfo) chromedp.Action {
	return chromedp.Evaluate(`
		Array.prototype.map.call(document.querySelectorAll('#print-root .slide-page'), el => {
			const r = el.getBoundingClientRect();
			const text = sel => { const n = el.querySelector(sel); return n ? n.textContent.trim() : ''; };
			return {kind: el.dataset.kind, section: text('.slide-section'), number: text('.slide-number'), width: r.width, height: r.height};
		})
	`, slides)
}

// Outline renders slides one per line for golden comparisons.
func Outline(slides []SlideInfo) string {
	lines := make([]string, len(slides))
	for i, s := range slides {
		line := fmt.Sprintf("%02d %s", i+1, s.Kind)
		if s.Section != "" {
			line += " | " + s.Section
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// CaptureSlides saves every slide of the loaded print view as
// dir/slide-NN.png and returns the file names.
func CaptureSlides(ctx context.Context, dir string, l Logger) ([]string, error) {
	var count int
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.querySelectorAll('#print-root .slide-page').length`, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("print view has no slides")
	}
	var files []string
	for i := 1; i <= count; i++ {
		var buf []byte
		sel := fmt.Sprintf(`#print-root > .slide-page:nth-of-type(%d)`, i)
		if err := chromedp.Run(ctx, chromedp.Screenshot(sel, &buf, chromedp.ByQuery)); err != nil {
			return files, fmt.Errorf("slide %d: %w", i, err)
		}
		name := filepath.Join(dir, fmt.Sprintf("slide-%02d.png", i))
		if err := writeImage(name, buf); err != nil {
			return files, err
		}
		if l != nil {
			l.Logf("captured slide %d/%d", i, count)
		}
		files = append(files, name)
	}
	return files, nil
}
