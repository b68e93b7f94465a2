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

// Command screenshots renders every print slide and each interactive
// section of the deck to PNG through a remote Chrome.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/tools/e2ehelpers"
)

var (
	chromeURL = flag.String("chrome-url", "", "The url of the remote debugging port")
	outputDir = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
	host      = flag.String("host", "devtest.local", "Host name the browser uses to reach this process")
	variant   = flag.String("variant", "", "Deck variant; all variants when empty")
)

type stdLogger struct{}

func (stdLogger) Logf(format string, args ...any) { log.Printf(format, args...) }

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}

	ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), *chromeURL)
	defer cancel()

	ctx, cancel = chromedp.NewContext(ctx, chromedp.WithLogf(log.Printf))
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	variants := deck.Variants()
	if *variant != "" {
		variants = []string{*variant}
	}

	log.Println("Starting screenshot generation...")
	for _, v := range variants {
		if err := captureVariant(ctx, v); err != nil {
			log.Fatalf("Failed to capture %s: %v", v, err)
		}
	}
	log.Println("Screenshots generated successfully.")
}

func captureVariant(ctx context.Context, v string) error {
	ts, err := e2ehelpers.StartServer(e2ehelpers.ServerOptions{Host: *host, ChromeURL: *chromeURL, Variant: v})
	if err != nil {
		return err
	}
	defer ts.Close()
	log.Printf("Server for %s started at %s", v, ts.BaseURL)

	dir := filepath.Join(*outputDir, v)
	if err := runAction(ctx, v+"-print", chromedp.ActionFunc(func(ctx context.Context) error {
		return e2ehelpers.OpenPrint(ctx, ts.BaseURL)
	}), 30*time.Second); err != nil {
		return err
	}
	files, err := e2ehelpers.CaptureSlides(ctx, filepath.Join(dir, "print"), stdLogger{})
	if err != nil {
		debugFailure(ctx, v+"-slides")
		return err
	}
	log.Printf("%s: %d print slides", v, len(files))

	return captureSections(ctx, ts.BaseURL, dir, v)
}

// captureSections screenshots each interactive section after its count-ups
// have settled.
func captureSections(ctx context.Context, baseURL, dir, v string) error {
	d, err := deck.Load(v)
	if err != nil {
		return err
	}
	if err := runAction(ctx, v+"-open", chromedp.Tasks{
		e2ehelpers.SlideViewport(),
		chromedp.ActionFunc(func(ctx context.Context) error { return e2ehelpers.OpenDeck(ctx, baseURL) }),
	}, 30*time.Second); err != nil {
		return err
	}
	for i, s := range d.Sections {
		name := fmt.Sprintf("%s-%02d-%s", v, i+1, s.ID)
		err := runAction(ctx, name, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := e2ehelpers.GotoSection(ctx, s.ID); err != nil {
				return err
			}
			var n int
			if err := chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll('#%s .countup').length`, s.ID), &n).Do(ctx); err != nil {
				return err
			}
			if n > 0 {
				return e2ehelpers.WaitCountupsSettled("#"+s.ID, 10*time.Second).Do(ctx)
			}
			return nil
		}), 20*time.Second)
		if err != nil {
			return err
		}
		if err := captureScreenshot(ctx, filepath.Join(dir, "sections", fmt.Sprintf("%02d-%s.png", i+1, s.ID))); err != nil {
			return err
		}
	}
	return nil
}

func debugFailure(ctx context.Context, name string) {
	log.Printf("DEBUG: capturing failure info for %s", name)
	var htmlContent string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &htmlContent)); err != nil {
		log.Printf("DEBUG: Failed to capture HTML: %v", err)
	} else {
		log.Printf("DEBUG: HTML Dump for %s:\n%s", name, htmlContent)
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err == nil {
		os.WriteFile(filepath.Join(*outputDir, fmt.Sprintf("debug-%s.png", name)), buf, 0644)
		log.Printf("DEBUG: Saved screenshot to debug-%s.png", name)
	} else {
		log.Printf("DEBUG: Failed to capture screenshot: %v", err)
	}
}

// runAction executes a chromedp action with a timeout and debug capture on failure.
func runAction(ctx context.Context, name string, action chromedp.Action, timeout time.Duration) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- chromedp.Run(stepCtx, action)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Printf("Action '%s' failed: %v", name, err)
			debugFailure(ctx, name+"-failed")
			return err
		}
		return nil
	case <-stepCtx.Done():
		log.Printf("Action '%s' timed out", name)
		debugFailure(ctx, name+"-timeout")
		return stepCtx.Err()
	}
}

func captureScreenshot(ctx context.Context, filename string) error {
	return e2ehelpers.CaptureScreenshot(ctx, filename)
}
