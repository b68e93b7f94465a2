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

package e2e

import (
	"context"

	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pitchdeck/tools/e2ehelpers"
)

var DisableCSSAnimations = e2ehelpers.DisableCSSAnimations
var WaitAnyVisible = e2ehelpers.WaitAnyVisible
var OpenDeck = e2ehelpers.OpenDeck
var GotoSection = e2ehelpers.GotoSection
var PressKey = e2ehelpers.PressKey
var SelectScenario = e2ehelpers.SelectScenario
var WaitCountupsSettled = e2ehelpers.WaitCountupsSettled
var CountupTexts = e2ehelpers.CountupTexts
var OpenPrint = e2ehelpers.OpenPrint
var PrintSlides = e2ehelpers.PrintSlides
var JSClick = e2ehelpers.JSClick
var CaptureScreenshot = e2ehelpers.CaptureScreenshot

// progress reads the "current/total" nav counter.
func progress(current, total *string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Text(`#progress-current`, current, chromedp.ByQuery),
		chromedp.Text(`#progress-total`, total, chromedp.ByQuery),
	}
}

// action adapts a helper that runs its own chromedp steps.
func action(f func(ctx context.Context) error) chromedp.Action {
	return chromedp.ActionFunc(f)
}
