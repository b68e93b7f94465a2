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

package render

import (
	"fmt"

	"github.com/ttbt-io/pitchdeck/backend/deck"
)

// Slide kinds, in print order.
const (
	KindCover       = "cover"
	KindOpportunity = "opportunity"
	KindThesis      = "thesis"
	KindProperty    = "property"
	KindZoning      = "zoning"
	KindPlan        = "plan"
	KindSummary     = "summary"
	KindFinancials  = "financials"
	KindTeam        = "team"
	KindClosing     = "closing"
)

const (
	slideInk     = "#1C1C1C"
	slideSurface = "#F5F5DC"
)

// Slide is one fixed-size page of the print view.
type Slide struct {
	Kind     string
	Section  string
	Number   int
	Total    int
	Dark     bool
	Deck     *deck.Deck
	Scenario *deck.Scenario
}

// Background is the slide color.
func (s Slide) Background() string {
	if s.Dark {
		return slideInk
	}
	return slideSurface
}

// Slides lays out the print view. Each scenario contributes a plan slide and
// a financials slide, so the total is d.SlideCount().
func Slides(d *deck.Deck) []Slide {
	var out []Slide
	add := func(kind, sectionID string, dark bool, sc *deck.Scenario) {
		out = append(out, Slide{
			Kind:     kind,
			Section:  d.SectionLabel(sectionID),
			Dark:     dark,
			Deck:     d,
			Scenario: sc,
		})
	}
	add(KindCover, "cover", false, nil)
	add(KindOpportunity, "opportunity", false, nil)
	add(KindThesis, "opportunity", false, nil)
	add(KindProperty, "property", false, nil)
	add(KindZoning, "zoning", false, nil)
	for i := range d.Scenarios {
		add(KindPlan, "homes", true, &d.Scenarios[i])
	}
	add(KindSummary, "financials", false, nil)
	for i := range d.Scenarios {
		sc := &d.Scenarios[i]
		add(KindFinancials, "financials", false, sc)
		out[len(out)-1].Section = fmt.Sprintf("%s: %s", d.SectionLabel("financials"), sc.Label)
	}
	add(KindTeam, "team", false, nil)
	add(KindClosing, "closing", true, nil)

	for i := range out {
		out[i].Number = i + 1
		out[i].Total = len(out)
	}
	return out
}

// SectionView is one section of the interactive page.
type SectionView struct {
	deck.Section
	Number     int
	Background string
	Dark       bool
}

func sectionViews(d *deck.Deck) []SectionView {
	out := make([]SectionView, len(d.Sections))
	for i, s := range d.Sections {
		bg := d.Theme.Background(i)
		out[i] = SectionView{
			Section:    s,
			Number:     i + 1,
			Background: bg,
			Dark:       d.Theme.IsDark(bg),
		}
	}
	return out
}

type indexView struct {
	Deck     *deck.Deck
	Sections []SectionView
	Total    int
}

type printView struct {
	Deck   *deck.Deck
	Slides []Slide
}
