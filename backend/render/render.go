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

// Package render turns a deck into the interactive page and the print view.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ttbt-io/pitchdeck/backend/countup"
	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/backend/stat"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds the parsed page templates. It is safe for concurrent use.
type Renderer struct {
	index *template.Template
	print *template.Template
}

func New() (*Renderer, error) {
	index, err := template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/partials.html", "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}
	slides, err := template.New("print.html").Funcs(funcs).ParseFS(templateFS, "templates/partials.html", "templates/print.html")
	if err != nil {
		return nil, fmt.Errorf("parsing print template: %w", err)
	}
	return &Renderer{index: index, print: slides}, nil
}

// Index renders the scrollable deck.
func (r *Renderer) Index(w io.Writer, d *deck.Deck) error {
	sections := sectionViews(d)
	return execute(w, r.index, indexView{Deck: d, Sections: sections, Total: len(sections)})
}

// Print renders the fixed 1280x720 slides captured by the PDF export.
func (r *Renderer) Print(w io.Writer, d *deck.Deck) error {
	return execute(w, r.print, printView{Deck: d, Slides: Slides(d)})
}

// execute renders into a buffer first so a template error never leaves a
// half-written page.
func execute(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"countup":       countupSpan,
	"statDelay":     func(i int) int { return int(countup.StatDelay(i).Milliseconds()) },
	"tableDelay":    func(r, c int) int { return int(countup.TableDelay(r, c).Milliseconds()) },
	"fundsDelay":    func(i int) int { return int(countup.UseOfFundsDelay(i).Milliseconds()) },
	"ms":            func(name string) int { return choreography[name] },
	"pad2":          func(n int) string { return fmt.Sprintf("%02d", n) },
	"color":         safeColor,
	"conic":         conicGradient,
	"pct":           slicePercents,
	"cashflowChart": cashflowSVG,
	"donutChart":    donutSVG,
	"lines":         func(s string) []string { return strings.Split(s, "\n") },
	"first":         firstN[string],
}

var choreography = map[string]int{
	"stat":            int(countup.StatDuration.Milliseconds()),
	"table":           int(countup.TableDuration.Milliseconds()),
	"closingAsk":      int(countup.ClosingAskDuration.Milliseconds()),
	"closingAskDelay": int(countup.ClosingAskDelay.Milliseconds()),
	"closingStat":     int(countup.ClosingStatDuration.Milliseconds()),
	"closingDelay":    int(countup.ClosingStatDelay.Milliseconds()),
}

// countupSpan renders a stat that animates on the client. Before the script
// runs it shows prefix + "0" + suffix. A stat that cannot be parsed is
// rendered verbatim and never animates.
func countupSpan(raw string, durationMS, delayMS int) template.HTML {
	p, ok := stat.Parse(raw)
	if !ok {
		return template.HTML(template.HTMLEscapeString(raw))
	}
	esc := template.HTMLEscapeString
	return template.HTML(fmt.Sprintf(
		`<span class="countup" data-prefix="%s" data-target="%s" data-suffix="%s" data-decimals="%d" data-group="%t" data-duration="%d" data-delay="%d" data-raw="%s">%s</span>`,
		esc(p.Prefix),
		strconv.FormatFloat(p.Number, 'f', -1, 64),
		esc(p.Suffix),
		p.Decimals,
		p.Group,
		durationMS,
		delayMS,
		esc(raw),
		esc(p.Zero()),
	))
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{3,8}$`)

func safeColor(s string) template.CSS {
	if !hexColor.MatchString(s) {
		return "transparent"
	}
	return template.CSS(s)
}

// conicGradient draws a donut as a CSS conic gradient, one arc per slice.
func conicGradient(slices []deck.Slice) template.CSS {
	total := 0.0
	for _, s := range slices {
		total += s.Value
	}
	if total <= 0 {
		return "transparent"
	}
	stops := make([]string, 0, len(slices))
	cum := 0.0
	for _, s := range slices {
		start := cum / total * 360
		cum += s.Value
		end := cum / total * 360
		stops = append(stops, fmt.Sprintf("%s %sdeg %sdeg", safeColor(s.Color), trim(start), trim(end)))
	}
	return template.CSS("conic-gradient(" + strings.Join(stops, ", ") + ")")
}

// Share is a chart legend entry.
type Share struct {
	Name    string
	Color   string
	Percent int
}

func slicePercents(slices []deck.Slice) []Share {
	total := 0.0
	for _, s := range slices {
		total += s.Value
	}
	out := make([]Share, len(slices))
	for i, s := range slices {
		out[i] = Share{Name: s.Name, Color: s.Color}
		if total > 0 {
			out[i].Percent = int(s.Value/total*100 + 0.5)
		}
	}
	return out
}

func trim(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

func firstN[T any](n int, s []T) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
