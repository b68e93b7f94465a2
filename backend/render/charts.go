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
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ttbt-io/pitchdeck/backend/deck"
)

const (
	chartWidth  = 560
	chartHeight = 260
	donutSize   = 240
)

func hex(c string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(c, "#"))
}

// cashflowSVG draws the yearly inflow, outflow and cumulative lines, in
// millions.
func cashflowSVG(points []deck.CashflowPoint) (template.HTML, error) {
	if len(points) < 2 {
		return "", fmt.Errorf("need at least 2 cashflow points, got %d", len(points))
	}
	xs := make([]float64, len(points))
	inflow := make([]float64, len(points))
	outflow := make([]float64, len(points))
	cum := make([]float64, len(points))
	ticks := make([]chart.Tick, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		inflow[i] = p.Inflow
		outflow[i] = p.Outflow
		cum[i] = p.Cumulative
		ticks[i] = chart.Tick{Value: float64(i), Label: p.Period}
	}

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{Ticks: ticks},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0fM", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Inflow",
				Style:   chart.Style{StrokeColor: hex("#4682B4"), StrokeWidth: 1.5},
				XValues: xs,
				YValues: inflow,
			},
			chart.ContinuousSeries{
				Name:    "Outflow",
				Style:   chart.Style{StrokeColor: hex("#A89060"), StrokeWidth: 1.5, StrokeDashArray: []float64{5.0, 3.0}},
				XValues: xs,
				YValues: outflow,
			},
			chart.ContinuousSeries{
				Name:    "Cumulative",
				Style:   chart.Style{StrokeColor: hex("#2F4F4F"), StrokeWidth: 2.5},
				XValues: xs,
				YValues: cum,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("cashflow chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// donutSVG draws a cost or revenue breakdown.
func donutSVG(slices []deck.Slice) (template.HTML, error) {
	values := make([]chart.Value, len(slices))
	for i, s := range slices {
		values[i] = chart.Value{
			Label: s.Name,
			Value: s.Value,
			Style: chart.Style{FillColor: hex(s.Color), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		}
	}
	donut := chart.DonutChart{
		Width:  donutSize,
		Height: donutSize,
		Values: values,
	}
	var buf bytes.Buffer
	if err := donut.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("donut chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}
