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

package deck

import (
	"fmt"
	"time"

	"github.com/ttbt-io/pitchdeck/backend/countup"
)

// AnimatedStat is a stat string together with its count-up timing.
type AnimatedStat struct {
	Section  string
	Label    string
	Raw      string
	Duration time.Duration
	Delay    time.Duration
}

// Stats lists every animated figure in display order.
func (d *Deck) Stats() []AnimatedStat {
	var out []AnimatedStat
	for i, t := range d.Opportunity.Thesis {
		out = append(out, AnimatedStat{
			Section:  "opportunity",
			Label:    t.Title,
			Raw:      t.Stat.Value,
			Duration: countup.StatDuration,
			Delay:    countup.StatDelay(i),
		})
	}
	for _, sc := range d.Scenarios {
		for i, h := range sc.Financials.Summary.Headline() {
			out = append(out, AnimatedStat{
				Section:  "financials",
				Label:    sc.Label + " " + h.Label,
				Raw:      h.Value,
				Duration: countup.StatDuration,
				Delay:    countup.StatDelay(i),
			})
		}
		out = appendTable(out, sc.Label+" cost", sc.Financials.Costs)
		out = appendTable(out, sc.Label+" revenue", sc.Financials.Revenue)
	}
	for _, sc := range d.Scenarios {
		r := sc.Raise
		out = append(out,
			AnimatedStat{Section: "closing", Label: sc.Label + " capital ask", Raw: r.CapitalAsk,
				Duration: countup.ClosingAskDuration, Delay: countup.ClosingAskDelay},
			AnimatedStat{Section: "closing", Label: sc.Label + " minimum", Raw: r.MinimumInvestment,
				Duration: countup.ClosingStatDuration, Delay: countup.ClosingStatDelay},
		)
		for i, f := range r.UseOfFunds {
			out = append(out, AnimatedStat{
				Section:  "closing",
				Label:    fmt.Sprintf("%s %s", sc.Label, f.Label),
				Raw:      f.Amount,
				Duration: countup.ClosingStatDuration,
				Delay:    countup.UseOfFundsDelay(i),
			})
		}
	}
	return out
}

func appendTable(out []AnimatedStat, label string, rows []Row) []AnimatedStat {
	for r, row := range rows {
		for c, v := range row.Values {
			out = append(out, AnimatedStat{
				Section:  "financials",
				Label:    fmt.Sprintf("%s: %s", label, row.Label),
				Raw:      v,
				Duration: countup.TableDuration,
				Delay:    countup.TableDelay(r, c),
			})
		}
	}
	return out
}
