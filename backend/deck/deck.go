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

// Package deck holds the static content of a pitch deck.
package deck

import (
	"strings"
)

// Deck is one pitch deck variant. It is immutable once loaded.
type Deck struct {
	Variant     string      `yaml:"variant" json:"variant"`
	Name        string      `yaml:"name" json:"name"`
	ExportName  string      `yaml:"exportName" json:"exportName"`
	FooterLabel string      `yaml:"footerLabel" json:"footerLabel"`
	Theme       Theme       `yaml:"theme" json:"theme"`
	Sections    []Section   `yaml:"sections" json:"sections"`
	Cover       Cover       `yaml:"cover" json:"cover"`
	Opportunity Opportunity `yaml:"opportunity" json:"opportunity"`
	Property    Property    `yaml:"property" json:"property"`
	Zoning      Zoning      `yaml:"zoning" json:"zoning"`
	Scenarios   []Scenario  `yaml:"scenarios" json:"scenarios"`
	Team        []Member    `yaml:"team" json:"team"`
	Stock       *Stock      `yaml:"stock,omitempty" json:"stock,omitempty"`
	Closing     Closing     `yaml:"closing" json:"closing"`
}

// Section is one navigable part of the interactive deck.
type Section struct {
	ID       string `yaml:"id" json:"id"`
	NavLabel string `yaml:"navLabel" json:"navLabel"`
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	TileIcon string `yaml:"tileIcon" json:"tileIcon"`
}

type Cover struct {
	Headline        string `yaml:"headline" json:"headline"`
	Tagline         string `yaml:"tagline" json:"tagline"`
	Date            string `yaml:"date" json:"date"`
	Location        string `yaml:"location" json:"location"`
	BackgroundImage string `yaml:"backgroundImage" json:"backgroundImage"`
}

// HeadlineLines splits the headline on explicit line breaks.
func (c Cover) HeadlineLines() []string {
	return strings.Split(c.Headline, "\n")
}

type Member struct {
	Name       string   `yaml:"name" json:"name"`
	Role       string   `yaml:"role" json:"role"`
	Bio        string   `yaml:"bio" json:"bio"`
	Highlights []string `yaml:"highlights" json:"highlights"`
	Image      string   `yaml:"image,omitempty" json:"image,omitempty"`
}

// Initials is used in place of a missing headshot.
func (m Member) Initials() string {
	var b strings.Builder
	for _, f := range strings.Fields(m.Name) {
		b.WriteString(strings.ToUpper(f[:1]))
		if b.Len() == 2 {
			break
		}
	}
	return b.String()
}

// Stat is an animated figure with a caption.
type Stat struct {
	Value  string `yaml:"value" json:"value"`
	Label  string `yaml:"label" json:"label"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

type Thesis struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Stat        Stat   `yaml:"stat" json:"stat"`
}

type LocationStat struct {
	Icon   string `yaml:"icon" json:"icon"`
	Label  string `yaml:"label" json:"label"`
	Detail string `yaml:"detail" json:"detail"`
}

type Overview struct {
	TotalUnits  string `yaml:"totalUnits" json:"totalUnits"`
	Composition string `yaml:"composition" json:"composition"`
	Acreage     string `yaml:"acreage" json:"acreage"`
	Timeline    string `yaml:"timeline" json:"timeline"`
	RenderImage string `yaml:"renderImage,omitempty" json:"renderImage,omitempty"`
}

type Opportunity struct {
	Headline      string         `yaml:"headline" json:"headline"`
	Subtitle      string         `yaml:"subtitle" json:"subtitle"`
	Overview      Overview       `yaml:"overview" json:"overview"`
	MapImage      string         `yaml:"mapImage,omitempty" json:"mapImage,omitempty"`
	LocationStats []LocationStat `yaml:"locationStats" json:"locationStats"`
	Thesis        []Thesis       `yaml:"thesis" json:"thesis"`
	DemandDrivers []string       `yaml:"demandDrivers" json:"demandDrivers"`
}

// Item is a label/value pair.
type Item struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

type Image struct {
	Src     string `yaml:"src" json:"src"`
	Caption string `yaml:"caption" json:"caption"`
}

type Property struct {
	Location      string   `yaml:"location" json:"location"`
	Address       string   `yaml:"address" json:"address"`
	Facts         []Item   `yaml:"facts" json:"facts"`
	SitePlanImage string   `yaml:"sitePlanImage,omitempty" json:"sitePlanImage,omitempty"`
	Gallery       []Image  `yaml:"gallery" json:"gallery"`
	Constraints   []string `yaml:"constraints" json:"constraints"`
	Advantages    []string `yaml:"advantages" json:"advantages"`
	Amenities     []string `yaml:"amenities" json:"amenities"`
}

type Zoning struct {
	Headline       string   `yaml:"headline" json:"headline"`
	Subtitle       string   `yaml:"subtitle" json:"subtitle"`
	Classification string   `yaml:"classification" json:"classification"`
	Status         string   `yaml:"status" json:"status"`
	Entitlements   []Item   `yaml:"entitlements" json:"entitlements"`
	Surroundings   []string `yaml:"surroundings" json:"surroundings"`
	MapImage       string   `yaml:"mapImage,omitempty" json:"mapImage,omitempty"`
	Advantages     []string `yaml:"advantages" json:"advantages"`
}

// Scenario is one development pathway with its plan, financials and the
// capital raise that funds it.
type Scenario struct {
	Key        string     `yaml:"key" json:"key"`
	Label      string     `yaml:"label" json:"label"`
	Plan       Plan       `yaml:"plan" json:"plan"`
	Financials Financials `yaml:"financials" json:"financials"`
	Raise      Raise      `yaml:"raise" json:"raise"`
}

type Plan struct {
	Name          string   `yaml:"name" json:"name"`
	Tagline       string   `yaml:"tagline" json:"tagline"`
	Specs         []Item   `yaml:"specs" json:"specs"`
	ExteriorImage string   `yaml:"exteriorImage,omitempty" json:"exteriorImage,omitempty"`
	TargetBuyer   string   `yaml:"targetBuyer" json:"targetBuyer"`
	PriceBand     string   `yaml:"priceBand" json:"priceBand"`
	Features      []string `yaml:"features" json:"features"`
}

type Summary struct {
	TotalProjectCost string `yaml:"totalProjectCost" json:"totalProjectCost"`
	TotalRevenue     string `yaml:"totalRevenue" json:"totalRevenue"`
	NetProfit        string `yaml:"netProfit" json:"netProfit"`
	EquityRequired   string `yaml:"equityRequired" json:"equityRequired"`
	DebtFinancing    string `yaml:"debtFinancing" json:"debtFinancing"`
	ProjectedIRR     string `yaml:"projectedIRR" json:"projectedIRR"`
	EquityMultiple   string `yaml:"equityMultiple" json:"equityMultiple"`
	ProjectTimeline  string `yaml:"projectTimeline" json:"projectTimeline"`
}

// Headline is the four figures shown on summary cards.
func (s Summary) Headline() []Stat {
	return []Stat{
		{Value: s.ProjectedIRR, Label: "IRR"},
		{Value: s.EquityMultiple, Label: "Multiple"},
		{Value: s.NetProfit, Label: "Net Profit"},
		{Value: s.TotalRevenue, Label: "Revenue"},
	}
}

// Row is a table row. A highlighted row is a total.
type Row struct {
	Label     string   `yaml:"label" json:"label"`
	Values    []string `yaml:"values" json:"values"`
	Highlight bool     `yaml:"highlight,omitempty" json:"highlight,omitempty"`
}

type Milestone struct {
	Phase     string `yaml:"phase" json:"phase"`
	Milestone string `yaml:"milestone" json:"milestone"`
}

type Sensitivity struct {
	Scenario string `yaml:"scenario" json:"scenario"`
	IRR      string `yaml:"irr" json:"irr"`
	Multiple string `yaml:"multiple" json:"multiple"`
	Profit   string `yaml:"profit" json:"profit"`
}

type RevenueCase struct {
	Case  string `yaml:"case" json:"case"`
	Total string `yaml:"total" json:"total"`
}

// Slice is one segment of a pie or donut chart.
type Slice struct {
	Name  string  `yaml:"name" json:"name"`
	Value float64 `yaml:"value" json:"value"`
	Color string  `yaml:"color" json:"color"`
}

// CashflowPoint is one period of the cashflow chart, in millions.
type CashflowPoint struct {
	Period     string  `yaml:"period" json:"period"`
	Inflow     float64 `yaml:"inflow" json:"inflow"`
	Outflow    float64 `yaml:"outflow" json:"outflow"`
	Cumulative float64 `yaml:"cumulative" json:"cumulative"`
}

type Charts struct {
	Cost     []Slice         `yaml:"cost" json:"cost"`
	Revenue  []Slice         `yaml:"revenue" json:"revenue"`
	Cashflow []CashflowPoint `yaml:"cashflow" json:"cashflow"`
}

type Financials struct {
	Summary      Summary       `yaml:"summary" json:"summary"`
	Costs        []Row         `yaml:"costs" json:"costs"`
	Revenue      []Row         `yaml:"revenue" json:"revenue"`
	Timeline     []Milestone   `yaml:"timeline" json:"timeline"`
	Sensitivity  []Sensitivity `yaml:"sensitivity" json:"sensitivity"`
	RevenueCases []RevenueCase `yaml:"revenueCases" json:"revenueCases"`
	Waterfall    *Waterfall    `yaml:"waterfall,omitempty" json:"waterfall,omitempty"`
	CapitalStack []Item        `yaml:"capitalStack,omitempty" json:"capitalStack,omitempty"`
	Charts       Charts        `yaml:"charts" json:"charts"`
}

// Waterfall is the LP/GP profit split.
type Waterfall struct {
	PrefReturn     string         `yaml:"prefReturn" json:"prefReturn"`
	Split          string         `yaml:"split" json:"split"`
	InvestorEquity string         `yaml:"investorEquity" json:"investorEquity"`
	Cases          []WaterfallRow `yaml:"cases" json:"cases"`
}

type WaterfallRow struct {
	Case     string `yaml:"case" json:"case"`
	LPProfit string `yaml:"lpProfit" json:"lpProfit"`
	GPProfit string `yaml:"gpProfit" json:"gpProfit"`
	LPTotal  string `yaml:"lpTotal" json:"lpTotal"`
}

type Fund struct {
	Label   string `yaml:"label" json:"label"`
	Amount  string `yaml:"amount" json:"amount"`
	Percent string `yaml:"percent" json:"percent"`
}

type Event struct {
	Date  string `yaml:"date" json:"date"`
	Event string `yaml:"event" json:"event"`
}

// Raise is the capital ask for a scenario.
type Raise struct {
	CapitalAsk        string  `yaml:"capitalAsk" json:"capitalAsk"`
	MinimumInvestment string  `yaml:"minimumInvestment" json:"minimumInvestment"`
	TargetClose       string  `yaml:"targetClose" json:"targetClose"`
	Structure         string  `yaml:"structure" json:"structure"`
	EquityOffered     string  `yaml:"equityOffered" json:"equityOffered"`
	InvestorTerms     string  `yaml:"investorTerms" json:"investorTerms"`
	UseOfFunds        []Fund  `yaml:"useOfFunds" json:"useOfFunds"`
	Timeline          []Event `yaml:"timeline" json:"timeline"`
}

type PricePoint struct {
	Date   string  `yaml:"date" json:"date"`
	Price  float64 `yaml:"price" json:"price"`
	Volume float64 `yaml:"volume" json:"volume"`
}

type Stock struct {
	Symbol    string       `yaml:"symbol" json:"symbol"`
	Exchange  string       `yaml:"exchange" json:"exchange"`
	Price     float64      `yaml:"price" json:"price"`
	Change    float64      `yaml:"change" json:"change"`
	ChangePct float64      `yaml:"changePct" json:"changePct"`
	Volume    string       `yaml:"volume" json:"volume"`
	MarketCap string       `yaml:"marketCap" json:"marketCap"`
	Spot      float64      `yaml:"spot,omitempty" json:"spot,omitempty"`
	High52w   float64      `yaml:"high52w" json:"high52w"`
	Low52w    float64      `yaml:"low52w" json:"low52w"`
	History   []PricePoint `yaml:"history" json:"history"`
}

type Contact struct {
	Name    string `yaml:"name" json:"name"`
	Title   string `yaml:"title" json:"title"`
	Email   string `yaml:"email" json:"email"`
	Phone   string `yaml:"phone" json:"phone"`
	Address string `yaml:"address" json:"address"`
}

type Closing struct {
	Headline   string  `yaml:"headline" json:"headline"`
	Subtitle   string  `yaml:"subtitle" json:"subtitle"`
	Contact    Contact `yaml:"contact" json:"contact"`
	Disclaimer string  `yaml:"disclaimer" json:"disclaimer"`
}

// Theme controls section colors.
type Theme struct {
	// Backgrounds holds one color per section, in section order.
	Backgrounds []string `yaml:"backgrounds" json:"backgrounds"`
	// Dark lists the background colors that take light text.
	Dark   []string `yaml:"dark" json:"dark"`
	Accent string   `yaml:"accent" json:"accent"`
}

// Background returns the color for the i-th section.
func (t Theme) Background(i int) string {
	if len(t.Backgrounds) == 0 {
		return "#F5F5DC"
	}
	return t.Backgrounds[i%len(t.Backgrounds)]
}

// IsDark reports whether color takes light text.
func (t Theme) IsDark(color string) bool {
	for _, d := range t.Dark {
		if strings.EqualFold(d, color) {
			return true
		}
	}
	return false
}

// Section returns the section with the given id.
func (d *Deck) Section(id string) (Section, bool) {
	for _, s := range d.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionLabel is the nav label of id, or id itself.
func (d *Deck) SectionLabel(id string) string {
	if s, ok := d.Section(id); ok {
		return s.NavLabel
	}
	return id
}

// SlideCount is the number of pages in the print view: cover, two
// opportunity slides, property, zoning, a summary, team and closing, plus a
// plan slide and a financials slide per scenario.
func (d *Deck) SlideCount() int {
	return 8 + 2*len(d.Scenarios)
}
