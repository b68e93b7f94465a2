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

// Package preview is a terminal rendition of the deck's count-up stats.
package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ttbt-io/pitchdeck/backend/countup"
	"github.com/ttbt-io/pitchdeck/backend/deck"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F5F5DC")).
			Background(lipgloss.Color("#1C1C1C")).
			Bold(true).
			Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#B8860B"))
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B0B0B0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	settledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8860B")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// frameMsg advances every counter to the carried time.
type frameMsg time.Time

type row struct {
	stat    deck.AnimatedStat
	counter *countup.Counter
}

// Options configure a Model.
type Options struct {
	// Once quits as soon as every counter has settled.
	Once bool
	// Now replaces time.Now, for tests.
	Now func() time.Time
	// FrameInterval defaults to countup.DefaultFrameInterval.
	FrameInterval time.Duration
}

// Model implements tea.Model. Counters are armed together when the model
// starts and stepped on every frame, so no counter goroutines run.
type Model struct {
	deck *deck.Deck
	opts Options

	sections []string
	rows     map[string][]row
	active   int

	width  int
	height int
}

// NewModel builds the preview for d. Sections appear in the order of their
// first stat.
func NewModel(d *deck.Deck, opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = countup.DefaultFrameInterval
	}
	m := &Model{deck: d, opts: opts, rows: make(map[string][]row)}
	for _, s := range d.Stats() {
		if _, ok := m.rows[s.Section]; !ok {
			m.sections = append(m.sections, s.Section)
		}
		m.rows[s.Section] = append(m.rows[s.Section], row{stat: s})
	}
	m.reset()
	return m
}

// reset creates fresh counters and arms them at the current time.
func (m *Model) reset() {
	now := m.opts.Now()
	for _, name := range m.sections {
		rows := m.rows[name]
		for i := range rows {
			if rows[i].counter != nil {
				rows[i].counter.Teardown()
			}
			c := countup.New(rows[i].stat.Raw, countup.Options{
				Duration: rows[i].stat.Duration,
				Delay:    rows[i].stat.Delay,
			})
			c.Arm(now)
			rows[i].counter = c
		}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Settled reports whether every counter has reached its final value.
func (m *Model) Settled() bool {
	for _, rows := range m.rows {
		for _, r := range rows {
			if s := r.counter.State(); s != countup.Completed && s != countup.Cancelled {
				return false
			}
		}
	}
	return true
}

// Section is the name of the section on screen.
func (m *Model) Section() string {
	if len(m.sections) == 0 {
		return ""
	}
	return m.sections[m.active]
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.teardown()
			return m, tea.Quit
		case "tab", "right", "l":
			if len(m.sections) > 0 {
				m.active = (m.active + 1) % len(m.sections)
			}
			return m, nil
		case "shift+tab", "left", "h":
			if len(m.sections) > 0 {
				m.active = (m.active + len(m.sections) - 1) % len(m.sections)
			}
			return m, nil
		case "r":
			wasSettled := m.Settled()
			m.reset()
			if wasSettled {
				return m, m.tick()
			}
			return m, nil
		}
	case frameMsg:
		now := time.Time(msg)
		for _, rows := range m.rows {
			for _, r := range rows {
				r.counter.Step(now)
			}
		}
		if m.Settled() {
			if m.opts.Once {
				return m, tea.Quit
			}
			return m, nil
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) teardown() {
	for _, rows := range m.rows {
		for _, r := range rows {
			r.counter.Teardown()
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.deck.Name))
	b.WriteString("\n\n")

	tabs := make([]string, len(m.sections))
	for i, name := range m.sections {
		label := fmt.Sprintf("%s (%d)", m.deck.SectionLabel(name), len(m.rows[name]))
		if i == m.active {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")

	rows := m.rows[m.Section()]
	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.stat.Label))
	}
	if m.width > 0 {
		labelWidth = min(labelWidth, m.width/2)
	}
	visible := rows
	// Title, tabs and help take nine lines.
	if m.height > 9 && len(visible) > m.height-9 {
		visible = visible[:m.height-9]
	}
	for _, r := range visible {
		style := valueStyle
		if r.counter.State() == countup.Completed {
			style = settledStyle
		}
		b.WriteString(labelStyle.Width(labelWidth).MaxWidth(labelWidth).Render(r.stat.Label))
		b.WriteString("  ")
		b.WriteString(style.Render(r.counter.Display()))
		b.WriteString("\n")
	}
	if len(visible) < len(rows) {
		b.WriteString(helpStyle.Render(fmt.Sprintf("… %d more", len(rows)-len(visible))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/←/→ section • r replay • q quit"))
	return b.String()
}
