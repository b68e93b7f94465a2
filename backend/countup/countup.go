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

// Package countup animates a stat string from zero to its final value with
// a cubic ease-out.
package countup

import (
	"math"
	"sync"
	"time"

	"github.com/ttbt-io/pitchdeck/backend/stat"
)

// State is the lifecycle position of a Counter.
type State int

const (
	Unarmed State = iota
	Armed
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Unarmed:
		return "unarmed"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

const (
	DefaultDuration      = 1200 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
)

// Choreography used by the deck views.
const (
	StatDuration        = 1200 * time.Millisecond
	TableDuration       = 1400 * time.Millisecond
	ClosingAskDuration  = 2000 * time.Millisecond
	ClosingAskDelay     = 300 * time.Millisecond
	ClosingStatDuration = 1500 * time.Millisecond
	ClosingStatDelay    = 500 * time.Millisecond
)

// StatDelay staggers the stat blocks of a section.
func StatDelay(index int) time.Duration {
	return time.Duration(index*100+200) * time.Millisecond
}

// TableDelay staggers financial table cells by row and column.
func TableDelay(row, col int) time.Duration {
	return time.Duration(row*80+col*100) * time.Millisecond
}

// UseOfFundsDelay staggers the closing use-of-funds amounts.
func UseOfFundsDelay(index int) time.Duration {
	return time.Duration(400+index*100) * time.Millisecond
}

// Clock abstracts time for the driver goroutine.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the driver needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) NewTicker(d time.Duration) Ticker       { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.t.C }
func (t realTicker) Stop()               { t.t.Stop() }

// Options configure a Counter.
type Options struct {
	Duration      time.Duration
	Delay         time.Duration
	FrameInterval time.Duration
	Clock         Clock
	// Render receives every displayed string. It is called with the
	// counter's lock held and must not call back into the Counter.
	Render func(string)
}

// Counter is one on-screen count-up. It is safe for concurrent use.
type Counter struct {
	raw    string
	target stat.Parsed
	opts   Options

	mu      sync.Mutex
	state   State
	display string
	start   time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New returns a counter for raw. A raw string that cannot be parsed yields
// a passthrough counter that displays raw and is already Completed.
func New(raw string, opts Options) *Counter {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	c := &Counter{
		raw:  raw,
		opts: opts,
		stop: make(chan struct{}),
	}
	p, ok := stat.Parse(raw)
	if !ok {
		c.state = Completed
		c.display = raw
	} else {
		c.target = p
		c.display = p.Zero()
	}
	return c
}

// Raw returns the string the counter converges to.
func (c *Counter) Raw() string {
	return c.raw
}

// Passthrough reports whether raw was not animatable.
func (c *Counter) Passthrough() bool {
	_, ok := stat.Parse(c.raw)
	return !ok
}

// State returns the current lifecycle state.
func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Display returns the string currently shown.
func (c *Counter) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Arm records that the host became visible at now. Only the first call on
// an unarmed counter has any effect; it returns true in that case. The
// animation starts at now plus the configured delay.
func (c *Counter) Arm(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unarmed {
		return false
	}
	c.state = Armed
	c.start = now.Add(c.opts.Delay)
	c.emitLocked()
	return true
}

// Visible arms the counter at the clock's current time and starts a
// goroutine that steps it once per frame until it completes or is torn
// down.
func (c *Counter) Visible() bool {
	if !c.Arm(c.opts.Clock.Now()) {
		return false
	}
	done := make(chan struct{})
	c.mu.Lock()
	c.done = done
	c.mu.Unlock()
	go c.drive(done)
	return true
}

// Wait blocks until the driver started by Visible has exited. It returns
// immediately if no driver was started.
func (c *Counter) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Counter) drive(done chan struct{}) {
	defer close(done)

	if c.opts.Delay > 0 {
		select {
		case <-c.stop:
			return
		case <-c.opts.Clock.After(c.opts.Delay):
		}
	}

	ticker := c.opts.Clock.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()

	if _, final := c.Step(c.opts.Clock.Now()); final {
		return
	}
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C():
			if _, final := c.Step(now); final {
				return
			}
		}
	}
}

// Step advances the animation to now and returns the displayed string and
// whether the counter has reached a terminal state. Steps before the start
// time leave the counter armed.
func (c *Counter) Step(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Completed, Cancelled:
		return c.display, true
	case Unarmed:
		return c.display, false
	case Armed:
		if now.Before(c.start) {
			return c.display, false
		}
		c.state = Running
	}

	elapsed := now.Sub(c.start)
	if elapsed >= c.opts.Duration {
		c.state = Completed
		c.display = c.raw
		c.emitLocked()
		return c.display, true
	}
	c.display = c.target.Render(ValueAt(c.target.Number, elapsed, c.opts.Duration))
	c.emitLocked()
	return c.display, false
}

// Teardown cancels any pending work. Once it returns, Render is not called
// again. A completed counter keeps its final display.
func (c *Counter) Teardown() {
	c.mu.Lock()
	if c.state != Completed {
		c.state = Cancelled
	}
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Counter) emitLocked() {
	if c.opts.Render != nil && c.state != Cancelled {
		c.opts.Render(c.display)
	}
}

// Ease is the cubic ease-out curve 1-(1-p)^3, with p clamped to [0,1].
func Ease(p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	return 1 - math.Pow(1-p, 3)
}

// ValueAt is the displayed number after elapsed of duration.
func ValueAt(target float64, elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return target
	}
	return target * Ease(float64(elapsed)/float64(duration))
}

// Sequence returns the strings a counter for raw displays when sampled
// every interval from the start of its animation, ending with raw itself.
// An unparseable raw yields just raw.
func Sequence(raw string, duration, interval time.Duration) []string {
	p, ok := stat.Parse(raw)
	if !ok {
		return []string{raw}
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	var frames []string
	for e := time.Duration(0); e < duration; e += interval {
		frames = append(frames, p.Render(ValueAt(p.Number, e, duration)))
	}
	return append(frames, raw)
}
