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

package countup

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ttbt-io/pitchdeck/backend/stat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *recorder) render(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func TestEase(t *testing.T) {
	assert.Equal(t, 0.0, Ease(0))
	assert.Equal(t, 1.0, Ease(1))
	assert.Equal(t, 1.0, Ease(2))
	assert.Equal(t, 0.0, Ease(-1))
	assert.InDelta(t, 0.875, Ease(0.5), 1e-12)
}

func TestValueAtMatchesCurve(t *testing.T) {
	const target = 5000000.0
	d := 1200 * time.Millisecond
	prev := -1.0
	for e := time.Duration(0); e <= d; e += 10 * time.Millisecond {
		got := ValueAt(target, e, d)
		p := float64(e) / float64(d)
		want := target * (1 - math.Pow(1-p, 3))
		assert.InDelta(t, want, got, 1e-6)
		assert.GreaterOrEqual(t, got, prev, "value must not decrease at %v", e)
		prev = got
	}
}

func TestStepLifecycle(t *testing.T) {
	rec := &recorder{}
	c := New("$5,000,000", Options{Duration: time.Second, Delay: 200 * time.Millisecond, Render: rec.render})
	assert.Equal(t, Unarmed, c.State())
	assert.Equal(t, "$0", c.Display())

	base := time.Unix(1000, 0)

	// Not armed yet: steps do nothing.
	s, final := c.Step(base)
	assert.Equal(t, "$0", s)
	assert.False(t, final)
	assert.Equal(t, Unarmed, c.State())

	require.True(t, c.Arm(base))
	assert.Equal(t, Armed, c.State())

	// Inside the delay window.
	s, final = c.Step(base.Add(100 * time.Millisecond))
	assert.Equal(t, "$0", s)
	assert.False(t, final)
	assert.Equal(t, Armed, c.State())

	s, final = c.Step(base.Add(700 * time.Millisecond))
	assert.False(t, final)
	assert.Equal(t, Running, c.State())
	p, _ := stat.Parse("$5,000,000")
	assert.Equal(t, p.Render(5000000*Ease(0.5)), s)
	assert.Equal(t, "$4,375,000", s)

	s, final = c.Step(base.Add(1200 * time.Millisecond))
	assert.True(t, final)
	assert.Equal(t, "$5,000,000", s)
	assert.Equal(t, Completed, c.State())

	frames := rec.snapshot()
	require.NotEmpty(t, frames)
	assert.Equal(t, "$5,000,000", frames[len(frames)-1])
}

func TestFinalSnapsToRaw(t *testing.T) {
	for _, raw := range []string{"$5,000,000", "24.1%", "1.9x", "$6.3M", "85%+", "5.2 g/t"} {
		t.Run(raw, func(t *testing.T) {
			c := New(raw, Options{Duration: 100 * time.Millisecond})
			base := time.Unix(0, 0)
			c.Arm(base)
			c.Step(base.Add(99 * time.Millisecond))
			s, final := c.Step(base.Add(5 * time.Second))
			assert.True(t, final)
			assert.Equal(t, raw, s)
		})
	}
}

func TestArmIsOneShot(t *testing.T) {
	c := New("52%", Options{Duration: time.Second})
	base := time.Unix(0, 0)
	require.True(t, c.Arm(base))
	c.Step(base.Add(500 * time.Millisecond))
	mid := c.Display()

	assert.False(t, c.Arm(base.Add(600*time.Millisecond)))
	s, _ := c.Step(base.Add(500 * time.Millisecond))
	assert.Equal(t, mid, s, "re-arming must not restart the animation")

	c.Step(base.Add(2 * time.Second))
	assert.False(t, c.Arm(base.Add(3*time.Second)))
	assert.Equal(t, "52%", c.Display())
	assert.Equal(t, Completed, c.State())
}

func TestPassthrough(t *testing.T) {
	rec := &recorder{}
	c := New("30-36 months", Options{Render: rec.render})
	assert.True(t, c.Passthrough())
	assert.Equal(t, Completed, c.State())
	assert.Equal(t, "30-36 months", c.Display())
	assert.False(t, c.Visible())
	s, final := c.Step(time.Now().Add(time.Hour))
	assert.True(t, final)
	assert.Equal(t, "30-36 months", s)
	assert.Empty(t, rec.snapshot())
	c.Teardown()
	assert.Equal(t, "30-36 months", c.Display())
}

func TestTeardownBeforeArming(t *testing.T) {
	rec := &recorder{}
	c := New("$185M", Options{Render: rec.render})
	c.Teardown()
	assert.Equal(t, Cancelled, c.State())
	assert.False(t, c.Visible())
	c.Wait()
	assert.Empty(t, rec.snapshot())
}

func TestVisibleRunsToCompletion(t *testing.T) {
	rec := &recorder{}
	c := New("$1,000,000", Options{
		Duration:      60 * time.Millisecond,
		Delay:         10 * time.Millisecond,
		FrameInterval: 5 * time.Millisecond,
		Render:        rec.render,
	})
	require.True(t, c.Visible())
	assert.False(t, c.Visible())
	c.Wait()

	assert.Equal(t, Completed, c.State())
	frames := rec.snapshot()
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, "$0", frames[0])
	assert.Equal(t, "$1,000,000", frames[len(frames)-1])

	// Displayed values never go backwards.
	p, _ := stat.Parse("$1,000,000")
	prev := -1.0
	for _, f := range frames {
		v, ok := stat.Parse(f)
		require.True(t, ok, f)
		assert.GreaterOrEqual(t, v.Number, prev)
		assert.LessOrEqual(t, v.Number, p.Number)
		prev = v.Number
	}
}

func TestTeardownStopsUpdates(t *testing.T) {
	rec := &recorder{}
	c := New("$1,000,000", Options{
		Duration:      10 * time.Second,
		FrameInterval: 2 * time.Millisecond,
		Render:        rec.render,
	})
	require.True(t, c.Visible())
	time.Sleep(20 * time.Millisecond)
	c.Teardown()
	c.Wait()

	assert.Equal(t, Cancelled, c.State())
	n := len(rec.snapshot())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(rec.snapshot()), "no frames after teardown")
	s, final := c.Step(time.Now().Add(time.Minute))
	assert.True(t, final)
	assert.NotEqual(t, "$1,000,000", s)
}

func TestTeardownDuringDelay(t *testing.T) {
	rec := &recorder{}
	c := New("85%+", Options{Delay: time.Hour, Render: rec.render})
	require.True(t, c.Visible())
	c.Teardown()
	c.Wait()
	assert.Equal(t, Cancelled, c.State())
	assert.Equal(t, []string{"0%+"}, rec.snapshot())
}

func TestSequence(t *testing.T) {
	seq := Sequence("$5,000,000", 100*time.Millisecond, 25*time.Millisecond)
	assert.Equal(t, []string{"$0", "$2,890,625", "$4,375,000", "$4,921,875", "$5,000,000"}, seq)

	assert.Equal(t, []string{"30-36 months"}, Sequence("30-36 months", time.Second, 0))
}

func TestChoreography(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, StatDelay(0))
	assert.Equal(t, 500*time.Millisecond, StatDelay(3))
	assert.Equal(t, 260*time.Millisecond, TableDelay(2, 1))
	assert.Equal(t, 600*time.Millisecond, UseOfFundsDelay(2))
	assert.Equal(t, "running", Running.String())
}
