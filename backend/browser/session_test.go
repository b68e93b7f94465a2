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

package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBrowser struct {
	connected atomic.Bool
	closed    atomic.Int32
}

func newFakeBrowser() *fakeBrowser {
	b := &fakeBrowser{}
	b.connected.Store(true)
	return b
}

func (b *fakeBrowser) Connected() bool { return b.connected.Load() }
func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBrowser) Close() error {
	b.closed.Add(1)
	b.connected.Store(false)
	return nil
}

type countingLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	delay    time.Duration
	err      error
}

func (l *countingLauncher) Launch(ctx context.Context) (Browser, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	b := newFakeBrowser()
	l.mu.Lock()
	l.launched = append(l.launched, b)
	l.mu.Unlock()
	return b, nil
}

func (l *countingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func TestManagerReusesConnectedBrowser(t *testing.T) {
	l := &countingLauncher{}
	m := NewManager(l, zaptest.NewLogger(t))
	ctx := context.Background()

	b1, err := m.Get(ctx)
	require.NoError(t, err)
	b2, err := m.Get(ctx)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, l.count())
	assert.Equal(t, 1, m.Launches())
	assert.True(t, m.Connected())
}

func TestManagerRelaunchesDisconnectedBrowser(t *testing.T) {
	l := &countingLauncher{}
	m := NewManager(l, zaptest.NewLogger(t))
	ctx := context.Background()

	b1, err := m.Get(ctx)
	require.NoError(t, err)
	b1.(*fakeBrowser).connected.Store(false)
	assert.False(t, m.Connected())

	b2, err := m.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	assert.Equal(t, 2, l.count())
	assert.Equal(t, int32(1), b1.(*fakeBrowser).closed.Load(), "stale browser is closed")
}

func TestManagerConcurrentGetLaunchesOnce(t *testing.T) {
	l := &countingLauncher{delay: 20 * time.Millisecond}
	m := NewManager(l, nil)

	var wg sync.WaitGroup
	results := make([]Browser, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := m.Get(context.Background())
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, l.count())
	for _, b := range results {
		assert.Same(t, results[0], b)
	}
}

func TestManagerLaunchSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fb := newFakeBrowser()
	m := NewManager(LauncherFunc(func(ctx context.Context) (Browser, error) {
		close(started)
		select {
		case <-release:
			return fb, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx)
		firstErr <- err
	}()
	<-started

	second := make(chan Browser, 1)
	go func() {
		b, err := m.Get(context.Background())
		assert.NoError(t, err)
		second <- b
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)
	assert.Same(t, fb, <-second)
	assert.Equal(t, 1, m.Launches())
	require.NoError(t, m.Shutdown())
}

func TestManagerLaunchError(t *testing.T) {
	l := &countingLauncher{err: errors.New("no chromium")}
	m := NewManager(l, nil)
	_, err := m.Get(context.Background())
	assert.EqualError(t, err, "no chromium")
	assert.False(t, m.Connected())
	assert.Equal(t, 0, m.Launches())

	// A later call tries again.
	l.err = nil
	_, err = m.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Launches())
}

func TestManagerShutdown(t *testing.T) {
	l := &countingLauncher{}
	m := NewManager(l, nil)
	b, err := m.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())
	assert.Equal(t, int32(1), b.(*fakeBrowser).closed.Load())
	_, err = m.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSelectLauncher(t *testing.T) {
	_, ok := SelectLauncher(LaunchConfig{RemoteURL: "ws://127.0.0.1:9222", Serverless: true}, nil).(*RemoteLauncher)
	assert.True(t, ok, "remote wins")

	_, ok = SelectLauncher(LaunchConfig{Serverless: true, CacheDir: t.TempDir()}, nil).(*ServerlessLauncher)
	assert.True(t, ok)

	local, ok := SelectLauncher(LaunchConfig{ExecPath: "/usr/bin/chromium"}, nil).(*LocalLauncher)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/chromium", local.ExecPath)
	assert.False(t, local.IgnoreCertErrors)

	local, ok = SelectLauncher(LaunchConfig{IgnoreCertErrors: true}, nil).(*LocalLauncher)
	require.True(t, ok)
	assert.True(t, local.IgnoreCertErrors)
}

func TestLauncherFunc(t *testing.T) {
	fb := newFakeBrowser()
	m := NewManager(LauncherFunc(func(ctx context.Context) (Browser, error) { return fb, nil }), nil)
	b, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, fb, b)
}
