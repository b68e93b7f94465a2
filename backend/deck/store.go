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
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store holds the deck currently being served.
type Store struct {
	cur     atomic.Pointer[Deck]
	reloads atomic.Int64
	logger  *zap.Logger

	mu        sync.Mutex
	listeners []func(*Deck)

	// debounce collapses bursts of editor writes into one reload.
	debounce time.Duration
}

func NewStore(d *Deck, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger, debounce: 100 * time.Millisecond}
	s.cur.Store(d)
	return s
}

// Deck returns the current deck.
func (s *Store) Deck() *Deck {
	return s.cur.Load()
}

// Set replaces the current deck.
func (s *Store) Set(d *Deck) {
	s.cur.Store(d)
}

// Reloads is the number of successful reloads.
func (s *Store) Reloads() int64 {
	return s.reloads.Load()
}

// Reload reads name and swaps it in. On error the current deck is kept.
func (s *Store) Reload(name string) error {
	d, err := LoadFile(name)
	if err != nil {
		return err
	}
	s.cur.Store(d)
	s.reloads.Add(1)
	s.notify(d)
	return nil
}

// OnReload registers f to run after every successful Reload.
func (s *Store) OnReload(f func(*Deck)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, f)
}

func (s *Store) notify(d *Deck) {
	s.mu.Lock()
	listeners := append([]func(*Deck){}, s.listeners...)
	s.mu.Unlock()
	for _, f := range listeners {
		f(d)
	}
}

// Watch reloads the deck whenever name changes on disk, until ctx is done.
// The parent directory is watched so that editors that replace the file
// are noticed too.
func (s *Store) Watch(ctx context.Context, name string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	s.logger.Info("Watching deck file", zap.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Deck watcher", zap.Error(err))
		case <-fire:
			fire = nil
			if err := s.Reload(abs); err != nil {
				s.logger.Error("Deck reload failed, keeping previous deck", zap.Error(err))
				continue
			}
			s.logger.Info("Deck reloaded", zap.String("variant", s.Deck().Variant))
		}
	}
}
