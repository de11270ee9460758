// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists the browsing history shared with the shell UI.
//
// Entries are kept in memory and flushed to history.json with a short delay
// so rapid navigation batches into one write. The file is a plain JSON array,
// oldest entry first.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/util"
)

const (
	historyFileName = "history.json"

	// saveDelay batches consecutive writes.
	saveDelay = 2 * time.Second

	// maxEntries bounds the file; oldest entries are evicted first.
	maxEntries = 5000
)

// Entry is one visited page.
type Entry struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	TS     int64  `json:"ts"`
	Source string `json:"source"`
}

// Store holds the in-memory history and its delayed writer.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	timer   *time.Timer
	log     *logging.Logger
}

// NewStore loads history.json from the data directory. A missing or corrupt
// file starts empty.
func NewStore(dataDir string, log *logging.Logger) *Store {
	s := &Store{
		path: filepath.Join(dataDir, historyFileName),
		log:  log,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("history file corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	s.entries = entries
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Add appends a visit. Entries without a URL are ignored, and a repeat of the
// latest URL with the same title is suppressed so reload storms do not pile
// up. The write to disk is scheduled, not immediate.
func (s *Store) Add(url, title, source string) {
	if url == "" {
		return
	}
	if source == "" {
		source = "webview"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 {
		last := s.entries[n-1]
		if last.URL == url && last.Title == title {
			return
		}
	}

	s.entries = append(s.entries, Entry{
		ID:     uuid.NewString(),
		URL:    url,
		Title:  title,
		TS:     time.Now().UnixMilli(),
		Source: source,
	})

	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}

	s.scheduleSaveLocked()
}

// Recent returns up to limit entries, newest first. limit <= 0 means the
// default of 200.
func (s *Store) Recent(limit int) []Entry {
	if limit <= 0 {
		limit = 200
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if n == 0 {
		return nil
	}
	if limit > n {
		limit = n
	}

	out := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.entries[n-1-i]
	}
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// scheduleSaveLocked arms the delayed flush, collapsing into a pending timer.
func (s *Store) scheduleSaveLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(saveDelay, func() {
		if err := s.Flush(); err != nil {
			s.log.Error("history flush failed", zap.Error(err))
		}
	})
}

// Flush writes the history to disk immediately and cancels any pending
// delayed write.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	entries := s.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.path, data, 0644)
}

// Close flushes pending writes. Call on shutdown.
func (s *Store) Close() error {
	return s.Flush()
}
