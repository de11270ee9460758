// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package status persists the local model's download/availability state.
//
// Exactly one status record exists per data directory. It is created lazily
// with defaults on first read and only ever overwritten in place through the
// read-merge-write path in Write.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/util"
)

// statusFileName is the JSON document under the data directory.
const statusFileName = "ai-model-status.json"

// =============================================================================
// STATUS RECORD
// =============================================================================

// Status is the persisted model state record.
type Status struct {
	Downloading   bool             `json:"downloading"`
	Downloaded    bool             `json:"downloaded"`
	Model         string           `json:"model"`
	LastPreloadAt *time.Time       `json:"lastPreloadAt"`
	LastError     string           `json:"lastError"`
	LastErrorType ollama.ErrorKind `json:"lastErrorType"`
}

// Patch is a partial status update. Nil fields are left untouched by Write.
type Patch struct {
	Downloading   *bool
	Downloaded    *bool
	Model         *string
	LastPreloadAt *time.Time
	LastError     *string
	LastErrorType *ollama.ErrorKind
}

// Pointer helpers for building patches.

func Bool(v bool) *bool                         { return &v }
func String(v string) *string                   { return &v }
func Time(v time.Time) *time.Time               { return &v }
func Kind(v ollama.ErrorKind) *ollama.ErrorKind { return &v }

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the status record. Writers are serialized by an
// internal mutex; every write re-reads the durable state immediately before
// merging, so the last writer wins at field level.
type Store struct {
	mu           sync.Mutex
	path         string
	defaultModel string
	log          *logging.Logger
}

// NewStore creates a store for the given data directory.
func NewStore(dataDir, defaultModel string, log *logging.Logger) *Store {
	return &Store{
		path:         filepath.Join(dataDir, statusFileName),
		defaultModel: defaultModel,
		log:          log,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// defaults returns the record used when no file exists yet.
func (s *Store) defaults() Status {
	return Status{
		Downloading: false,
		Downloaded:  false,
		Model:       s.defaultModel,
	}
}

// Read returns the current record. A missing file yields defaults; a corrupt
// file is logged and also yields defaults. The model field is backfilled from
// the configured default whenever it is empty.
func (s *Store) Read() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() Status {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.defaults()
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("status file corrupt, using defaults",
			zap.String("path", s.path), zap.Error(err))
		return s.defaults()
	}

	if st.Model == "" {
		st.Model = s.defaultModel
	}
	return st
}

// Write merges patch over the current record and persists the result
// atomically: the file either keeps its previous content or holds the full
// new record, never a partial write. Returns the merged record.
func (s *Store) Write(patch Patch) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.readLocked()

	if patch.Downloading != nil {
		next.Downloading = *patch.Downloading
	}
	if patch.Downloaded != nil {
		next.Downloaded = *patch.Downloaded
	}
	if patch.Model != nil {
		next.Model = *patch.Model
	}
	if patch.LastPreloadAt != nil {
		next.LastPreloadAt = patch.LastPreloadAt
	}
	if patch.LastError != nil {
		next.LastError = *patch.LastError
	}
	if patch.LastErrorType != nil {
		next.LastErrorType = *patch.LastErrorType
	}

	// downloading and downloaded are mutually exclusive; the field the patch
	// asserted wins.
	if next.Downloading && next.Downloaded {
		if patch.Downloading != nil && *patch.Downloading {
			next.Downloaded = false
		} else {
			next.Downloading = false
		}
	}

	if next.Model == "" {
		next.Model = s.defaultModel
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return Status{}, err
	}
	if err := util.AtomicWriteFile(s.path, data, 0644); err != nil {
		return Status{}, err
	}
	return next, nil
}

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// Watch reports status records as the backing file changes, until ctx is
// done. The parent directory is watched because atomic writes replace the
// file by rename. Used by the UI bridge to observe preload progress driven
// from another component.
func (s *Store) Watch(done <-chan struct{}) (<-chan Status, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ch := make(chan Status, 1)
	go func() {
		defer watcher.Close()
		defer close(ch)
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != statusFileName {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case ch <- s.Read():
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("status watch error", zap.Error(err))
			}
		}
	}()
	return ch, nil
}
