// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings persists the user-facing settings document, including the
// model history (most-recent-first, deduplicated) and the auto web mode flag
// consumed by the sidebar.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/util"
)

const settingsFileName = "settings.json"

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is the persisted settings structure.
type Document struct {
	General GeneralSettings `json:"general"`
	LLM     LLMSettings     `json:"llm"`
	AI      AISettings      `json:"ai"`
}

// GeneralSettings holds browser shell preferences. Kept for round-trip
// compatibility with documents written by the UI layer.
type GeneralSettings struct {
	Theme         string `json:"theme"`
	EnableAdblock bool   `json:"enableAdblock"`
	EnablePopups  bool   `json:"enablePopups"`
}

// LLMSettings holds local model preferences.
type LLMSettings struct {
	Enabled      bool     `json:"enabled"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"maxTokens"`
	Model        string   `json:"model"`
	ModelHistory []string `json:"modelHistory"`
}

// AISettings holds sidebar behavior flags.
type AISettings struct {
	// AutoWebMode routes every send straight to web search, bypassing the
	// model readiness gate.
	AutoWebMode bool `json:"autoWebMode"`
}

// defaultDocument returns the baseline settings for the given default model.
func defaultDocument(defaultModel string) Document {
	return Document{
		General: GeneralSettings{
			Theme:         "cute",
			EnableAdblock: true,
			EnablePopups:  false,
		},
		LLM: LLMSettings{
			Enabled:      true,
			Temperature:  0.7,
			MaxTokens:    1024,
			Model:        defaultModel,
			ModelHistory: []string{defaultModel},
		},
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the settings document.
type Store struct {
	mu           sync.Mutex
	path         string
	defaultModel string
	log          *logging.Logger
}

// NewStore creates a settings store under the given data directory.
func NewStore(dataDir, defaultModel string, log *logging.Logger) *Store {
	return &Store{
		path:         filepath.Join(dataDir, settingsFileName),
		defaultModel: defaultModel,
		log:          log,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current document, merged over defaults and normalized.
// A missing or corrupt file yields defaults.
func (s *Store) Load() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() Document {
	doc := defaultDocument(s.defaultModel)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.normalize(doc)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("settings file corrupt, using defaults",
			zap.String("path", s.path), zap.Error(err))
		return s.normalize(defaultDocument(s.defaultModel))
	}
	return s.normalize(doc)
}

// Save normalizes and persists the document atomically.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc Document) error {
	doc = s.normalize(doc)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.path, data, 0644)
}

// Reset removes the persisted document; the next Load returns defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// normalize keeps model and model history coherent: the active model always
// leads the history, the history stays deduplicated, and an empty model
// falls back to the history head or the configured default.
func (s *Store) normalize(doc Document) Document {
	switch {
	case doc.LLM.Model != "":
	case len(doc.LLM.ModelHistory) > 0:
		doc.LLM.Model = doc.LLM.ModelHistory[0]
	default:
		doc.LLM.Model = s.defaultModel
	}

	doc.LLM.ModelHistory = pushFront(doc.LLM.ModelHistory, doc.LLM.Model)
	return doc
}

// pushFront inserts name at the front of history, removing any existing
// occurrence. Empty names are ignored.
func pushFront(history []string, name string) []string {
	if name == "" {
		return history
	}
	out := make([]string, 0, len(history)+1)
	out = append(out, name)
	for _, h := range history {
		if h != name && h != "" {
			out = append(out, h)
		}
	}
	return out
}

// =============================================================================
// CONVENIENCE ACCESSORS
// =============================================================================

// RecordModel pushes name to the front of the model history (deduplicated)
// and makes it the active model.
func (s *Store) RecordModel(name string) error {
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadLocked()
	doc.LLM.Model = name
	doc.LLM.ModelHistory = pushFront(doc.LLM.ModelHistory, name)
	return s.saveLocked(doc)
}

// ModelHistory returns the persisted model history, most recent first.
func (s *Store) ModelHistory() []string {
	return s.Load().LLM.ModelHistory
}

// AutoWebMode returns the persisted auto web mode flag.
func (s *Store) AutoWebMode() bool {
	return s.Load().AI.AutoWebMode
}

// SetAutoWebMode persists the auto web mode flag.
func (s *Store) SetAutoWebMode(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadLocked()
	doc.AI.AutoWebMode = enabled
	return s.saveLocked(doc)
}
