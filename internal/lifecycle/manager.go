// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle drives the local model's readiness: lazy preload on first
// use, explicit model switches with rollback, and the durable status record
// the UI polls.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/settings"
	"github.com/jeranaias/lumen/internal/status"
)

// Result reports the outcome of a preload or model switch.
type Result struct {
	OK        bool
	Model     string
	Error     string
	ErrorType ollama.ErrorKind
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager coordinates model preloads. All mutations of the status record go
// through here; a single mutex serializes preloads so two callers cannot
// interleave their status writes.
type Manager struct {
	mu       sync.Mutex
	client   *ollama.Client
	status   *status.Store
	settings *settings.Store
	log      *logging.Logger

	// limiter spaces out priming requests so a UI that retries aggressively
	// cannot hammer the inference server.
	limiter *rate.Limiter
}

// NewManager creates a lifecycle manager over the given client and stores.
func NewManager(client *ollama.Client, st *status.Store, set *settings.Store, log *logging.Logger) *Manager {
	return &Manager{
		client:   client,
		status:   st,
		settings: set,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// CurrentModel returns the model recorded in the status file, falling back to
// the client default when the record is empty.
func (m *Manager) CurrentModel() string {
	st := m.status.Read()
	if st.Model != "" {
		return st.Model
	}
	return m.client.DefaultModel()
}

// Status returns the current durable status record.
func (m *Manager) Status() status.Status {
	return m.status.Read()
}

// =============================================================================
// PRELOAD
// =============================================================================

// EnsureReady preloads the current model only if it is not already marked
// downloaded. The cheap path reads one file and returns.
func (m *Manager) EnsureReady(ctx context.Context) Result {
	st := m.status.Read()
	if st.Downloaded && !st.Downloading {
		return Result{OK: true, Model: st.Model}
	}
	return m.Preload(ctx, "")
}

// Preload primes the given model (or the current one when override is empty)
// by issuing an empty generate request, recording progress and outcome in the
// status file. The write sequence is observable by pollers: downloading
// becomes true with the attempt timestamp before the request is sent, and the
// terminal write carries either downloaded=true or the classified error.
func (m *Manager) Preload(ctx context.Context, override string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preloadLocked(ctx, override)
}

func (m *Manager) preloadLocked(ctx context.Context, override string) Result {
	model := override
	if model == "" {
		model = m.CurrentModel()
	}

	now := time.Now().UTC()
	_, err := m.status.Write(status.Patch{
		Downloading:   status.Bool(true),
		Downloaded:    status.Bool(false),
		Model:         status.String(model),
		LastPreloadAt: status.Time(now),
		LastError:     status.String(""),
		LastErrorType: status.Kind(""),
	})
	if err != nil {
		m.log.Error("failed to record preload start", zap.Error(err))
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return m.failPreload(model, err)
	}

	m.log.Info("preloading model", zap.String("model", model))
	if err := m.client.Generate(ctx, model); err != nil {
		return m.failPreload(model, err)
	}

	if _, err := m.status.Write(status.Patch{
		Downloading:   status.Bool(false),
		Downloaded:    status.Bool(true),
		LastError:     status.String(""),
		LastErrorType: status.Kind(""),
	}); err != nil {
		m.log.Error("failed to record preload success", zap.Error(err))
	}

	m.log.Info("model ready", zap.String("model", model))
	return Result{OK: true, Model: model}
}

// failPreload classifies err, records it in the status file and returns the
// failure result.
func (m *Manager) failPreload(model string, err error) Result {
	info := ollama.ClassifyError(err)
	m.log.Warn("model preload failed",
		zap.String("model", model),
		zap.String("kind", string(info.Kind)),
		zap.Error(err))

	if _, werr := m.status.Write(status.Patch{
		Downloading:   status.Bool(false),
		Downloaded:    status.Bool(false),
		LastError:     status.String(info.Message),
		LastErrorType: status.Kind(info.Kind),
	}); werr != nil {
		m.log.Error("failed to record preload failure", zap.Error(werr))
	}

	return Result{OK: false, Model: model, Error: info.Message, ErrorType: info.Kind}
}

// =============================================================================
// MODEL SWITCH
// =============================================================================

// SwitchModel preloads newModel and makes it the active model. When the
// preload fails the status record is rolled back to the previous model and
// its previous downloaded state, so a typo in a model name cannot strand the
// user on a model that does not exist. A successful switch is pushed to the
// settings model history.
func (m *Manager) SwitchModel(ctx context.Context, newModel string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if newModel == "" {
		return Result{OK: false, Error: "model name is empty", ErrorType: ollama.KindUnknown}
	}

	prev := m.status.Read()

	res := m.preloadLocked(ctx, newModel)
	if !res.OK {
		if _, err := m.status.Write(status.Patch{
			Model:       status.String(prev.Model),
			Downloading: status.Bool(false),
			Downloaded:  status.Bool(prev.Downloaded),
		}); err != nil {
			m.log.Error("failed to roll back model switch", zap.Error(err))
		}
		m.log.Warn("model switch rolled back",
			zap.String("from", prev.Model),
			zap.String("to", newModel))
		return res
	}

	if m.settings != nil {
		if err := m.settings.RecordModel(newModel); err != nil {
			m.log.Error("failed to record model history", zap.Error(err))
		}
	}

	m.log.Info("model switched",
		zap.String("from", prev.Model),
		zap.String("to", newModel))
	return res
}
