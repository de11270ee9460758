// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sidebar holds the AI sidebar's session state: model readiness, the
// conversation transcript, and the routing of user input to the dispatcher
// or straight to web search when auto web mode is on.
package sidebar

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/capability"
	"github.com/jeranaias/lumen/internal/lifecycle"
	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/settings"
)

// ErrBusy is returned when a send arrives while a reply is being generated.
var ErrBusy = errors.New("generation already in progress")

const msgWebUnavailable = "Web 操作が使えない。"

// =============================================================================
// STATE
// =============================================================================

// UIState is the snapshot the UI renders from.
type UIState struct {
	Checking         bool
	ModelReady       bool
	Generating       bool
	ActiveModel      string
	AutoWebMode      bool
	LastErrorKind    ollama.ErrorKind
	LastErrorMessage string
}

// TranscriptEntry is one message in the sidebar conversation.
type TranscriptEntry struct {
	ID      string
	Role    string // "user" or "assistant"
	Content string
	At      time.Time
}

// Dispatcher is the command-routing surface the controller sends through.
type Dispatcher interface {
	Handle(ctx context.Context, text string) string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns one sidebar session. Safe for concurrent use; the
// generating flag serializes sends.
type Controller struct {
	mu         sync.Mutex
	state      UIState
	transcript []TranscriptEntry

	lifecycle  *lifecycle.Manager
	dispatcher Dispatcher
	searcher   capability.WebSearcher
	settings   *settings.Store
	log        *logging.Logger
}

// NewController creates a sidebar controller. The initial auto web mode
// comes from settings.
func NewController(lc *lifecycle.Manager, d Dispatcher, searcher capability.WebSearcher, set *settings.Store, log *logging.Logger) *Controller {
	c := &Controller{
		lifecycle:  lc,
		dispatcher: d,
		searcher:   searcher,
		settings:   set,
		log:        log,
	}
	if set != nil {
		c.state.AutoWebMode = set.AutoWebMode()
	}
	return c
}

// State returns a snapshot of the current UI state.
func (c *Controller) State() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the conversation so far.
func (c *Controller) Transcript() []TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptEntry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Controller) append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, TranscriptEntry{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		At:      time.Now(),
	})
}

// =============================================================================
// STATUS CHECK
// =============================================================================

// RunStatusCheck brings the model to readiness, preloading it if needed, and
// returns the resulting state. A success is recorded in the settings model
// history so the model picker stays current.
func (c *Controller) RunStatusCheck(ctx context.Context) UIState {
	c.mu.Lock()
	c.state.Checking = true
	c.mu.Unlock()

	res := c.lifecycle.EnsureReady(ctx)

	c.mu.Lock()
	c.state.Checking = false
	c.state.ActiveModel = res.Model
	if res.OK {
		c.state.ModelReady = true
		c.state.LastErrorKind = ""
		c.state.LastErrorMessage = ""
	} else {
		c.state.ModelReady = false
		c.state.LastErrorKind = res.ErrorType
		c.state.LastErrorMessage = res.Error
	}
	st := c.state
	c.mu.Unlock()

	if res.OK && c.settings != nil {
		if err := c.settings.RecordModel(res.Model); err != nil {
			c.log.Error("failed to record model history", zap.Error(err))
		}
	}
	return st
}

// =============================================================================
// SEND
// =============================================================================

// Send routes one line of user input and returns the assistant reply. Both
// sides of the exchange are appended to the transcript. Returns ErrBusy when
// a previous send is still generating; empty input is a no-op.
//
// When auto web mode is on the input goes straight to web search and the
// model readiness gate is skipped entirely.
func (c *Controller) Send(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}

	c.mu.Lock()
	if c.state.Generating {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.state.Generating = true
	autoWeb := c.state.AutoWebMode
	ready := c.state.ModelReady
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Generating = false
		c.mu.Unlock()
	}()

	c.append("user", trimmed)

	var reply string
	switch {
	case autoWeb:
		reply = c.webSearch(ctx, trimmed)
	case !ready:
		if st := c.RunStatusCheck(ctx); !st.ModelReady {
			reply = st.LastErrorMessage
			break
		}
		reply = c.dispatcher.Handle(ctx, trimmed)
	default:
		reply = c.dispatcher.Handle(ctx, trimmed)
	}

	c.append("assistant", reply)
	return reply, nil
}

func (c *Controller) webSearch(ctx context.Context, query string) string {
	if c.searcher == nil {
		return msgWebUnavailable
	}
	result, err := c.searcher.Search(ctx, query)
	if err != nil {
		c.log.Warn("auto web search failed", zap.Error(err))
		return msgWebUnavailable
	}
	return result
}

// SetAutoWebMode flips auto web mode and persists it.
func (c *Controller) SetAutoWebMode(enabled bool) error {
	c.mu.Lock()
	c.state.AutoWebMode = enabled
	c.mu.Unlock()

	if c.settings == nil {
		return nil
	}
	return c.settings.SetAutoWebMode(enabled)
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// StatusMsg carries the state after a readiness check.
type StatusMsg struct {
	State UIState
}

// ReplyMsg carries the outcome of a send.
type ReplyMsg struct {
	Reply string
	Err   error
}

// StatusTickMsg is sent periodically to refresh model status.
type StatusTickMsg struct {
	Time time.Time
}

// StatusTickCmd returns a command that ticks the status poller.
func StatusTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusTickMsg{Time: t}
	})
}

// CheckStatusCmd runs a readiness check off the UI thread.
func (c *Controller) CheckStatusCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return StatusMsg{State: c.RunStatusCheck(ctx)}
	}
}

// SendCmd routes one input line off the UI thread.
func (c *Controller) SendCmd(ctx context.Context, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := c.Send(ctx, text)
		return ReplyMsg{Reply: reply, Err: err}
	}
}
