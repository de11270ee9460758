// lumen - local AI backend for the Mindra browser shell.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/capability"
	"github.com/jeranaias/lumen/internal/config"
	"github.com/jeranaias/lumen/internal/dispatch"
	"github.com/jeranaias/lumen/internal/history"
	"github.com/jeranaias/lumen/internal/lifecycle"
	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/page"
	"github.com/jeranaias/lumen/internal/server"
	"github.com/jeranaias/lumen/internal/settings"
	"github.com/jeranaias/lumen/internal/sidebar"
	"github.com/jeranaias/lumen/internal/status"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// modelChat adapts the raw client to the capability surface: plain chat with
// the currently active model and no history.
type modelChat struct {
	client    *ollama.Client
	lifecycle *lifecycle.Manager
}

func (m modelChat) Ask(ctx context.Context, message string) (string, error) {
	if res := m.lifecycle.EnsureReady(ctx); !res.OK {
		return "", &ollama.ClientError{Kind: res.ErrorType, Message: res.Error}
	}
	return m.client.Chat(ctx, m.lifecycle.CurrentModel(), message, nil)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	log, err := logging.New(dataDir)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Close()
	log.Info("lumen starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("data_dir", dataDir))

	if err := logging.RemoveOldLogs(log.Dir(), cfg.Logging.RetentionDays); err != nil {
		log.Warn("log sweep failed", zap.Error(err))
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.AI.BaseURL,
		DefaultModel: cfg.AI.DefaultModel,
		Timeout:      cfg.AI.Timeout(),
	})

	statusStore := status.NewStore(dataDir, cfg.AI.DefaultModel, log)
	settingsStore := settings.NewStore(dataDir, cfg.AI.DefaultModel, log)
	historyStore := history.NewStore(dataDir, log)
	defer historyStore.Close()

	manager := lifecycle.NewManager(client, statusStore, settingsStore, log)

	watchDone := make(chan struct{})
	defer close(watchDone)
	if changes, err := statusStore.Watch(watchDone); err != nil {
		log.Warn("status watch unavailable", zap.Error(err))
	} else {
		go func() {
			for st := range changes {
				log.Info("model status changed",
					zap.String("model", st.Model),
					zap.Bool("downloading", st.Downloading),
					zap.Bool("downloaded", st.Downloaded),
					zap.String("last_error_type", string(st.LastErrorType)))
			}
		}()
	}

	pages := page.NewCache()
	caps := &capability.Registry{
		Summarizer: page.NewSummarizer(pages, client, manager),
		Translator: page.NewTranslator(pages, client, manager),
		Chatter:    modelChat{client: client, lifecycle: manager},
		// Web and X automation run inside the shell, not here. The
		// dispatcher answers with its fixed messages until the shell
		// registers handlers through a future bridge surface.
	}
	dispatcher := dispatch.New(caps, log)

	// The controller serializes sends: a second chat turn arriving while one
	// is generating gets a busy answer instead of a concurrent dispatch.
	controller := sidebar.NewController(manager, dispatcher, nil, settingsStore, log)

	bridge := server.New(cfg.Bridge.Addr, manager, controller, pages, historyStore, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bridge.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := bridge.Shutdown(context.Background()); err != nil {
			log.Error("bridge shutdown failed", zap.Error(err))
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
	}

	if err := historyStore.Flush(); err != nil {
		log.Error("history flush failed", zap.Error(err))
	}
	log.Info("lumen stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lumen:", err)
		os.Exit(1)
	}
}
