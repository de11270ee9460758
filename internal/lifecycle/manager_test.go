// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/settings"
	"github.com/jeranaias/lumen/internal/status"
)

const defaultModel = "qwen2.5:7b-instruct"

type fixture struct {
	manager  *Manager
	status   *status.Store
	settings *settings.Store
}

func newFixture(t *testing.T, handler http.HandlerFunc) (*fixture, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      srv.URL,
		DefaultModel: defaultModel,
		Timeout:      5 * time.Second,
	})
	st := status.NewStore(dir, defaultModel, nil)
	set := settings.NewStore(dir, defaultModel, nil)
	return &fixture{
		manager:  NewManager(client, st, set, nil),
		status:   st,
		settings: set,
	}, srv
}

func okHandler(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Write([]byte(`{}`))
	}
}

func notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}
}

func TestPreload_SuccessUpdatesStatus(t *testing.T) {
	f, _ := newFixture(t, okHandler(nil))

	res := f.manager.Preload(context.Background(), "")
	require.True(t, res.OK)
	assert.Equal(t, defaultModel, res.Model)

	st := f.status.Read()
	assert.True(t, st.Downloaded)
	assert.False(t, st.Downloading)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.LastPreloadAt)
	assert.WithinDuration(t, time.Now().UTC(), *st.LastPreloadAt, time.Minute)
}

func TestPreload_FailureRecordsClassifiedError(t *testing.T) {
	f, _ := newFixture(t, notFoundHandler())

	res := f.manager.Preload(context.Background(), "nope")
	require.False(t, res.OK)
	assert.Equal(t, ollama.KindModelNotFound, res.ErrorType)

	st := f.status.Read()
	assert.False(t, st.Downloaded)
	assert.False(t, st.Downloading)
	assert.Equal(t, ollama.KindModelNotFound, st.LastErrorType)
	assert.NotEmpty(t, st.LastError)
}

func TestPreload_ServerUnreachable(t *testing.T) {
	f, srv := newFixture(t, okHandler(nil))
	srv.Close()

	res := f.manager.Preload(context.Background(), "")
	require.False(t, res.OK)
	assert.Equal(t, ollama.KindServerUnreachable, res.ErrorType)
}

func TestEnsureReady_SkipsWhenAlreadyDownloaded(t *testing.T) {
	var calls atomic.Int32
	f, _ := newFixture(t, okHandler(&calls))

	require.True(t, f.manager.Preload(context.Background(), "").OK)
	require.Equal(t, int32(1), calls.Load())

	res := f.manager.EnsureReady(context.Background())
	require.True(t, res.OK)
	assert.Equal(t, int32(1), calls.Load(), "no second priming request expected")
}

func TestEnsureReady_PreloadsWhenNotDownloaded(t *testing.T) {
	var calls atomic.Int32
	f, _ := newFixture(t, okHandler(&calls))

	res := f.manager.EnsureReady(context.Background())
	require.True(t, res.OK)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSwitchModel_SuccessRecordsHistory(t *testing.T) {
	var gotModel atomic.Value
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollama.GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel.Store(req.Model)
		w.Write([]byte(`{}`))
	})

	res := f.manager.SwitchModel(context.Background(), "llama3.2:3b")
	require.True(t, res.OK)
	assert.Equal(t, "llama3.2:3b", gotModel.Load())

	assert.Equal(t, "llama3.2:3b", f.status.Read().Model)
	assert.Equal(t, []string{"llama3.2:3b", defaultModel}, f.settings.ModelHistory())
}

func TestSwitchModel_FailureRollsBack(t *testing.T) {
	fail := atomic.Bool{}
	f, _ := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			notFoundHandler()(w, r)
			return
		}
		w.Write([]byte(`{}`))
	})

	// Establish a working baseline model first.
	require.True(t, f.manager.Preload(context.Background(), "").OK)

	fail.Store(true)
	res := f.manager.SwitchModel(context.Background(), "nope:latest")
	require.False(t, res.OK)
	assert.Equal(t, ollama.KindModelNotFound, res.ErrorType)

	st := f.status.Read()
	assert.Equal(t, defaultModel, st.Model, "model must roll back")
	assert.True(t, st.Downloaded, "previous downloaded state must be restored")
	assert.False(t, st.Downloading)
	assert.NotContains(t, f.settings.ModelHistory(), "nope:latest")
}

func TestSwitchModel_EmptyNameRejected(t *testing.T) {
	f, _ := newFixture(t, okHandler(nil))

	res := f.manager.SwitchModel(context.Background(), "")
	require.False(t, res.OK)
	assert.Equal(t, ollama.KindUnknown, res.ErrorType)
}
