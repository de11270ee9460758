// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lumen/internal/ollama"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), "qwen2.5:7b-instruct", nil)
}

func TestRead_DefaultsWhenMissing(t *testing.T) {
	s := newTestStore(t)

	st := s.Read()
	assert.False(t, st.Downloading)
	assert.False(t, st.Downloaded)
	assert.Equal(t, "qwen2.5:7b-instruct", st.Model)
	assert.Nil(t, st.LastPreloadAt)
	assert.Empty(t, st.LastError)
}

func TestRead_DefaultsOnCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0644))

	st := s.Read()
	assert.Equal(t, "qwen2.5:7b-instruct", st.Model)
	assert.False(t, st.Downloaded)
}

func TestWrite_MergePreservesUnrelatedFields(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	_, err := s.Write(Patch{
		Downloading:   Bool(true),
		Model:         String("llama3.2:3b"),
		LastPreloadAt: Time(now),
	})
	require.NoError(t, err)

	// A later patch touching only flags must leave model and timestamp alone.
	st, err := s.Write(Patch{Downloading: Bool(false), Downloaded: Bool(true)})
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:3b", st.Model)
	require.NotNil(t, st.LastPreloadAt)
	assert.WithinDuration(t, now, *st.LastPreloadAt, time.Second)
	assert.True(t, st.Downloaded)
	assert.False(t, st.Downloading)
}

func TestWriteThenRead_EqualsMerged(t *testing.T) {
	s := newTestStore(t)

	before := s.Read()
	st, err := s.Write(Patch{
		LastError:     String("boom"),
		LastErrorType: Kind(ollama.KindUnknown),
	})
	require.NoError(t, err)

	want := before
	want.LastError = "boom"
	want.LastErrorType = ollama.KindUnknown
	assert.Equal(t, want, st)
	assert.Equal(t, want, s.Read())
}

func TestWrite_NeverBothDownloadingAndDownloaded(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Write(Patch{Downloaded: Bool(true)})
	require.NoError(t, err)

	st, err := s.Write(Patch{Downloading: Bool(true)})
	require.NoError(t, err)
	assert.True(t, st.Downloading)
	assert.False(t, st.Downloaded, "downloading and downloaded must be exclusive")
}

func TestRoundTrip_AcrossRestart(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "qwen2.5:7b-instruct", nil)

	_, err := s.Write(Patch{Model: String("m")})
	require.NoError(t, err)

	// Simulated process restart: fresh store over the same directory.
	reopened := NewStore(dir, "qwen2.5:7b-instruct", nil)
	assert.Equal(t, "m", reopened.Read().Model)
}

func TestRead_BackfillsMissingModel(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"downloaded":true}`), 0644))

	st := s.Read()
	assert.Equal(t, "qwen2.5:7b-instruct", st.Model)
	assert.True(t, st.Downloaded)
}

func TestWatch_ReportsChanges(t *testing.T) {
	s := newTestStore(t)

	done := make(chan struct{})
	defer close(done)

	ch, err := s.Watch(done)
	require.NoError(t, err)

	_, err = s.Write(Patch{Model: String("watched-model")})
	require.NoError(t, err)

	select {
	case st := <-ch:
		assert.Equal(t, "watched-model", st.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch notification received")
	}
}
