// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/lumen/internal/capability"
)

type stubSummarizer struct {
	summary string
	err     error
}

func (s stubSummarizer) SummarizeActivePage(context.Context) (string, error) {
	return s.summary, s.err
}

type stubTranslator struct {
	gotLang     string
	translation string
	err         error
}

func (s *stubTranslator) TranslateActivePage(_ context.Context, lang string) (string, error) {
	s.gotLang = lang
	return s.translation, s.err
}

type stubSearcher struct {
	gotQuery string
	result   string
	err      error
}

func (s *stubSearcher) Search(_ context.Context, query string) (string, error) {
	s.gotQuery = query
	return s.result, s.err
}

type stubChatter struct {
	reply string
	err   error
}

func (s stubChatter) Ask(context.Context, string) (string, error) {
	return s.reply, s.err
}

type panicChatter struct{}

func (panicChatter) Ask(context.Context, string) (string, error) {
	panic("boom")
}

func TestHandle_MissingCapabilities(t *testing.T) {
	d := New(&capability.Registry{}, nil)
	ctx := context.Background()

	assert.Equal(t, msgSummarizeUnavailable, d.Handle(ctx, "要約して"))
	assert.Equal(t, msgTranslateUnavailable, d.Handle(ctx, "翻訳して"))
	assert.Equal(t, msgWebUnavailable, d.Handle(ctx, "猫を検索して"))
	assert.Equal(t, msgXUnavailable, d.Handle(ctx, "x: なにかして"))
	assert.Equal(t, msgChatUnavailable, d.Handle(ctx, "こんにちは"))
}

func TestHandle_SummarizeSuccessAndFailure(t *testing.T) {
	ctx := context.Background()

	d := New(&capability.Registry{Summarizer: stubSummarizer{summary: "概要です"}}, nil)
	assert.Equal(t, "概要です", d.Handle(ctx, "要約して"))

	d = New(&capability.Registry{Summarizer: stubSummarizer{err: errors.New("no page")}}, nil)
	assert.Equal(t, msgSummarizeFailed, d.Handle(ctx, "要約して"))

	d = New(&capability.Registry{Summarizer: stubSummarizer{summary: "  "}}, nil)
	assert.Equal(t, msgSummarizeFailed, d.Handle(ctx, "要約して"))
}

func TestHandle_TranslateDefaultsToJapanese(t *testing.T) {
	tr := &stubTranslator{translation: "翻訳結果"}
	d := New(&capability.Registry{Translator: tr}, nil)

	assert.Equal(t, "翻訳結果", d.Handle(context.Background(), "翻訳して"))
	assert.Equal(t, "ja", tr.gotLang)
}

func TestHandle_TranslateTargetLangAndError(t *testing.T) {
	tr := &stubTranslator{translation: "result"}
	d := New(&capability.Registry{Translator: tr}, nil)

	d.Handle(context.Background(), "英語に翻訳して")
	assert.Equal(t, "en", tr.gotLang)

	tr.err = errors.New("page empty")
	got := d.Handle(context.Background(), "翻訳して")
	assert.Equal(t, msgTranslateFailed+"：page empty", got)
}

func TestHandle_WebSearchPassesExtractedQuery(t *testing.T) {
	ws := &stubSearcher{result: "検索したよ"}
	d := New(&capability.Registry{WebSearcher: ws}, nil)

	assert.Equal(t, "検索したよ", d.Handle(context.Background(), "猫を検索して"))
	assert.Equal(t, "猫", ws.gotQuery)
}

func TestHandle_WebSearchErrorAbsorbed(t *testing.T) {
	ws := &stubSearcher{err: errors.New("browser gone")}
	d := New(&capability.Registry{WebSearcher: ws}, nil)

	assert.Equal(t, msgInternalError, d.Handle(context.Background(), "search: 猫"))
}

func TestHandle_ChatFallback(t *testing.T) {
	d := New(&capability.Registry{Chatter: stubChatter{reply: "やあ！"}}, nil)
	assert.Equal(t, "やあ！", d.Handle(context.Background(), "やあ"))

	d = New(&capability.Registry{Chatter: stubChatter{err: errors.New("down")}}, nil)
	assert.Equal(t, msgChatNoResponse, d.Handle(context.Background(), "やあ"))

	d = New(&capability.Registry{Chatter: stubChatter{reply: ""}}, nil)
	assert.Equal(t, msgChatNoResponse, d.Handle(context.Background(), "やあ"))
}

func TestHandle_PanicBecomesInternalError(t *testing.T) {
	d := New(&capability.Registry{Chatter: panicChatter{}}, nil)
	assert.Equal(t, msgInternalError, d.Handle(context.Background(), "やあ"))
}

func TestNew_NilRegistry(t *testing.T) {
	d := New(nil, nil)
	assert.Equal(t, msgChatUnavailable, d.Handle(context.Background(), "hello"))
}
