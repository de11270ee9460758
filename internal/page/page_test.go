// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package page

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lumen/internal/ollama"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ActivePageText(context.Context) (string, error) {
	return s.text, s.err
}

type stubChat struct {
	gotModel   string
	gotMessage string
	reply      string
	err        error
}

func (s *stubChat) Chat(_ context.Context, model, message string, _ []ollama.Message) (string, error) {
	s.gotModel = model
	s.gotMessage = message
	return s.reply, s.err
}

type stubModels struct{ model string }

func (s stubModels) CurrentModel() string { return s.model }

func TestCleanBody_StripsReferenceTails(t *testing.T) {
	body := "本文その1。\n本文その2。\n参考文献\n[1] なんとか\n外部リンク\nhttp://example.com"
	got := cleanBody(body)
	assert.Equal(t, "本文その1。\n本文その2。", got)
}

func TestCleanBody_StripsTableOfContents(t *testing.T) {
	body := "導入部。\n目次\n1 歴史\n2 概要\n\n歴史の本文。"
	got := cleanBody(body)
	assert.NotContains(t, got, "1 歴史")
	assert.Contains(t, got, "歴史の本文。")
	assert.Contains(t, got, "導入部。")
}

func TestSummarize_BuildsPromptWithCleanedBody(t *testing.T) {
	chat := &stubChat{reply: "要約結果"}
	s := NewSummarizer(
		stubExtractor{text: "本文です。\n脚注\nごみ"},
		chat,
		stubModels{model: "qwen2.5:7b-instruct"},
	)

	got, err := s.SummarizeActivePage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "要約結果", got)
	assert.Equal(t, "qwen2.5:7b-instruct", chat.gotModel)
	assert.Contains(t, chat.gotMessage, "本文です。")
	assert.NotContains(t, chat.gotMessage, "ごみ")
	assert.True(t, strings.Contains(chat.gotMessage, "日本語だけ"))
}

func TestSummarize_EmptyPage(t *testing.T) {
	s := NewSummarizer(stubExtractor{text: "   "}, &stubChat{}, stubModels{})
	_, err := s.SummarizeActivePage(context.Background())
	assert.ErrorIs(t, err, ErrNoPageText)
}

func TestSummarize_ExtractorError(t *testing.T) {
	boom := errors.New("webview gone")
	s := NewSummarizer(stubExtractor{err: boom}, &stubChat{}, stubModels{})
	_, err := s.SummarizeActivePage(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ja", "ja"},
		{"en", "en"},
		{"EN", "en"},
		{"jp", "ja"},
		{"japanese", "ja"},
		{"english", "en"},
		{"", "ja"},
		{"fr", "ja"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeLang(tt.in), tt.in)
	}
}

func TestTranslate_PromptTargetsLanguage(t *testing.T) {
	chat := &stubChat{reply: "translated"}
	tr := NewTranslator(stubExtractor{text: "原文テキスト"}, chat, stubModels{model: "m"})

	got, err := tr.TranslateActivePage(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "translated", got)
	assert.Contains(t, chat.gotMessage, "自然な英語")
	assert.Contains(t, chat.gotMessage, "原文テキスト")

	_, err = tr.TranslateActivePage(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, chat.gotMessage, "自然な日本語")
}

func TestTranslate_EmptyPage(t *testing.T) {
	tr := NewTranslator(stubExtractor{text: ""}, &stubChat{}, stubModels{})
	_, err := tr.TranslateActivePage(context.Background(), "ja")
	assert.ErrorIs(t, err, ErrNoPageText)
}

func TestCache_EmptyUntilPushed(t *testing.T) {
	c := NewCache()

	_, err := c.ActivePageText(context.Background())
	assert.ErrorIs(t, err, ErrNoPageText)

	c.SetActivePage("https://example.com/", "Example", "本文")
	text, err := c.ActivePageText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "本文", text)
	assert.Equal(t, "https://example.com/", c.ActivePage().URL)
}

func TestCache_FeedsSummarizer(t *testing.T) {
	c := NewCache()
	c.SetActivePage("https://example.com/", "Example", "キャッシュされた本文。")

	chat := &stubChat{reply: "要約"}
	s := NewSummarizer(c, chat, stubModels{model: "m"})

	_, err := s.SummarizeActivePage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, chat.gotMessage, "キャッシュされた本文。")
}

func TestTranslate_ChatErrorPropagates(t *testing.T) {
	boom := errors.New("model down")
	tr := NewTranslator(stubExtractor{text: "text"}, &stubChat{err: boom}, stubModels{})
	_, err := tr.TranslateActivePage(context.Background(), "ja")
	assert.ErrorIs(t, err, boom)
}
