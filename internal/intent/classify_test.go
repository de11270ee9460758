// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_EmptyAndChat(t *testing.T) {
	assert.Equal(t, KindChat, Classify("").Kind)
	assert.Equal(t, KindChat, Classify("   ").Kind)
	assert.Equal(t, KindChat, Classify("こんにちは、元気？").Kind)
	assert.Equal(t, KindChat, Classify("tell me a joke").Kind)
}

func TestClassify_Prefixes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    Kind
		payload string
	}{
		{"search_prefix", "search: golang generics", KindWeb, "golang generics"},
		{"search_prefix_upper", "SEARCH:天気", KindWeb, "天気"},
		{"say_prefix", "say: おはよう", KindWeb, "おはよう"},
		{"x_prefix", "x: タイムラインを開いて", KindXCommand, "タイムラインを開いて"},
		{"x_prefix_upper", "X: post hello", KindXCommand, "post hello"},
		{"x_prefix_empty_body", "X:", KindXCommand, ""},
		{"search_prefix_empty_body", "search:", KindWeb, ""},
		{"say_prefix_empty_body", "say:   ", KindWeb, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Classify(tt.input)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.payload, cmd.Payload)
			assert.Equal(t, tt.input, cmd.Raw)
		})
	}
}

func TestClassify_Summarize(t *testing.T) {
	for _, input := range []string{
		"要約",
		"要約して",
		"このページを要約して",
		"ページ要約",
		"本文要約して",
		"記事要約お願い",
		"この記事を要約",
	} {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, KindSummarize, Classify(input).Kind)
		})
	}
}

func TestClassify_Translate(t *testing.T) {
	tests := []struct {
		input  string
		target string
	}{
		{"翻訳して", ""},
		{"このページを翻訳", ""},
		{"英語に翻訳して", "en"},
		{"英語へ翻訳して", "en"},
		{"英訳して", "en"},
		{"日本語に翻訳して", "ja"},
		{"和訳して", "ja"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := Classify(tt.input)
			assert.Equal(t, KindTranslate, cmd.Kind)
			assert.Equal(t, tt.target, cmd.TargetLang)
		})
	}
}

func TestClassify_WebSend(t *testing.T) {
	tests := []struct {
		input   string
		payload string
	}{
		{"おはようって送って", "おはよう"},
		{"了解ですって送信して", "了解です"},
		{"ありがとうって伝えて", "ありがとう"},
		{"こんにちはって言って", "こんにちは"},
		{"やあと言って", "やあ"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := Classify(tt.input)
			assert.Equal(t, KindWeb, cmd.Kind)
			assert.Equal(t, tt.payload, cmd.Payload)
		})
	}
}

func TestClassify_WebSearch(t *testing.T) {
	tests := []struct {
		input   string
		payload string
	}{
		{"猫を検索して", "猫"},
		{"東京の天気を検索", "東京の天気"},
		{"golangのジェネリクスを調べて", "golangのジェネリクス"},
		{"この件を調査して", "この件"},
		{"近くのラーメン屋 検索して", "近くのラーメン屋"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := Classify(tt.input)
			assert.Equal(t, KindWeb, cmd.Kind)
			assert.Equal(t, tt.payload, cmd.Payload)
		})
	}
}

func TestClassify_PrecedencePrefixOverNatural(t *testing.T) {
	// A prefix command containing summarize wording stays a web command.
	cmd := Classify("search: 要約して")
	assert.Equal(t, KindWeb, cmd.Kind)
	assert.Equal(t, "要約して", cmd.Payload)
}

func TestClassify_SummarizeBeforeSearch(t *testing.T) {
	// 検索結果を要約して mentions search wording but ends in summarize form.
	assert.Equal(t, KindSummarize, Classify("検索結果を要約して").Kind)
}

func TestNormalize_FoldsWidthAndWhitespace(t *testing.T) {
	assert.Equal(t, "say:こんにちは", normalize("ｓａｙ：こんにちは"))
	assert.Equal(t, "abc", normalize(" a\tb　c "))
}
