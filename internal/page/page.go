// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package page implements the page-level AI features: summarizing and
// translating whatever the browser currently shows. Text extraction is
// delegated to an Extractor so the features work against any page source,
// including tests.
package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/lumen/internal/ollama"
)

// ErrNoPageText reports that the active page yielded no extractable text.
var ErrNoPageText = errors.New("ページのテキストが取得できませんでした")

// Extractor returns the visible text of the active page.
type Extractor interface {
	ActivePageText(ctx context.Context) (string, error)
}

// Chat is the single model call both features need.
type Chat interface {
	Chat(ctx context.Context, model, message string, history []ollama.Message) (string, error)
}

// ModelSource yields the model to run prompts against.
type ModelSource interface {
	CurrentModel() string
}

// tailSections are encyclopedia-style trailing headings. Everything from the
// first occurrence onward is cut before summarizing.
var tailSections = []string{
	"参考文献",
	"脚注",
	"出典",
	"外部リンク",
	"関連項目",
}

// cleanBody trims reference tails and a leading table of contents block.
func cleanBody(text string) string {
	cleaned := text
	for _, section := range tailSections {
		if idx := strings.Index(cleaned, section); idx != -1 {
			cleaned = strings.TrimSpace(cleaned[:idx])
		}
	}
	if idx := strings.Index(cleaned, "目次"); idx != -1 {
		if end := strings.Index(cleaned[idx:], "\n\n"); end != -1 {
			cleaned = cleaned[:idx] + cleaned[idx+end+2:]
		}
	}
	return strings.TrimSpace(cleaned)
}

// ============================================================================
// SUMMARIZER
// ============================================================================

// Summarizer produces Japanese summaries of the active page.
type Summarizer struct {
	extractor Extractor
	chat      Chat
	models    ModelSource
}

// NewSummarizer wires a summarizer over the given extractor and model call.
func NewSummarizer(extractor Extractor, chat Chat, models ModelSource) *Summarizer {
	return &Summarizer{extractor: extractor, chat: chat, models: models}
}

const summarizePromptFormat = `次の文章を **日本語だけ** で要約してください。

▼絶対に守るルール
・最初に「以下は要約です」などの前置き文を書かない
・結論から簡潔に書く
・「参考文献」「脚注」「出典」「外部リンク」は含めない
・本文の要点のみを 5〜8 文でまとめる
・英語は1文字も書かない

▼本文
%s`

// SummarizeActivePage extracts the page text, strips reference tails, and
// asks the model for a Japanese summary.
func (s *Summarizer) SummarizeActivePage(ctx context.Context) (string, error) {
	text, err := s.extractor.ActivePageText(ctx)
	if err != nil {
		return "", err
	}
	cleaned := cleanBody(text)
	if cleaned == "" {
		return "", ErrNoPageText
	}

	prompt := fmt.Sprintf(summarizePromptFormat, cleaned)
	return s.chat.Chat(ctx, s.models.CurrentModel(), prompt, nil)
}

// ============================================================================
// TRANSLATOR
// ============================================================================

// Translator translates the active page into Japanese or English.
type Translator struct {
	extractor Extractor
	chat      Chat
	models    ModelSource
}

// NewTranslator wires a translator over the given extractor and model call.
func NewTranslator(extractor Extractor, chat Chat, models ModelSource) *Translator {
	return &Translator{extractor: extractor, chat: chat, models: models}
}

const translatePromptFormat = `次の文章を %s に翻訳してください。

▼ルール
・元の意味とニュアンスをできるだけ正確に保つ
・箇条書きや見出しは、できる範囲で構造を保つ
・「以下が翻訳です」などの前置きは書かない
・翻訳だけを書いてください

▼原文
%s`

// normalizeLang collapses common language spellings to "ja" or "en",
// defaulting to Japanese for anything unrecognized.
func normalizeLang(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch {
	case l == "ja" || l == "en":
		return l
	case strings.HasPrefix(l, "jp"), strings.HasPrefix(l, "ja"):
		return "ja"
	case strings.HasPrefix(l, "en"):
		return "en"
	default:
		return "ja"
	}
}

// TranslateActivePage extracts the page text and asks the model to translate
// it into targetLang.
func (t *Translator) TranslateActivePage(ctx context.Context, targetLang string) (string, error) {
	text, err := t.extractor.ActivePageText(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoPageText
	}

	langLabel := "自然な日本語"
	if normalizeLang(targetLang) == "en" {
		langLabel = "自然な英語"
	}

	prompt := fmt.Sprintf(translatePromptFormat, langLabel, text)
	return t.chat.Chat(ctx, t.models.CurrentModel(), prompt, nil)
}
