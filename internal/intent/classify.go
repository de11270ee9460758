// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package intent turns free-form sidebar input into structured commands.
//
// Input is classified into one of five kinds: page summarize, page translate,
// web automation, X automation, or plain chat. Classification looks at
// explicit prefixes first (search:, say:, x:) and then at Japanese natural
// phrasing; anything unmatched falls through to chat.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Kind identifies the command family an input belongs to.
type Kind string

const (
	KindChat      Kind = "chat"
	KindSummarize Kind = "summarize"
	KindTranslate Kind = "translate"
	KindWeb       Kind = "web"
	KindXCommand  Kind = "x"
)

// Command is the structured result of classifying one input line.
type Command struct {
	Kind Kind
	// Raw is the original input, untouched.
	Raw string
	// Payload carries the extracted argument: the search query or message
	// for web commands, the instruction body for X commands. Empty for
	// summarize, translate and chat.
	Payload string
	// TargetLang is "en" or "ja" when a translate command names a target
	// language, empty otherwise.
	TargetLang string
}

// ============================================================================
// NORMALIZATION
// ============================================================================

// normalize prepares text for marker matching: all whitespace (including
// ideographic spaces) is removed, ASCII is lowercased, and half-width and
// full-width variants are folded so ｓａｙ： and say: match the same way.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return width.Fold.String(strings.ToLower(b.String()))
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ============================================================================
// PAYLOAD EXTRACTION
// ============================================================================

// trimCommandTail removes the first matching marker from the end of s, along
// with a trailing を particle left in front of it ("猫を検索して" → "猫").
func trimCommandTail(s string, markers ...string) string {
	t := strings.TrimSpace(s)
	for _, m := range markers {
		if !strings.HasSuffix(t, m) {
			continue
		}
		t = strings.TrimSpace(strings.TrimSuffix(t, m))
		t = strings.TrimSpace(strings.TrimSuffix(t, "を"))
		break
	}
	return t
}

// extractSearchQuery strips search phrasing from the end of the input. Two
// passes: the 検索 family first, then the 調べて family, so combined endings
// like "〜を検索して調べて" still reduce to the query.
func extractSearchQuery(text string) string {
	q := trimCommandTail(text, "検索して", "検索")
	return trimCommandTail(q, "調べて", "調査して")
}

// extractSendMessage strips the quoting tail from "〜って送って" style input
// and returns the message body.
func extractSendMessage(text string) string {
	return trimCommandTail(text,
		"って送って", "って送信して", "って伝えて", "って言って", "と言って")
}

// stripPrefix removes a case-insensitive prefix and returns the trimmed rest
// and whether the prefix matched.
func stripPrefix(text, prefix string) (string, bool) {
	if len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(text[len(prefix):]), true
}

// ============================================================================
// CLASSIFICATION
// ============================================================================

// Classify parses one input line into a structured command.
//
// Precedence:
//  1. empty input → chat
//  2. search: / say: prefixes → web, x: prefix → X automation
//  3. summarize phrasing (要約して, ページ要約, ...)
//  4. translate phrasing (翻訳して, 英訳して, ...) with target detection
//  5. send phrasing (〜って送って, ...) → web with the message body
//  6. search phrasing (〜を検索して, 〜調べて, ...) → web with the query
//  7. everything else → chat
func Classify(raw string) Command {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Command{Kind: KindChat}
	}
	n := normalize(trimmed)

	// Explicit prefixes win over natural phrasing.
	if rest, ok := stripPrefix(trimmed, "search:"); ok {
		return Command{Kind: KindWeb, Raw: raw, Payload: rest}
	}
	if rest, ok := stripPrefix(trimmed, "say:"); ok {
		return Command{Kind: KindWeb, Raw: raw, Payload: rest}
	}
	if rest, ok := stripPrefix(trimmed, "x:"); ok {
		return Command{Kind: KindXCommand, Raw: raw, Payload: rest}
	}

	if n == "要約" || n == "要約して" ||
		strings.HasSuffix(n, "を要約して") ||
		strings.HasSuffix(n, "要約") ||
		containsAny(n, "ページ要約", "本文要約", "記事要約") {
		return Command{Kind: KindSummarize, Raw: raw}
	}

	if strings.Contains(n, "翻訳して") ||
		strings.HasSuffix(n, "翻訳") ||
		containsAny(n, "英訳して", "和訳して") {
		target := ""
		switch {
		case containsAny(n, "英語に翻訳", "英語へ翻訳", "英訳"):
			target = "en"
		case containsAny(n, "日本語に翻訳", "日本語へ翻訳", "和訳"):
			target = "ja"
		}
		return Command{Kind: KindTranslate, Raw: raw, TargetLang: target}
	}

	if strings.HasSuffix(n, "って送って") ||
		strings.HasSuffix(n, "って送信して") ||
		strings.HasSuffix(n, "って伝えて") ||
		strings.HasSuffix(n, "って言って") ||
		strings.HasSuffix(n, "と言って") {
		return Command{Kind: KindWeb, Raw: raw, Payload: extractSendMessage(trimmed)}
	}

	if containsAny(n, "検索して", "を検索", "調べて", "調査して") {
		return Command{Kind: KindWeb, Raw: raw, Payload: extractSearchQuery(trimmed)}
	}

	return Command{Kind: KindChat, Raw: raw}
}
