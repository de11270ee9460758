// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability declares the pluggable feature surfaces the dispatcher
// routes into. Each capability may be absent; the dispatcher answers with a
// fixed message instead of failing when one is missing.
package capability

import "context"

// Summarizer produces a summary of the page currently shown in the browser.
type Summarizer interface {
	SummarizeActivePage(ctx context.Context) (string, error)
}

// Translator translates the page currently shown in the browser.
type Translator interface {
	// TranslateActivePage translates into targetLang ("ja" or "en").
	TranslateActivePage(ctx context.Context, targetLang string) (string, error)
}

// WebSearcher runs a web search or navigation for the given query and
// returns a short confirmation or result text.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// XCommand executes an X automation instruction.
type XCommand interface {
	Execute(ctx context.Context, instruction string) (string, error)
}

// Chatter answers a free-form message with the local model.
type Chatter interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Registry holds whatever capabilities were wired at startup. Nil fields
// mean the capability is unavailable.
type Registry struct {
	Summarizer  Summarizer
	Translator  Translator
	WebSearcher WebSearcher
	XCommand    XCommand
	Chatter     Chatter
}
