// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch routes classified commands to their capability and turns
// every outcome into user-facing text. Handle never returns an error: missing
// capabilities, failed handlers and even panics all become fixed Japanese
// messages, so the sidebar always has something to show.
package dispatch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/capability"
	"github.com/jeranaias/lumen/internal/intent"
	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/util"
)

// User-facing fallback messages. These are stable strings the UI may match
// on, so they are not composed dynamically.
const (
	msgSummarizeFailed      = "要約できなかった。"
	msgSummarizeUnavailable = "要約機能が使えないよ。"
	msgTranslateFailed      = "翻訳できなかった。"
	msgTranslateUnavailable = "翻訳機能が使えないよ。"
	msgXEmpty               = "Xコマンドの内容が空だよ。"
	msgXUnavailable         = "Xコマンドを処理する機能がまだ読み込まれてないよ。"
	msgWebEmpty             = "内容が空だよ。"
	msgWebUnavailable       = "Web 操作が使えない。"
	msgChatNoResponse       = "AI の応答がなかった。"
	msgChatUnavailable      = "チャット機能が使えなかった。"
	msgInternalError        = "処理中にエラーが起きた。"
)

// Dispatcher routes sidebar input to capabilities.
type Dispatcher struct {
	caps *capability.Registry
	log  *logging.Logger
}

// New creates a dispatcher over the given capability registry.
func New(caps *capability.Registry, log *logging.Logger) *Dispatcher {
	if caps == nil {
		caps = &capability.Registry{}
	}
	return &Dispatcher{caps: caps, log: log}
}

// Handle classifies text and executes the matching capability, returning the
// reply to display. It never returns an error and never panics.
func (d *Dispatcher) Handle(ctx context.Context, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panic", zap.Any("panic", r))
			reply = msgInternalError
		}
	}()

	cmd := intent.Classify(text)
	d.log.Info("dispatching command",
		zap.String("kind", string(cmd.Kind)),
		zap.String("input", util.TruncateRunes(text, 120)))

	switch cmd.Kind {
	case intent.KindSummarize:
		return d.summarize(ctx)
	case intent.KindTranslate:
		return d.translate(ctx, cmd.TargetLang)
	case intent.KindXCommand:
		return d.xCommand(ctx, cmd, text)
	case intent.KindWeb:
		return d.web(ctx, cmd, text)
	default:
		return d.chat(ctx, text)
	}
}

func (d *Dispatcher) summarize(ctx context.Context) string {
	if d.caps.Summarizer == nil {
		return msgSummarizeUnavailable
	}
	summary, err := d.caps.Summarizer.SummarizeActivePage(ctx)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			d.log.Warn("summarize failed", zap.Error(err))
		}
		return msgSummarizeFailed
	}
	return summary
}

func (d *Dispatcher) translate(ctx context.Context, targetLang string) string {
	if d.caps.Translator == nil {
		return msgTranslateUnavailable
	}
	// No explicit target defaults to Japanese.
	if targetLang == "" {
		targetLang = "ja"
	}
	translation, err := d.caps.Translator.TranslateActivePage(ctx, targetLang)
	if err != nil {
		d.log.Warn("translate failed", zap.Error(err))
		return msgTranslateFailed + "：" + err.Error()
	}
	if strings.TrimSpace(translation) == "" {
		return msgTranslateFailed
	}
	return translation
}

// commandPayload returns the extracted payload, falling back to the raw
// input when extraction left nothing.
func commandPayload(cmd intent.Command, original string) string {
	if p := strings.TrimSpace(cmd.Payload); p != "" {
		return p
	}
	if r := strings.TrimSpace(cmd.Raw); r != "" {
		return r
	}
	return strings.TrimSpace(original)
}

func (d *Dispatcher) xCommand(ctx context.Context, cmd intent.Command, original string) string {
	payload := commandPayload(cmd, original)
	if payload == "" {
		return msgXEmpty
	}
	if d.caps.XCommand == nil {
		return msgXUnavailable
	}
	result, err := d.caps.XCommand.Execute(ctx, payload)
	if err != nil {
		d.log.Warn("x command failed", zap.Error(err))
		return msgInternalError
	}
	return result
}

func (d *Dispatcher) web(ctx context.Context, cmd intent.Command, original string) string {
	payload := commandPayload(cmd, original)
	if payload == "" {
		return msgWebEmpty
	}
	if d.caps.WebSearcher == nil {
		return msgWebUnavailable
	}
	result, err := d.caps.WebSearcher.Search(ctx, payload)
	if err != nil {
		d.log.Warn("web search failed", zap.Error(err))
		return msgInternalError
	}
	return result
}

func (d *Dispatcher) chat(ctx context.Context, text string) string {
	if d.caps.Chatter == nil {
		return msgChatUnavailable
	}
	reply, err := d.caps.Chatter.Ask(ctx, text)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			d.log.Warn("chat failed", zap.Error(err))
		}
		return msgChatNoResponse
	}
	return reply
}
