// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"errors"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes inference failures for the UI layer. The string
// values are persisted in the model status file, so they must stay stable.
type ErrorKind string

const (
	// KindServerUnreachable covers transport failures: connection refused,
	// unknown host, and timeouts.
	KindServerUnreachable ErrorKind = "server-unreachable"

	// KindModelNotFound means the server answered but the named model is
	// not installed.
	KindModelNotFound ErrorKind = "model-not-found"

	// KindEmptyResponse means a chat call succeeded at the HTTP level but
	// carried no usable message content.
	KindEmptyResponse ErrorKind = "empty-response"

	// KindUnknown is everything else; the original failure text is kept.
	KindUnknown ErrorKind = "unknown"
)

// ClientError represents an error from the inference client.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Fixed user-facing messages per kind. Unknown keeps the original failure
// text when one is available.
const (
	msgServerUnreachable = "Ollama サーバーに接続できないみたい。Ollama が起動しているか確認してね。"
	msgModelNotFound     = "指定されたモデルが Ollama に存在しないみたい。「ollama pull xxx」で取得してから試してね。"
	msgEmptyResponse     = "AI の応答が空だったよ。"
	msgUnknownFallback   = "不明なエラーが発生したよ。"
)

// Classified is the result of error classification: a stable kind plus the
// user-facing message for it.
type Classified struct {
	Kind    ErrorKind
	Message string
}

// ClassifyError maps any failure to a Classified result. Total over all
// inputs: a nil error classifies as unknown with the fallback message.
//
// Matching is substring-based on the lower-cased failure text:
//   - connection refused / no such host / failed to fetch / timeout
//     -> server-unreachable
//   - "model" together with "not found" -> model-not-found
//   - otherwise -> unknown, original text preserved
func ClassifyError(err error) Classified {
	var ce *ClientError
	if errors.As(err, &ce) {
		// Already-classified kinds keep their fixed messages.
		switch ce.Kind {
		case KindServerUnreachable:
			return Classified{Kind: KindServerUnreachable, Message: msgServerUnreachable}
		case KindModelNotFound:
			return Classified{Kind: KindModelNotFound, Message: msgModelNotFound}
		case KindEmptyResponse:
			return Classified{Kind: KindEmptyResponse, Message: msgEmptyResponse}
		}
	}

	msg := ""
	if err != nil {
		msg = strings.ToLower(err.Error())
	}

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "econnrefused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "failed to fetch") ||
		strings.Contains(msg, "timeout") {
		return Classified{Kind: KindServerUnreachable, Message: msgServerUnreachable}
	}

	if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
		return Classified{Kind: KindModelNotFound, Message: msgModelNotFound}
	}

	if err != nil && err.Error() != "" {
		return Classified{Kind: KindUnknown, Message: err.Error()}
	}
	return Classified{Kind: KindUnknown, Message: msgUnknownFallback}
}

// IsKind reports whether err is a ClientError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
