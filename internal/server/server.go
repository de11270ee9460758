// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the AI backend to the browser shell over a loopback
// HTTP bridge.
//
// Endpoints:
//   - GET  /ai/status  - Current model status record
//   - POST /ai/preload - Preload the current model
//   - POST /ai/model   - Switch the active model
//   - POST /ai/chat    - One chat turn through the dispatcher
//   - POST /ai/page    - Push the active page (text extraction is shell-side)
//   - GET  /ai/history - Recent browsing history
//   - GET  /health     - Health check
//
// Every response is a JSON envelope: {"ok":true,...} on success,
// {"ok":false,"error":...,"errorType":...} on failure.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/lumen/internal/history"
	"github.com/jeranaias/lumen/internal/lifecycle"
	"github.com/jeranaias/lumen/internal/logging"
	"github.com/jeranaias/lumen/internal/ollama"
	"github.com/jeranaias/lumen/internal/page"
	"github.com/jeranaias/lumen/internal/sidebar"
	"github.com/jeranaias/lumen/internal/status"
	"github.com/jeranaias/lumen/internal/util"
)

// msgBusy is returned while a previous chat turn is still generating.
const msgBusy = "前の処理がまだ終わってないよ。"

const (
	// maxRequestBodySize caps request bodies (1MB).
	maxRequestBodySize = 1 * 1024 * 1024

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// ChatSender routes one chat turn through the sidebar session controller,
// which serializes sends with its generating gate.
type ChatSender interface {
	Send(ctx context.Context, text string) (string, error)
}

// Server is the loopback bridge.
type Server struct {
	addr       string
	lifecycle  *lifecycle.Manager
	chat       ChatSender
	pages      *page.Cache
	history    *history.Store
	log        *logging.Logger
	httpServer *http.Server
}

// New creates a bridge server. The config layer validates that addr is a
// loopback address before it gets here. pages and hist may be nil; the
// matching endpoints then answer 404.
func New(addr string, lc *lifecycle.Manager, chat ChatSender, pages *page.Cache, hist *history.Store, log *logging.Logger) *Server {
	s := &Server{
		addr:      addr,
		lifecycle: lc,
		chat:      chat,
		pages:     pages,
		history:   hist,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ai/status", s.handleStatus)
	mux.HandleFunc("/ai/preload", s.handlePreload)
	mux.HandleFunc("/ai/model", s.handleModel)
	mux.HandleFunc("/ai/chat", s.handleChat)
	mux.HandleFunc("/ai/page", s.handlePage)
	mux.HandleFunc("/ai/history", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("bridge listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ============================================================================
// ENVELOPES
// ============================================================================

type statusResponse struct {
	OK     bool          `json:"ok"`
	Status status.Status `json:"status"`
}

type resultResponse struct {
	OK        bool             `json:"ok"`
	Model     string           `json:"model,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType ollama.ErrorKind `json:"errorType,omitempty"`
}

type chatResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string, kind ollama.ErrorKind) {
	writeJSON(w, code, resultResponse{OK: false, Error: message, ErrorType: kind})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", ollama.KindUnknown)
		return false
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", ollama.KindUnknown)
		return false
	}
	return true
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Status: s.lifecycle.Status()})
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	res := s.lifecycle.Preload(r.Context(), "")
	writeResult(w, res)
}

type modelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req modelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "model is required", ollama.KindUnknown)
		return
	}
	res := s.lifecycle.SwitchModel(r.Context(), strings.TrimSpace(req.Model))
	writeResult(w, res)
}

// writeResult maps a lifecycle result to the envelope. Failures still return
// HTTP 200: the envelope carries the error so the shell UI does not need to
// branch on status codes.
func writeResult(w http.ResponseWriter, res lifecycle.Result) {
	if res.OK {
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Model: res.Model})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		OK:        false,
		Model:     res.Model,
		Error:     res.Error,
		ErrorType: res.ErrorType,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{OK: false, Error: "message is required"})
		return
	}

	reply, err := s.chat.Send(r.Context(), req.Message)
	if errors.Is(err, sidebar.ErrBusy) {
		writeJSON(w, http.StatusTooManyRequests, chatResponse{OK: false, Error: msgBusy})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, chatResponse{OK: false, Error: err.Error()})
		return
	}

	s.log.Info("chat turn",
		zap.String("preview", util.TruncateWidth(reply, 60)))
	writeJSON(w, http.StatusOK, chatResponse{OK: true, Message: reply})
}

type pageRequest struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// handlePage receives the active page from the shell. The pushed text backs
// summarize and translate; the navigation itself lands in history.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.pages == nil {
		http.NotFound(w, r)
		return
	}
	var req pageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required", ollama.KindUnknown)
		return
	}

	s.pages.SetActivePage(req.URL, req.Title, req.Text)
	if s.history != nil {
		s.history.Add(req.URL, req.Title, req.Source)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type historyResponse struct {
	OK      bool            `json:"ok"`
	Entries []history.Entry `json:"entries"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.history == nil {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries := s.history.Recent(limit)
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{OK: true, Entries: entries})
}
