package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/batch"
	"github.com/dshills/critic/internal/chat"
	"github.com/dshills/critic/internal/ingest"
	"github.com/dshills/critic/internal/review"
)

type modelsResponse struct {
	Selected backend.Model  `json:"selected"`
	Models   []backend.Info `json:"models"`
}

type selectModelRequest struct {
	Model string `json:"model"`
}

type reviewRequest struct {
	Files []review.CodeFile `json:"files"`
}

type reviewResponse struct {
	Item      review.HistoryItem `json:"item"`
	ChatError string             `json:"chatError,omitempty"`
}

type detectRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type detectResponse struct {
	Language string `json:"language"`
}

type historyEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Model     string   `json:"model,omitempty"`
	Files     []string `json:"files"`
	Summary   string   `json:"summary"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Message review.ChatMessage `json:"message"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, modelsResponse{
		Selected: s.app.Model(),
		Models:   s.app.Registry().Describe(),
	})
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	var req selectModelRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.app.SelectModel(backend.Model(req.Model)); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]backend.Model{"selected": s.app.Model()})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.Progress())
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	files := make([]review.CodeFile, 0, len(req.Files))
	for _, f := range req.Files {
		cf, err := s.loader.Paste(f.Name, f.Content, f.Language)
		if err != nil {
			s.writeError(w, pasteStatus(err), err)
			return
		}
		files = append(files, cf)
	}

	res, err := s.app.Review(r.Context(), files)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	resp := reviewResponse{Item: res.Item}
	if res.ChatErr != nil {
		resp.ChatError = res.ChatErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	lang, err := s.app.DetectLanguage(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, detectResponse{Language: lang})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items := s.app.History(r.Context())
	out := make([]historyEntry, 0, len(items))
	for _, item := range items {
		e := historyEntry{
			ID:        item.ID,
			Timestamp: item.Timestamp,
			Model:     item.Model,
			Summary:   item.Review.OverallSummary,
		}
		for _, f := range item.Files {
			e.Files = append(e.Files, f.Name)
		}
		out = append(out, e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.app.HistoryItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.LoadHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	resp := reviewResponse{Item: res.Item}
	if res.ChatErr != nil {
		resp.ChatError = res.ChatErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.app.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.Chat().Snapshot())
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := s.app.Send(r.Context(), req.Message)
	if err != nil {
		if msg.Content != "" {
			// The failure is already part of the transcript.
			s.writeJSON(w, http.StatusBadGateway, chatResponse{Message: msg, Error: err.Error()})
			return
		}
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, chatResponse{Message: msg})
}

// statusFor maps an error onto an HTTP status code.
func statusFor(err error) int {
	var unknown *backend.UnknownBackendError
	var dup *review.DuplicateFileError
	var fileErr *batch.FileError
	var summaryErr *batch.SummaryError

	switch {
	case errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.As(err, &dup), errors.Is(err, review.ErrNoFiles), errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrBusy), errors.Is(err, chat.ErrBusy),
		errors.Is(err, chat.ErrNoSession), errors.Is(err, chat.ErrReset):
		return http.StatusConflict
	case backend.IsNotImplemented(err):
		return http.StatusNotImplemented
	case errors.As(err, &fileErr), errors.As(err, &summaryErr):
		if backend.IsConfigError(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case backend.IsAuthError(err), backend.IsConfigError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// pasteStatus maps a rejected submitted file onto an HTTP status code.
func pasteStatus(err error) int {
	var tooLarge *ingest.FileTooLargeError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
