package api

import (
	"net/http"

	"github.com/vytor/bunpo/internal/services"
)

type optionRequest struct {
	Option int `json:"option"`
}

type tileRequest struct {
	Tile int `json:"tile"`
}

type fillRequest struct {
	Answer string `json:"answer"`
}

// handlePendingSession reports an unfinished session, or null.
func (s *Server) handlePendingSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.QuickLearn.Pending(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": summary})
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.QuickLearn.Discard(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var opts services.StartOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.QuickLearn.Start(r.Context(), opts)
	respond(w, r, view, err)
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.QuickLearn.Resume(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleNextStep(w http.ResponseWriter, r *http.Request) {
	view, err := s.QuickLearn.Next(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.QuickLearn.Choose(r.Context(), req.Option)
	respond(w, r, view, err)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req tileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.QuickLearn.Match(r.Context(), req.Tile)
	respond(w, r, view, err)
}

func (s *Server) handleMatchHint(w http.ResponseWriter, r *http.Request) {
	hint, err := s.QuickLearn.PairHint(r.Context())
	respond(w, r, hint, err)
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.QuickLearn.SubmitFill(r.Context(), req.Answer)
	respond(w, r, view, err)
}

func (s *Server) handleFillHint(w http.ResponseWriter, r *http.Request) {
	view, err := s.QuickLearn.FillHint(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	view, err := s.QuickLearn.Skip(r.Context())
	respond(w, r, view, err)
}
