package api

import (
	"net/http"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/services"
)

type scrambleRequest struct {
	Order []string `json:"order"`
}

func (s *Server) practiceOptions(w http.ResponseWriter, r *http.Request) (services.PracticeOptions, bool) {
	var opts services.PracticeOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		handleError(w, r, err)
		return opts, false
	}
	if opts.Count < 0 {
		handleError(w, r, errors.NewValidationError("count", "cannot be negative"))
		return opts, false
	}
	return opts, true
}

func (s *Server) handleStartPairMatch(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.practiceOptions(w, r)
	if !ok {
		return
	}
	view, err := s.Exercises.StartPairMatch(r.Context(), opts)
	respond(w, r, view, err)
}

func (s *Server) handleResumePairMatch(w http.ResponseWriter, r *http.Request) {
	view, err := s.Exercises.ResumePairMatch(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleSelectPairTile(w http.ResponseWriter, r *http.Request) {
	var req tileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Exercises.SelectPairTile(r.Context(), req.Tile)
	respond(w, r, view, err)
}

func (s *Server) handlePairMatchHint(w http.ResponseWriter, r *http.Request) {
	hint, err := s.Exercises.PairMatchHint(r.Context())
	respond(w, r, hint, err)
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.practiceOptions(w, r)
	if !ok {
		return
	}
	view, err := s.Exercises.StartQuiz(r.Context(), opts)
	respond(w, r, view, err)
}

func (s *Server) handleAnswerQuiz(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Exercises.AnswerQuiz(r.Context(), req.Option)
	respond(w, r, view, err)
}

func (s *Server) handleSkipQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := s.Exercises.SkipQuiz(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleNextQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := s.Exercises.NextQuiz(r.Context())
	respond(w, r, view, err)
}

func (s *Server) handleStartScramble(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.practiceOptions(w, r)
	if !ok {
		return
	}
	view, err := s.Exercises.StartScramble(r.Context(), opts)
	respond(w, r, view, err)
}

func (s *Server) handleCheckScramble(w http.ResponseWriter, r *http.Request) {
	var req scrambleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Exercises.CheckScramble(r.Context(), req.Order)
	respond(w, r, view, err)
}
