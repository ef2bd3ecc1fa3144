package api

import (
	"net/http"

	"github.com/vytor/bunpo/internal/errors"
)

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Grammar.Progress(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLearnedToday(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Grammar.LearnedToday(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Goal *int `json:"goal"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	if body.Goal == nil {
		handleError(w, r, errors.NewValidationError("goal", "is required"))
		return
	}
	goal, err := s.Grammar.SetDailyGoal(r.Context(), *body.Goal)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// handleNotifications lists background notices newer than ?after.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notices, err := s.Notices.List(r.Context(), int64(queryInt(r, "after", 0)), queryInt(r, "limit", 50))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notices})
}
