package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/bunpo/internal/models"
)

func (s *Server) handleListGrammar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.Grammar.List(r.Context(), models.GrammarFilter{
		Query:  q.Get("q"),
		Status: q.Get("status"),
		Level:  q.Get("level"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries, "total": len(entries)})
}

// handleGetGrammar returns the entry with its rendered detail view.
func (s *Server) handleGetGrammar(w http.ResponseWriter, r *http.Request) {
	detail, err := s.Grammar.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateGrammar(w http.ResponseWriter, r *http.Request) {
	var in models.GrammarInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	entry, err := s.Grammar.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/grammar/"+entry.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateGrammar(w http.ResponseWriter, r *http.Request) {
	var patch models.GrammarPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		handleError(w, r, err)
		return
	}
	entry, err := s.Grammar.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.Status `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Grammar.SetStatus(r.Context(), id, body.Status); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

func (s *Server) handleDeleteGrammar(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Grammar.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.Grammar.Levels(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
}

// handleReload forces a fresh load from the remote store.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Grammar.Load(r.Context(), true)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": len(snap.Entries)})
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Grammar.ClearAll(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.Grammar.ExportAll(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	name := fmt.Sprintf("grammar-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
