package api

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/importer"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/services"
)

// readUpload returns the uploaded file from a multipart "file" field, or
// the raw body named by ?filename=.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", nil, errors.NewBadRequestError("invalid upload: " + err.Error())
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.NewBadRequestError("missing file field")
		}
		defer file.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, file); err != nil {
			return "", nil, errors.NewBadRequestError("failed to read upload")
		}
		return header.Filename, buf.Bytes(), nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, errors.NewBadRequestError("failed to read upload")
	}
	return r.URL.Query().Get("filename"), data, nil
}

// handleImport parses an upload in the route's format. In merge mode the
// response carries a plan to resolve; in replace mode it is already applied.
func (s *Server) handleImport(format importer.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, data, err := readUpload(w, r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		f := format
		if f == importer.FormatSheet && strings.EqualFold(filepath.Ext(filename), ".csv") {
			f = importer.FormatCSV
		}
		mode := services.ImportMode(r.URL.Query().Get("mode"))
		if v := r.FormValue("mode"); mode == "" && v != "" {
			mode = services.ImportMode(v)
		}

		out, err := s.Imports.Upload(r.Context(), filename, data, f, mode)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleImportPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.Grammar.ImportPlan(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type applyImportRequest struct {
	Decisions map[int]models.ImportDecision `json:"decisions"`
	// All resolves every duplicate without its own decision.
	All models.ImportDecision `json:"all"`
}

func (s *Server) handleApplyImport(w http.ResponseWriter, r *http.Request) {
	var req applyImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	token := chi.URLParam(r, "token")
	decisions := req.Decisions
	if decisions == nil {
		decisions = map[int]models.ImportDecision{}
	}
	if req.All != "" {
		if !req.All.Valid() {
			handleError(w, r, errors.NewValidationError("all", "must be skip, add or update"))
			return
		}
		plan, err := s.Grammar.ImportPlan(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		for _, item := range plan.Items {
			if _, ok := decisions[item.Index]; !ok && item.Existing != nil {
				decisions[item.Index] = req.All
			}
		}
	}

	result, err := s.Grammar.ApplyImport(r.Context(), token, decisions)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
