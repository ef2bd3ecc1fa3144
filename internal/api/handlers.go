package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/services"
)

// maxBodyBytes bounds JSON request bodies; uploads use maxUploadBytes.
const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

type Server struct {
	DB         *sql.DB
	Remote     remote.Store
	Grammar    services.GrammarService
	QuickLearn services.QuickLearnService
	Exercises  services.ExerciseService
	Imports    services.ImportService
	Notices    services.NoticeService

	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// respond writes v, or the error when err is set.
func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		logger.FromContext(r.Context()).Debug("invalid request body: %v", err)
		return errors.NewBadRequestError("invalid JSON body")
	}
	return nil
}

// requireConfirm guards destructive routes behind ?confirm=true.
func requireConfirm(r *http.Request) error {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !ok {
		return errors.NewBadRequestError("this action needs confirm=true")
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}
