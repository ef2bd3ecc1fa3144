package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/bunpo/internal/logger"
)

const readyTimeout = 2 * time.Second

// handleHealth returns a liveness probe - always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady checks the local cache. The remote store is reported but does
// not fail readiness, since every operation works from the local cache.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	log := logger.FromContext(ctx)

	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			log.Warn("readiness check failed - database: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
	}

	remoteState := "disabled"
	if s.Remote != nil {
		remoteState = "ok"
		if err := s.Remote.Ping(ctx); err != nil {
			log.Debug("remote store not reachable: %v", err)
			remoteState = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "remote": remoteState})
}
