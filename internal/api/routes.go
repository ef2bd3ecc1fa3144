package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/vytor/bunpo/internal/importer"
)

const requestTimeout = 30 * time.Second

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	}).Handler)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if s.RateLimit > 0 {
			r.Use(newRateLimiter(s.RateLimit, s.RateBurst).middleware)
		}

		r.Get("/grammar", s.handleListGrammar)
		r.Post("/grammar", s.handleCreateGrammar)
		r.Get("/grammar/{id}", s.handleGetGrammar)
		r.Patch("/grammar/{id}", s.handleUpdateGrammar)
		r.Put("/grammar/{id}/status", s.handleSetStatus)
		r.Delete("/grammar/{id}", s.handleDeleteGrammar)
		r.Get("/levels", s.handleLevels)

		r.Post("/data/reload", s.handleReload)
		r.Delete("/data", s.handleClearData)
		r.Get("/export", s.handleExport)

		r.Post("/import/json", s.handleImport(importer.FormatJSON))
		r.Post("/import/word", s.handleImport(importer.FormatWord))
		r.Post("/import/sheet", s.handleImport(importer.FormatSheet))
		r.Get("/import/{token}", s.handleImportPlan)
		r.Post("/import/{token}/apply", s.handleApplyImport)

		r.Get("/progress", s.handleProgress)
		r.Get("/progress/today", s.handleLearnedToday)
		r.Put("/progress/goal", s.handleSetGoal)
		r.Get("/notifications", s.handleNotifications)

		r.Route("/quick-learn", func(r chi.Router) {
			r.Get("/", s.handlePendingSession)
			r.Delete("/", s.handleDiscardSession)
			r.Post("/start", s.handleStartSession)
			r.Post("/resume", s.handleResumeSession)
			r.Post("/next", s.handleNextStep)
			r.Post("/choice", s.handleChoose)
			r.Post("/match", s.handleMatch)
			r.Get("/match/hint", s.handleMatchHint)
			r.Post("/fill", s.handleFill)
			r.Post("/fill/hint", s.handleFillHint)
			r.Post("/skip", s.handleSkip)
		})

		r.Route("/exercises", func(r chi.Router) {
			r.Post("/pair-match", s.handleStartPairMatch)
			r.Post("/pair-match/resume", s.handleResumePairMatch)
			r.Post("/pair-match/select", s.handleSelectPairTile)
			r.Get("/pair-match/hint", s.handlePairMatchHint)
			r.Post("/multiple-choice", s.handleStartQuiz)
			r.Post("/multiple-choice/answer", s.handleAnswerQuiz)
			r.Post("/multiple-choice/skip", s.handleSkipQuiz)
			r.Post("/multiple-choice/next", s.handleNextQuiz)
			r.Post("/scramble", s.handleStartScramble)
			r.Post("/scramble/check", s.handleCheckScramble)
		})
	})
	return r
}
