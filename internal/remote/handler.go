package remote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/bunpo/internal/logger"
)

const maxDocumentBytes = 4 << 20

// NewHandler serves store over HTTP so another process can use it through
// HTTPStore.
func NewHandler(store Store) http.Handler {
	h := &handler{store: store}
	r := chi.NewRouter()
	r.Get("/ping", h.ping)
	r.Post("/batch", h.commit)
	r.Route("/collections/{collection}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.set)
		r.Delete("/{id}", h.delete)
	})
	return r
}

type handler struct {
	store Store
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	logger.FromContext(r.Context()).WithPrefix("docstore").Warn("%s %s failed: %v", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
}

func (h *handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, docs)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *handler) set(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "document must be JSON", http.StatusBadRequest)
		return
	}
	merge := r.URL.Query().Get("merge") == "true"
	if err := h.store.Set(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), body, merge); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) commit(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var ops []Op
	if err := json.Unmarshal(body, &ops); err != nil {
		http.Error(w, "batch must be a JSON array of operations", http.StatusBadRequest)
		return
	}
	if err := validateOps(ops); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Commit(r.Context(), ops); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
