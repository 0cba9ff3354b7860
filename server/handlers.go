package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/s0up4200/mircrew/mircrew"
)

// kindInvalidRequest tags errors raised by the server before reaching the forum
const kindInvalidRequest = "invalid_request"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MagnetResponse is the body of a successful magnet request
type MagnetResponse struct {
	Magnet string `json:"magnet"`
}

// Handler exposes the forum operations as JSON endpoints
type Handler struct {
	API    mircrew.API
	Logger zerolog.Logger
}

func NewHandler(api mircrew.API, logger zerolog.Logger) *Handler {
	return &Handler{API: api, Logger: logger}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("title") {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "title query parameter is required")
		return
	}

	results, err := h.API.SearchMovie(r.Context(), query.Get("title"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}

	details, err := h.API.GetMovieDetails(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) Magnet(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}

	magnet, err := h.API.GetMagnetLink(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MagnetResponse{Magnet: magnet})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func movieID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "movie id is required")
		return "", false
	}
	return id, true
}

// fail maps an operation error onto its status and kind
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := mircrew.KindOf(err)
	status := statusForKind(kind)

	event := h.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.Logger.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Str("kind", string(kind)).
		Int("status", status).
		Msg("Request failed")

	message := err.Error()
	if kind == mircrew.KindInternal {
		message = "internal error"
	}
	writeError(w, status, string(kind), message)
}

func statusForKind(kind mircrew.Kind) int {
	switch kind {
	case mircrew.KindAuthentication:
		return http.StatusUnauthorized
	case mircrew.KindMovieNotFound, mircrew.KindMagnetNotFound:
		return http.StatusNotFound
	case mircrew.KindNetwork, mircrew.KindParsing:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: message})
}
