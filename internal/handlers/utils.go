package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/contestd/internal/services"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextSubjectKey).(int)
	if !ok || userID < 1 {
		return 0, errors.New("missing subject")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service errors to responses. Unexpected errors are
// logged with the request and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var quota *services.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		writeError(w, http.StatusRequestEntityTooLarge, quota.Error())
	case errors.Is(err, services.ErrInvalidProblem):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrContestNotFound):
		writeError(w, http.StatusNotFound, "contest not found")
	case errors.Is(err, services.ErrNoData):
		writeError(w, http.StatusNotFound, "no files")
	case errors.Is(err, services.ErrInvalidFilename),
		errors.Is(err, services.ErrInvalidFileSet),
		errors.Is(err, services.ErrInvalidContest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		hlog.FromRequest(r).Error().Err(err).Msg("storage unavailable")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseContestID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "contestID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid contest id")
	}
	return id, nil
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}
