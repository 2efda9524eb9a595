package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"carebook/backend/internal/store"
	"carebook/backend/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

// errBadRequest marks request-shape problems found before the service is called.
type errBadRequest struct {
	msg string
}

func (e errBadRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes and logs at a level that
// matches the outcome.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log = log.With(slog.String("request_id", requestIDFrom(r.Context())))

	var (
		vErr  *validation.Error
		badRq errBadRequest
	)
	switch {
	case errors.As(err, &badRq):
		log.Warn("invalid request", slog.String("reason", badRq.msg))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: badRq.msg})
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: vErr.Violations})
	case errors.Is(err, store.ErrNotFound):
		log.Info(msg+" not found", slog.Any("err", err))
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrDuplicateSlot):
		log.Info(msg+" conflict", slog.Any("err", err))
		writeJSON(w, http.StatusConflict, errorResponse{Error: "An appointment already exists for that date and time. Pick a different slot."})
	case errors.Is(err, store.ErrConflict):
		log.Info(msg+" conflict", slog.Any("err", err))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Error(msg+" failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest{msg: "request body is required"}
		}
		return errBadRequest{msg: "request body must be valid JSON"}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	return parseID(chi.URLParam(r, "id"), "id")
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest{msg: name + " must be a positive integer"}
	}
	return id, nil
}

type deleteResponse struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}
