package serverhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/notandrewjones/signage-app/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the §7 error taxonomy onto HTTP status codes. The
// server never panics on an unknown id — every failure path resolves
// here.
func writeError(w http.ResponseWriter, err error) {
	var clientErr *model.ClientInputError
	var notFoundErr *model.NotFoundError
	var forbiddenErr *model.ForbiddenError

	switch {
	case errors.As(err, &clientErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": clientErr.Error()})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFoundErr.Error()})
	case errors.As(err, &forbiddenErr):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": forbiddenErr.Error()})
	default:
		slog.Error("unhandled server error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
