package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finanzas/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinels to HTTP statuses. Everything unexpected is
// a 500 with a generic body; the real cause only goes to the log.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrPartitionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "month not provisioned, create its spreadsheet first"})
	case errors.Is(err, core.ErrDuplicateTransaction):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrGoalNotFound),
		errors.Is(err, core.ErrDebtNotFound),
		errors.Is(err, core.ErrObligationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrRateUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrEmptyReporter):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
