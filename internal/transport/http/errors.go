package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accountd/internal/domain"
	impl "accountd/internal/service/impl"
)

// errorBody is the uniform error payload: {"status":"error","details":...,"code":...}.
type errorBody struct {
	Status  string `json:"status"`
	Details string `json:"details"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, details, code string) {
	writeJSON(w, status, errorBody{Status: "error", Details: details, Code: code})
}

// writeServiceError maps domain errors onto the HTTP contract. Unknown user,
// unknown code and wrong password all collapse to one 404 so responses leak
// nothing; the service keeps them distinct for the audit trail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusNotFound, "User not found", "not_found")
	case errors.Is(err, domain.ErrUserInactive):
		writeError(w, http.StatusForbidden, "User not active", "forbidden")
	case errors.Is(err, domain.ErrCodeExpired):
		writeError(w, http.StatusConflict, "Code expired", "conflict")
	case errors.Is(err, domain.ErrPasswordIncorrect):
		writeError(w, http.StatusConflict, "Password incorrect", "conflict")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict request", "conflict")
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, impl.ErrInvalidToken),
		errors.Is(err, impl.ErrSessionExpired):
		writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", "internal")
	}
}
