package http

import (
	"encoding/json"
	"net/http"

	"accountd/internal/dto"
	"accountd/internal/netutil"
	"accountd/internal/service"
)

type Handler struct {
	accounts service.AccountService
	tokens   service.TokenService
}

func NewHandler(accounts service.AccountService, tokens service.TokenService) *Handler {
	return &Handler{accounts: accounts, tokens: tokens}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware already resolved X-Forwarded-For into
	// RemoteAddr; this just strips the port and canonicalizes.
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "bad_request")
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.accounts.Register(r.Context(), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.VerifyEmail(r.Context(), req.Code, clientIP(r), r.UserAgent()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) Reconfirm(w http.ResponseWriter, r *http.Request) {
	var req dto.ReverifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.Reverify(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req dto.AuthRequest
	if !decode(w, r, &req) {
		return
	}
	tokens, err := h.accounts.Authenticate(r.Context(), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	tokens, err := h.tokens.Refresh(r.Context(), req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RestoreRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.RestoreRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.RequestPasswordRestore(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) RestoreChange(w http.ResponseWriter, r *http.Request) {
	var req dto.RestoreChangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.RestorePassword(r.Context(), req.Code, req.Password, clientIP(r), r.UserAgent()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
		return
	}
	var req dto.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.Password, clientIP(r), r.UserAgent()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
		return
	}
	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
		return
	}
	var req dto.ProfileUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.accounts.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
