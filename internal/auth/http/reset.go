package http

import (
	"encoding/json"
	"net/http"

	"github.com/lockstead/authgate/internal/auth/service"
)

// ResetHandler serves the password-reset flow.
type ResetHandler struct {
	Auth *service.AuthService
}

type resetRequestBody struct {
	Username string `json:"username"`
}

// HandleRequest handles POST /request-password-reset. The answer never
// reveals whether the username exists.
func (h *ResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.RequestPasswordReset(r.Context(), req.Username))
}

type resetBody struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

// HandleReset handles POST /reset-password: a live reset code authorizes
// replacing the account secret.
func (h *ResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Password == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.ResetPassword(r.Context(), req.Code, req.Password))
}
