package http

import (
	"encoding/json"
	"net/http"

	"github.com/lockstead/authgate/internal/auth/service"
)

// LoginHandler serves the two phases of the login flow. Credentials travel in
// the Basic authorization header for both, matching how browsers and tooling
// already prompt for them.
type LoginHandler struct {
	Auth *service.AuthService
}

// HandleLogin handles GET /login. A correct password triggers a one-time code
// to the account's email; no session is issued here.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.Login(r.Context(), username, password))
}

type validateRequest struct {
	Code string `json:"code"`
}

// HandleValidate handles POST /validate: full credentials plus the emailed
// code. Success returns the session assertion in the result metadata.
func (h *LoginHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeMissingCredentials(w)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.ValidateCode(r.Context(), username, password, req.Code))
}
