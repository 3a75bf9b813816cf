package http

import (
	"encoding/json"
	"net/http"

	"github.com/lockstead/authgate/internal/auth/service"
)

// RegisterHandler serves registration and activation.
type RegisterHandler struct {
	Auth *service.AuthService
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// HandleRegister handles POST /register. The created account stays disabled
// until the mailed activation code is confirmed.
func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMissingCredentials(w)
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}))
}

type activateRequest struct {
	Code string `json:"code"`
}

// HandleActivate handles POST /validate-user: the registrant proves control
// of the email address by replaying credentials plus the activation code.
func (h *RegisterHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeMissingCredentials(w)
		return
	}

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.ActivateUser(r.Context(), username, password, req.Code))
}
