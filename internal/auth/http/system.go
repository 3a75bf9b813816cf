package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/lockstead/authgate/internal/auth/service"
	"github.com/lockstead/authgate/pkg/httpx"
)

// RootHandler answers the liveness probe with uptime and version.
func RootHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  true,
			"message": "Authentication service is running.",
			"uptime":  time.Since(startTime).String(),
			"version": version,
		})
	}
}

// CheckHandler verifies a session assertion presented as a bearer token.
type CheckHandler struct {
	Auth *service.AuthService
}

// Handle handles GET /check.
func (h *CheckHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeMissingCredentials(w)
		return
	}

	writeResult(w, h.Auth.VerifyAssertion(token))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
