package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/service"
	"github.com/lockstead/authgate/internal/auth/store"
	"github.com/lockstead/authgate/pkg/httpx"
	"github.com/lockstead/authgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	Auth  *service.AuthService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerLogin()
	r.registerRegistration()
	r.registerReset()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /",
		httpx.Chain(RootHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	checkHandler := &CheckHandler{Auth: r.Auth}
	r.Mux.Handle("GET /check",
		httpx.Chain(http.HandlerFunc(checkHandler.Handle),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerLogin() {
	loginHandler := &LoginHandler{Auth: r.Auth}

	// Credential endpoints carry the strict budget; they are the brute-force
	// surface.
	r.Mux.Handle("GET /login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /validate",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleValidate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRegistration() {
	regHandler := &RegisterHandler{Auth: r.Auth}

	r.Mux.Handle("POST /register",
		httpx.Chain(http.HandlerFunc(regHandler.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /validate-user",
		httpx.Chain(http.HandlerFunc(regHandler.HandleActivate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerReset() {
	resetHandler := &ResetHandler{Auth: r.Auth}

	r.Mux.Handle("POST /request-password-reset",
		httpx.Chain(http.HandlerFunc(resetHandler.HandleRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /reset-password",
		httpx.Chain(http.HandlerFunc(resetHandler.HandleReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

// statusFor maps a result code onto the HTTP status carrying it. The body is
// always the full result, so clients never need to parse the status line.
func statusFor(res domain.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case domain.CodeValidationError:
		return http.StatusBadRequest
	case domain.CodeAuthFailed, domain.CodeTokenMalformed, domain.CodeTokenExpired, domain.CodeTokenInvalidSig:
		return http.StatusUnauthorized
	case domain.CodeAlreadySent, domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeExpired:
		return http.StatusGone
	case domain.CodeBlocked, domain.CodeLockedNow:
		return http.StatusTooManyRequests
	case domain.CodePersistenceFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, res domain.Result) {
	httpx.WriteJSON(w, statusFor(res), res)
}

// writeMissingCredentials is the uniform answer when the Basic authorization
// header or a required field is absent.
func writeMissingCredentials(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnprocessableEntity, domain.Fail(domain.CodeValidationError, "Missing credentials."))
}
