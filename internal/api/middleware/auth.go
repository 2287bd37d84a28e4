package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	apierrors "github.com/narvanalabs/gatekeeper-dashboard/internal/api/errors"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/auth"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/logger"
)

// TokenValidator validates a viewer token.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Viewer, error)
}

// ViewerAuth requires a valid viewer token on every request it wraps.
type ViewerAuth struct {
	validator TokenValidator
	secure    bool
	logger    *slog.Logger
}

// NewViewerAuth creates the viewer authentication middleware. When secure
// is set the session cookie is marked Secure.
func NewViewerAuth(validator TokenValidator, secure bool, logger *slog.Logger) *ViewerAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewerAuth{
		validator: validator,
		secure:    secure,
		logger:    logger,
	}
}

// Authenticate validates the viewer token and stores the viewer in the
// request context. A token passed in the query string is moved into the
// gk_token cookie so that follow-up requests from the page are authenticated.
func (m *ViewerAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			writeUnauthorized(w, r, "Missing authentication")
			return
		}

		viewer, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Debug("viewer token rejected", "error", err, "path", r.URL.Path)
			if errors.Is(err, auth.ErrExpiredToken) {
				writeUnauthorized(w, r, "Token has expired")
				return
			}
			writeUnauthorized(w, r, "Invalid token")
			return
		}

		if r.URL.Query().Get("token") == token {
			http.SetCookie(w, &http.Cookie{
				Name:     auth.TokenCookie,
				Value:    token,
				Path:     "/",
				Expires:  viewer.Expires,
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteStrictMode,
			})
		}

		ctx := logger.ContextWithViewer(r.Context(), viewer.Name())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gatekeeper-dashboard"`)
	apierrors.WriteErrorWithRequestID(w, apierrors.NewUnauthorizedError(message), middleware.GetReqID(r.Context()))
}
