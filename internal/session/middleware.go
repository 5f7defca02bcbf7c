package session

import (
	"log/slog"
	"net/http"
	"strings"
)

// Gate configures NewMiddleware.
type Gate struct {
	// Secret verifies token signatures; see Parse.
	Secret string
	// Disabled attaches Anonymous(AnonymousUser) to every request instead of
	// requiring a token.
	Disabled      bool
	AnonymousUser string
	Logger        *slog.Logger
}

// NewMiddleware returns an HTTP middleware that only lets requests through
// once a session exists. The session is read from a header of the exact
// form:
//
//	Authorization: Bearer <token>
//
// The "Bearer" prefix is case-sensitive and must be followed by exactly one
// space. A missing or malformed header, or a token Parse rejects, results in
// a 401 and the next handler is never called. On success the session is
// stored in the request context.
func NewMiddleware(g Gate) func(http.Handler) http.Handler {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Disabled {
				next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), Anonymous(g.AnonymousUser))))
				return
			}

			authHeader := r.Header.Get("Authorization")

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			provided := authHeader[len(prefix):]
			if provided == "" || strings.HasPrefix(provided, " ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			s, err := Parse(provided, g.Secret)
			if err != nil {
				logger.Warn("rejected session token", "remote", r.RemoteAddr, "err", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
		})
	}
}
