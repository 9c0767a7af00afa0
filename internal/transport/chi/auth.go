package chi

import (
	"net/http"
	"strings"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
)

// exemptPaths are routes that bypass identity resolution and rate limiting.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// IdentityMiddleware resolves Bearer api keys to caller identities.
// keys maps api key to identity. A request without an Authorization header is
// anonymous; a header with an unknown key is rejected. If keys is empty, every
// request is anonymous.
func IdentityMiddleware(keys map[string]string) func(http.Handler) http.Handler {
	identities := make(map[string]domain.Identity, len(keys))
	for k, id := range keys {
		if k != "" && id != "" {
			identities[k] = domain.Identity(id)
		}
	}

	return func(next http.Handler) http.Handler {
		if len(identities) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			id, ok := identities[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), id)))
		})
	}
}
