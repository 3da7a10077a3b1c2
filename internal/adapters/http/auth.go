package httpadapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

type identityContextKey struct{}

type identitySlotKey struct{}

// identitySlot carries the authenticated user back out to the access log,
// which sits outside the auth middleware.
type identitySlot struct {
	userID string
}

func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="document-insights"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
			return
		}

		identity, err := rt.auth.Authenticate(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="document-insights", error="invalid_token"`)
			rt.writeError(w, r, err)
			return
		}

		if slot, ok := r.Context().Value(identitySlotKey{}).(*identitySlot); ok {
			slot.userID = identity.UserID
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	return token, token != ""
}

func identityFromContext(ctx context.Context) (domain.UserIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.UserIdentity)
	return identity, ok
}

// ownerID is only called behind authMiddleware.
func ownerID(r *http.Request) string {
	identity, _ := identityFromContext(r.Context())
	return identity.UserID
}
