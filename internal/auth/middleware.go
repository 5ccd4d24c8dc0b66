package auth

import (
	"net/http"
	"strings"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/platform/httpx"
	"github.com/agentnet/agentnet/internal/shared"
)

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RequireActor resolves the bearer token to an account and stores it in
// the request context. Requests without a valid token get 401.
func (s *Service) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		actor, err := s.ResolveActor(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(hierarchy.ContextWithActor(r.Context(), actor)))
	})
}
