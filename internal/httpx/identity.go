package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"net/http"
	"strconv"
	"strings"
)

// Identity is asserted by the upstream auth proxy through these headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

var (
	errUnauthenticated = errors.New("missing or invalid identity headers")
	errForbiddenRole   = errors.New("role not allowed")
)

type actorKey struct{}

func actorFrom(ctx context.Context) (orders.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(orders.Actor)
	return a, ok
}

// Identify attaches the caller's actor to the request context when the headers are present.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		role := orders.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
		if err == nil && id > 0 && role != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, orders.Actor{Role: role, UserID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole rejects requests whose actor is missing or has none of roles.
func (a *API) requireRole(roles ...orders.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r.Context())
			if !ok {
				a.writeError(w, r, errUnauthenticated)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			a.writeError(w, r, errForbiddenRole)
		})
	}
}

func mustActor(r *http.Request) orders.Actor {
	a, _ := actorFrom(r.Context())
	return a
}
