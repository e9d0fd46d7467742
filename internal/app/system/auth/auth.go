package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// User is the authenticated caller injected into r.Context().
type User struct {
	ID         primitive.ObjectID
	Name       string
	Email      string
	Role       string
	Department string
}

// UserFetcher reloads the caller on every request so deleted users and role
// changes take effect immediately. It returns nil when the user no longer exists.
type UserFetcher interface {
	FetchUser(ctx context.Context, id primitive.ObjectID) *User
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok && u != nil
}

// Manager holds the token service and user fetcher used by the middleware.
type Manager struct {
	tokens  *TokenService
	fetcher UserFetcher
	log     *zap.Logger
}

// NewManager creates a Manager. fetcher may be nil, in which case the
// identity comes from token claims alone.
func NewManager(tokens *TokenService, fetcher UserFetcher, logger *zap.Logger) *Manager {
	return &Manager{tokens: tokens, fetcher: fetcher, log: logger}
}

// Tokens exposes the token service for handlers that issue tokens.
func (m *Manager) Tokens() *TokenService { return m.tokens }

// LoadBearerUser injects the user into context when the request carries a
// valid "Authorization: Bearer <token>" header. Missing or bad tokens leave
// the request anonymous; RequireSignedIn decides whether that is acceptable.
func (m *Manager) LoadBearerUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.log.Debug("bearer token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		oid, _ := primitive.ObjectIDFromHex(claims.UserID)
		u := &User{ID: oid, Email: claims.Email, Role: claims.Role}
		if m.fetcher != nil {
			u = m.fetcher.FetchUser(r.Context(), oid)
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadBearerUser).
// Anonymous callers get a JSON 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	})
}

// RequireRole ensures the signed-in user holds one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTestUser injects u into the request context, bypassing token checks.
// For handler tests.
func WithTestUser(r *http.Request, u *User) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
