package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/types"
)

// Identity is the caller resolved from a Supabase access token
type Identity struct {
	UserID string
	Email  string
	Role   types.UserRole
}

type identityKey struct{}

// supabaseClaims is the subset of a Supabase access token the API reads
type supabaseClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens signed with the project JWT secret
type Authenticator struct {
	parser *jwt.Parser
	secret []byte
}

// NewAuthenticator creates an authenticator for the given JWT secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
		secret: []byte(secret),
	}
}

// Verify parses a token and returns the identity it carries
func (a *Authenticator) Verify(token string) (*Identity, error) {
	claims := &supabaseClaims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("jwt has no subject")
	}

	return &Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.userRole()}, nil
}

// userRole reads user_type from app_metadata, which only the service role can
// write. user_metadata is consulted only when app_metadata carries no role.
func (c *supabaseClaims) userRole() types.UserRole {
	for _, meta := range []map[string]interface{}{c.AppMetadata, c.UserMetadata} {
		if v, ok := meta["user_type"].(string); ok && types.UserRole(v).Valid() {
			return types.UserRole(v)
		}
	}
	return types.RoleArtist
}

// Middleware resolves the bearer token when one is present. Requests without
// a token pass through anonymously; a bad token is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header", nil)
			return
		}

		identity, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).Debug("rejected access token")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session", nil)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("user_id", identity.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth rejects anonymous callers
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		next(w, r)
	}
}

// identityFromContext returns the authenticated caller, or nil
func identityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity
}

// mustIdentity returns the caller on routes wrapped by requireAuth
func mustIdentity(r *http.Request) *Identity {
	return identityFromContext(r.Context())
}
