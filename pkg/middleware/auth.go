package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fkhayef/smartrewards/pkg/response"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for the authenticated actor
	ActorKey ContextKey = "actor"
)

// ActorKind distinguishes customers from businesses
type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorBusiness ActorKind = "business"
)

// Actor is the authenticated caller. Token issuance happens elsewhere; the id is trusted as-is.
type Actor struct {
	ID   int64
	Kind ActorKind
}

// ActorClaims are the JWT claims issued by the identity service.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrMissingToken = errors.New("authorization header required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Authenticator resolves the calling actor from a request.
type Authenticator struct {
	secret  []byte
	devMode bool
}

// NewAuthenticator creates an authenticator validating HS256 tokens signed with secret.
// In dev mode the X-Actor-ID and X-Actor-Kind headers are accepted instead of a token.
func NewAuthenticator(secret string, devMode bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), devMode: devMode}
}

// Middleware rejects requests without a valid actor and stores the actor in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.resolve(r)
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		ctx := WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(r *http.Request) (Actor, error) {
	if a.devMode && r.Header.Get("X-Actor-ID") != "" {
		return actorFromHeaders(r)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Actor{}, ErrMissingToken
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Actor{}, ErrInvalidToken
	}

	return a.ParseToken(parts[1])
}

// ParseToken validates a bearer token and returns the actor it names.
func (a *Authenticator) ParseToken(tokenString string) (Actor, error) {
	if len(a.secret) == 0 {
		return Actor{}, ErrInvalidToken
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrInvalidToken
	}

	kind, err := parseKind(claims.Role)
	if err != nil {
		return Actor{}, err
	}

	return Actor{ID: id, Kind: kind}, nil
}

// actorFromHeaders allows setting the actor via headers (DEV ONLY)
func actorFromHeaders(r *http.Request) (Actor, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrInvalidToken
	}

	kind := ActorCustomer
	if k := r.Header.Get("X-Actor-Kind"); k != "" {
		if kind, err = parseKind(k); err != nil {
			return Actor{}, err
		}
	}

	return Actor{ID: id, Kind: kind}, nil
}

func parseKind(role string) (ActorKind, error) {
	switch ActorKind(strings.ToLower(role)) {
	case ActorCustomer:
		return ActorCustomer, nil
	case ActorBusiness:
		return ActorBusiness, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor extracts the actor from the request context
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(Actor)
	return actor, ok
}

// RequireKind rejects actors of any other kind with 403.
func RequireKind(kind ActorKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				response.Unauthorized(w, ErrMissingToken.Error())
				return
			}
			if actor.Kind != kind {
				response.Forbidden(w, fmt.Sprintf("%s account required", kind))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireInternalKey guards operator endpoints with a shared key in X-Internal-API-Key.
func RequireInternalKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.Header.Get("X-Internal-API-Key") != key {
				response.Unauthorized(w, "invalid internal api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
