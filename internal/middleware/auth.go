// Package middleware provides HTTP middleware for the booking API server:
// bearer-token authentication, request logging, CORS and body size limits.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kolamba/backend/internal/domain"
)

// Claims are the bearer token claims. Subject carries the user's UUID.
type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// TokenService signs and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService constructs a TokenService. ttl only affects GenerateToken.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token for the actor. The API never issues tokens
// itself; this is used by tests and operational tooling.
func (s *TokenService) GenerateToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseActor verifies tokenStr and returns the actor it names.
func (s *TokenService) ParseActor(tokenStr string) (domain.Actor, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return domain.Actor{}, errors.New("invalid claims")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, errors.New("invalid subject")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Actor{}, errors.New("unknown role")
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

type actorKey struct{}

type actorSlotKey struct{}

// actorSlot lets the request logger see the actor resolved further down the chain.
type actorSlot struct {
	actor domain.Actor
	set   bool
}

func withActorSlot(ctx context.Context, s *actorSlot) context.Context {
	return context.WithValue(ctx, actorSlotKey{}, s)
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	if slot, ok := ctx.Value(actorSlotKey{}).(*actorSlot); ok {
		slot.actor, slot.set = actor, true
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated actor stored by NewAuthHandler.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// NewAuthHandler returns a middleware that requires a valid bearer token and
// stores the actor it names in the request context. Requests without one are
// rejected with 401.
func NewAuthHandler(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			actor, err := tokens.ParseActor(tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// writeError writes the API's standard error body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing useful to do if the client went away.
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
