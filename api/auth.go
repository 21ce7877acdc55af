package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/ledger"
)

// Claims carried by ledger bearer tokens.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor valid for ttl.
func IssueToken(secret []byte, actor ledger.Actor, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		Name: actor.Name,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates signature and expiry and returns the actor.
func ParseToken(secret []byte, tokenStr string) (ledger.Actor, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return ledger.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return ledger.Actor{}, errors.New("invalid token claims")
	}
	if c.Subject == "" {
		return ledger.Actor{}, errors.New("token has no subject")
	}
	role, err := ledger.ParseRole(c.Role)
	if err != nil {
		return ledger.Actor{}, err
	}
	return ledger.Actor{ID: c.Subject, Name: c.Name, Role: role}, nil
}

type actorKey struct{}

// ActorFrom returns the authenticated actor stored by Authenticate.
func ActorFrom(ctx context.Context) (ledger.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(ledger.Actor)
	return a, ok
}

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(tokenStr) == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			actor, err := ParseToken(secret, strings.TrimSpace(tokenStr))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid bearer token", err)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin actors with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok || !actor.IsAdmin() {
			writeError(w, http.StatusForbidden, "Forbidden", billing.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
