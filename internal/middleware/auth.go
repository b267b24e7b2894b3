package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserCtxKey = contextKey("user_name")

// CookieName carries the token for browser clients.
const CookieName = "chirp_token"

// IssueToken signs an HS256 token for userName valid for ttl.
func IssueToken(secret []byte, userName string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_name": userName,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// JWTAuth rejects requests without a valid token. The token comes from the
// Authorization header or, failing that, the session cookie.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userName, err := authenticate(r, secret)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserCtxKey, userName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWT attaches the user when a valid token is present and lets
// anonymous requests through untouched.
func OptionalJWT(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userName, err := authenticate(r, secret); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UserCtxKey, userName))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid Authorization header")
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("missing Authorization header")
}

func authenticate(r *http.Request, secret []byte) (string, error) {
	raw, err := tokenFromRequest(r)
	if err != nil {
		return "", err
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	userName, ok := claims["user_name"].(string)
	if !ok || userName == "" {
		return "", errors.New("invalid user_name in token")
	}
	return userName, nil
}

// UserFromContext returns the authenticated username, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(UserCtxKey).(string)
	return name, ok
}
