package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := UserFromContext(r.Context())
		if !ok {
			name = "anonymous"
		}
		_, _ = w.Write([]byte(name))
	})
}

func TestJWTAuth(t *testing.T) {
	valid, err := IssueToken(secret, "Helge", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "Helge", -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "Helge", time.Hour)
	require.NoError(t, err)
	noName, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	tbl := []struct {
		name   string
		header string
		cookie string
		code   int
		body   string
	}{
		{name: "bearer", header: "Bearer " + valid, code: http.StatusOK, body: "Helge"},
		{name: "cookie", cookie: valid, code: http.StatusOK, body: "Helge"},
		{name: "missing", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, code: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, code: http.StatusUnauthorized},
		{name: "foreign secret", header: "Bearer " + foreign, code: http.StatusUnauthorized},
		{name: "no user claim", header: "Bearer " + noName, code: http.StatusUnauthorized},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			JWTAuth(secret)(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	h := OptionalJWT(secret)(echoUser())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	token, err := IssueToken(secret, "Adrian", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "Adrian", rec.Body.String())
}
