package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (context.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var ctx context.Context
	err := mw(func(c echo.Context) error {
		ctx = c.Request().Context()
		return nil
	})(c)
	return ctx, err
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			assertStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token, err := MintToken(testSigningKey, "infermiere1", []string{"pta_centro"}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(ctx); got != "infermiere1" {
		t.Errorf("expected user infermiere1, got %q", got)
	}
	if !CanAccessSite(ctx, "pta_centro") {
		t.Error("expected access to pta_centro")
	}
	if CanAccessSite(ctx, "villa_ginestre") {
		t.Error("expected no access to villa_ginestre")
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "infermiere1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Ambulatori: []string{"pta_centro"},
	}, testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	assertStatus(t, err, http.StatusUnauthorized)
	if msg := err.(*echo.HTTPError).Message; msg != "Token scaduto" {
		t.Errorf("expected expiry message, got %v", msg)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, Claims{Ambulatori: []string{"pta_centro"}}, []byte("another-key"))
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	sites := []string{"pta_centro", "villa_ginestre"}
	ctx, err := runMiddleware(t, DevAuthMiddleware(testSigningKey, sites), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(ctx); got != "dev-user" {
		t.Errorf("expected dev-user, got %q", got)
	}
	for _, s := range sites {
		if !CanAccessSite(ctx, s) {
			t.Errorf("expected dev access to %s", s)
		}
	}
}

func TestDevAuthMiddleware_ValidatesProvidedToken(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(testSigningKey, nil), "Bearer not-a-jwt")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestRequireSite(t *testing.T) {
	ctx := context.WithValue(context.Background(), SitesKey, []string{"villa_ginestre"})
	if err := RequireSite(ctx, "villa_ginestre"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := RequireSite(ctx, "pta_centro")
	assertStatus(t, err, http.StatusForbidden)

	if err := RequireSite(context.Background(), "pta_centro"); err == nil {
		t.Error("expected 403 without identity")
	}
}

func TestMintToken_EmptyKey(t *testing.T) {
	if _, err := MintToken(nil, "u", nil, time.Hour, time.Now()); err == nil {
		t.Error("expected error for empty key")
	}
}
