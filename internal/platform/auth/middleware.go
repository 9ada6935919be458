package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	SitesKey  contextKey = "user_sites"
)

// Claims carries the user and the sites ("ambulatori") the user may operate on.
type Claims struct {
	jwt.RegisteredClaims
	Ambulatori []string `json:"ambulatori"`
}

type JWTConfig struct {
	SigningKey []byte
	// Skipper bypasses authentication when it returns true.
	Skipper func(c echo.Context) bool
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			claims, err := parseRequest(c.Request(), cfg.SigningKey)
			if err != nil {
				return err
			}
			setIdentity(c, claims.Subject, claims.Ambulatori)
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as a development
// user with access to every site in allSites. Requests that do carry a token
// are still validated.
func DevAuthMiddleware(signingKey []byte, allSites []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				setIdentity(c, "dev-user", allSites)
				return next(c)
			}
			claims, err := parseRequest(c.Request(), signingKey)
			if err != nil {
				return err
			}
			setIdentity(c, claims.Subject, claims.Ambulatori)
			return next(c)
		}
	}
}

func parseRequest(r *http.Request, key []byte) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Token scaduto")
	}
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Token non valido")
	}
	return claims, nil
}

func setIdentity(c echo.Context, userID string, sites []string) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), userID, sites)))
}

// WithIdentity returns a context carrying the user id and the sites the user
// may operate on.
func WithIdentity(ctx context.Context, userID string, sites []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, SitesKey, sites)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func SitesFromContext(ctx context.Context) []string {
	sites, _ := ctx.Value(SitesKey).([]string)
	return sites
}
