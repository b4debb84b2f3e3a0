package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const contextKeyUserID contextKey = "tsu.user_id"

// UserIDFromContext returns the authenticated user id set by Authenticator
func UserIDFromContext(ctx context.Context) string {
	userId, _ := ctx.Value(contextKeyUserID).(string)
	return userId
}

// Authenticator validates HMAC-signed bearer tokens. The subject claim is
// the user id.
type Authenticator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

func NewAuthenticator(secret, issuer string, clockSkew time.Duration) *Authenticator {
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	return &Authenticator{
		secret:    []byte(strings.TrimSpace(secret)),
		issuer:    issuer,
		clockSkew: clockSkew,
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", "missing bearer token")
			return
		}
		userId, err := a.parseToken(tokenString)
		if err != nil {
			zap.L().Debug("Token validation failed", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Authentication required", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID, userId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseToken(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth secret not configured")
	}
	options := []jwt.ParserOption{jwt.WithLeeway(a.clockSkew), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, options...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject claim missing")
	}
	return subject, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
