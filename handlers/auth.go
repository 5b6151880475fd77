package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"memories/schemas"
)

type contextKey string

const userIDKey contextKey = "user_id"

var ErrMissingSubject = errors.New("token carries neither uid nor sub")

// Claims accepts tokens that name the user in either uid or sub.
type Claims struct {
	UID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator attaches the user id of a valid HS256 bearer token to the
// request context. Requests without a token pass through anonymously.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(rw, r)
			return
		}

		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(rw, http.StatusUnauthorized, "Invalid Authorization header format. Expected: Bearer <token>")
			return
		}

		userId, err := a.Verify(strings.TrimSpace(authHeader[len("bearer "):]))
		if err != nil {
			slog.WarnContext(r.Context(), "auth failure",
				"ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "error", err)
			writeError(rw, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(rw, r.WithContext(WithUserID(r.Context(), userId)))
	})
}

func (a *Authenticator) Verify(tokenString string) (schemas.UserId, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return "", ErrMissingSubject
	}
	return schemas.UserId(uid), nil
}

func WithUserID(ctx context.Context, userId schemas.UserId) context.Context {
	return context.WithValue(ctx, userIDKey, userId)
}

// GetUserID returns the authenticated user, or "" for anonymous requests.
func GetUserID(r *http.Request) schemas.UserId {
	userId, _ := r.Context().Value(userIDKey).(schemas.UserId)
	return userId
}
