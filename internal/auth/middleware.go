package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const maxSessionIDLen = 128

type Claims struct {
	jwt.RegisteredClaims
}

// SessionMiddleware resolves the caller's session identity. With a JWT secret
// configured every request must carry an HS256 bearer token whose subject is
// the session. Otherwise the session header is used, falling back to the
// client address.
type SessionMiddleware struct {
	secret []byte
	header string
}

func NewSessionMiddleware(jwtSecret, header string) *SessionMiddleware {
	if header == "" {
		header = "X-Session-ID"
	}
	m := &SessionMiddleware{header: header}
	if jwtSecret != "" {
		m.secret = []byte(jwtSecret)
	}
	return m
}

func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var session string
		if m.secret != nil {
			sub, err := m.subject(extractBearerToken(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			session = "sub:" + sub
		} else if id := strings.TrimSpace(r.Header.Get(m.header)); id != "" {
			if !validSessionID(id) {
				writeError(w, http.StatusBadRequest, "invalid session id")
				return
			}
			session = "hdr:" + id
		} else {
			session = "ip:" + clientIP(r)
		}

		ctx := WithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionMiddleware) subject(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("missing authorization token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" || !validSessionID(claims.Subject) {
		return "", fmt.Errorf("invalid subject in token")
	}
	return claims.Subject, nil
}

type ctxKey string

const sessionKey ctxKey = "session"

func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFrom returns the session set by the middleware, or "".
func SessionFrom(ctx context.Context) string {
	s, _ := ctx.Value(sessionKey).(string)
	return s
}

func validSessionID(id string) bool {
	if len(id) > maxSessionIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
