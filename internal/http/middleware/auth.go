package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/karatrack-backend/internal/http/response"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// CallerKey holds the authenticated caller in the gin context: the token
// subject for service tokens, "api_key" for static keys.
const CallerKey = "caller"

type AuthConfig struct {
	// Keys are static API keys.
	Keys []string
	// JWTSecret verifies HS256 service tokens minted by the front-end app.
	JWTSecret string
}

// AuthMiddleware accepts a static key or a signed service token. With
// neither configured every request passes, which is how local runs work.
type AuthMiddleware struct {
	log       *logger.Logger
	keys      [][]byte
	jwtSecret []byte
	parser    *jwt.Parser
}

func NewAuthMiddleware(log *logger.Logger, cfg AuthConfig) *AuthMiddleware {
	am := &AuthMiddleware{
		log:    log.With("middleware", "AuthMiddleware"),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
	for _, k := range cfg.Keys {
		if k = strings.TrimSpace(k); k != "" {
			am.keys = append(am.keys, []byte(k))
		}
	}
	if s := strings.TrimSpace(cfg.JWTSecret); s != "" {
		am.jwtSecret = []byte(s)
	}
	return am
}

func (am *AuthMiddleware) Enabled() bool { return len(am.keys) > 0 || len(am.jwtSecret) > 0 }

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		token := extractToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		caller, ok := am.authenticate(token)
		if !ok {
			am.log.Debug("rejected credentials", "path", c.FullPath())
			response.Abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

func (am *AuthMiddleware) authenticate(token string) (string, bool) {
	if am.validKey([]byte(token)) {
		return "api_key", true
	}
	if len(am.jwtSecret) == 0 || strings.Count(token, ".") != 2 {
		return "", false
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := am.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return am.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}
	if claims.Subject == "" {
		return "service", true
	}
	return claims.Subject, true
}

func (am *AuthMiddleware) validKey(token []byte) bool {
	ok := 0
	for _, k := range am.keys {
		ok |= subtle.ConstantTimeCompare(token, k)
	}
	return ok == 1
}

func extractToken(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-Api-Key")); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
