package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jstittsworth/player-valuation/pkg/utils"
)

const (
	subjectKey = "subject"
	roleKey    = "role"

	// RoleAdmin may trigger jobs and invalidate caches
	RoleAdmin = "admin"
)

// Claims carried by operator tokens
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired validates an HS256 bearer token. When roles are given the token's role must be one of them.
func AuthRequired(jwtSecret string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.SendUnauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		// Extract token from Bearer scheme
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			utils.SendUnauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := ParseToken(tokenString, jwtSecret)
		if err != nil {
			utils.SendUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			utils.SendForbidden(c, "Insufficient role")
			c.Abort()
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// ParseToken validates signature, algorithm and expiry
func ParseToken(tokenString, jwtSecret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, utils.ErrUnauthorized
	}
	return claims, nil
}

// IssueToken signs an operator token, used by tooling and tests
func IssueToken(jwtSecret string, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
