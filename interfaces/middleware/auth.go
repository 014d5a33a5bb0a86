package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"social-agent/infrastructure/configuration"
)

// Auth gates the operator API with a bearer JWT signed by the configured
// secret. When no secret is configured the service runs open and the
// middleware passes every request through.
func Auth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		secretKey := configuration.C.App.SecretKey
		if secretKey == "" {
			ctx.Next()
			return
		}
		authorization := ctx.Request.Header.Get("Authorization")
		parts := strings.Split(authorization, "Bearer ")
		if len(parts) != 2 || parts[1] == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.NewValidationError("unexpected signing method", jwt.ValidationErrorSignatureInvalid)
			}
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx.Next()
	}
}
