package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
	bazaar_errors "bazaar-chat/pkg/errors"
	"bazaar-chat/pkg/logger"
)

// TokenVerifier checks access tokens issued by the identity service. Tokens
// are HS256, user id in the sub claim.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, bazaar_errors.ErrUnauthorized
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, bazaar_errors.ErrUnauthorized
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return uuid.Nil, bazaar_errors.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, bazaar_errors.ErrUnauthorized
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, bazaar_errors.ErrUnauthorized
	}
	userID, err := uuid.Parse(strings.TrimSpace(sub))
	if err != nil {
		return uuid.Nil, bazaar_errors.ErrUnauthorized
	}
	return userID, nil
}

func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.Verify(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), userID)
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
