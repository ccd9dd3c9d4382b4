package middleware

import (
	"errors"
	"strings"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"
	"ridewallet/pkg/auth"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

const callerContextKey = "caller"

// AuthRequired verifies the bearer token with the identity provider and sets
// the caller on the context. Websocket clients may pass the token as the
// access_token query parameter since browsers cannot set the header.
func AuthRequired(verifier auth.Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.ErrorResponse(c, 401, "UNAUTHORIZED", "Bearer token required")
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingToken) {
				log.WithContext(c.Request.Context()).WithError(err).Error("Token verification failed")
			}
			utils.ErrorResponse(c, 401, "UNAUTHORIZED", "Invalid token")
			c.Abort()
			return
		}

		caller := &models.Caller{
			UserID:   identity.UserID,
			Email:    identity.Email,
			Role:     identity.Role,
			UserType: identity.UserType,
		}
		c.Set(callerContextKey, caller)
		c.Set("user_id", identity.UserID)
		c.Set("user_type", identity.UserType)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), identity.UserID.String()))

		c.Next()
	}
}

// PrivilegedRequired restricts a route to support staff, admins and the service role.
func PrivilegedRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := GetCaller(c)
		if caller == nil {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}
		if !caller.IsPrivileged() {
			utils.ErrorResponse(c, 403, "FORBIDDEN", "Privileged access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetCaller returns the authenticated caller, or nil on public routes.
func GetCaller(c *gin.Context) *models.Caller {
	value, exists := c.Get(callerContextKey)
	if !exists {
		return nil
	}
	caller, _ := value.(*models.Caller)
	return caller
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c.Request.Method == "GET" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("access_token")
	}
	return ""
}
