package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/internal/utils"
	"github.com/huangang/taskhub/pkg/response"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// AuthRequired checks the bearer token in the Authorization header.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		authenticate(c, parts[1])
	}
}

// StreamAuthRequired accepts the access token as a "token" query parameter,
// falling back to the Authorization header. EventSource cannot set headers.
func StreamAuthRequired() gin.HandlerFunc {
	header := AuthRequired()
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			header(c)
			return
		}
		authenticate(c, token)
	}
}

func authenticate(c *gin.Context, tokenString string) {
	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextRole, claims.Role)

	c.Next()
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextUsername); exists {
		return username.(string)
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		return role.(string)
	}
	return ""
}

func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == models.RoleAdmin
}
