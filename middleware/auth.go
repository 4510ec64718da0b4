package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextPrincipalKey stores the models.Principal of the caller.
	ContextPrincipalKey = "principal"
	// ContextTokenKey stores the raw bearer token, used by logout.
	ContextTokenKey = "token"
)

// AuthRequired authenticates the bearer JWT, reloads the user so role and
// activation changes apply immediately, and stores a Principal in the context.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, ok := bearerToken(ctx)
		if !ok {
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(ctx.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(ctx, http.StatusUnauthorized, 40106, "user no longer exists")
			} else {
				utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load user")
			}
			ctx.Abort()
			return
		}
		if !user.IsActive {
			utils.Error(ctx, http.StatusForbidden, 40301, "account is disabled")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextPrincipalKey, user.Principal())
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}

// RequireRoles lets the request through when the principal holds any of roles.
// It must run after AuthRequired.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		p, ok := GetPrincipal(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}
		if !p.HasAnyRole(roles...) {
			utils.Error(ctx, http.StatusForbidden, 40302, "requires role: "+strings.Join(roles, " or "))
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// GetPrincipal returns the principal stored by AuthRequired.
func GetPrincipal(ctx *gin.Context) (models.Principal, bool) {
	v, exists := ctx.Get(ContextPrincipalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		return "", false
	}
	return tokenString, true
}
