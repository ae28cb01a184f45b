package handler

import (
	"net/http"
	"strings"

	"bookworm/annotations-service/internal/app/annotations/entity"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityContextKey = "identity"

// JWTClaims структура claims для JWT токена
// Profile claims (display_name, avatar_url) денормализуются в комментарии
// и оценки, чтобы их рендеринг не зависел от Auth Service
type JWTClaims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет JWT токен в запросах для Gin
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware создает новый middleware для аутентификации
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate проверяет JWT токен и добавляет identity пользователя в контекст Gin
// WebSocket клиенты не могут выставить заголовок Authorization,
// поэтому токен дополнительно принимается в query-параметре token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(m.jwtSecret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(identityContextKey, &entity.Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
			AvatarURL:   claims.AvatarURL,
			Email:       claims.Email,
		})

		c.Next()
	}
}

// identityFromContext извлекает identity, положенную Authenticate
func identityFromContext(c *gin.Context) (*entity.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return nil, false
	}

	identity, ok := value.(*entity.Identity)
	if !ok || identity.UserID == "" {
		return nil, false
	}

	return identity, true
}
