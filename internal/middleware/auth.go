// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"example.com/storefront/pkg/config"
	"example.com/storefront/pkg/logger"
)

// Ключи контекста Gin с данными аутентификации.
const (
	ContextCustomerID = "customer_id"
	ContextEmail      = "email"
	ContextRole       = "role"
)

// roleAdmin — роль для доступа к админским операциям.
const roleAdmin = "admin"

// Claims — полезная нагрузка токена identity-сервиса.
// Сервис токены не выдаёт: только проверяет подпись, срок и issuer.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет JWT токены внешнего identity-сервиса (HS256).
type AuthMiddleware struct {
	secret []byte
	issuer string
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(cfg config.JWTConfig) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// parseToken проверяет подпись и стандартные claims токена.
func (m *AuthMiddleware) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неожиданный метод подписи токена")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("токен не прошёл проверку")
	}

	return claims, nil
}

// extractBearerToken достаёт токен из Authorization header.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// Optional опознаёт покупателя, если токен есть и валиден.
// Без токена запрос идёт дальше как гостевой; битый токен — 401, чтобы
// клиент не думал, что заказ привяжется к его аккаунту.
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.parseToken(token)
		if err != nil {
			log := logger.FromContext(c.Request.Context())
			log.Warn().Err(err).Msg("невалидный токен")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Токен недействителен",
			})
			return
		}

		m.setIdentity(c, claims)
		c.Next()
	}
}

// Require требует валидный токен покупателя.
func (m *AuthMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		m.setIdentity(c, claims)
		c.Next()
	}
}

// RequireAdmin требует валидный токен с ролью admin.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		if claims.Role != roleAdmin {
			log := logger.FromContext(c.Request.Context())
			log.Warn().
				Str("customer_id", claims.Subject).
				Str("role", claims.Role).
				Msg("попытка доступа к админской операции без роли admin")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Недостаточно прав",
			})
			return
		}

		m.setIdentity(c, claims)
		c.Next()
	}
}

// authenticate проверяет токен и прерывает запрос при неудаче.
func (m *AuthMiddleware) authenticate(c *gin.Context) (*Claims, bool) {
	log := logger.FromContext(c.Request.Context())

	token := extractBearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Требуется авторизация",
		})
		return nil, false
	}

	claims, err := m.parseToken(token)
	if err != nil {
		log.Warn().Err(err).Msg("ошибка валидации токена")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Токен недействителен",
		})
		return nil, false
	}

	return claims, true
}

// setIdentity сохраняет данные покупателя в контекст Gin.
func (m *AuthMiddleware) setIdentity(c *gin.Context, claims *Claims) {
	c.Set(ContextCustomerID, claims.Subject)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextRole, claims.Role)
}

// CustomerID возвращает ID покупателя из контекста Gin.
// Пустая строка означает гостевой запрос.
func CustomerID(c *gin.Context) string {
	return c.GetString(ContextCustomerID)
}
