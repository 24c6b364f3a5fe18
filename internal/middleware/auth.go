package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/metrics"
)

const (
	ContextUserKey      = "user"
	ContextRequestIDKey = "request_id"
)

// UserLoader resolves the authenticated account from a token subject.
// Satisfied by service.UserService.
type UserLoader interface {
	Get(ctx context.Context, id int64) (*model.User, error)
}

// GenerateToken signs an access token for user. Subject is the user ID.
func GenerateToken(cfg *config.Config, user *model.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    cfg.Auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Auth.JWTSecret))
}

// AuthMiddleware validates the bearer token and loads the account into the
// request context. Expired or malformed tokens end the request with 401.
func AuthMiddleware(cfg *config.Config, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			deny(c, "missing_token", "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			deny(c, "invalid_token", "invalid or expired token")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			deny(c, "invalid_token", "invalid or expired token")
			return
		}
		user, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			deny(c, "unknown_user", "account no longer exists")
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated account, or nil on anonymous routes.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func deny(c *gin.Context, reason, msg string) {
	metrics.AuthDenials.WithLabelValues(reason).Inc()
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
	c.Abort()
}
