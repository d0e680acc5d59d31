package middleware

import (
	"strings"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// UserIDKey holds the authenticated primitive.ObjectID in the echo context.
	UserIDKey = "userID"
	// ClaimsKey holds the parsed *models.JwtCustomClaims.
	ClaimsKey = "user"
)

// TokenParser verifies a session token.
type TokenParser interface {
	Parse(token string) (*models.JwtCustomClaims, error)
}

// JWTAuthMiddleware checks for a valid JWT and extracts user claims.
// A missing header is 401; a malformed, expired or forged token is 403.
func JWTAuthMiddleware(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return apperrors.Unauthorized("missing Authorization header")
			}

			// Expecting "Bearer <token>"
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperrors.Forbidden("invalid Authorization header format")
			}

			claims, err := tokens.Parse(parts[1])
			if err != nil {
				return apperrors.Forbidden("invalid or expired token")
			}
			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				return apperrors.Forbidden("invalid or expired token")
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id set by JWTAuthMiddleware.
func UserID(c echo.Context) (primitive.ObjectID, bool) {
	id, ok := c.Get(UserIDKey).(primitive.ObjectID)
	return id, ok && !id.IsZero()
}
