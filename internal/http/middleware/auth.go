package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"relaydesk/internal/auth"
	"relaydesk/pkg/models"
)

// JWTAuth middleware validates JWT access tokens
func JWTAuth(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if claims.Type != "access" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token type")
			}

			c.Set("claims", claims)
			c.Set("operator_id", claims.OperatorID)
			c.Set("operator_telegram_id", claims.TelegramID)
			c.Set("operator_email", claims.Email)
			c.Set("operator_role", claims.Role)

			return next(c)
		}
	}
}

// RequireRole middleware ensures the operator has one of the given roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("operator_role").(string)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "Operator role not found")
			}
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// AdminOnly allows only admin operators
func AdminOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdminAccount)
}

// AnyOperator allows both operators and admins
func AnyOperator() echo.MiddlewareFunc {
	return RequireRole(models.RoleOperatorAccount, models.RoleAdminAccount)
}
