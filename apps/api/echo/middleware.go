package echoapi

import (
	"github.com/labstack/echo/v4"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func studentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsStudent() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// optionalAuthMiddleware sets the token in context when a valid one is sent. Public endpoints stay
// reachable with a missing or stale token.
func optionalAuthMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if raw := bearerToken(ctx); raw != "" {
				if token, err := auth.parseToken(raw); err == nil && token.Valid {
					ctx.Set(contextTokenKey, token)
				}
			}
			return next(ctx)
		}
	}
}

// studentSelfOrAdminMiddleware lets admins and the student named by the :student_number param through.
func studentSelfOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin() || (claims.IsStudent() && claims.Subject == ctx.Param("student_number")) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
