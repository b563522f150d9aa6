package echoapi

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/services/ratelimit"
)

// requireRoles loads the authenticated user and only lets it through if it holds one of roles.
// Suspended users are refused whatever their role.
func (s *Server) requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := s.getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsSuspended() {
				return errAccountSuspended
			}
			if !usr.HasAnyRole(roles...) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// rateLimit counts hits per client IP and route.
func (s *Server) rateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := ctx.RealIP() + ":" + ctx.Path()
			ok, retryIn, err := limiter.Allow(ctx.Request().Context(), key)
			if err != nil {
				// fail open
				s.logger.Warn("rate limiter unavailable", err)
				return next(ctx)
			}
			if !ok {
				secs := int(math.Ceil(retryIn.Seconds()))
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
