package echoapi

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

// actorMiddleware puts the authenticated core.Actor in the request's context.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		actor := claims.Actor()
		if actor.IsZero() {
			return errUnauthorized
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(core.ContextWithActor(req.Context(), actor)))
		return next(ctx)
	}
}

// roleMiddleware only lets through actors having one of the role prefixes.
func roleMiddleware(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, ok := core.ActorFromContext(ctx.Request().Context())
			if !ok {
				return errUnauthorized
			}
			if actor.HasRole(prefixes...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// timeoutMiddleware bounds the request's context, and so every store call made on its behalf.
func timeoutMiddleware(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if timeout <= 0 {
				return next(ctx)
			}
			reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), timeout)
			defer cancel()
			ctx.SetRequest(ctx.Request().WithContext(reqCtx))
			return next(ctx)
		}
	}
}
