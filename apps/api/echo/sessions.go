package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/user"
)

func (s *Server) registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	sg := g.Group("/sessions", jwt, s.requireRoles(user.TrainingRoles...))
	sg.GET("", s.listSessions)
	sg.POST("/:id/attendance", s.attendSession)
}

func (s *Server) listSessions(ctx echo.Context) error {
	sessions, err := s.sessionSvc.Upcoming(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	if sessions == nil {
		sessions = []livesession.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (s *Server) attendSession(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	att, err := s.sessionSvc.Attend(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}
