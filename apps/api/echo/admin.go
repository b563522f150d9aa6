package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

const contextObjectKey = "object"

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

func (s *Server) registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ag := g.Group("/admin", jwt)
	admin := s.requireRoles(user.RoleAdmin)

	ag.GET("/analytics", s.analytics, s.requireRoles(user.RoleAdmin, user.RoleInstructor))

	ag.GET("/users", s.queryUsers, admin)
	ag.GET("/roles", s.queryRoles, admin)
	dg := ag.Group("/users/:id", admin, s.pathUserMiddleware)
	dg.PUT("", s.updateUser)
	dg.DELETE("", s.softDeleteUser)
	dg.POST("/hard-delete", s.hardDeleteUser)
	dg.GET("/progress", s.userProgress)
	dg.GET("/responses", s.userResponses)

	ag.POST("/sessions", s.scheduleSession, admin)
	ag.GET("/sessions/:id/attendance", s.sessionAttendance, admin)

	ag.POST("/modules", s.createModule, admin)
	ag.POST("/sections", s.createSection, admin)
	ag.POST("/modules/:id/questions", s.createQuestion(training.KindModule), admin)
	ag.POST("/sections/:id/questions", s.createQuestion(training.KindSection), admin)
}

// pathUserMiddleware loads the user named by the :id path param, deleted ones included.
func (s *Server) pathUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := s.userSvc.Get(ctx.Request().Context(), user.GetFilter{ID: ctx.Param("id"), IncludeDeleted: true})
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding user by ID")
		}
		ctx.Set(contextObjectKey, usr)
		return next(ctx)
	}
}

func pathUser(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return user.User{}, errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return usr, nil
}

// Handlers

func (s *Server) analytics(ctx echo.Context) error {
	ov, err := s.analyticsSvc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (s *Server) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := s.userSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (s *Server) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (s *Server) updateUser(ctx echo.Context) error {
	usr, err := pathUser(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(ctx.Request().Context(), usr, s.validate, s.userSvc); err != nil {
		return err
	}

	// admins cannot demote or suspend themselves
	if usr.ID == ctxUsr.ID &&
		((data.Role != nil && *data.Role != usr.Role) || (data.Status != nil && *data.Status != usr.Status)) {
		return errHttpForbidden
	}

	usr, err = s.userSvc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) softDeleteUser(ctx echo.Context) error {
	usr, err := pathUser(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err = s.userSvc.SoftDelete(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) hardDeleteUser(ctx echo.Context) error {
	usr, err := pathUser(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	var data user.HardDeleteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HardDeleteRequest")
	}
	if err = s.validate.Struct(data); err != nil {
		return err
	}

	if err = s.userSvc.HardDelete(ctx.Request().Context(), usr.ID, data.ConfirmEmail); err != nil {
		return errors.Wrap(err, "hard deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) userProgress(ctx echo.Context) error {
	usr, err := pathUser(ctx)
	if err != nil {
		return err
	}
	records, err := s.trainingSvc.UserProgress(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	if records == nil {
		records = []training.Progress{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// userResponses lists the answers a user gave on the unit named by the `unit` query param (`kind:id`).
func (s *Server) userResponses(ctx echo.Context) error {
	usr, err := pathUser(ctx)
	if err != nil {
		return err
	}
	unit, err := training.ParseUnit(ctx.QueryParam("unit"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "unit", Error: "invalid unit"})
	}
	responses, err := s.assessmentSvc.Responses(ctx.Request().Context(), usr.ID, unit)
	if err != nil {
		return errors.Wrap(err, "listing responses")
	}
	if responses == nil {
		responses = []assessment.Response{}
	}
	return ctx.JSON(http.StatusOK, responses)
}

func (s *Server) scheduleSession(ctx echo.Context) error {
	ctxUsr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data livesession.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(s.validate, livesession.NowFunc().UTC()); err != nil {
		return err
	}

	sess, err := s.sessionSvc.Schedule(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "scheduling session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (s *Server) sessionAttendance(ctx echo.Context) error {
	att, err := s.sessionSvc.Attendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	if att == nil {
		att = []livesession.Attendance{}
	}
	return ctx.JSON(http.StatusOK, att)
}

func (s *Server) createModule(ctx echo.Context) error {
	var data training.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	mod, err := s.trainingSvc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (s *Server) createSection(ctx echo.Context) error {
	var data training.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	sec, err := s.trainingSvc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (s *Server) createQuestion(kind training.UnitKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data assessment.NewQuestion
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewQuestion")
		}
		if err := data.Validate(s.validate); err != nil {
			return err
		}

		q, err := s.assessmentSvc.CreateQuestion(ctx.Request().Context(), training.Unit{Kind: kind, ID: ctx.Param("id")}, data)
		if err != nil {
			return errors.Wrap(err, "creating question")
		}
		return ctx.JSON(http.StatusCreated, q)
	}
}
