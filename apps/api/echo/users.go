package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/user"
)

func (s *Server) registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", s.login, s.rateLimit(s.limiter))
	ug.POST("/password-reset", s.resetPassword, s.rateLimit(s.limiter))
	ug.POST("/password-reset-confirm", s.confirmPasswordReset, s.rateLimit(s.limiter))

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", s.refreshTokenHandler)

	me := ag.Group("/me", s.requireRoles(user.AllRoles...))
	me.GET("", s.retrieveMe)
	me.PUT("/profile", s.updateProfile)
	me.GET("/completeness", s.completeness)
	me.GET("/education", s.listEducation)
	me.POST("/education", s.addEducation)
	me.DELETE("/education/:id", s.removeEducation)
	me.GET("/employment", s.listEmployment)
	me.POST("/employment", s.addEmployment)
	me.DELETE("/employment/:id", s.removeEmployment)
}

// Handlers

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	claims, err := s.authenticate(ctx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(s.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) refreshTokenHandler(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	if err := s.userSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		s.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(s.validate); err != nil {
		return err
	}

	if err := s.userSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (s *Server) retrieveMe(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) updateProfile(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(s.validate); err != nil {
		return err
	}

	usr, err = s.userSvc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) completeness(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := s.profileSvc.CalculateCompleteness(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "calculating completeness")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (s *Server) listEducation(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	entries, err := s.profileSvc.ListEducation(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing education")
	}
	if entries == nil {
		entries = []profile.EducationEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (s *Server) addEducation(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data profile.NewEducation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEducation")
	}
	if err = data.Validate(s.validate); err != nil {
		return err
	}

	entry, err := s.profileSvc.AddEducation(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding education")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (s *Server) removeEducation(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = s.profileSvc.RemoveEducation(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing education")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) listEmployment(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	entries, err := s.profileSvc.ListEmployment(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing employment")
	}
	if entries == nil {
		entries = []profile.EmploymentEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (s *Server) addEmployment(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data profile.NewEmployment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEmployment")
	}
	if err = data.Validate(s.validate); err != nil {
		return err
	}

	entry, err := s.profileSvc.AddEmployment(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding employment")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (s *Server) removeEmployment(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = s.profileSvc.RemoveEmployment(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing employment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
