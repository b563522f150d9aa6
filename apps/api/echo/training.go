package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

func (s *Server) registerTrainingAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	trainees := s.requireRoles(user.TrainingRoles...)

	mg := g.Group("/modules", jwt, trainees)
	mg.GET("", s.listModules)
	mg.GET("/:id", s.retrieveModule)
	s.registerUnitRoutes(mg, training.KindModule)

	sg := g.Group("/sections", jwt, trainees)
	sg.GET("/:id", s.retrieveSection)
	s.registerUnitRoutes(sg, training.KindSection)
}

// registerUnitRoutes adds the progress & assessment routes shared by modules and sections.
// A "/:id" sub-group would shadow GET "/:id" with its inherited catch-all handlers.
func (s *Server) registerUnitRoutes(g *echo.Group, kind training.UnitKind) {
	h := unitHandlers{s: s, kind: kind}
	g.POST("/:id/video", h.trackVideo)
	g.POST("/:id/transcript", h.trackTranscript)
	g.GET("/:id/assessment", h.questions)
	g.GET("/:id/assessment/eligibility", h.eligibility)
	g.POST("/:id/assessment", h.submit)
}

// Handlers

func (s *Server) listModules(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	states, err := s.trainingSvc.ListModules(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing modules")
	}
	if states == nil {
		states = []training.ModuleState{}
	}
	return ctx.JSON(http.StatusOK, states)
}

func (s *Server) retrieveModule(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = s.profileSvc.RequireTrainingAccess(ctx.Request().Context(), usr); err != nil {
		return err
	}
	state, err := s.trainingSvc.GetModule(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	return ctx.JSON(http.StatusOK, state)
}

func (s *Server) retrieveSection(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = s.profileSvc.RequireTrainingAccess(ctx.Request().Context(), usr); err != nil {
		return err
	}
	state, err := s.trainingSvc.GetSection(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting section")
	}
	return ctx.JSON(http.StatusOK, state)
}

type unitHandlers struct {
	s    *Server
	kind training.UnitKind
}

func (h unitHandlers) unit(ctx echo.Context) training.Unit {
	return training.Unit{Kind: h.kind, ID: ctx.Param("id")}
}

// admit loads the context user and checks that it may work on the unit.
func (h unitHandlers) admit(ctx echo.Context) (user.User, training.Unit, error) {
	unit := h.unit(ctx)
	usr, err := h.s.getContextUser(ctx)
	if err != nil {
		return user.User{}, unit, err
	}
	if err = h.s.trainingSvc.CheckUnit(ctx.Request().Context(), unit); err != nil {
		return user.User{}, unit, err
	}
	if err = h.s.profileSvc.RequireTrainingAccess(ctx.Request().Context(), usr); err != nil {
		return user.User{}, unit, err
	}
	return usr, unit, nil
}

func (h unitHandlers) trackVideo(ctx echo.Context) error {
	usr, unit, err := h.admit(ctx)
	if err != nil {
		return err
	}

	var data VideoProgressRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VideoProgressRequest")
	}
	if err = h.s.validate.Struct(data); err != nil {
		return err
	}

	p, err := h.s.trainingSvc.TrackVideo(ctx.Request().Context(), usr.ID, unit, *data.Percentage)
	if err != nil {
		return errors.Wrap(err, "tracking video")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h unitHandlers) trackTranscript(ctx echo.Context) error {
	usr, unit, err := h.admit(ctx)
	if err != nil {
		return err
	}
	p, err := h.s.trainingSvc.TrackTranscript(ctx.Request().Context(), usr.ID, unit)
	if err != nil {
		return errors.Wrap(err, "tracking transcript")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h unitHandlers) questions(ctx echo.Context) error {
	usr, err := h.s.getContextUser(ctx)
	if err != nil {
		return err
	}
	questions, err := h.s.assessmentSvc.Questions(ctx.Request().Context(), usr, h.unit(ctx))
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (h unitHandlers) eligibility(ctx echo.Context) error {
	usr, unit, err := h.admit(ctx)
	if err != nil {
		return err
	}
	elig, err := h.s.assessmentSvc.CheckRetakeEligibility(ctx.Request().Context(), usr.ID, unit)
	if err != nil {
		return errors.Wrap(err, "checking retake eligibility")
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (h unitHandlers) submit(ctx echo.Context) error {
	usr, err := h.s.getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assessment.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = data.Validate(h.s.validate); err != nil {
		return err
	}

	result, err := h.s.assessmentSvc.Submit(ctx.Request().Context(), usr, h.unit(ctx), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting assessment")
	}
	return ctx.JSON(http.StatusCreated, result)
}
