package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core/user"
)

func (s *Server) registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	cg := g.Group("/certificates/me", jwt, s.requireRoles(user.TrainingRoles...))
	cg.GET("", s.retrieveCertificate)
	cg.GET("/eligibility", s.certificateEligibility)
	cg.POST("", s.issueCertificate)
}

func (s *Server) retrieveCertificate(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	cert, err := s.certificateSvc.Get(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (s *Server) certificateEligibility(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	elig, err := s.certificateSvc.Eligibility(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "checking certificate eligibility")
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (s *Server) issueCertificate(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return err
	}
	cert, err := s.certificateSvc.Issue(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
