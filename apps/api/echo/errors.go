package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountSuspended     = echo.NewHTTPError(http.StatusForbidden, "account suspended")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
)

// admissionResponse is the body of a 403 caused by a core.AdmissionError.
type admissionResponse struct {
	Error  string      `json:"error"`
	Reason string      `json:"reason"`
	Detail interface{} `json:"detail,omitempty"`
}

// errorBody maps err to a status code and a JSON body. internal reports errors that are not the
// client's fault; their body is the bare status text.
func errorBody(err error, translator ut.Translator) (code int, body interface{}, internal bool) {
	if admErr, ok := core.AsAdmissionError(err); ok {
		return http.StatusForbidden, admissionResponse{Error: admErr.Message, Reason: admErr.Reason, Detail: admErr.Detail}, false
	}
	var nfErr *core.NotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, nfErr.Error(), false
	}

	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message, false
		}
		if inner, ok := cause.Internal.(*echo.HTTPError); ok {
			cause = inner
		}
		return cause.Code, cause.Message, cause.Code >= http.StatusInternalServerError
	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, false
	case *core.ValidationError:
		if len(cause.Fields) == 0 {
			return http.StatusBadRequest, cause.Error(), false
		}
		fields := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, false
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
}

// newAppHTTPErrorHandler renders errors as JSON. Unexpected errors are reported with the
// requesting user, and a core shutdown error calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, internal := errorBody(err, translator)
		if internal {
			if _, isHTTP := errors.Cause(err).(*echo.HTTPError); !isHTTP {
				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID, usr.Name, usr.Email = claims.Subject, claims.Name, claims.Email
				}
				logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), err, usr)
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
			if ctx.Echo().Debug {
				body = err.Error()
			}
		}
		if msg, ok := body.(string); ok {
			body = echo.Map{"error": msg}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
