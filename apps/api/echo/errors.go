package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errNoSession        = echo.NewHTTPError(http.StatusUnauthorized, "no active session, sign in first")
	errNoRecord         = echo.NewHTTPError(http.StatusNotFound, "no progress record")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errGradingFailed    = echo.NewHTTPError(http.StatusBadGateway, "task could not be graded, try again")
	errRankingDisabled  = echo.NewHTTPError(http.StatusNotImplemented, "leaderboard not available on this store")
	errInvalidLessonID  = core.NewValidationError(nil, core.FieldError{Field: "lessonID", Error: "invalid lesson id"})
	errElementsRequired = core.NewValidationError(nil, core.FieldError{Field: "elements", Error: "this field is required"})
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch {
		case errors.Is(cause, progress.ErrNoRecord):
			cause = errNoRecord
		case errors.Is(cause, progress.ErrNoSession):
			cause = errNoSession
		case errors.Is(cause, core.ErrRankingUnsupported):
			cause = errRankingDisabled
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if fldErrs := origErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var idt identity.Identity
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				idt = claims.Identity()
			}
			logger.Error(msg, errors.Wrap(err, msg), idt)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
