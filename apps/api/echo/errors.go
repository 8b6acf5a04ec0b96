package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/quiz"
)

var (
	errNoCheckout      = echo.NewHTTPError(http.StatusNotFound, "no checkout in progress")
	errPaymentsClosed  = echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not available")
	errBadNotifySecret = echo.NewHTTPError(http.StatusUnauthorized, "invalid notification secret")
)

// statusOf maps domain errors to their HTTP status; 0 means unexpected.
func statusOf(err error) int {
	switch err {
	case core.ErrNotAuthenticated, catalog.ErrLoginRequired:
		return http.StatusUnauthorized
	case catalog.ErrNotEnrolled:
		return http.StatusForbidden
	case quiz.ErrSessionNotFound:
		return http.StatusNotFound
	case core.ErrInFlight, quiz.ErrNotInProgress, quiz.ErrAlreadyStarted, quiz.ErrNotSubmitted,
		quiz.ErrIncomplete, quiz.ErrSessionClosed:
		return http.StatusConflict
	case quiz.ErrNoQuestions, quiz.ErrQuestionOutOfRange, quiz.ErrOptionOutOfRange,
		course.ErrLastChapter, course.ErrLastLesson, course.ErrMinOptions, course.ErrIndexOutOfRange,
		course.ErrUnknownField, course.ErrUnknownOp, course.ErrInvalidImage, catalog.ErrUnknownTab:
		return http.StatusBadRequest
	case core.ErrConnection:
		return http.StatusBadGateway
	}
	return 0
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
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
			code = http.StatusBadRequest
			fldErrs := make([]core.FieldError, 0, len(origErr))
			for _, vErr := range origErr {
				fldErrs = append(fldErrs, core.FieldError{Field: vErr.Field(), Error: vErr.Error()})
			}
			message = echo.Map{"error": core.UserMessage(origErr, ""), "fields": fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				message = echo.Map{"error": origErr.First(), "fields": origErr.Fields}
			} else {
				message = origErr.Error()
			}
		case *core.RequestError:
			// the backend's rejection is relayed with its own status
			code = origErr.Status
			message = core.UserMessage(origErr, http.StatusText(origErr.Status))
		default:
			if code = statusOf(origErr); code != 0 {
				message = origErr.Error()
				if code >= http.StatusInternalServerError {
					logger.Warn(err.Error(), err)
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			usr, _, _ := getContextUser(ctx)
			logger.Error(msg, errors.Wrap(err, msg), usr)

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
