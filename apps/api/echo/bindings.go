package echoapi

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// bindAndValidate binds the request into data then runs its `validate` tags.
// Validation failures are returned as a *core.ValidationError with translated messages.
func bindAndValidate(ctx echo.Context, data interface{}, validate *validator.Validate, translator ut.Translator) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	if err := validate.Struct(data); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return core.NewValidationError(nil, core.TranslateErrors(vErrs, translator)...)
		}
		return errors.Wrap(err, "validating request")
	}
	return nil
}
