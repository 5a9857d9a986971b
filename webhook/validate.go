package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ValidationError is one problem with a request.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// readPayload decodes, normalizes, fills defaults and validates the body.
// The body is decoded as JSON whatever the Content-Type, since TradingView
// posts JSON alerts as text/plain.
func readPayload(c echo.Context, p *Payload) []ValidationError {
	if err := json.NewDecoder(c.Request().Body).Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return validationErrors(err)
	}

	p.normalize()
	if fields := p.placeholders(); len(fields) > 0 {
		errs := make([]ValidationError, 0, len(fields))
		for _, f := range fields {
			errs = append(errs, ValidationError{
				Code:    "ERR_PLACEHOLDER",
				Field:   f,
				Message: fmt.Sprintf("%s still holds an alert template variable", f),
			})
		}
		return errs
	}

	if err := defaults.Set(p); err != nil {
		return validationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), p); err != nil {
		return validationErrors(err)
	}
	return nil
}

func validationErrors(err error) []ValidationError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		errs := make([]ValidationError, 0, len(ves))
		for _, e := range ves {
			errs = append(errs, ValidationError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   strings.ToLower(e.Field()),
				Message: errorMessage(e),
			})
		}
		return errs
	}

	if errors.Is(err, ErrPlaceholder) {
		return []ValidationError{{Code: "ERR_PLACEHOLDER", Message: err.Error()}}
	}

	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &te) {
		return []ValidationError{{Code: "ERR_BIND", Message: err.Error()}}
	}

	return []ValidationError{{Code: "ERR_INVALID", Message: err.Error()}}
}

func errorMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
