package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// tagMessages covers the validation tags used by the query structs in this package.
var tagMessages = map[string]string{
	"alphanum": "%s must be alphanumeric",
	"max":      "%s must be at most %s characters",
	"oneof":    "%s must be one of: %s",
	"gt":       "%s must be greater than %s",
	"lte":      "%s must be at most %s",
}

// bindQuery reads query parameters into req, fills defaults and validates the result.
func bindQuery(c echo.Context, req interface{}) []ValidationError {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return []ValidationError{{Code: "ERR_BAD_QUERY", Message: fmt.Sprint(he.Message)}}
		}
		return []ValidationError{{Code: "ERR_BAD_QUERY", Message: err.Error()}}
	}
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_BAD_QUERY", Message: err.Error()}}
	}

	err := validate.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Code: "ERR_BAD_QUERY", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   strings.ToLower(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	format, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
	param := fe.Param()
	if fe.Tag() == "oneof" {
		param = strings.ReplaceAll(param, " ", ", ")
	}
	if strings.Count(format, "%s") == 1 {
		return fmt.Sprintf(format, field)
	}
	return fmt.Sprintf(format, field, param)
}
