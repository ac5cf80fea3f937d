package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"min":      "%s must not be empty",
}

var messageWithParam = map[string]string{
	"gte": "%s must be greater than or equal to %s",
}

// validationMessage joins one readable message per failed field.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if tmpl, ok := messageTemplates[fe.Tag()]; ok {
			msgs = append(msgs, fmt.Sprintf(tmpl, fe.Field()))
			continue
		}
		if tmpl, ok := messageWithParam[fe.Tag()]; ok {
			msgs = append(msgs, fmt.Sprintf(tmpl, fe.Field(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
