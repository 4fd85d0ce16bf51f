// Package validator wraps struct validation with project error formatting.
package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

func Validate(value any) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		// Use config field name in error messages
		if name := strings.SplitN(fld.Tag.Get("configKey"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return fld.Name
	})

	if err := validate.Struct(value); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return processValidateError(validationErrs)
		}
		return err
	}
	return nil
}

func processValidateError(err validator.ValidationErrors) error {
	result := errors.NewMultiError()
	for _, e := range err {
		// Drop the root struct name from the path
		path := e.Namespace()
		if index := strings.IndexByte(path, '.'); index >= 0 {
			path = path[index+1:]
		}
		result.Append(errors.Errorf(`key="%s", value="%v", failed "%s" validation`, path, e.Value(), e.ActualTag()))
	}
	return result.ErrorOrNil()
}
