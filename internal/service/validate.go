package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/studyshare/studyshare-backend/internal/common"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// share the request DTO rules with gin binding
	v.SetTagName("binding")
	// report json field names so messages match the request bodies
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs `binding` tags and converts failures to a ValidationError
func validateStruct(s interface{}, message string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return common.NewValidationError(message, fields...)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
