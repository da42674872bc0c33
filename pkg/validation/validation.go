package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

var (
	v *validator.Validate

	// ISO-4217 alpha code, e.g. GHS
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
)

func oneOf[T ~string](values []T) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let omitempty / required handle empty
			return true
		}
		for _, x := range values {
			if string(x) == val {
				return true
			}
		}
		return false
	}
}

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("casestatus", oneOf(models.CaseStatuses))
	_ = v.RegisterValidation("priority", oneOf(models.Priorities))
	_ = v.RegisterValidation("folder", oneOf(models.Folders))
	_ = v.RegisterValidation("role", oneOf(models.Roles))
	_ = v.RegisterValidation("msgtype", oneOf(models.MessageTypes))

	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return reCurrency.MatchString(val)
	})
}

// Validate returns map[field][]messages (Laravel-like)
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := e.Field() // already mapped from json tag

			switch e.Tag() {
			case "required":
				out[field] = append(out[field], "This field is required")

			case "email":
				out[field] = append(out[field], "Invalid email format")

			case "min":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "url":
				out[field] = append(out[field], "Invalid URL")

			case "gt", "gte":
				out[field] = append(out[field], fmt.Sprintf("Must be greater than %s", e.Param()))

			case "casestatus":
				out[field] = append(out[field], "Unknown case status")

			case "priority":
				out[field] = append(out[field], "Unknown priority")

			case "folder":
				out[field] = append(out[field], "Unknown document folder")

			case "role":
				out[field] = append(out[field], "Unknown role")

			case "msgtype":
				out[field] = append(out[field], "Unknown message type")

			case "currency":
				out[field] = append(out[field], "Invalid currency code (use ISO-4217, e.g. “GHS”)")

			default:
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}

// Check validates s and returns a BAD_REQUEST apperr carrying the field map.
func Check(s any) error {
	errs, err := Validate(s)
	if err != nil {
		return apperr.Wrap(err, "validation")
	}
	if errs != nil {
		return apperr.Validation(errs)
	}
	return nil
}

// Merge folds extra field messages into the result of Validate.
func Merge(dst map[string][]string, field, message string) map[string][]string {
	if dst == nil {
		dst = make(map[string][]string)
	}
	dst[field] = append(dst[field], message)
	return dst
}
