// Package validation validates agent definitions and wire flows with
// go-playground/validator, reporting every violation with its JSON field path.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// Validate is the shared validator instance with the custom tags registered.
var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	_ = Validate.RegisterValidation("config_type", validateConfigType)
	_ = Validate.RegisterValidation("display_type", validateDisplayType)
	_ = Validate.RegisterValidation("flow_name", validateFlowName)

	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidationError is one violated rule.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every violation of one value.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s against its validate tags.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	return formatValidationErrors(ve)
}

// ValidateDefinition checks an agent definition: a name, known config and
// display types, and unique non-empty schema keys.
func ValidateDefinition(def *agent.Definition) error {
	if def == nil {
		return ValidationErrors{{Field: "definition", Message: "field is required"}}
	}
	if err := Struct(def); err != nil {
		return err
	}
	if err := def.Validate(); err != nil {
		return ValidationErrors{{Field: def.Name, Message: err.Error()}}
	}
	return nil
}

// ValidateFlow checks the structure of a wire flow before it is stored.
func ValidateFlow(f *flow.Flow) error {
	if f == nil {
		return flow.ErrNilFlow
	}
	if err := Struct(f); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("flow %q: %w", f.Name, err)
	}
	return nil
}

func formatValidationErrors(ve validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "config_type":
		return "must be one of unit, boolean, integer, number, string, password, text, object"
	case "display_type":
		return "must be one of *, boolean, integer, number, string, text, object, messages"
	case "flow_name":
		return "must be a slash separated flow name without empty or dot segments"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateConfigType(fl validator.FieldLevel) bool {
	return agent.ConfigType(fl.Field().String()).Valid()
}

func validateDisplayType(fl validator.FieldLevel) bool {
	return agent.DisplayType(fl.Field().String()).Valid()
}

func validateFlowName(fl validator.FieldLevel) bool {
	return flow.ValidName(fl.Field().String())
}
