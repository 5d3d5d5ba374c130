package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aca-libraries/libstats/internal/consortium"
	"github.com/aca-libraries/libstats/internal/ipeds"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports every problem as one error.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, errors.New(formatFieldError(fe)))
		}
	}

	if _, err := consortium.NewRoster(c.Institutions); err != nil {
		errs = append(errs, fmt.Errorf("institutions: %w", err))
	}
	for typ := range c.Report.VariableFilters {
		if !ipeds.IsDataTable(typ) {
			errs = append(errs, fmt.Errorf("report.variable_filters: unknown table type %q", typ))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%w", errors.Join(errs...))
	}
	return nil
}

// formatFieldError turns a validation failure into a message naming the config key.
func formatFieldError(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %v)", key, strings.ReplaceAll(param, " ", ", "), fe.Value())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", key, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, param)
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", key, strings.ToLower(param))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", key)
	case "len", "numeric":
		return fmt.Sprintf("%s must be a four-digit year", key)
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}
