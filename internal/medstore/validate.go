package medstore

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"medcal/internal/model"
)

// MaxMedications is the hard cap on the medication list.
const MaxMedications = model.DefaultMedicationLimit

// ValidationError describes one rejected field of a medication entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	validateErr  error
)

func medicationValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		v := validator.New()

		// Report fields by their yaml names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		if err := v.RegisterValidation("medname", func(fl validator.FieldLevel) bool {
			return isMedicationName(fl.Field().String())
		}); err != nil {
			validateErr = fmt.Errorf("register medname rule: %w", err)
			return
		}
		if err := v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
			return AllowedInterval(int(fl.Field().Int()))
		}); err != nil {
			validateErr = fmt.Errorf("register interval rule: %w", err)
			return
		}

		validate = v
	})
	return validate, validateErr
}

// AllowedInterval reports whether h is a selectable dosing interval:
// every 1 to 24 hours, every 48 hours or every 72 hours.
func AllowedInterval(h int) bool {
	return (h >= 1 && h <= 24) || h == 48 || h == 72
}

// isMedicationName accepts ASCII letters, digits and spaces, with at least
// one non-space character.
func isMedicationName(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == ' ':
		default:
			return false
		}
	}
	return true
}

// Validate checks m against the form rules and against the entries already
// in the list. All problems are reported, joined with errors.Join; each is a
// *ValidationError.
func Validate(m model.Medication, existing []model.Medication) error {
	var errs []error

	v, err := medicationValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("medication validation error: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, &ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}

	if m.StartTime.IsZero() {
		errs = append(errs, &ValidationError{Field: "start_time", Message: "start time is required"})
	}

	switch {
	case m.Interval == 48 && m.Duration > 0 && m.Duration%2 != 0:
		errs = append(errs, &ValidationError{Field: "duration", Message: "a 48 hour interval needs an even number of days"})
	case m.Interval == 72 && m.Duration > 0 && m.Duration%3 != 0:
		errs = append(errs, &ValidationError{Field: "duration", Message: "a 72 hour interval needs a multiple of 3 days"})
	}
	if m.Interval > 0 && m.Duration > 0 && m.Interval > m.Duration*24 {
		errs = append(errs, &ValidationError{Field: "interval", Message: "interval is longer than the treatment"})
	}

	name := strings.TrimSpace(m.Name)
	for _, e := range existing {
		if name != "" && strings.EqualFold(strings.TrimSpace(e.Name), name) {
			errs = append(errs, &ValidationError{Field: "name", Message: fmt.Sprintf("%q is already in the list", e.Name)})
			break
		}
	}
	if len(existing) >= MaxMedications {
		errs = append(errs, &ValidationError{Field: "name", Message: fmt.Sprintf("the list is limited to %d medications", MaxMedications)})
	}

	return errors.Join(errs...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "medname":
		return "may only contain letters a-z, digits and spaces"
	case "interval":
		return fmt.Sprintf("%v is not an allowed interval (1-24, 48 or 72 hours)", fe.Value())
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
