package validation

import (
	"fmt"
	"net/mail"

	errors "github.com/frahmantamala/payroll-ledger/internal"
	"github.com/shopspring/decimal"
)

// MaxHoursPerEntry bounds a single worked-hours entry.
var MaxHoursPerEntry = decimal.NewFromInt(744)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

// Field registers a value to check. The returned pointer is only valid until
// the next call to Field.
func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = v == ""
		case *string:
			missing = v == nil || *v == ""
		case int64:
			missing = v == 0
		case *decimal.Decimal:
			missing = v == nil
		}
		if missing {
			return errors.NewValidationFieldError(name, fmt.Sprintf("%s is required", name), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

// Positive accepts decimals strictly greater than zero.
func (fv *FieldValidator) Positive(code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		var d decimal.Decimal
		switch v := value.(type) {
		case decimal.Decimal:
			d = v
		case *decimal.Decimal:
			if v == nil {
				return nil
			}
			d = *v
		default:
			return nil
		}
		if !d.IsPositive() {
			return errors.NewValidationFieldError(name, fmt.Sprintf("%s must be a positive number", name), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxDecimal(max decimal.Decimal, code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(decimal.Decimal); ok && v.GreaterThan(max) {
			return errors.NewValidationFieldError(name, fmt.Sprintf("%s must not exceed %s", name, max.String()), code)
		}
		return nil
	})
	return fv
}

// MaxScale rejects values with more than places decimal places; the
// numeric(12,2) columns would otherwise round silently.
func (fv *FieldValidator) MaxScale(places int32, code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(decimal.Decimal); ok && !v.Equal(v.Truncate(places)) {
			return errors.NewValidationFieldError(name, fmt.Sprintf("%s allows at most %d decimal places", name, places), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) < min {
				message := fmt.Sprintf("%s must be at least %d characters", name, min)
				return errors.NewValidationFieldError(name, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", name, max)
				return errors.NewValidationFieldError(name, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Email() *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			if _, err := mail.ParseAddress(v); err != nil {
				return errors.NewValidationFieldError(name, fmt.Sprintf("%s must be a valid email address", name), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Validate runs every field. A single failure keeps its own code so callers
// can match on it; several failures are reported as VALIDATION_FAILED.
func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError
	code := errors.ErrCodeValidationFailed

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}

			code = appErr.Code
			if details, ok := appErr.Details.(errors.ValidationErrors); ok && len(details.Errors) > 0 {
				validationErrors = append(validationErrors, details.Errors...)
				code = errors.ErrorCode(details.Errors[0].Code)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: appErr.Message,
					Code:    string(appErr.Code),
				})
			}
			// first failure per field is enough
			break
		}
	}

	if len(validationErrors) == 0 {
		return nil
	}
	if len(validationErrors) > 1 {
		code = errors.ErrCodeValidationFailed
	}
	return errors.NewValidationError("Validation failed", code).
		WithDetails(errors.ValidationErrors{Errors: validationErrors})
}

func ValidateHours(hours decimal.Decimal) *errors.AppError {
	validator := NewValidator()
	validator.Field("hours", hours).
		Positive(errors.ErrCodeInvalidHours).
		MaxDecimal(MaxHoursPerEntry, errors.ErrCodeInvalidHours).
		MaxScale(2, errors.ErrCodeInvalidHours)
	return validator.Validate()
}

func ValidateAmount(amount decimal.Decimal) *errors.AppError {
	validator := NewValidator()
	validator.Field("salary", amount).
		Positive(errors.ErrCodeInvalidAmount).
		MaxScale(2, errors.ErrCodeInvalidAmount)
	return validator.Validate()
}

func ValidateRate(rate decimal.Decimal) *errors.AppError {
	validator := NewValidator()
	validator.Field("salary", rate).
		Positive(errors.ErrCodeInvalidRate).
		MaxScale(2, errors.ErrCodeInvalidRate)
	return validator.Validate()
}

func ValidateCredentials(email, password string) *errors.AppError {
	validator := NewValidator()
	validator.Field("email", email).
		Required().
		Email().
		MaxLength(255)
	validator.Field("password", password).
		Required().
		MinLength(6)
	return validator.Validate()
}
