package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Lets decimal fields use numeric tags such as gt=0 and ne=0.
		// Only the sign matters for those checks, so the sign is what they see.
		validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
			d, ok := v.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			return d.Sign()
		}, decimal.Decimal{})
	})
	return validate
}

// Validate checks the `validate` struct tags on a command and returns the
// first failure as a *ValidationError.
func Validate(cmd any) error {
	err := validatorInstance().Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{Field: fieldPath(fe), Message: describe(fe)}
}

// fieldPath drops the command type from the namespace: "Lines[1].Quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
