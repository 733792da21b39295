package patient

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Fields are the raw values a client supplies to create a patient. The
// struct tags are the single source of the field constraints.
type Fields struct {
	ID     string  `json:"id" validate:"required"`
	Name   string  `json:"name" validate:"required"`
	City   string  `json:"city" validate:"required"`
	Age    int     `json:"age" validate:"gt=0,lt=100"`
	Gender string  `json:"gender" validate:"oneof=male female other"`
	Height float64 `json:"height" validate:"gt=0"`
	Weight float64 `json:"weight" validate:"gt=3"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field constraint and, on success, returns the
// patient with bmi and verdict derived from height and weight.
func Validate(f Fields) (Patient, error) {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Patient{}, err
		}
		out := &ValidationError{}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{
				Field:      fe.Field(),
				Constraint: constraintOf(fe),
				Message:    messageFor(fe),
			})
		}
		return Patient{}, out
	}

	attrs := Attributes{
		Name:   f.Name,
		City:   f.City,
		Age:    f.Age,
		Gender: f.Gender,
		Height: f.Height,
		Weight: f.Weight,
	}
	attrs = attrs.withDerived()
	if math.IsInf(attrs.BMI, 0) || math.IsNaN(attrs.BMI) {
		const msg = "height and weight do not give a finite bmi"
		return Patient{}, &ValidationError{Fields: []FieldError{
			{Field: "height", Constraint: "finite_bmi", Message: msg},
			{Field: "weight", Constraint: "finite_bmi", Message: msg},
		}}
	}
	return Patient{ID: f.ID, Attributes: attrs}, nil
}

// FieldsOf returns the raw fields of a stored record, the starting point
// for a partial update.
func FieldsOf(id string, a Attributes) Fields {
	return Fields{
		ID:     id,
		Name:   a.Name,
		City:   a.City,
		Age:    a.Age,
		Gender: a.Gender,
		Height: a.Height,
		Weight: a.Weight,
	}
}

func constraintOf(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return "failed " + constraintOf(fe)
}
