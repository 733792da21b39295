package patient

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch value that remembers whether the client sent it.
// Set is true whenever the key appeared in the JSON body, Null when its
// value was the JSON literal null.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Patch is a sparse update. Keys absent from the request body leave the
// stored value untouched; the id can never be patched.
type Patch struct {
	Name   Optional[string]  `json:"name"`
	City   Optional[string]  `json:"city"`
	Age    Optional[int]     `json:"age"`
	Gender Optional[string]  `json:"gender"`
	Height Optional[float64] `json:"height"`
	Weight Optional[float64] `json:"weight"`
}

// Empty reports whether the patch carries no fields at all.
func (p Patch) Empty() bool {
	return !p.Name.Set && !p.City.Set && !p.Age.Set && !p.Gender.Set && !p.Height.Set && !p.Weight.Set
}

// Merge overlays the present patch values onto f.
func (p Patch) Merge(f Fields) Fields {
	if p.Name.Set {
		f.Name = p.Name.Value
	}
	if p.City.Set {
		f.City = p.City.Value
	}
	if p.Age.Set {
		f.Age = p.Age.Value
	}
	if p.Gender.Set {
		f.Gender = p.Gender.Value
	}
	if p.Height.Set {
		f.Height = p.Height.Value
	}
	if p.Weight.Set {
		f.Weight = p.Weight.Value
	}
	return f
}

func (p Patch) nullFields() []FieldError {
	var out []FieldError
	check := func(name string, null bool) {
		if null {
			out = append(out, FieldError{Field: name, Constraint: "not_null", Message: "must not be null"})
		}
	}
	check("name", p.Name.Null)
	check("city", p.City.Null)
	check("age", p.Age.Null)
	check("gender", p.Gender.Null)
	check("height", p.Height.Null)
	check("weight", p.Weight.Null)
	return out
}

// ApplyPatch merges patch onto the stored record and validates the
// result as a whole. bmi and verdict are always recomputed, and an invalid
// merge is rejected without touching existing.
func ApplyPatch(existing Patient, patch Patch) (Patient, error) {
	if nulls := patch.nullFields(); len(nulls) > 0 {
		return Patient{}, &ValidationError{Fields: nulls}
	}
	return Validate(patch.Merge(FieldsOf(existing.ID, existing.Attributes)))
}
