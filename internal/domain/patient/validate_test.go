package patient

import (
	"encoding/json"
	"errors"
	"testing"
)

func validFields() Fields {
	return Fields{
		ID:     "P001",
		Name:   "Ananya Verma",
		City:   "Guwahati",
		Age:    28,
		Gender: GenderFemale,
		Height: 1.65,
		Weight: 90,
	}
}

func fieldNames(err error) map[string]string {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Constraint
	}
	return out
}

func TestValidate_DerivesBMIAndVerdict(t *testing.T) {
	p, err := Validate(validFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "P001" {
		t.Errorf("expected id P001, got %s", p.ID)
	}
	if p.BMI != 33.06 {
		t.Errorf("expected bmi 33.06, got %v", p.BMI)
	}
	if p.Verdict != VerdictOverweight {
		t.Errorf("expected Overweight, got %s", p.Verdict)
	}
}

func TestValidate_VerdictAtBoundaries(t *testing.T) {
	tests := []struct {
		weight float64
		want   string
	}{
		{18.5, VerdictNormal},
		{25, VerdictOverweight},
		{40, VerdictObese},
		{18.49, VerdictUnderweight},
	}
	for _, tt := range tests {
		f := validFields()
		f.Height = 1
		f.Weight = tt.weight
		p, err := Validate(f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.BMI != tt.weight {
			t.Errorf("bmi = %v, want %v", p.BMI, tt.weight)
		}
		if p.Verdict != tt.want {
			t.Errorf("weight %v: verdict = %s, want %s", tt.weight, p.Verdict, tt.want)
		}
	}
}

func TestValidate_FieldConstraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fields)
		field  string
		want   string
	}{
		{"missing id", func(f *Fields) { f.ID = "" }, "id", "required"},
		{"missing name", func(f *Fields) { f.Name = "" }, "name", "required"},
		{"missing city", func(f *Fields) { f.City = "" }, "city", "required"},
		{"age zero", func(f *Fields) { f.Age = 0 }, "age", "gt=0"},
		{"age hundred", func(f *Fields) { f.Age = 100 }, "age", "lt=100"},
		{"bad gender", func(f *Fields) { f.Gender = "unknown" }, "gender", "oneof=male female other"},
		{"zero height", func(f *Fields) { f.Height = 0 }, "height", "gt=0"},
		{"light weight", func(f *Fields) { f.Weight = 3 }, "weight", "gt=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			_, err := Validate(f)
			if err == nil {
				t.Fatal("expected validation error")
			}
			got := fieldNames(err)
			if got[tt.field] != tt.want {
				t.Errorf("constraint for %s = %q, want %q (all: %v)", tt.field, got[tt.field], tt.want, got)
			}
		})
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	_, err := Validate(Fields{})
	got := fieldNames(err)
	for _, f := range []string{"id", "name", "city", "age", "gender", "height", "weight"} {
		if _, ok := got[f]; !ok {
			t.Errorf("expected violation for %s, got %v", f, got)
		}
	}
}

func TestApplyPatch_KeepsUnsetFields(t *testing.T) {
	existing, _ := Validate(validFields())

	p, err := ApplyPatch(existing, Patch{City: Some("Shillong")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.City != "Shillong" {
		t.Errorf("expected city Shillong, got %s", p.City)
	}
	if p.Name != existing.Name || p.Age != existing.Age || p.Height != existing.Height {
		t.Errorf("unset fields changed: %+v", p)
	}
	if p.BMI != existing.BMI {
		t.Errorf("bmi changed without height/weight change: %v -> %v", existing.BMI, p.BMI)
	}
}

func TestApplyPatch_RecomputesBMI(t *testing.T) {
	existing, _ := Validate(validFields())

	p, err := ApplyPatch(existing, Patch{Weight: Some(50.0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BMI != 18.37 {
		t.Errorf("expected bmi 18.37, got %v", p.BMI)
	}
	if p.Verdict != VerdictUnderweight {
		t.Errorf("expected Underweight, got %s", p.Verdict)
	}
}

func TestApplyPatch_RejectsInvalidMerge(t *testing.T) {
	existing, _ := Validate(validFields())

	_, err := ApplyPatch(existing, Patch{Age: Some(120), City: Some("Agra")})
	got := fieldNames(err)
	if got["age"] != "lt=100" {
		t.Fatalf("expected age violation, got %v", got)
	}
}

func TestApplyPatch_RejectsNull(t *testing.T) {
	existing, _ := Validate(validFields())

	var patch Patch
	if err := json.Unmarshal([]byte(`{"name": null}`), &patch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !patch.Name.Set || !patch.Name.Null {
		t.Fatalf("expected name to be set and null, got %+v", patch.Name)
	}
	if _, err := ApplyPatch(existing, patch); fieldNames(err)["name"] != "not_null" {
		t.Errorf("expected not_null violation, got %v", err)
	}
}

func TestPatch_DecodePresence(t *testing.T) {
	var patch Patch
	if err := json.Unmarshal([]byte(`{"height": 1.9, "id": "ignored"}`), &patch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !patch.Height.Set || patch.Height.Value != 1.9 {
		t.Errorf("expected height 1.9, got %+v", patch.Height)
	}
	if patch.Weight.Set || patch.Name.Set {
		t.Error("expected absent fields to be unset")
	}
	if patch.Empty() {
		t.Error("patch with height should not be empty")
	}
	if !(Patch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestValidate_RejectsNonFiniteBMI(t *testing.T) {
	f := validFields()
	f.Height = 1e-200

	_, err := Validate(f)
	fields := fieldNames(err)
	if fields["height"] != "finite_bmi" || fields["weight"] != "finite_bmi" {
		t.Errorf("expected finite_bmi on height and weight, got %v (%v)", fields, err)
	}
}
