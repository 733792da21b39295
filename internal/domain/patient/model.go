package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Gender values accepted by the validator.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// BMI category labels.
const (
	VerdictUnderweight = "Underweight"
	VerdictNormal      = "Normal"
	VerdictOverweight  = "Overweight"
	VerdictObese       = "Obese"
)

// Attributes is what the store keeps under a patient id. The id itself is
// the collection key and is never repeated here.
type Attributes struct {
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Age     int     `json:"age"`
	Gender  string  `json:"gender"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`
	BMI     float64 `json:"bmi"`
	Verdict string  `json:"verdict"`
}

// Patient is a validated record together with its id.
type Patient struct {
	ID string `json:"id"`
	Attributes
}

// ComputeBMI returns weight / height^2 rounded to two decimals. Rounding
// works on the exact binary value and breaks exact ties to even, so 22.125
// becomes 22.12.
func ComputeBMI(height, weight float64) float64 {
	return round2(weight / (height * height))
}

func round2(x float64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	// 'f' formatting rounds the exact decimal expansion half to even
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return r
}

// VerdictFor maps a BMI to its category. Each threshold is a strict
// less-than, so 18.5 is Normal, 25 is Overweight and 40 is Obese.
func VerdictFor(bmi float64) string {
	switch {
	case bmi < 18.5:
		return VerdictUnderweight
	case bmi < 25:
		return VerdictNormal
	case bmi < 40:
		return VerdictOverweight
	default:
		return VerdictObese
	}
}

// withDerived returns a copy of a with bmi and verdict recomputed from
// height and weight.
func (a Attributes) withDerived() Attributes {
	a.BMI = ComputeBMI(a.Height, a.Weight)
	a.Verdict = VerdictFor(a.BMI)
	return a
}

// withStoredDerived fills in bmi and verdict for a record read from the
// store. Records without a usable height keep whatever was stored.
func (a Attributes) withStoredDerived() Attributes {
	if a.Height <= 0 {
		return a
	}
	d := a.withDerived()
	if math.IsInf(d.BMI, 0) || math.IsNaN(d.BMI) {
		return a
	}
	return d
}

// SortKey returns the numeric value used when ordering by field. Unknown
// fields sort as 0.
func (a Attributes) SortKey(field string) float64 {
	switch field {
	case SortByHeight:
		return a.Height
	case SortByWeight:
		return a.Weight
	case SortByBMI:
		return a.BMI
	}
	return 0
}

// Collection maps patient ids to their attributes and remembers the order
// in which ids were first added, so that listing and re-saving a document
// keep its original layout.
type Collection struct {
	ids     []string
	records map[string]Attributes
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{records: make(map[string]Attributes)}
}

// Len returns the number of patients.
func (c *Collection) Len() int { return len(c.ids) }

// IDs returns the ids in collection order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Has reports whether id is present.
func (c *Collection) Has(id string) bool {
	_, ok := c.records[id]
	return ok
}

// Get returns the attributes stored under id.
func (c *Collection) Get(id string) (Attributes, bool) {
	a, ok := c.records[id]
	return a, ok
}

// Put stores attrs under id. A new id is appended to the end; an existing
// id keeps its position.
func (c *Collection) Put(id string, attrs Attributes) {
	if c.records == nil {
		c.records = make(map[string]Attributes)
	}
	if _, ok := c.records[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.records[id] = attrs
}

// Delete removes id and reports whether it was present.
func (c *Collection) Delete(id string) bool {
	if _, ok := c.records[id]; !ok {
		return false
	}
	delete(c.records, id)
	for i, v := range c.ids {
		if v == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	return true
}

// Patients returns every record in collection order.
func (c *Collection) Patients() []Patient {
	out := make([]Patient, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, Patient{ID: id, Attributes: c.records[id]})
	}
	return out
}

// MarshalJSON encodes the collection as a single JSON object whose keys
// appear in collection order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.records[id])
		if err != nil {
			return nil, fmt.Errorf("encode patient %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of id -> attributes, keeping the key
// order of the document. A duplicated key keeps its first position and its
// last value. bmi and verdict are recomputed from height and weight, so a
// record stored without them reads the same as one stored with them.
func (c *Collection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("patient collection must be a JSON object")
	}

	c.ids = nil
	c.records = make(map[string]Attributes)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in patient collection", tok)
		}
		var attrs Attributes
		if err := dec.Decode(&attrs); err != nil {
			return fmt.Errorf("decode patient %s: %w", id, err)
		}
		c.Put(id, attrs.withStoredDerived())
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
