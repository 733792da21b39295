// Package sandbox generates synthetic patients for demos and local
// development. Generation is reproducible for a given seed.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jaswdr/faker"

	"github.com/ehr/patients/internal/domain/patient"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount int
	IDPrefix     string
	Seed         int64
}

// DefaultSeedConfig returns a SeedConfig suitable for a demo store.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount: 25,
		IDPrefix:     "P",
		Seed:         42,
	}
}

// SeedResult summarizes one seeding run.
type SeedResult struct {
	Created  int           `json:"created"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// DataGenerator produces valid patient fields. Every value it returns passes
// patient.Validate.
type DataGenerator struct {
	fake    faker.Faker
	prefix  string
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, prefix string) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		fake:   faker.NewWithSeed(rand.NewSource(seed)),
		prefix: prefix,
	}
}

func (g *DataGenerator) nextID() string {
	g.counter++
	return fmt.Sprintf("%s%03d", g.prefix, g.counter)
}

// GeneratePatient produces the fields of one new patient.
func (g *DataGenerator) GeneratePatient() patient.Fields {
	gender := g.fake.RandomStringElement([]string{patient.GenderMale, patient.GenderFemale, patient.GenderOther})

	var name string
	switch gender {
	case patient.GenderMale:
		name = g.fake.Person().NameMale()
	case patient.GenderFemale:
		name = g.fake.Person().NameFemale()
	default:
		name = g.fake.Person().Name()
	}

	return patient.Fields{
		ID:     g.nextID(),
		Name:   name,
		City:   g.fake.Address().City(),
		Age:    g.fake.IntBetween(1, 99),
		Gender: gender,
		// centimeters and hectograms keep the values to a sane precision
		Height: float64(g.fake.IntBetween(140, 200)) / 100,
		Weight: float64(g.fake.IntBetween(400, 1300)) / 10,
	}
}

// Creator is the subset of patient.Service the seeder needs.
type Creator interface {
	CreatePatient(ctx context.Context, f patient.Fields) (patient.Patient, error)
}

// Seeder writes generated patients through the service so they go through
// the same validation and persistence as API requests.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
}

// NewSeeder creates a new Seeder with the given config.
func NewSeeder(config SeedConfig) *Seeder {
	if config.IDPrefix == "" {
		config.IDPrefix = "P"
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed, config.IDPrefix),
		config:    config,
	}
}

// Generate returns the fields for config.PatientCount patients without
// storing them.
func (s *Seeder) Generate() []patient.Fields {
	out := make([]patient.Fields, 0, s.config.PatientCount)
	for i := 0; i < s.config.PatientCount; i++ {
		out = append(out, s.generator.GeneratePatient())
	}
	return out
}

// Seed creates the generated patients. Ids that already exist are skipped,
// so running the same seed twice is harmless.
func (s *Seeder) Seed(ctx context.Context, svc Creator) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	for _, f := range s.Generate() {
		_, err := svc.CreatePatient(ctx, f)
		var conflict *patient.ConflictError
		switch {
		case err == nil:
			result.Created++
		case errors.As(err, &conflict):
			result.Skipped++
		default:
			return result, fmt.Errorf("seed patient %s: %w", f.ID, err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
