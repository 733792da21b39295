package patient

import (
	"context"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Sort parameters accepted by SortPatients.
const (
	SortByHeight = "height"
	SortByWeight = "weight"
	SortByBMI    = "bmi"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

var (
	sortFields  = []string{SortByHeight, SortByWeight, SortByBMI}
	sortOrders  = []string{OrderAsc, OrderDesc}
	sortFieldOK = mapset.NewSet(sortFields...)
	sortOrderOK = mapset.NewSet(sortOrders...)
)

// SortFields returns the fields patients can be ordered by.
func SortFields() []string { return append([]string(nil), sortFields...) }

// Service implements the patient operations. Every call starts from a
// fresh Load; mutating calls finish with a Save of the whole collection.
type Service struct {
	repo      CollectionRepository
	serialize bool
	mu        sync.Mutex
}

func NewService(repo CollectionRepository) *Service {
	return &Service{repo: repo, serialize: true}
}

// SetSerializeWrites controls whether create, update and delete hold a
// process-wide lock across their load-modify-save sequence. Without it two
// overlapping writes resolve as last-save-wins.
func (s *Service) SetSerializeWrites(v bool) { s.serialize = v }

func (s *Service) lockWrites() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Service) ListPatients(ctx context.Context) (*Collection, error) {
	return s.repo.Load(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id string) (Patient, error) {
	c, err := s.repo.Load(ctx)
	if err != nil {
		return Patient{}, err
	}
	attrs, ok := c.Get(id)
	if !ok {
		return Patient{}, &NotFoundError{ID: id, ValidIDs: c.IDs()}
	}
	return Patient{ID: id, Attributes: attrs}, nil
}

// SortPatients returns every patient ordered by field in the given order
// (OrderAsc or OrderDesc). Equal keys keep their collection order.
func (s *Service) SortPatients(ctx context.Context, field, order string) ([]Patient, error) {
	c, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !sortFieldOK.Contains(field) {
		return nil, &InvalidArgumentError{Argument: "sort_by", Value: field, Allowed: sortFields}
	}
	if !sortOrderOK.Contains(order) {
		return nil, &InvalidArgumentError{Argument: "order", Value: order, Allowed: sortOrders}
	}

	out := c.Patients()
	desc := order == OrderDesc
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].SortKey(field) > out[j].SortKey(field)
		}
		return out[i].SortKey(field) < out[j].SortKey(field)
	})
	return out, nil
}

func (s *Service) CreatePatient(ctx context.Context, f Fields) (Patient, error) {
	defer s.lockWrites()()

	c, err := s.repo.Load(ctx)
	if err != nil {
		return Patient{}, err
	}
	if c.Has(f.ID) {
		return Patient{}, &ConflictError{ID: f.ID}
	}
	p, err := Validate(f)
	if err != nil {
		return Patient{}, err
	}
	c.Put(p.ID, p.Attributes)
	if err := s.repo.Save(ctx, c); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id string, patch Patch) (Patient, error) {
	defer s.lockWrites()()

	c, err := s.repo.Load(ctx)
	if err != nil {
		return Patient{}, err
	}
	attrs, ok := c.Get(id)
	if !ok {
		return Patient{}, &NotFoundError{ID: id, ValidIDs: c.IDs()}
	}
	// nothing to change, so nothing to write
	if patch.Empty() {
		return Patient{ID: id, Attributes: attrs}, nil
	}
	p, err := ApplyPatch(Patient{ID: id, Attributes: attrs}, patch)
	if err != nil {
		return Patient{}, err
	}
	c.Put(id, p.Attributes)
	if err := s.repo.Save(ctx, c); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	defer s.lockWrites()()

	c, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !c.Delete(id) {
		return &NotFoundError{ID: id, ValidIDs: c.IDs()}
	}
	return s.repo.Save(ctx, c)
}
