package patient

import "context"

// CollectionRepository loads and saves the whole patient collection as one
// unit. Save replaces everything previously stored.
type CollectionRepository interface {
	Load(ctx context.Context) (*Collection, error)
	Save(ctx context.Context, c *Collection) error
}
