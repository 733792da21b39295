package patient

import (
	"bytes"
	"context"
	"encoding/json"
)

// Document is a durable holder of one text document, such as a file or a
// database row.
type Document interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

type documentRepo struct {
	doc Document
}

// NewDocumentRepo stores the collection as a single indented JSON object
// inside doc.
func NewDocumentRepo(doc Document) CollectionRepository {
	return &documentRepo{doc: doc}
}

func (r *documentRepo) Load(ctx context.Context) (*Collection, error) {
	data, err := r.doc.Read(ctx)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	c := NewCollection()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, &StorageError{Op: "parse", Err: err}
	}
	return c, nil
}

func (r *documentRepo) Save(ctx context.Context, c *Collection) error {
	data, err := EncodeCollection(c)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if err := r.doc.Write(ctx, data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

// EncodeCollection renders c the way it is kept on disk: a JSON object
// indented by four spaces.
func EncodeCollection(c *Collection) ([]byte, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
