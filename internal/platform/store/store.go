// Package store holds the durable backends for the patient document. Every
// backend keeps exactly one text document and replaces it wholesale on each
// write; none of them merge or append.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Supported drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverS3       = "s3"
	DriverMemory   = "memory"
)

// Drivers lists every driver Open understands.
var Drivers = []string{DriverFile, DriverSQLite, DriverPostgres, DriverMongo, DriverS3, DriverMemory}

// ErrDocumentNotFound is returned by Read when the document has never been
// written.
var ErrDocumentNotFound = errors.New("document does not exist")

// Backend reads and writes one document.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string

	// Name identifies the document inside table- or collection-based
	// backends.
	Name string

	FilePath   string
	SQLitePath string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	MongoURI      string
	MongoDatabase string

	S3 S3Config
}

// Open constructs the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Name == "" {
		opts.Name = "patients"
	}
	switch opts.Driver {
	case DriverFile, "":
		return NewFile(opts.FilePath), nil
	case DriverSQLite:
		return NewSQLite(ctx, opts.SQLitePath, opts.Name)
	case DriverPostgres:
		return NewPostgres(ctx, opts.DatabaseURL, opts.DBMaxConns, opts.DBMinConns, opts.Name)
	case DriverMongo:
		return NewMongo(ctx, opts.MongoURI, opts.MongoDatabase, opts.Name)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		// a process-local document cannot be seeded by store init
		return NewMemory([]byte("{}")), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

// Init writes an empty collection when the document does not exist yet.
// It reports whether anything was written.
func Init(ctx context.Context, b Backend) (bool, error) {
	_, err := b.Read(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrDocumentNotFound) {
		return false, err
	}
	if err := b.Write(ctx, []byte("{}")); err != nil {
		return false, fmt.Errorf("initialize %s document: %w", b.Driver(), err)
	}
	return true, nil
}

const pingTimeout = 5 * time.Second
