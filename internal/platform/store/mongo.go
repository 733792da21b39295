package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "documents"

// Mongo keeps the document as a string field of one record in the
// documents collection. Storing the raw text instead of a BSON tree keeps
// the key order written by the service.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	name   string
}

type mongoDocument struct {
	Name      string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongo(ctx context.Context, uri, database, name string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGO_URI is required for the mongo store")
	}
	if database == "" {
		database = "patients"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
		name:   name,
	}, nil
}

func (m *Mongo) Driver() string { return DriverMongo }

func (m *Mongo) Read(ctx context.Context) ([]byte, error) {
	var doc mongoDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": m.name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo document %s: %w", m.name, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return []byte(doc.Payload), nil
}

func (m *Mongo) Write(ctx context.Context, data []byte) error {
	doc := mongoDocument{Name: m.name, Payload: string(data), UpdatedAt: time.Now().UTC()}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": m.name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}
