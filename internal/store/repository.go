package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/models"
)

type Repository interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Document, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Save applies a processed record: deletes remove the document, updates
// replace it wholesale.
func Save(ctx context.Context, repo Repository, record models.ProcessedRecord) error {
	switch r := record.(type) {
	case *models.DeleteRecord:
		return repo.Delete(ctx, r.ID)
	case *models.UpdateRecord:
		return repo.Upsert(ctx, DocumentFromRecord(r))
	default:
		return fmt.Errorf("unsupported record type %T", record)
	}
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database, collection string) *MongoDBRepository {
	return &MongoDBRepository{
		collection: db.Collection(collection),
	}
}

func (r *MongoDBRepository) Collection() *mongo.Collection {
	return r.collection
}

func (r *MongoDBRepository) Upsert(ctx context.Context, doc Document) error {
	start := time.Now()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"id": doc.ID}, doc, options.Replace().SetUpsert(true))
	observe("upsert", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
	}
	return nil
}

func (r *MongoDBRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	_, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete document %q: %w", id, err)
	}
	return nil
}

func (r *MongoDBRepository) Get(ctx context.Context, id string) (Document, error) {
	start := time.Now()
	var doc Document
	err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observe("get", start, nil)
		return Document{}, apperrors.ErrNotFound.WithDetail("id", id)
	}
	observe("get", start, err)
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document %q: %w", id, err)
	}
	return doc, nil
}

func (r *MongoDBRepository) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	observe("count", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (r *MongoDBRepository) DeleteAll(ctx context.Context) (int64, error) {
	start := time.Now()
	res, err := r.collection.DeleteMany(ctx, bson.M{})
	observe("delete_all", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to clear collection: %w", err)
	}
	return res.DeletedCount, nil
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseOperation("mongodb", operation, status, time.Since(start))
}
