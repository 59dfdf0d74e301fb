package casestudies

import (
	"context"
	"time"

	"casehub-backend/internal/workflow"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	ListPublished(ctx context.Context, filter PublicListFilter) ([]CaseRecord, error)
	GetPublishedBySlug(ctx context.Context, slug string) (CaseRecord, error)
	ListAll(ctx context.Context) ([]CaseRecord, error)
	ReplaceAll(ctx context.Context, items []CaseRecord, at time.Time) error
}

// document is the stored form; position keeps the editor's ordering.
type document struct {
	CaseRecord `bson:",inline"`
	Position   int       `bson:"position"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) ListPublished(ctx context.Context, filter PublicListFilter) ([]CaseRecord, error) {
	query := bson.M{"status": workflow.StatusPublished}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Industry != "" {
		query["industry"] = filter.Industry
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "published_at", Value: -1},
			{Key: "position", Value: 1},
		})
	return r.find(ctx, query, opts)
}

func (r *MongoRepository) GetPublishedBySlug(ctx context.Context, slug string) (CaseRecord, error) {
	var doc document
	if err := r.col.FindOne(ctx, bson.M{"slug": slug, "status": workflow.StatusPublished}).Decode(&doc); err != nil {
		return CaseRecord{}, err
	}
	return doc.CaseRecord, nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]CaseRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

// ReplaceAll makes the stored collection equal to items: every record is
// upserted by slug and records whose slug is gone are deleted.
func (r *MongoRepository) ReplaceAll(ctx context.Context, items []CaseRecord, at time.Time) error {
	slugs := make([]string, 0, len(items))
	models := make([]mongo.WriteModel, 0, len(items)+1)
	for i, item := range items {
		slugs = append(slugs, item.Slug)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"slug": item.Slug}).
			SetReplacement(document{CaseRecord: item, Position: i, UpdatedAt: at}).
			SetUpsert(true))
	}
	models = append(models, mongo.NewDeleteManyModel().SetFilter(bson.M{"slug": bson.M{"$nin": slugs}}))

	_, err := r.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func (r *MongoRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]CaseRecord, error) {
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]CaseRecord, 0)
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.CaseRecord)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
