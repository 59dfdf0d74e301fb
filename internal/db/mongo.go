// Package db owns the Mongo connection and the case_studies indexes.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CaseStudiesCollection = "case_studies"

type Database struct {
	client      *mongo.Client
	CaseStudies *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("casehub-backend").
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Database{
		client:      client,
		CaseStudies: client.Database(dbName).Collection(CaseStudiesCollection),
	}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// caseStudyIndexes back the unique slug rule and the public list queries.
var caseStudyIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetName("slug_unique").SetUnique(true),
	},
	{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "published_at", Value: -1}},
		Options: options.Index().SetName("status_published_at"),
	},
	{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}, {Key: "industry", Value: 1}},
		Options: options.Index().SetName("status_category_industry"),
	},
}

func (d *Database) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := d.CaseStudies.Indexes().CreateMany(ctx, caseStudyIndexes); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}
