package tags

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collName = "tagstats"

type TagStat struct {
	Tag       string    `bson:"_id" json:"tag"`
	Count     int64     `bson:"count" json:"count"`
	UpdatedAt time.Time `bson:"updatedAt" json:"-"`
}

type StatsStorage interface {
	SetCount(ctx context.Context, tag string, count int64) error
	Top(ctx context.Context, limit int) ([]TagStat, error)
}

type MongoStatsStorage struct {
	statsCollection *mongo.Collection
}

func NewStorage(ctx context.Context, db *mongo.Database) (*MongoStatsStorage, error) {
	statsCollection := db.Collection(collName)
	if err := ensureIndexes(ctx, statsCollection); err != nil {
		return nil, fmt.Errorf("failed ensure index: %w", err)
	}
	return &MongoStatsStorage{statsCollection: statsCollection}, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "count", Value: -1}},
	})
	return err
}

// SetCount upserts the count of a tag; tags no post carries any more are removed.
func (s *MongoStatsStorage) SetCount(ctx context.Context, tag string, count int64) error {
	mongoQuery := bson.M{"_id": tag}
	if count <= 0 {
		_, err := s.statsCollection.DeleteOne(ctx, mongoQuery)
		return err
	}

	item := &TagStat{
		Tag:       tag,
		Count:     count,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	mongoOpts := options.Replace().SetUpsert(true)
	_, err := s.statsCollection.ReplaceOne(ctx, mongoQuery, item, mongoOpts)
	return err
}

func (s *MongoStatsStorage) Top(ctx context.Context, limit int) ([]TagStat, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.statsCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}

	stats := []TagStat{}
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
