package repo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type IQuestionPool interface {
	SampleApproved(ctx context.Context, n int) ([]QuestionRecord, error)
}

type MongoQuestionPool struct {
	col *mongo.Collection
}

func NewQuestionPoolRepository(db *mongo.Database) IQuestionPool {
	return &MongoQuestionPool{col: db.Collection("questions")}
}

// SampleApproved draws up to n approved questions at random without
// replacement. Returns fewer records when the approved pool is smaller
// than n, and an empty slice for an empty pool.
func (r *MongoQuestionPool) SampleApproved(ctx context.Context, n int) ([]QuestionRecord, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"approved": true}}},
		bson.D{{Key: "$sample", Value: bson.M{"size": n}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []QuestionRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
