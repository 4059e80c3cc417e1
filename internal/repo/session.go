package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ISession interface {
	Create(ctx context.Context, session *InterviewSession) error
	Get(ctx context.Context, sessionID string) (*InterviewSession, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
	UpdateQuestionFields(ctx context.Context, sessionID string, questionIndex int, fields map[string]interface{}) error
}

type MongoSession struct {
	col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) ISession {
	return &MongoSession{col: db.Collection("interview_sessions")}
}

// Create inserts a new session document
func (r *MongoSession) Create(ctx context.Context, session *InterviewSession) error {
	_, err := r.col.InsertOne(ctx, session)
	return err
}

// Get retrieves a session by id
func (r *MongoSession) Get(ctx context.Context, sessionID string) (*InterviewSession, error) {
	var session InterviewSession
	err := r.col.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Exists checks whether a session id is already taken
func (r *MongoSession) Exists(ctx context.Context, sessionID string) (bool, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateQuestionFields merges the given fields into the question attempt at
// questionIndex via a single positional $set. Other indices and untouched
// fields at the same index are left as-is; the update is atomic at the
// document level.
func (r *MongoSession) UpdateQuestionFields(ctx context.Context, sessionID string, questionIndex int, fields map[string]interface{}) error {
	set := bson.M{}
	for field, value := range fields {
		set[questionFieldPath(questionIndex, field)] = value
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func questionFieldPath(questionIndex int, field string) string {
	return fmt.Sprintf("questions.%d.%s", questionIndex, field)
}
