package repo

import (
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository struct {
	Session  ISession
	Question IQuestionPool
	Client   *mongo.Client
}

func New(client *mongo.Client, database string) *Repository {
	db := client.Database(database)
	return &Repository{
		Client:   client,
		Session:  NewSessionRepository(db),
		Question: NewQuestionPoolRepository(db),
	}
}
