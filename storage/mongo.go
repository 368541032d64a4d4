package storage

import (
	"chat-room/contract"
	"chat-room/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoDatabase   = "chatroom"
	MongoMessageCollection = "messages"
)

// MongoMessage is the document layout of the messages collection.
type MongoMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp int64              `bson:"timestamp"` // epoch milliseconds
	User      string             `bson:"user"`
	Message   string             `bson:"message"`
}

// MongoStore reads the history back in _id order, which is insertion order.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *slog.Logger
}

func OpenMongo(ctx context.Context, uri, database string, log *slog.Logger) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(MongoMessageCollection),
		log:        log,
	}, nil
}

func (m *MongoStore) Append(ctx context.Context, message domain.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	if _, err := m.collection.InsertOne(ctx, ToMongoMessage(message)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.log.Debug("Message saved in mongo", "user", message.Sender)
	return nil
}

func (m *MongoStore) ListAll(ctx context.Context) ([]domain.Message, error) {
	m.log.Debug("Retrieving all messages from mongo")
	cursor, err := m.collection.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var documents []MongoMessage
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return lo.Map(documents, func(d MongoMessage, _ int) domain.Message {
		return d.ToMessage()
	}), nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

func ToMongoMessage(message domain.Message) MongoMessage {
	return MongoMessage{
		Timestamp: message.Millis(),
		User:      message.Sender,
		Message:   message.Body,
	}
}

func (d MongoMessage) ToMessage() domain.Message {
	return domain.MessageFromMillis(d.Timestamp, d.User, d.Message)
}

var _ contract.MessageStore = (*MongoStore)(nil)
