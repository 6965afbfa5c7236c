package repository

import (
	"context"

	"direct_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageCollection mongo collection of chat messages
const MessageCollection = "chat_messages"

// MessageRepository definition room message subtree
type MessageRepository interface {
	// Insert write msg, assigning its id when empty
	Insert(ctx context.Context, msg *domain.ChatMessage) (string, error)
	FindByID(ctx context.Context, roomID, messageID string) (*domain.ChatMessage, error)
	// FindByRoom return every message of the room ascending by timestamp then id
	FindByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	// UpdateText set text and mark edited at editedAt
	UpdateText(ctx context.Context, roomID, messageID, text string, editedAt int64) error
	// AddDeletedFor hide the message for partyID only
	AddDeletedFor(ctx context.Context, roomID, messageID, partyID string) error
	Delete(ctx context.Context, roomID, messageID string) error
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection(MessageCollection),
	}
}

func messageFilter(roomID, messageID string) bson.M {
	return bson.M{"_id": messageID, "room_id": roomID}
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return "", storeErr("insert message", err)
	}
	return msg.ID, nil
}

func (r *messageRepository) FindByID(ctx context.Context, roomID, messageID string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	if err := r.coll.FindOne(ctx, messageFilter(roomID, messageID)).Decode(&msg); err != nil {
		return nil, storeErr("find message", err)
	}
	return &msg, nil
}

func (r *messageRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	messages := []domain.ChatMessage{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, storeErr("list messages", err)
	}
	return messages, nil
}

func (r *messageRepository) UpdateText(ctx context.Context, roomID, messageID, text string, editedAt int64) error {
	res, err := r.coll.UpdateOne(ctx, messageFilter(roomID, messageID), bson.M{"$set": bson.M{
		"text":      text,
		"is_edited": true,
		"edited_at": editedAt,
	}})
	if err != nil {
		return storeErr("edit message", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepository) AddDeletedFor(ctx context.Context, roomID, messageID, partyID string) error {
	res, err := r.coll.UpdateOne(ctx, messageFilter(roomID, messageID), bson.M{"$set": bson.M{
		"deleted_for." + partyID: true,
	}})
	if err != nil {
		return storeErr("hide message", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, roomID, messageID string) error {
	res, err := r.coll.DeleteOne(ctx, messageFilter(roomID, messageID))
	if err != nil {
		return storeErr("delete message", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
	})
	return storeErr("message indexes", err)
}
