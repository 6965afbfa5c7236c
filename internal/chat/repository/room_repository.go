package repository

import (
	"context"

	"direct_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomCollection mongo collection of chat rooms
const RoomCollection = "rooms"

// RoomRepository definition chat room.
// Every write that changes the summary also advances the room clock and sets updated_at to it.
type RoomRepository interface {
	// CreateRoomIfAbsent insert room unless one with the same id exists, created reports which happened
	CreateRoomIfAbsent(ctx context.Context, room *domain.ChatRoom) (created bool, err error)
	FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error)
	// FindByParticipant list the rooms of a party, most recently updated first
	FindByParticipant(ctx context.Context, partyID string) ([]*domain.ChatRoom, error)
	// NextTimestamp advance the room clock and return it, strictly increasing per room
	NextTimestamp(ctx context.Context, roomID string) (int64, error)
	// SetLastMessage overwrite the cached summary
	SetLastMessage(ctx context.Context, roomID string, summary *domain.MessageSummary) error
	// ReplaceLastMessage swap the cached summary only while it still matches expect, nil clears it
	ReplaceLastMessage(ctx context.Context, roomID string, expect domain.SummaryKey, summary *domain.MessageSummary) (bool, error)
	// PatchLastMessageText set summary text and timestamp only while it still matches expect
	PatchLastMessageText(ctx context.Context, roomID string, expect domain.SummaryKey, text string) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

type roomRepository struct {
	roomsColl *mongo.Collection
}

// NewMongoRoomRepository create new mongo room repository
func NewMongoRoomRepository(db *mongo.Database) RoomRepository {
	return &roomRepository{
		roomsColl: db.Collection(RoomCollection),
	}
}

// tickClock pipeline stage, clock = max(clock+1, now_ms), updated_at follows
func tickClock() bson.A {
	return bson.A{
		bson.M{"$set": bson.M{"clock": bson.M{"$max": bson.A{
			bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$clock", int64(0)}}, int64(1)}},
			bson.M{"$toLong": "$$NOW"},
		}}}},
		bson.M{"$set": bson.M{"updated_at": "$clock"}},
	}
}

// summaryFilter match the room whose cached summary still denotes k
func summaryFilter(roomID string, k domain.SummaryKey) bson.M {
	or := bson.A{bson.M{"last_message.text": k.Text}}
	if k.ImageURL != "" {
		or = append(or, bson.M{"last_message.image_url": k.ImageURL})
	}
	return bson.M{
		"_id":                    roomID,
		"last_message.sender_id": k.SenderID,
		"$or":                    or,
	}
}

func (r *roomRepository) CreateRoomIfAbsent(ctx context.Context, room *domain.ChatRoom) (bool, error) {
	res, err := r.roomsColl.UpdateOne(ctx,
		bson.M{"_id": room.ID},
		bson.M{"$setOnInsert": bson.M{
			"participants":       room.Participants,
			"participant_emails": room.ParticipantEmails,
			"updated_at":         room.UpdatedAt,
			"clock":              room.Clock,
		}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// 並發的第一次接觸，另一方已建立
		return false, nil
	}
	if err != nil {
		return false, storeErr("create room", err)
	}
	return res.UpsertedCount == 1, nil
}

func (r *roomRepository) FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	if err := r.roomsColl.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		return nil, storeErr("find room", err)
	}
	return &room, nil
}

func (r *roomRepository) FindByParticipant(ctx context.Context, partyID string) ([]*domain.ChatRoom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.roomsColl.Find(ctx, bson.M{"participants": partyID}, opts)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	rooms := []*domain.ChatRoom{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, storeErr("list rooms", err)
	}
	return rooms, nil
}

func (r *roomRepository) NextTimestamp(ctx context.Context, roomID string) (int64, error) {
	update := bson.A{tickClock()[0]}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"clock": 1})

	var out struct {
		Clock int64 `bson:"clock"`
	}
	if err := r.roomsColl.FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&out); err != nil {
		return 0, storeErr("room clock", err)
	}
	return out.Clock, nil
}

func (r *roomRepository) SetLastMessage(ctx context.Context, roomID string, summary *domain.MessageSummary) error {
	update := append(tickClock(), bson.M{"$set": bson.M{"last_message": bson.M{"$literal": summary}}})
	res, err := r.roomsColl.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return storeErr("set last message", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *roomRepository) ReplaceLastMessage(ctx context.Context, roomID string, expect domain.SummaryKey, summary *domain.MessageSummary) (bool, error) {
	update := tickClock()
	if summary == nil {
		update = append(update, bson.M{"$unset": "last_message"})
	} else {
		update = append(update, bson.M{"$set": bson.M{"last_message": bson.M{"$literal": summary}}})
	}

	res, err := r.roomsColl.UpdateOne(ctx, summaryFilter(roomID, expect), update)
	if err != nil {
		return false, storeErr("replace last message", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *roomRepository) PatchLastMessageText(ctx context.Context, roomID string, expect domain.SummaryKey, text string) (bool, error) {
	update := append(tickClock(), bson.M{"$set": bson.M{
		"last_message.text":      bson.M{"$literal": text},
		"last_message.timestamp": "$clock",
	}})

	res, err := r.roomsColl.UpdateOne(ctx, summaryFilter(roomID, expect), update)
	if err != nil {
		return false, storeErr("patch last message", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *roomRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.roomsColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	return storeErr("room indexes", err)
}
