package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message persistence and read-state operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// SaveMessage inserts a message document and returns the saved record with
// its assigned id. Messages are created unread.
func (m *MessagesStore) SaveMessage(ctx context.Context, senderID, recipientID int64, content, image string) (*Message, error) {
	msg := &Message{
		Content:     content,
		Image:       image,
		CreatedAt:   time.Now().UTC(),
		IsRead:      false,
		SenderID:    senderID,
		RecipientID: recipientID,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetHistory returns messages between two users in both directions, ordered
// oldest to newest.
func (m *MessagesStore) GetHistory(ctx context.Context, userA, userB int64) ([]*Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userA, "recipient_id": userB},
			bson.M{"sender_id": userB, "recipient_id": userA},
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips every unread message from senderID to readerID to read and
// returns the number of messages affected. The single UpdateMany keeps the
// transition atomic under concurrent sends: a message inserted while the
// update runs is either matched once or left for the next call, never
// double-counted.
func (m *MessagesStore) MarkRead(ctx context.Context, readerID, senderID int64) (int64, error) {
	filter := bson.M{
		"sender_id":    senderID,
		"recipient_id": readerID,
		"is_read":      false,
	}
	result, err := m.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// UnreadCount returns the number of unread messages addressed to the user.
func (m *MessagesStore) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M{"recipient_id": userID, "is_read": false})
}

// GetRecentPartners aggregates the users this user has exchanged messages
// with, newest conversation first, along with the last message in each.
func (m *MessagesStore) GetRecentPartners(ctx context.Context, userID int64, limit int64) ([]*ChatPartner, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "sender_id", Value: userID}},
				bson.D{{Key: "recipient_id", Value: userID}},
			}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "partner", Value: bson.D{
					{Key: "$cond", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$sender_id", userID}}},
						"$recipient_id",
						"$sender_id",
					}},
				}},
			}},
			{Key: "last_message", Value: bson.D{{Key: "$last", Value: "$content"}}},
			{Key: "last_message_at", Value: bson.D{{Key: "$last", Value: "$created_at"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID struct {
			Partner int64 `bson:"partner"`
		} `bson:"_id"`
		LastMessage   string    `bson:"last_message"`
		LastMessageAt time.Time `bson:"last_message_at"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	partners := make([]*ChatPartner, 0, len(results))
	for _, r := range results {
		partners = append(partners, &ChatPartner{
			UserID:        r.ID.Partner,
			LastMessage:   r.LastMessage,
			LastMessageAt: r.LastMessageAt,
		})
	}
	return partners, nil
}
