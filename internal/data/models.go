package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to the users collection. Identity is owned by the outer forum
// application; the messaging core only reads id and display attributes.
type User struct {
	ID        int64     `bson:"_id"`
	Username  string    `bson:"username"`
	Avatar    string    `bson:"avatar"`
	CreatedAt time.Time `bson:"created_at"`
}

// Message maps to the chat_messages collection.
type Message struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Content     string        `bson:"content"`
	Image       string        `bson:"image,omitempty"`
	CreatedAt   time.Time     `bson:"created_at"`
	IsRead      bool          `bson:"is_read"`
	SenderID    int64         `bson:"sender_id"`
	RecipientID int64         `bson:"recipient_id"`
}

// MessageView is the JSON shape of a message as delivered over the wire and
// by the history endpoint.
type MessageView struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	SenderAvatar   string    `json:"sender_avatar"`
	RecipientID    int64     `json:"recipient_id"`
}

// View renders the message for clients, attaching the sender's display
// attributes.
func (m *Message) View(senderUsername, senderAvatar string) *MessageView {
	return &MessageView{
		ID:             m.ID.Hex(),
		Content:        m.Content,
		Image:          m.Image,
		CreatedAt:      m.CreatedAt,
		IsRead:         m.IsRead,
		SenderID:       m.SenderID,
		SenderUsername: senderUsername,
		SenderAvatar:   senderAvatar,
		RecipientID:    m.RecipientID,
	}
}

// ChatPartner summarizes one conversation for the partner listing.
type ChatPartner struct {
	UserID        int64     `json:"user_id"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}
