// Package chat implements the real-time messaging core: the websocket
// gateway, the per-connection event protocol and the message dispatcher.
package chat

import (
	"encoding/json"

	"github.com/forumhub/messenger/internal/data"
)

// Event names carried in the envelope, client to server and server to
// client.
const (
	EventConnected    = "connected"
	EventJoinChat     = "join_chat"
	EventJoinedChat   = "joined_chat"
	EventLeaveChat    = "leave_chat"
	EventSendMessage  = "send_message"
	EventNewMessage   = "new_message"
	EventNotification = "notification"
	EventTyping       = "typing"
	EventUserTyping   = "user_typing"
	EventMarkRead     = "mark_read"
	EventMarkedRead   = "messages_marked_read"
	EventError        = "error"
)

// Envelope is the wire frame: an event name plus its payload. Every frame
// in both directions uses this shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a payload into a complete envelope frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// RecipientPayload is the inbound payload of join_chat, leave_chat and
// typing.
type RecipientPayload struct {
	RecipientID int64 `json:"recipient_id"`
}

// SendMessagePayload is the inbound payload of send_message. Image, when
// present, is a base64 data URI.
type SendMessagePayload struct {
	RecipientID int64  `json:"recipient_id"`
	Content     string `json:"content"`
	Image       string `json:"image,omitempty"`
}

// MarkReadPayload is the inbound payload of mark_read.
type MarkReadPayload struct {
	SenderID int64 `json:"sender_id"`
}

// ConnectedPayload acknowledges a successful handshake.
type ConnectedPayload struct {
	UserID int64 `json:"user_id"`
}

// JoinedChatPayload acknowledges a join_chat request.
type JoinedChatPayload struct {
	Room        string `json:"room"`
	UserID      int64  `json:"user_id"`
	RecipientID int64  `json:"recipient_id"`
}

// NotificationPayload is pushed to the recipient's personal group so
// connections not viewing the conversation can show a badge.
type NotificationPayload struct {
	Type    string            `json:"type"`
	Message *data.MessageView `json:"message"`
}

// UserTypingPayload is broadcast to the room while a participant types.
type UserTypingPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// MarkedReadPayload reports how many messages a mark_read affected.
type MarkedReadPayload struct {
	Count    int64 `json:"count"`
	SenderID int64 `json:"sender_id"`
}

// ErrorPayload carries a validation or persistence failure back to the
// originating connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
