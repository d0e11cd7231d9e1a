package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/forumhub/messenger/internal/data"
	"github.com/forumhub/messenger/internal/hub"
)

// Identity is the authenticated user an operation acts on behalf of;
// threaded explicitly through every call instead of looked up ambiently.
type Identity struct {
	ID       int64
	Username string
	Avatar   string
}

// UserDirectory is the identity lookup the dispatcher validates recipients
// against.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// MessageStore is the durable message store the dispatcher persists to.
type MessageStore interface {
	SaveMessage(ctx context.Context, senderID, recipientID int64, content, image string) (*data.Message, error)
	MarkRead(ctx context.Context, readerID, senderID int64) (int64, error)
}

// ImageStore persists out-of-band message attachments and returns the
// stored filename.
type ImageStore interface {
	Save(encoded string) (string, error)
}

// Dispatcher validates, persists and fans out messages. One Dispatcher
// serves all connections; every method is safe for concurrent use.
type Dispatcher struct {
	users  UserDirectory
	msgs   MessageStore
	rooms  *hub.Rooms
	images ImageStore // nil disables attachments

	storeTimeout time.Duration

	mu        sync.Mutex
	roomLocks map[string]*roomLock
}

// roomLock is a reference-counted per-conversation mutex. The map entry is
// evicted when the last holder or waiter releases it, so the lock table
// stays proportional to in-flight sends rather than conversations ever
// touched.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher wires a dispatcher. images may be nil, in which case image
// payloads are dropped and messages go out text-only.
func NewDispatcher(users UserDirectory, msgs MessageStore, rooms *hub.Rooms, images ImageStore) *Dispatcher {
	return &Dispatcher{
		users:        users,
		msgs:         msgs,
		rooms:        rooms,
		images:       images,
		storeTimeout: 5 * time.Second,
		roomLocks:    make(map[string]*roomLock),
	}
}

// opContext returns a context for store calls. It is deliberately detached
// from the connection: a sender disconnecting mid-send must not cancel a
// persist that is already underway.
func (d *Dispatcher) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.storeTimeout)
}

// lockRoom acquires the mutex serializing persist+broadcast for one
// conversation, so room subscribers observe messages in store-commit order.
// The returned func releases the lock and drops the map entry once no one
// else holds or waits on it.
func (d *Dispatcher) lockRoom(key string) (unlock func()) {
	d.mu.Lock()
	l, ok := d.roomLocks[key]
	if !ok {
		l = &roomLock{}
		d.roomLocks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.roomLocks, key)
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher) sendError(reply hub.Sender, message string) {
	frame, err := Encode(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	_ = reply.Send(frame)
}

// SendMessage validates and persists one outgoing message, broadcasts it to
// the conversation room and notifies the recipient's other connections.
// Validation and persistence failures go back to the sender only; nothing
// is broadcast unless the message is durably stored first.
func (d *Dispatcher) SendMessage(sender Identity, p SendMessagePayload, reply hub.Sender) {
	content := strings.TrimSpace(p.Content)
	if p.RecipientID == 0 || content == "" {
		d.sendError(reply, "recipient and message text are required")
		return
	}

	ctx, cancel := d.opContext()
	defer cancel()

	exists, err := d.users.UserExists(ctx, p.RecipientID)
	if err != nil {
		log.Printf("recipient lookup failed: %v", err)
		d.sendError(reply, "failed to verify recipient")
		return
	}
	if !exists {
		d.sendError(reply, "user not found")
		return
	}

	// Attachment storage failure is non-fatal: the text is still delivered
	// without the image.
	image := ""
	if p.Image != "" && d.images != nil {
		name, err := d.images.Save(p.Image)
		if err != nil {
			log.Printf("saving chat image failed: %v", err)
		} else {
			image = name
		}
	}

	room := hub.ConversationKey(sender.ID, p.RecipientID)

	// Persistence happens-before broadcast, and both sit inside one
	// per-conversation lock so two racing sends reach room subscribers in
	// the order they committed to the store.
	unlock := d.lockRoom(room)
	msg, err := d.msgs.SaveMessage(ctx, sender.ID, p.RecipientID, content, image)
	if err != nil {
		unlock()
		log.Printf("saving message from %d to %d failed: %v", sender.ID, p.RecipientID, err)
		d.sendError(reply, "failed to save message")
		return
	}

	view := msg.View(sender.Username, sender.Avatar)
	frame, err := Encode(EventNewMessage, view)
	if err != nil {
		unlock()
		log.Printf("encoding message %s failed: %v", msg.ID.Hex(), err)
		return
	}
	d.rooms.Broadcast(room, frame)
	unlock()

	// Side-channel notification to every connection of the recipient,
	// whether or not it has the conversation open.
	notif, err := Encode(EventNotification, NotificationPayload{Type: "new_message", Message: view})
	if err == nil {
		d.rooms.Broadcast(hub.PersonalKey(p.RecipientID), notif)
	}
}

// Typing is a best-effort ephemeral broadcast to the conversation room,
// skipping the typist's own connections. Never persisted; silently dropped
// when no one is listening.
func (d *Dispatcher) Typing(sender Identity, recipientID int64) {
	if recipientID == 0 {
		return
	}
	frame, err := Encode(EventUserTyping, UserTypingPayload{UserID: sender.ID, Username: sender.Username})
	if err != nil {
		return
	}
	d.rooms.BroadcastExcept(hub.ConversationKey(sender.ID, recipientID), frame, sender.ID)
}

// MarkRead transitions all unread messages from senderID to the reader to
// read and reports the affected count back on the reader's connection.
func (d *Dispatcher) MarkRead(reader Identity, senderID int64, reply hub.Sender) {
	if senderID == 0 {
		return
	}

	ctx, cancel := d.opContext()
	defer cancel()

	count, err := d.msgs.MarkRead(ctx, reader.ID, senderID)
	if err != nil {
		log.Printf("mark read for %d from %d failed: %v", reader.ID, senderID, err)
		d.sendError(reply, "failed to mark messages read")
		return
	}

	frame, err := Encode(EventMarkedRead, MarkedReadPayload{Count: count, SenderID: senderID})
	if err != nil {
		return
	}
	_ = reply.Send(frame)
}
