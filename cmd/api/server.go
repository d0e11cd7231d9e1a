package main

import (
	"context"

	"github.com/forumhub/messenger/internal/data"
)

// usersStore and messagesStore are the subsets of the data stores the HTTP
// handlers use; tests substitute fakes.
type usersStore interface {
	GetUserByID(ctx context.Context, id int64) (*data.User, error)
}

type messagesStore interface {
	GetHistory(ctx context.Context, userA, userB int64) ([]*data.Message, error)
	MarkRead(ctx context.Context, readerID, senderID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	GetRecentPartners(ctx context.Context, userID int64, limit int64) ([]*data.ChatPartner, error)
}

// presenceTracker answers whether a user currently has a live websocket
// connection; backed by the hub registry in production.
type presenceTracker interface {
	Online(userID int64) bool
}

// Server holds the dependencies of the query-style HTTP endpoints. The
// real-time path lives in internal/chat and shares the same stores.
type Server struct {
	users    usersStore
	msgs     messagesStore
	presence presenceTracker
}

func newServer(users usersStore, msgs messagesStore, presence presenceTracker) *Server {
	return &Server{users: users, msgs: msgs, presence: presence}
}
