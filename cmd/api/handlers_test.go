package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/forumhub/messenger/internal/auth"
	"github.com/forumhub/messenger/internal/data"
)

// fakeUsers provides the subset of UsersStore used by the handlers.
type fakeUsers struct {
	users map[int64]*data.User
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id int64) (*data.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, data.ErrUserNotFound
}

// fakeMsgs provides the subset of MessagesStore used by the handlers.
type fakeMsgs struct {
	history   []*data.Message
	unread    int64
	partners  []*data.ChatPartner
	markCount int64
	marked    [][2]int64 // (reader, sender) pairs MarkRead was called with
}

func (f *fakeMsgs) GetHistory(ctx context.Context, userA, userB int64) ([]*data.Message, error) {
	return f.history, nil
}

func (f *fakeMsgs) MarkRead(ctx context.Context, readerID, senderID int64) (int64, error) {
	f.marked = append(f.marked, [2]int64{readerID, senderID})
	return f.markCount, nil
}

func (f *fakeMsgs) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return f.unread, nil
}

func (f *fakeMsgs) GetRecentPartners(ctx context.Context, userID int64, limit int64) ([]*data.ChatPartner, error) {
	return f.partners, nil
}

// fakePresence reports the listed user ids as online.
type fakePresence struct {
	online map[int64]bool
}

func (f *fakePresence) Online(userID int64) bool {
	return f.online[userID]
}

func newTestHandler(users *fakeUsers, msgs *fakeMsgs, jwtMgr *auth.JWTManager, presence ...*fakePresence) http.Handler {
	var p presenceTracker = &fakePresence{}
	if len(presence) > 0 {
		p = presence[0]
	}
	srv := newServer(users, msgs, p)
	mux := http.NewServeMux()
	mux.Handle("GET /chat/messages/{userID}", requireAuth(jwtMgr, http.HandlerFunc(srv.handleHistory)))
	mux.Handle("GET /chat/unread-count", requireAuth(jwtMgr, http.HandlerFunc(srv.handleUnreadCount)))
	mux.Handle("GET /chat/partners", requireAuth(jwtMgr, http.HandlerFunc(srv.handlePartners)))
	return mux
}

func bearerRequest(t *testing.T, jwtMgr *auth.JWTManager, userID int64, username, target string) *http.Request {
	t.Helper()
	token, _, err := jwtMgr.GenerateToken(userID, username, "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleHistory(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	users := &fakeUsers{users: map[int64]*data.User{
		2: {ID: 2, Username: "bob", Avatar: "avatars/bob.png"},
	}}
	msgs := &fakeMsgs{history: []*data.Message{
		{ID: bson.NewObjectID(), Content: "hi bob", SenderID: 1, RecipientID: 2},
		{ID: bson.NewObjectID(), Content: "hello alice", SenderID: 2, RecipientID: 1},
	}}
	handler := newTestHandler(users, msgs, jwtMgr)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest(t, jwtMgr, 1, "alice", "/chat/messages/2"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var views []*data.MessageView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(views))
	}
	if views[0].SenderUsername != "alice" || views[1].SenderUsername != "bob" {
		t.Fatalf("sender attribution wrong: %s / %s", views[0].SenderUsername, views[1].SenderUsername)
	}

	// Opening the history marks the peer's messages as read.
	if len(msgs.marked) != 1 || msgs.marked[0] != [2]int64{1, 2} {
		t.Fatalf("expected MarkRead(1, 2), got %v", msgs.marked)
	}
}

func TestHandleHistory_UnknownPeer(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	handler := newTestHandler(&fakeUsers{users: map[int64]*data.User{}}, &fakeMsgs{}, jwtMgr)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest(t, jwtMgr, 1, "alice", "/chat/messages/42"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlers_RequireAuth(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	handler := newTestHandler(&fakeUsers{}, &fakeMsgs{}, jwtMgr)

	for _, target := range []string{"/chat/messages/2", "/chat/unread-count", "/chat/partners"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestHandleUnreadCount(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	handler := newTestHandler(&fakeUsers{}, &fakeMsgs{unread: 7}, jwtMgr)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest(t, jwtMgr, 2, "bob", "/chat/unread-count"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["count"] != 7 {
		t.Fatalf("expected count 7, got %d", body["count"])
	}
}

func TestHandlePartners(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	msgs := &fakeMsgs{partners: []*data.ChatPartner{
		{UserID: 2, LastMessage: "latest", LastMessageAt: time.Now()},
		{UserID: 3, LastMessage: "older", LastMessageAt: time.Now().Add(-time.Hour)},
	}}
	// Only user 2 has a live connection.
	presence := &fakePresence{online: map[int64]bool{2: true}}
	handler := newTestHandler(&fakeUsers{}, msgs, jwtMgr, presence)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest(t, jwtMgr, 1, "alice", "/chat/partners"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var partners []struct {
		UserID int64 `json:"user_id"`
		Online bool  `json:"online"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &partners); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(partners) != 2 || partners[0].UserID != 2 {
		t.Fatalf("unexpected partners: %+v", partners)
	}
	if !partners[0].Online || partners[1].Online {
		t.Fatalf("presence flags wrong: %+v", partners)
	}
}
