package data

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUsersLookups(t *testing.T) {
	ctx := context.Background()
	c := openTestDB(t)
	_ = c.UsersCollection().Drop(ctx)

	users := NewUsersStore(c.UsersCollection())

	seed := &User{ID: 101, Username: "alice", Avatar: "avatars/alice.png", CreatedAt: time.Now()}
	if _, err := c.UsersCollection().InsertOne(ctx, seed); err != nil {
		t.Fatalf("seeding user failed: %v", err)
	}

	u, err := users.GetUserByID(ctx, 101)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u.Username != "alice" || u.Avatar != "avatars/alice.png" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := users.GetUserByID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	u, err = users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u.ID != 101 {
		t.Fatalf("unexpected id: %d", u.ID)
	}

	exists, err := users.UserExists(ctx, 101)
	if err != nil {
		t.Fatalf("UserExists failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected user 101 to exist")
	}
	exists, err = users.UserExists(ctx, 999)
	if err != nil {
		t.Fatalf("UserExists failed: %v", err)
	}
	if exists {
		t.Fatalf("expected user 999 to not exist")
	}
}
