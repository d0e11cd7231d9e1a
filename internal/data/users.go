// Package data provides the MongoDB models and stores for the messaging
// core. Users are owned by the outer forum application; this package only
// reads them.
package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrUserNotFound is returned when a lookup matches no user document.
var ErrUserNotFound = errors.New("user not found")

// UsersStore performs user lookups against the shared users collection.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// GetUserByID finds a user by its numeric identifier.
func (u *UsersStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername finds a user by display name.
func (u *UsersStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists reports whether a user with the given id exists. Cheaper than
// GetUserByID when only existence matters (recipient validation on every
// send).
func (u *UsersStore) UserExists(ctx context.Context, id int64) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
