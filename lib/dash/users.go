package dash

import (
	"github.com/veridian-dash/veridian/lib/entity"
	"github.com/veridian-dash/veridian/lib/store"
)

const (
	UserKind   = "user"
	UsersIndex = "users"
)

var userSchema = entity.Schema[User]{
	Name:    UserKind,
	Initial: func() User { return User{} },
	ID:      func(u User) string { return u.ID },
	SetID: func(u User, id string) User {
		u.ID = id
		return u
	},
}

// Users is the indexed collection of users.
type Users = entity.Collection[User]

// NewUsers opens the users collection on a store.
func NewUsers(s store.IStore, seed []User) *Users {
	return entity.NewCollection(s, userSchema, seed)
}
