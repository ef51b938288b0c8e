package devauth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type User struct {
	ID       string
	Username string
	hash     []byte
}

// Users is a fixed in-memory user directory.
type Users struct {
	byName map[string]*User
	byID   map[string]*User
	dummy  []byte
}

// NewUsers hashes the given plaintext passwords with bcrypt at the given cost.
// User ids are derived from the username so they stay stable across restarts.
func NewUsers(passwords map[string]string, cost int) (*Users, error) {
	u := &Users{
		byName: make(map[string]*User, len(passwords)),
		byID:   make(map[string]*User, len(passwords)),
	}
	for name, password := range passwords {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		user := &User{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("mbank:user:"+name)).String(),
			Username: name,
			hash:     hash,
		}
		u.byName[name] = user
		u.byID[user.ID] = user
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	u.dummy = dummy
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users still pay for a
// bcrypt comparison so response time does not reveal which names exist.
func (u *Users) Authenticate(username, password string) (*User, error) {
	user, ok := u.byName[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(u.dummy, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (u *Users) ByID(id string) (*User, bool) {
	user, ok := u.byID[id]
	return user, ok
}
