package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials covers both unknown users and wrong passwords so the
// token endpoint leaks nothing about which one failed.
var ErrBadCredentials = errors.New("bad credentials")

// User is a configured account that can exchange a password for a token.
type User struct {
	Name         string
	PasswordHash string
	Capabilities []string
}

// UserStore holds the accounts parsed from configuration.
type UserStore struct {
	users map[string]User
}

// ParseUsers reads the LEDGER_USERS format: semicolon-separated entries of
// name:bcrypt-hash:cap1|cap2. Hashes contain no colons or semicolons, so the
// split is unambiguous.
func ParseUsers(raw string) (*UserStore, error) {
	store := &UserStore{users: make(map[string]User)}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return store, nil
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed user entry %q: want name:hash:caps", entry)
		}
		name := strings.TrimSpace(parts[0])
		hash := strings.TrimSpace(parts[1])
		if name == "" || hash == "" {
			return nil, fmt.Errorf("malformed user entry %q: empty name or hash", entry)
		}
		var caps []string
		for _, c := range strings.Split(parts[2], "|") {
			if c = strings.TrimSpace(c); c != "" {
				caps = append(caps, c)
			}
		}
		store.users[name] = User{Name: name, PasswordHash: hash, Capabilities: caps}
	}
	return store, nil
}

// Len returns the number of configured users.
func (s *UserStore) Len() int {
	return len(s.users)
}

// Authenticate checks a password against the stored bcrypt hash and returns
// the matching caller.
func (s *UserStore) Authenticate(name, password string) (Caller, error) {
	user, ok := s.users[name]
	if !ok {
		return Caller{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Caller{}, ErrBadCredentials
	}
	return Caller{ID: user.Name, Name: user.Name, Capabilities: user.Capabilities}, nil
}
