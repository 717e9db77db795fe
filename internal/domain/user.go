// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxUserIDLen   = 128
	MaxUserNameLen = 64
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

type User struct {
	ID    UserID `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, email, name string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(name) > MaxUserNameLen {
		name = name[:MaxUserNameLen]
	}
	return &User{ID: id, Email: email, Name: name}, nil
}

// OnlineStatus is the durable presence record kept by the store.
type OnlineStatus struct {
	Online   bool  `json:"online"`
	LastSeen int64 `json:"lastSeen"`
}
