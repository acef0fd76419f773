package state

import (
	"context"
	"errors"
	"time"

	"eduadmin-console/internal/school"
)

// Session is the edge-held snapshot for one authenticated user: the user
// record captured at login plus the institution currently selected in the
// console. It is presentation state only; the guard never consults it and
// no access-control decision may depend on it.
type Session struct {
	UserID      string         `json:"userId"`
	User        school.User    `json:"user"`
	Institution *school.School `json:"institution,omitempty"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

// ErrNotFound is returned when no session exists for the user.
var ErrNotFound = errors.New("session not found")

// Store persists edge sessions, keyed by user id.
type Store interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, userID string) (Session, error)
	SetInstitution(ctx context.Context, userID string, inst *school.School) error
	Delete(ctx context.Context, userID string) error
}
