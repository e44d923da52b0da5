// Package store defines the persistence interface for events, tickets and
// winners.
package store

import (
	"context"
	"errors"

	"prizedraw/internal/models"
)

var (
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the relational storage used by the lottery service.
type Store interface {
	// Users and organisers
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateOrganiser(ctx context.Context, organiser *models.Organiser) error
	DeleteOrganisers(ctx context.Context, eventID int64) (int64, error)

	// Events
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	// LockEvent reads an event and holds a write lock on it until the
	// enclosing transaction ends. Outside a transaction it behaves like GetEvent.
	LockEvent(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	DeleteEvent(ctx context.Context, id int64) error

	// Participants
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, eventID int64, identityToken string) (*models.Participant, error)
	MaxTicketNumber(ctx context.Context, eventID int64) (int64, error)
	ListParticipants(ctx context.Context, eventID int64) ([]*models.Participant, error)
	DeleteParticipants(ctx context.Context, eventID int64) (int64, error)
	ListJoinedEvents(ctx context.Context, identityToken string) ([]*models.JoinedEvent, error)

	// Winners
	CreateWinner(ctx context.Context, w *models.Winner) error
	DeleteWinners(ctx context.Context, eventID int64) (int64, error)
	ListWinners(ctx context.Context) ([]*models.Winner, error)

	// RunInTransaction calls fn with a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
