package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by queue operations that target a nonexistent
// action id. Entity reads report absence with a nil result instead.
var ErrNotFound = errors.New("not found")

// Store is the storage port for the sync core. Two implementations exist:
// SQLiteStore for targets with a linkable SQLite, MemoryStore as the
// key-value fallback. The implementation is chosen once at startup.
type Store interface {
	// Initialize creates the schema if absent. Idempotent; safe to call
	// multiple times.
	Initialize(ctx context.Context) error

	// Metadata
	GetMetadata(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error

	// Mutation queue
	EnqueueAction(ctx context.Context, action *QueuedAction) error
	PendingActions(ctx context.Context) ([]*QueuedAction, error)
	PendingCount(ctx context.Context) (int, error)
	CompleteAction(ctx context.Context, id int64) error
	FailAction(ctx context.Context, id int64, errMsg string) error
	FailedActions(ctx context.Context) ([]*QueuedAction, error)
	RetryAction(ctx context.Context, id int64) error
	PurgeFailedActions(ctx context.Context) (int64, error)
	PurgeAllActions(ctx context.Context) error

	// Cached entities
	SaveTrip(ctx context.Context, trip *Trip) error
	SaveTrips(ctx context.Context, trips []*Trip) error
	Trip(ctx context.Context, id int64) (*Trip, error)
	TripsByRoute(ctx context.Context, originCity, destinationCity string, date *time.Time) ([]*Trip, error)
	SaveTicket(ctx context.Context, ticket *Ticket) error
	Ticket(ctx context.Context, id int64) (*Ticket, error)
	TicketByNumber(ctx context.Context, number string) (*Ticket, error)
	AllTickets(ctx context.Context) ([]*Ticket, error)
	UpcomingTickets(ctx context.Context) ([]*Ticket, error)
	UpdateTicketStatus(ctx context.Context, id int64, status TicketStatus) error
	CleanupOldTickets(ctx context.Context) (int64, error)
	LastSyncTime(ctx context.Context) (*time.Time, error)

	// Sync history
	CreateSyncHistory(ctx context.Context, history *SyncHistory) error
	UpdateSyncHistory(ctx context.Context, history *SyncHistory) error
	SyncHistory(ctx context.Context, limit, offset int) ([]*SyncHistory, error)

	// General
	Close() error
}
