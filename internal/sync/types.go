package sync

import (
	"time"
)

// Status is the single global sync status exposed to observers.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// State is an immutable snapshot handed to subscribers. PendingActions is
// recomputed from the store whenever a snapshot is taken.
type State struct {
	Status         Status     `json:"status"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
	PendingActions int        `json:"pending_actions"`
	Error          string     `json:"error,omitempty"`
}

// Options controls one sync run.
type Options struct {
	// Force waits for an in-flight sync to finish and then runs, instead
	// of returning false like a regular call would.
	Force        bool
	SyncTickets  bool
	SyncTrips    bool
	ProcessQueue bool
}

func DefaultOptions() Options {
	return Options{
		SyncTickets:  true,
		SyncTrips:    true,
		ProcessQueue: true,
	}
}
