// Package sync owns the offline-first synchronization state machine:
// queue draining, cache refresh, and the single global sync state the UI
// observes.
package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticket-sync-service/internal/logger"
	"ticket-sync-service/internal/remote"
	"ticket-sync-service/internal/store"
)

const metaLastSync = "last_sync"

// Orchestrator coordinates the mutation queue, the cached entities, and the
// remote backend. It is the only writer of the sync state.
type Orchestrator struct {
	store    store.Store
	remote   remote.Client
	monitor  *NetworkMonitor
	autoSync bool

	// runMu is held for the duration of a sync run. Non-forced syncs
	// TryLock it (single-flight); forced syncs wait on it.
	runMu gosync.Mutex

	mu       gosync.Mutex
	status   Status
	lastSync *time.Time
	lastErr  string
	subs     map[int]func(State)
	nextSub  int
}

func NewOrchestrator(st store.Store, rc remote.Client, monitor *NetworkMonitor, autoSync bool) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		remote:   rc,
		monitor:  monitor,
		autoSync: autoSync,
		status:   StatusIdle,
		subs:     make(map[int]func(State)),
	}

	o.seedLastSync()

	monitor.Subscribe(func(online bool) {
		if !online {
			o.setStatus(StatusOffline, "")
			return
		}
		if o.autoSync {
			go o.Sync(context.Background(), DefaultOptions())
		}
	})

	return o
}

// seedLastSync restores the last successful sync time from persisted
// metadata, falling back to the newest cached ticket.
func (o *Orchestrator) seedLastSync() {
	ctx := context.Background()

	if raw, err := o.store.GetMetadata(ctx, metaLastSync); err == nil && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			o.lastSync = &t
			return
		}
	}

	if t, err := o.store.LastSyncTime(ctx); err == nil && t != nil {
		o.lastSync = t
	}
}

// State returns the current snapshot. The pending count is always
// recomputed from the store.
func (o *Orchestrator) State(ctx context.Context) State {
	pending, err := o.store.PendingCount(ctx)
	if err != nil {
		logger.Log.Warn("Failed to count pending actions", zap.Error(err))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Status:         o.status,
		LastSyncTime:   o.lastSync,
		PendingActions: pending,
		Error:          o.lastErr,
	}
}

// Subscribe registers a state observer and returns an unsubscribe
// function. Observers receive immutable snapshots, never shared state.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) setStatus(status Status, errMsg string) {
	o.mu.Lock()
	if o.status == status && o.lastErr == errMsg {
		o.mu.Unlock()
		return
	}
	o.status = status
	o.lastErr = errMsg
	o.mu.Unlock()

	o.notify()
}

// notify fans the current snapshot out to subscribers, outside any lock.
func (o *Orchestrator) notify() {
	snapshot := o.State(context.Background())

	o.mu.Lock()
	subs := make([]func(State), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Sync runs one synchronization pass and reports whether it executed. The
// offline check comes first: an unreachable backend means no queue
// processing is attempted at all. A non-forced call while another sync is
// in flight returns false without side effects; a forced call waits for
// the running sync and then executes (forced syncs never run concurrently).
func (o *Orchestrator) Sync(ctx context.Context, opts Options) bool {
	if !o.monitor.IsOnline() {
		o.setStatus(StatusOffline, "")
		return false
	}

	if opts.Force {
		o.runMu.Lock()
	} else if !o.runMu.TryLock() {
		return false
	}
	defer o.runMu.Unlock()

	o.setStatus(StatusSyncing, "")

	history := &store.SyncHistory{
		ID:        uuid.New().String(),
		StartedAt: time.Now().Unix(),
		Status:    "running",
	}
	if err := o.store.CreateSyncHistory(ctx, history); err != nil {
		logger.Log.Warn("Failed to open sync history record", zap.Error(err))
	}

	if opts.ProcessQueue {
		processed, failed, err := o.drainQueue(ctx)
		history.ActionsProcessed = processed
		history.ActionsFailed = failed
		if err != nil {
			return o.abort(ctx, history, err)
		}
	}

	if opts.SyncTickets && o.remote.Authenticated() {
		tickets, err := o.remote.FetchUserTickets(ctx)
		if err != nil {
			return o.abort(ctx, history, fmt.Errorf("ticket sync failed: %w", err))
		}
		for _, ticket := range tickets {
			if err := o.store.SaveTicket(ctx, ticket); err != nil {
				return o.abort(ctx, history, err)
			}
		}
		history.TicketsSynced = len(tickets)
	}

	if opts.SyncTrips {
		// Best-effort offline search fallback; failures never fail the sync.
		trips, err := o.remote.FetchPopularTrips(ctx)
		if err != nil {
			logger.Log.Warn("Popular trips refresh failed", zap.Error(err))
		} else if err := o.store.SaveTrips(ctx, trips); err != nil {
			logger.Log.Warn("Failed to cache popular trips", zap.Error(err))
		} else {
			history.TripsSynced = len(trips)
		}
	}

	now := time.Now()
	if err := o.store.SetMetadata(ctx, metaLastSync, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return o.abort(ctx, history, err)
	}

	o.mu.Lock()
	o.lastSync = &now
	o.mu.Unlock()

	o.closeHistory(ctx, history, "success", "")
	o.setStatus(StatusSuccess, "")

	logger.Log.Info("Sync completed",
		zap.Int("actions_processed", history.ActionsProcessed),
		zap.Int("actions_failed", history.ActionsFailed),
		zap.Int("tickets_synced", history.TicketsSynced),
		zap.Int("trips_synced", history.TripsSynced),
	)
	return true
}

// abort settles a failed sync. Partial progress (already completed queue
// actions) is intentionally not rolled back.
func (o *Orchestrator) abort(ctx context.Context, history *store.SyncHistory, err error) bool {
	logger.Log.Error("Sync failed", zap.Error(err))
	o.closeHistory(ctx, history, "error", err.Error())
	o.setStatus(StatusError, err.Error())
	return false
}

func (o *Orchestrator) closeHistory(ctx context.Context, history *store.SyncHistory, status, errMsg string) {
	history.Status = status
	history.CompletedAt = sql.NullInt64{Int64: time.Now().Unix(), Valid: true}
	if errMsg != "" {
		history.ErrorMessage = sql.NullString{String: errMsg, Valid: true}
	}
	if err := o.store.UpdateSyncHistory(ctx, history); err != nil {
		logger.Log.Warn("Failed to close sync history record", zap.Error(err))
	}
}

// drainQueue replays pending actions strictly in FIFO order, one round
// trip at a time. A handler failure marks that action and moves on; only
// store-level errors abort the drain.
func (o *Orchestrator) drainQueue(ctx context.Context) (processed, failed int, err error) {
	actions, err := o.store.PendingActions(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, action := range actions {
		if dispatchErr := o.dispatch(ctx, action); dispatchErr != nil {
			logger.Log.Warn("Queued action failed",
				zap.Int64("action_id", action.ID),
				zap.String("action_type", string(action.ActionType)),
				zap.Int("retry_count", action.RetryCount+1),
				zap.Error(dispatchErr),
			)
			if err := o.store.FailAction(ctx, action.ID, dispatchErr.Error()); err != nil {
				return processed, failed, err
			}
			failed++
			continue
		}
		if err := o.store.CompleteAction(ctx, action.ID); err != nil {
			return processed, failed, err
		}
		processed++
	}
	return processed, failed, nil
}

// enqueue persists an action and, when connected, kicks an async sync so
// the action is replayed immediately rather than on the next poll.
func (o *Orchestrator) enqueue(ctx context.Context, actionType store.ActionType, entityType store.EntityType, entityID *int64, payload interface{}) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s payload: %w", actionType, err)
	}

	action := &store.QueuedAction{
		ActionType: actionType,
		EntityType: entityType,
		Payload:    data,
	}
	if entityID != nil {
		action.EntityID = sql.NullInt64{Int64: *entityID, Valid: true}
	}

	if err := o.store.EnqueueAction(ctx, action); err != nil {
		return 0, err
	}

	logger.Log.Info("Action queued",
		zap.Int64("action_id", action.ID),
		zap.String("action_type", string(actionType)),
	)
	o.notify()

	if o.autoSync && o.monitor.IsOnline() {
		go o.Sync(context.Background(), DefaultOptions())
	}
	return action.ID, nil
}

func (o *Orchestrator) QueueCreateBooking(ctx context.Context, payload store.CreateBookingPayload) (int64, error) {
	return o.enqueue(ctx, store.ActionCreateBooking, store.EntityBooking, nil, payload)
}

// QueueCancelTicket applies the cancellation locally before any network
// attempt; the UI reflects the intended end state immediately. If replay
// exhausts its retries the local state stays optimistically cancelled
// until the next successful authoritative ticket sync reconciles it.
func (o *Orchestrator) QueueCancelTicket(ctx context.Context, payload store.CancelTicketPayload) (int64, error) {
	if err := o.store.UpdateTicketStatus(ctx, payload.TicketID, store.TicketCancelled); err != nil {
		return 0, err
	}
	return o.enqueue(ctx, store.ActionCancelTicket, store.EntityTicket, &payload.TicketID, payload)
}

// QueueCheckIn applies the check-in optimistically, like QueueCancelTicket.
func (o *Orchestrator) QueueCheckIn(ctx context.Context, payload store.CheckInPayload) (int64, error) {
	if err := o.store.UpdateTicketStatus(ctx, payload.TicketID, store.TicketCheckedIn); err != nil {
		return 0, err
	}
	return o.enqueue(ctx, store.ActionCheckIn, store.EntityTicket, &payload.TicketID, payload)
}

func (o *Orchestrator) QueueUpdateProfile(ctx context.Context, payload store.UpdateProfilePayload) (int64, error) {
	return o.enqueue(ctx, store.ActionUpdateProfile, store.EntityUser, nil, payload)
}
