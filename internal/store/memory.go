package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the key-value fallback implementation of Store for build
// targets without a linkable SQLite. Everything lives in process memory;
// durability is traded away, semantics are identical.
type MemoryStore struct {
	mu       sync.RWMutex
	trips    map[int64]*Trip
	tickets  map[int64]*Ticket
	queue    map[int64]*QueuedAction
	history  map[string]*SyncHistory
	metadata map[string]string
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:    make(map[int64]*Trip),
		tickets:  make(map[int64]*Ticket),
		queue:    make(map[int64]*QueuedAction),
		history:  make(map[string]*SyncHistory),
		metadata: make(map[string]string),
		nextID:   1,
	}
}

func (s *MemoryStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata["schema_version"]; !ok {
		s.metadata["schema_version"] = schemaVersion
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata[key], nil
}

func (s *MemoryStore) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
	return nil
}

func (s *MemoryStore) EnqueueAction(ctx context.Context, action *QueuedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.CreatedAt == 0 {
		action.CreatedAt = time.Now().Unix()
	}
	action.RetryCount = 0
	action.ID = s.nextID
	s.nextID++

	copied := *action
	s.queue[action.ID] = &copied
	return nil
}

func (s *MemoryStore) listActions(failed bool) []*QueuedAction {
	var actions []*QueuedAction
	for _, a := range s.queue {
		if (a.RetryCount >= MaxRetries) == failed {
			copied := *a
			actions = append(actions, &copied)
		}
	}
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].CreatedAt != actions[j].CreatedAt {
			return actions[i].CreatedAt < actions[j].CreatedAt
		}
		return actions[i].ID < actions[j].ID
	})
	return actions
}

func (s *MemoryStore) PendingActions(ctx context.Context) ([]*QueuedAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActions(false), nil
}

func (s *MemoryStore) PendingCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.queue {
		if a.RetryCount < MaxRetries {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CompleteAction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, id)
	return nil
}

func (s *MemoryStore) FailAction(ctx context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.queue[id]; ok {
		a.RetryCount++
		a.LastError.String = errMsg
		a.LastError.Valid = true
	}
	return nil
}

func (s *MemoryStore) FailedActions(ctx context.Context) ([]*QueuedAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActions(true), nil
}

func (s *MemoryStore) RetryAction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.queue[id]
	if !ok {
		return ErrNotFound
	}
	a.RetryCount = 0
	a.LastError.String = ""
	a.LastError.Valid = false
	return nil
}

func (s *MemoryStore) PurgeFailedActions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, a := range s.queue {
		if a.RetryCount >= MaxRetries {
			delete(s.queue, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) PurgeAllActions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = make(map[int64]*QueuedAction)
	return nil
}

func (s *MemoryStore) SaveTrip(ctx context.Context, trip *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveTripLocked(trip)
	return nil
}

func (s *MemoryStore) saveTripLocked(trip *Trip) {
	if trip.SyncedAt == 0 {
		trip.SyncedAt = time.Now().Unix()
	}
	copied := *trip
	s.trips[trip.ID] = &copied
}

func (s *MemoryStore) SaveTrips(ctx context.Context, trips []*Trip) error {
	for _, trip := range trips {
		if err := s.SaveTrip(ctx, trip); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Trip(ctx context.Context, id int64) (*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[id]
	if !ok {
		return nil, nil
	}
	copied := *trip
	return &copied, nil
}

func (s *MemoryStore) TripsByRoute(ctx context.Context, originCity, destinationCity string, date *time.Time) ([]*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dayStart, dayEnd int64
	if date != nil {
		start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		dayStart = start.Unix()
		dayEnd = start.Add(24 * time.Hour).Unix()
	}

	var trips []*Trip
	for _, trip := range s.trips {
		if !strings.Contains(strings.ToLower(trip.OriginCity), strings.ToLower(originCity)) {
			continue
		}
		if !strings.Contains(strings.ToLower(trip.DestinationCity), strings.ToLower(destinationCity)) {
			continue
		}
		if date != nil && (trip.DepartureTime < dayStart || trip.DepartureTime >= dayEnd) {
			continue
		}
		copied := *trip
		trips = append(trips, &copied)
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].DepartureTime < trips[j].DepartureTime
	})
	return trips, nil
}

func (s *MemoryStore) SaveTicket(ctx context.Context, ticket *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.Trip != nil {
		if ticket.TripID == 0 {
			ticket.TripID = ticket.Trip.ID
		}
		s.saveTripLocked(ticket.Trip)
	}
	if ticket.SyncedAt == 0 {
		ticket.SyncedAt = time.Now().Unix()
	}
	copied := *ticket
	copied.Trip = nil
	s.tickets[ticket.ID] = &copied
	return nil
}

func (s *MemoryStore) resolveLocked(ticket *Ticket) *Ticket {
	trip, ok := s.trips[ticket.TripID]
	if !ok {
		return nil
	}
	copied := *ticket
	tripCopy := *trip
	copied.Trip = &tripCopy
	return &copied
}

func (s *MemoryStore) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	return s.resolveLocked(ticket), nil
}

func (s *MemoryStore) TicketByNumber(ctx context.Context, number string) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ticket := range s.tickets {
		if ticket.TicketNumber == number {
			return s.resolveLocked(ticket), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AllTickets(ctx context.Context) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []*Ticket
	for _, ticket := range s.tickets {
		if resolved := s.resolveLocked(ticket); resolved != nil {
			tickets = append(tickets, resolved)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].PurchasedAt > tickets[j].PurchasedAt
	})
	return tickets, nil
}

func (s *MemoryStore) UpcomingTickets(ctx context.Context) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().Unix()
	var tickets []*Ticket
	for _, ticket := range s.tickets {
		switch ticket.Status {
		case TicketReserved, TicketPaid, TicketCheckedIn:
		default:
			continue
		}
		resolved := s.resolveLocked(ticket)
		if resolved == nil || resolved.Trip.DepartureTime <= now {
			continue
		}
		tickets = append(tickets, resolved)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].Trip.DepartureTime < tickets[j].Trip.DepartureTime
	})
	return tickets, nil
}

func (s *MemoryStore) UpdateTicketStatus(ctx context.Context, id int64, status TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket, ok := s.tickets[id]; ok {
		ticket.Status = status
		ticket.SyncedAt = time.Now().Unix()
		if status == TicketCheckedIn && !ticket.CheckedInAt.Valid {
			ticket.CheckedInAt = sql.NullInt64{Int64: time.Now().Unix(), Valid: true}
		}
	}
	return nil
}

func (s *MemoryStore) CleanupOldTickets(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-cleanupAge).Unix()
	var deleted int64
	for id, ticket := range s.tickets {
		trip, ok := s.trips[ticket.TripID]
		if ok && trip.DepartureTime >= cutoff {
			continue
		}
		if ok && trip.DepartureTime < cutoff {
			delete(s.tickets, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) LastSyncTime(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for _, ticket := range s.tickets {
		if ticket.SyncedAt > max {
			max = ticket.SyncedAt
		}
	}
	if max == 0 {
		return nil, nil
	}
	t := time.Unix(max, 0)
	return &t, nil
}

func (s *MemoryStore) CreateSyncHistory(ctx context.Context, history *SyncHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *history
	s.history[history.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateSyncHistory(ctx context.Context, history *SyncHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *history
	s.history[history.ID] = &copied
	return nil
}

func (s *MemoryStore) SyncHistory(ctx context.Context, limit, offset int) ([]*SyncHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []*SyncHistory
	for _, h := range s.history {
		copied := *h
		history = append(history, &copied)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].StartedAt > history[j].StartedAt
	})
	if offset >= len(history) {
		return nil, nil
	}
	history = history[offset:]
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	return history, nil
}
