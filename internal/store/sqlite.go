package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ticket-sync-service/internal/database"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = "1"

// cleanupAge is how long after departure a ticket is kept in the cache.
const cleanupAge = 90 * 24 * time.Hour

// SQLiteStore is the durable Store implementation backed by the on-device
// SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(db *database.Database) *SQLiteStore {
	return &SQLiteStore{db: db.DB}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY,
		origin_city TEXT NOT NULL,
		origin_country TEXT NOT NULL DEFAULT '',
		destination_city TEXT NOT NULL,
		destination_country TEXT NOT NULL DEFAULT '',
		departure_time INTEGER NOT NULL,
		arrival_time INTEGER NOT NULL DEFAULT 0,
		bus_name TEXT NOT NULL DEFAULT '',
		bus_plate TEXT NOT NULL DEFAULT '',
		bus_capacity INTEGER NOT NULL DEFAULT 0,
		amenities TEXT NOT NULL DEFAULT '',
		seats_total INTEGER NOT NULL DEFAULT 0,
		seats_available INTEGER NOT NULL DEFAULT 0,
		price_amount REAL NOT NULL DEFAULT 0,
		price_currency TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		synced_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY,
		ticket_number TEXT NOT NULL UNIQUE,
		trip_id INTEGER NOT NULL REFERENCES trips(id),
		passenger_name TEXT NOT NULL DEFAULT '',
		passenger_phone TEXT NOT NULL DEFAULT '',
		passenger_email TEXT NOT NULL DEFAULT '',
		seat_number TEXT,
		price_amount REAL NOT NULL DEFAULT 0,
		price_currency TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		qr_payload TEXT NOT NULL DEFAULT '',
		purchased_at INTEGER NOT NULL DEFAULT 0,
		checked_in_at INTEGER,
		synced_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id INTEGER PRIMARY KEY,
		origin_city TEXT NOT NULL,
		destination_city TEXT NOT NULL,
		distance_km REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS offline_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id INTEGER,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_city TEXT NOT NULL,
		destination_city TEXT NOT NULL,
		searched_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_history (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		actions_processed INTEGER NOT NULL DEFAULT 0,
		actions_failed INTEGER NOT NULL DEFAULT 0,
		tickets_synced INTEGER NOT NULL DEFAULT 0,
		trips_synced INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_created ON offline_queue(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_trip ON tickets(trip_id)`,
}

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	if err := s.SetMetadata(ctx, "schema_version", schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM metadata WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key, value string) error {
	query := `INSERT INTO metadata (key, value) VALUES (?, ?)
			  ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write metadata %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) EnqueueAction(ctx context.Context, action *QueuedAction) error {
	if action.CreatedAt == 0 {
		action.CreatedAt = time.Now().Unix()
	}
	action.RetryCount = 0

	query := `INSERT INTO offline_queue (action_type, entity_type, entity_id, payload, created_at, retry_count)
			  VALUES (?, ?, ?, ?, ?, 0)`
	res, err := s.db.ExecContext(ctx, query,
		action.ActionType, action.EntityType, action.EntityID, string(action.Payload), action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read action id: %w", err)
	}
	action.ID = id
	return nil
}

const queueColumns = `id, action_type, entity_type, entity_id, payload, created_at, retry_count, last_error`

func (s *SQLiteStore) PendingActions(ctx context.Context) ([]*QueuedAction, error) {
	query := `SELECT ` + queueColumns + ` FROM offline_queue
			  WHERE retry_count < ? ORDER BY created_at ASC, id ASC`
	var actions []*QueuedAction
	if err := s.db.SelectContext(ctx, &actions, query, MaxRetries); err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	return actions, nil
}

func (s *SQLiteStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM offline_queue WHERE retry_count < ?`, MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CompleteAction(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to complete action %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) FailAction(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE offline_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, errMsg, id); err != nil {
		return fmt.Errorf("failed to record action failure %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) FailedActions(ctx context.Context) ([]*QueuedAction, error) {
	query := `SELECT ` + queueColumns + ` FROM offline_queue
			  WHERE retry_count >= ? ORDER BY created_at ASC, id ASC`
	var actions []*QueuedAction
	if err := s.db.SelectContext(ctx, &actions, query, MaxRetries); err != nil {
		return nil, fmt.Errorf("failed to list failed actions: %w", err)
	}
	return actions, nil
}

func (s *SQLiteStore) RetryAction(ctx context.Context, id int64) error {
	query := `UPDATE offline_queue SET retry_count = 0, last_error = NULL WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retry action %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeFailedActions removes retry-exhausted actions. Successfully replayed
// actions are already deleted by CompleteAction.
func (s *SQLiteStore) PurgeFailedActions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_queue WHERE retry_count >= ?`, MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to purge failed actions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) PurgeAllActions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue`); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveTrip(ctx context.Context, trip *Trip) error {
	if trip.SyncedAt == 0 {
		trip.SyncedAt = time.Now().Unix()
	}
	query := `INSERT INTO trips (id, origin_city, origin_country, destination_city, destination_country,
				departure_time, arrival_time, bus_name, bus_plate, bus_capacity, amenities,
				seats_total, seats_available, price_amount, price_currency, status, synced_at)
			  VALUES (:id, :origin_city, :origin_country, :destination_city, :destination_country,
				:departure_time, :arrival_time, :bus_name, :bus_plate, :bus_capacity, :amenities,
				:seats_total, :seats_available, :price_amount, :price_currency, :status, :synced_at)
			  ON CONFLICT(id) DO UPDATE SET
				origin_city = excluded.origin_city,
				origin_country = excluded.origin_country,
				destination_city = excluded.destination_city,
				destination_country = excluded.destination_country,
				departure_time = excluded.departure_time,
				arrival_time = excluded.arrival_time,
				bus_name = excluded.bus_name,
				bus_plate = excluded.bus_plate,
				bus_capacity = excluded.bus_capacity,
				amenities = excluded.amenities,
				seats_total = excluded.seats_total,
				seats_available = excluded.seats_available,
				price_amount = excluded.price_amount,
				price_currency = excluded.price_currency,
				status = excluded.status,
				synced_at = excluded.synced_at`
	if _, err := s.db.NamedExecContext(ctx, query, trip); err != nil {
		return fmt.Errorf("failed to save trip %d: %w", trip.ID, err)
	}
	return nil
}

// SaveTrips upserts trips one by one. A failure mid-list leaves earlier
// trips committed; upsert is idempotent so the whole call is safe to retry.
func (s *SQLiteStore) SaveTrips(ctx context.Context, trips []*Trip) error {
	for _, trip := range trips {
		if err := s.SaveTrip(ctx, trip); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Trip(ctx context.Context, id int64) (*Trip, error) {
	var trip Trip
	err := s.db.GetContext(ctx, &trip, `SELECT * FROM trips WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trip %d: %w", id, err)
	}
	return &trip, nil
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLiteStore) TripsByRoute(ctx context.Context, originCity, destinationCity string, date *time.Time) ([]*Trip, error) {
	query := `SELECT * FROM trips
			  WHERE LOWER(origin_city) LIKE '%' || LOWER(?) || '%' ESCAPE '\'
			    AND LOWER(destination_city) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`
	args := []interface{}{escapeLike(originCity), escapeLike(destinationCity)}

	if date != nil {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		query += ` AND departure_time >= ? AND departure_time < ?`
		args = append(args, dayStart.Unix(), dayStart.Add(24*time.Hour).Unix())
	}
	query += ` ORDER BY departure_time ASC`

	var trips []*Trip
	if err := s.db.SelectContext(ctx, &trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}
	return trips, nil
}

// SaveTicket upserts the carried trip before the ticket row so the trip
// reference always resolves.
func (s *SQLiteStore) SaveTicket(ctx context.Context, ticket *Ticket) error {
	if ticket.Trip != nil {
		if ticket.TripID == 0 {
			ticket.TripID = ticket.Trip.ID
		}
		if err := s.SaveTrip(ctx, ticket.Trip); err != nil {
			return err
		}
	}
	if ticket.SyncedAt == 0 {
		ticket.SyncedAt = time.Now().Unix()
	}

	query := `INSERT INTO tickets (id, ticket_number, trip_id, passenger_name, passenger_phone,
				passenger_email, seat_number, price_amount, price_currency, status, qr_payload,
				purchased_at, checked_in_at, synced_at)
			  VALUES (:id, :ticket_number, :trip_id, :passenger_name, :passenger_phone,
				:passenger_email, :seat_number, :price_amount, :price_currency, :status, :qr_payload,
				:purchased_at, :checked_in_at, :synced_at)
			  ON CONFLICT(id) DO UPDATE SET
				ticket_number = excluded.ticket_number,
				trip_id = excluded.trip_id,
				passenger_name = excluded.passenger_name,
				passenger_phone = excluded.passenger_phone,
				passenger_email = excluded.passenger_email,
				seat_number = excluded.seat_number,
				price_amount = excluded.price_amount,
				price_currency = excluded.price_currency,
				status = excluded.status,
				qr_payload = excluded.qr_payload,
				purchased_at = excluded.purchased_at,
				checked_in_at = excluded.checked_in_at,
				synced_at = excluded.synced_at`
	if _, err := s.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("failed to save ticket %d: %w", ticket.ID, err)
	}
	return nil
}

// attachTrip resolves the ticket's trip. A ticket whose trip is missing is
// treated as absent, never as an error.
func (s *SQLiteStore) attachTrip(ctx context.Context, ticket *Ticket) (*Ticket, error) {
	trip, err := s.Trip(ctx, ticket.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}
	ticket.Trip = trip
	return ticket, nil
}

func (s *SQLiteStore) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	var ticket Ticket
	err := s.db.GetContext(ctx, &ticket, `SELECT * FROM tickets WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket %d: %w", id, err)
	}
	return s.attachTrip(ctx, &ticket)
}

func (s *SQLiteStore) TicketByNumber(ctx context.Context, number string) (*Ticket, error) {
	var ticket Ticket
	err := s.db.GetContext(ctx, &ticket, `SELECT * FROM tickets WHERE ticket_number = ?`, number)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket %q: %w", number, err)
	}
	return s.attachTrip(ctx, &ticket)
}

func (s *SQLiteStore) selectTickets(ctx context.Context, query string, args ...interface{}) ([]*Ticket, error) {
	var tickets []*Ticket
	if err := s.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	result := make([]*Ticket, 0, len(tickets))
	for _, t := range tickets {
		resolved, err := s.attachTrip(ctx, t)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			result = append(result, resolved)
		}
	}
	return result, nil
}

func (s *SQLiteStore) AllTickets(ctx context.Context) ([]*Ticket, error) {
	query := `SELECT tickets.* FROM tickets
			  JOIN trips ON trips.id = tickets.trip_id
			  ORDER BY tickets.purchased_at DESC`
	return s.selectTickets(ctx, query)
}

func (s *SQLiteStore) UpcomingTickets(ctx context.Context) ([]*Ticket, error) {
	query := `SELECT tickets.* FROM tickets
			  JOIN trips ON trips.id = tickets.trip_id
			  WHERE trips.departure_time > ?
			    AND tickets.status IN (?, ?, ?)
			  ORDER BY trips.departure_time ASC`
	return s.selectTickets(ctx, query,
		time.Now().Unix(), TicketReserved, TicketPaid, TicketCheckedIn)
}

// UpdateTicketStatus stamps synced_at, and for a check-in also checked_in_at
// unless an authoritative timestamp is already recorded.
func (s *SQLiteStore) UpdateTicketStatus(ctx context.Context, id int64, status TicketStatus) error {
	now := time.Now().Unix()
	query := `UPDATE tickets SET status = ?, synced_at = ? WHERE id = ?`
	args := []interface{}{status, now, id}
	if status == TicketCheckedIn {
		query = `UPDATE tickets SET status = ?, synced_at = ?,
				  checked_in_at = COALESCE(checked_in_at, ?) WHERE id = ?`
		args = []interface{}{status, now, now, id}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update ticket %d status: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) CleanupOldTickets(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-cleanupAge).Unix()
	query := `DELETE FROM tickets WHERE trip_id IN
			  (SELECT id FROM trips WHERE departure_time < ?)`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old tickets: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var max int64
	err := s.db.GetContext(ctx, &max, `SELECT COALESCE(MAX(synced_at), 0) FROM tickets`)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}
	if max == 0 {
		return nil, nil
	}
	t := time.Unix(max, 0)
	return &t, nil
}

func (s *SQLiteStore) CreateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `INSERT INTO sync_history (id, started_at, completed_at, actions_processed,
				actions_failed, tickets_synced, trips_synced, status, error_message)
			  VALUES (:id, :started_at, :completed_at, :actions_processed,
				:actions_failed, :tickets_synced, :trips_synced, :status, :error_message)`
	if _, err := s.db.NamedExecContext(ctx, query, history); err != nil {
		return fmt.Errorf("failed to create sync history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `UPDATE sync_history SET completed_at = :completed_at,
				actions_processed = :actions_processed, actions_failed = :actions_failed,
				tickets_synced = :tickets_synced, trips_synced = :trips_synced,
				status = :status, error_message = :error_message
			  WHERE id = :id`
	if _, err := s.db.NamedExecContext(ctx, query, history); err != nil {
		return fmt.Errorf("failed to update sync history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SyncHistory(ctx context.Context, limit, offset int) ([]*SyncHistory, error) {
	query := `SELECT * FROM sync_history ORDER BY started_at DESC LIMIT ? OFFSET ?`
	var history []*SyncHistory
	if err := s.db.SelectContext(ctx, &history, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	return history, nil
}
