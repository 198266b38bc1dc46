package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ticket-sync-service/internal/config"
	"ticket-sync-service/internal/database"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.NewDatabase(config.StorageConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	s := NewSQLiteStore(db)
	t.Cleanup(func() { s.Close() })

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	return s
}

func testTrip(id int64, departure time.Time) *Trip {
	return &Trip{
		ID:              id,
		OriginCity:      "Kampala",
		DestinationCity: "Nairobi",
		DepartureTime:   departure.Unix(),
		ArrivalTime:     departure.Add(8 * time.Hour).Unix(),
		BusName:         "Highland Express",
		SeatsTotal:      49,
		SeatsAvailable:  12,
		PriceAmount:     45,
		PriceCurrency:   "USD",
		Status:          "scheduled",
		SyncedAt:        time.Now().Unix(),
	}
}

func testTicket(id, tripID int64, status TicketStatus) *Ticket {
	return &Ticket{
		ID:            id,
		TicketNumber:  fmt.Sprintf("TKT-%04d", id),
		TripID:        tripID,
		PassengerName: "Amina Okello",
		PriceAmount:   45,
		PriceCurrency: "USD",
		Status:        status,
		QRPayload:     fmt.Sprintf("qr-%d", id),
		PurchasedAt:   time.Now().Unix(),
		SyncedAt:      time.Now().Unix(),
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	version, err := s.GetMetadata(ctx, "schema_version")
	if err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("schema version = %q, want %q", version, schemaVersion)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	value, err := s.GetMetadata(ctx, "missing")
	if err != nil {
		t.Fatalf("read missing key: %v", err)
	}
	if value != "" {
		t.Errorf("missing key = %q, want empty", value)
	}

	if err := s.SetMetadata(ctx, "last_sync", "1700000000"); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "last_sync", "1700000500"); err != nil {
		t.Fatalf("overwrite metadata: %v", err)
	}

	value, err = s.GetMetadata(ctx, "last_sync")
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if value != "1700000500" {
		t.Errorf("last_sync = %q, want 1700000500", value)
	}
}

func TestPendingActionsAreFIFO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Inserted out of creation order; reads must still come back oldest
	// first, ties broken by id.
	for _, createdAt := range []int64{300, 100, 200, 100} {
		action := &QueuedAction{
			ActionType: ActionCheckIn,
			EntityType: EntityTicket,
			Payload:    []byte(`{"ticket_id":1}`),
			CreatedAt:  createdAt,
		}
		if err := s.EnqueueAction(ctx, action); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if action.ID == 0 {
			t.Fatal("enqueue did not assign an id")
		}
	}

	actions, err := s.PendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("pending = %d actions, want 4", len(actions))
	}

	wantCreated := []int64{100, 100, 200, 300}
	for i, a := range actions {
		if a.CreatedAt != wantCreated[i] {
			t.Errorf("actions[%d].CreatedAt = %d, want %d", i, a.CreatedAt, wantCreated[i])
		}
	}
	if actions[0].ID > actions[1].ID {
		t.Errorf("equal created_at not ordered by id: %d before %d", actions[0].ID, actions[1].ID)
	}

	count, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if count != 4 {
		t.Errorf("pending count = %d, want 4", count)
	}
}

func TestQueuedActionPayloadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	original := CreateBookingPayload{
		TripID:    5,
		Seats:     []string{"12A"},
		Passenger: Passenger{Name: "Amina Okello"},
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	action := &QueuedAction{
		ActionType: ActionCreateBooking,
		EntityType: EntityBooking,
		Payload:    data,
	}
	if err := s.EnqueueAction(ctx, action); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := s.PendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d actions, want 1", len(pending))
	}

	var decoded CreateBookingPayload
	if err := pending[0].DecodePayload(&decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.TripID != 5 || len(decoded.Seats) != 1 || decoded.Seats[0] != "12A" {
		t.Errorf("decoded payload = %+v", decoded)
	}
	if decoded.Passenger.Name != "Amina Okello" {
		t.Errorf("passenger = %q", decoded.Passenger.Name)
	}

	// The payload stays a JSON document when the action itself is encoded,
	// never an opaque blob.
	out, err := json.Marshal(pending[0])
	if err != nil {
		t.Fatalf("encode action: %v", err)
	}
	if !strings.Contains(string(out), `"trip_id":5`) {
		t.Errorf("encoded action = %s", out)
	}
}

func TestFailActionExhaustsRetries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	action := &QueuedAction{
		ActionType: ActionCancelTicket,
		EntityType: EntityTicket,
		Payload:    []byte(`{"ticket_id":7}`),
	}
	if err := s.EnqueueAction(ctx, action); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < MaxRetries; i++ {
		if err := s.FailAction(ctx, action.ID, "backend rejected"); err != nil {
			t.Fatalf("fail attempt %d: %v", i+1, err)
		}
	}

	pending, err := s.PendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d actions after exhaustion, want 0", len(pending))
	}

	failed, err := s.FailedActions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed = %d actions, want 1", len(failed))
	}
	if failed[0].RetryCount != MaxRetries {
		t.Errorf("retry count = %d, want %d", failed[0].RetryCount, MaxRetries)
	}
	if !failed[0].LastError.Valid || failed[0].LastError.String != "backend rejected" {
		t.Errorf("last error = %+v, want backend rejected", failed[0].LastError)
	}

	// Manual retry puts the action back into rotation with a clean slate.
	if err := s.RetryAction(ctx, action.ID); err != nil {
		t.Fatalf("retry action: %v", err)
	}
	pending, err = s.PendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending after retry: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d actions after retry, want 1", len(pending))
	}
	if pending[0].RetryCount != 0 {
		t.Errorf("retry count after reset = %d, want 0", pending[0].RetryCount)
	}
	if pending[0].LastError.Valid {
		t.Errorf("last error not cleared: %q", pending[0].LastError.String)
	}
}

func TestRetryActionUnknownID(t *testing.T) {
	s := newTestStore(t)

	err := s.RetryAction(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("retry unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestPurgeFailedActionsKeepsPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alive := &QueuedAction{ActionType: ActionCheckIn, EntityType: EntityTicket, Payload: []byte(`{}`)}
	dead := &QueuedAction{ActionType: ActionCancelTicket, EntityType: EntityTicket, Payload: []byte(`{}`)}
	for _, a := range []*QueuedAction{alive, dead} {
		if err := s.EnqueueAction(ctx, a); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	for i := 0; i < MaxRetries; i++ {
		if err := s.FailAction(ctx, dead.ID, "boom"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}

	purged, err := s.PurgeFailedActions(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	count, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if count != 1 {
		t.Errorf("pending count = %d, want 1", count)
	}

	if err := s.PurgeAllActions(ctx); err != nil {
		t.Fatalf("purge all: %v", err)
	}
	count, err = s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if count != 0 {
		t.Errorf("pending count after purge all = %d, want 0", count)
	}
}

func TestCompleteActionRemovesIt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	action := &QueuedAction{ActionType: ActionUpdateProfile, EntityType: EntityUser, Payload: []byte(`{}`)}
	if err := s.EnqueueAction(ctx, action); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.CompleteAction(ctx, action.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	count, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("pending count = %d, want 0", count)
	}
}

func TestSaveTripUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trip := testTrip(1, time.Now().Add(48*time.Hour))
	if err := s.SaveTrip(ctx, trip); err != nil {
		t.Fatalf("save trip: %v", err)
	}

	trip.SeatsAvailable = 3
	if err := s.SaveTrip(ctx, trip); err != nil {
		t.Fatalf("resave trip: %v", err)
	}

	got, err := s.Trip(ctx, 1)
	if err != nil {
		t.Fatalf("read trip: %v", err)
	}
	if got == nil {
		t.Fatal("trip not found after save")
	}
	if got.SeatsAvailable != 3 {
		t.Errorf("seats available = %d, want 3", got.SeatsAvailable)
	}

	trips, err := s.TripsByRoute(ctx, "Kampala", "Nairobi", nil)
	if err != nil {
		t.Fatalf("search trips: %v", err)
	}
	if len(trips) != 1 {
		t.Errorf("search = %d trips after resave, want 1", len(trips))
	}
}

func TestTripsByRouteFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	future := time.Now().AddDate(0, 0, 3)
	day := time.Date(future.Year(), future.Month(), future.Day(), 0, 0, 0, 0, time.Local)
	late := testTrip(1, day.Add(14*time.Hour))
	early := testTrip(2, day.Add(6*time.Hour))
	other := testTrip(3, day.Add(9*time.Hour))
	other.DestinationCity = "Kigali"

	if err := s.SaveTrips(ctx, []*Trip{late, early, other}); err != nil {
		t.Fatalf("save trips: %v", err)
	}

	// Case-insensitive substring match, ordered by departure.
	trips, err := s.TripsByRoute(ctx, "kamp", "NAIROBI", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("search = %d trips, want 2", len(trips))
	}
	if trips[0].ID != 2 || trips[1].ID != 1 {
		t.Errorf("search order = [%d %d], want [2 1]", trips[0].ID, trips[1].ID)
	}

	searchDay := day.Add(time.Hour)
	trips, err = s.TripsByRoute(ctx, "Kampala", "Nairobi", &searchDay)
	if err != nil {
		t.Fatalf("search with date: %v", err)
	}
	if len(trips) != 2 {
		t.Errorf("search on travel day = %d trips, want 2", len(trips))
	}

	wrongDay := searchDay.Add(48 * time.Hour)
	trips, err = s.TripsByRoute(ctx, "Kampala", "Nairobi", &wrongDay)
	if err != nil {
		t.Fatalf("search with wrong date: %v", err)
	}
	if len(trips) != 0 {
		t.Errorf("search on wrong day = %d trips, want 0", len(trips))
	}
}

func TestTripsByRouteMatchesWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	departure := time.Now().Add(48 * time.Hour)
	underscore := testTrip(1, departure)
	underscore.OriginCity = "San_Pedro"
	decoy := testTrip(2, departure)
	decoy.OriginCity = "SanXPedro"
	percent := testTrip(3, departure)
	percent.OriginCity = "10% Junction"
	percentDecoy := testTrip(4, departure)
	percentDecoy.OriginCity = "10th Junction"
	if err := s.SaveTrips(ctx, []*Trip{underscore, decoy, percent, percentDecoy}); err != nil {
		t.Fatalf("save trips: %v", err)
	}

	trips, err := s.TripsByRoute(ctx, "san_pedro", "Nairobi", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != 1 {
		t.Errorf("underscore search = %+v, want only trip 1", trips)
	}

	trips, err = s.TripsByRoute(ctx, "10%", "Nairobi", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != 3 {
		t.Errorf("percent search = %+v, want only trip 3", trips)
	}
}

func TestSaveTicketUpsertsCarriedTripFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trip := testTrip(10, time.Now().Add(24*time.Hour))
	ticket := testTicket(100, 0, TicketPaid)
	ticket.Trip = trip

	if err := s.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("save ticket: %v", err)
	}
	if ticket.TripID != 10 {
		t.Errorf("trip id backfilled to %d, want 10", ticket.TripID)
	}

	got, err := s.Ticket(ctx, 100)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if got == nil {
		t.Fatal("ticket not found")
	}
	if got.Trip == nil || got.Trip.ID != 10 {
		t.Fatalf("ticket trip not resolved: %+v", got.Trip)
	}

	byNumber, err := s.TicketByNumber(ctx, ticket.TicketNumber)
	if err != nil {
		t.Fatalf("read ticket by number: %v", err)
	}
	if byNumber == nil || byNumber.ID != 100 {
		t.Errorf("ticket by number = %+v, want id 100", byNumber)
	}

	missing, err := s.Ticket(ctx, 999)
	if err != nil {
		t.Fatalf("read missing ticket: %v", err)
	}
	if missing != nil {
		t.Errorf("missing ticket = %+v, want nil", missing)
	}
}

func TestTicketWithMissingTripReadsAsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trip := testTrip(20, time.Now().Add(24*time.Hour))
	ticket := testTicket(200, 20, TicketPaid)
	ticket.Trip = trip
	if err := s.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("save ticket: %v", err)
	}

	// Simulate a stale cache: the trip row vanished out from under the
	// ticket.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, 20); err != nil {
		t.Fatalf("delete trip: %v", err)
	}

	got, err := s.Ticket(ctx, 200)
	if err != nil {
		t.Fatalf("read orphan ticket: %v", err)
	}
	if got != nil {
		t.Errorf("orphan ticket = %+v, want nil", got)
	}

	all, err := s.AllTickets(ctx)
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("orphan ticket leaked into listing: %d tickets", len(all))
	}
}

func TestAllTicketsNewestPurchaseFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trip := testTrip(1, time.Now().Add(24*time.Hour))
	if err := s.SaveTrip(ctx, trip); err != nil {
		t.Fatalf("save trip: %v", err)
	}

	old := testTicket(1, 1, TicketUsed)
	old.PurchasedAt = 1000
	recent := testTicket(2, 1, TicketPaid)
	recent.PurchasedAt = 2000
	for _, tk := range []*Ticket{old, recent} {
		if err := s.SaveTicket(ctx, tk); err != nil {
			t.Fatalf("save ticket: %v", err)
		}
	}

	all, err := s.AllTickets(ctx)
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d tickets, want 2", len(all))
	}
	if all[0].ID != 2 || all[1].ID != 1 {
		t.Errorf("list order = [%d %d], want [2 1]", all[0].ID, all[1].ID)
	}
}

func TestUpcomingTicketsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := testTrip(1, time.Now().Add(-24*time.Hour))
	soon := testTrip(2, time.Now().Add(24*time.Hour))
	later := testTrip(3, time.Now().Add(48*time.Hour))
	if err := s.SaveTrips(ctx, []*Trip{past, soon, later}); err != nil {
		t.Fatalf("save trips: %v", err)
	}

	departed := testTicket(1, 1, TicketPaid)
	cancelled := testTicket(2, 2, TicketCancelled)
	farPaid := testTicket(3, 3, TicketPaid)
	nearReserved := testTicket(4, 2, TicketReserved)
	for _, tk := range []*Ticket{departed, cancelled, farPaid, nearReserved} {
		if err := s.SaveTicket(ctx, tk); err != nil {
			t.Fatalf("save ticket: %v", err)
		}
	}

	upcoming, err := s.UpcomingTickets(ctx)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("upcoming = %d tickets, want 2", len(upcoming))
	}
	if upcoming[0].ID != 4 || upcoming[1].ID != 3 {
		t.Errorf("upcoming order = [%d %d], want [4 3]", upcoming[0].ID, upcoming[1].ID)
	}
}

func TestUpdateTicketStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trip := testTrip(1, time.Now().Add(24*time.Hour))
	ticket := testTicket(1, 1, TicketPaid)
	ticket.Trip = trip
	ticket.SyncedAt = 1000
	if err := s.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("save ticket: %v", err)
	}

	if err := s.UpdateTicketStatus(ctx, 1, TicketCheckedIn); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := s.Ticket(ctx, 1)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if got.Status != TicketCheckedIn {
		t.Errorf("status = %q, want %q", got.Status, TicketCheckedIn)
	}
	if got.SyncedAt <= 1000 {
		t.Errorf("synced_at not refreshed: %d", got.SyncedAt)
	}
	if !got.CheckedInAt.Valid || got.CheckedInAt.Int64 == 0 {
		t.Errorf("checked_in_at not stamped: %+v", got.CheckedInAt)
	}

	// An authoritative check-in timestamp is never overwritten.
	stamped := testTicket(2, 1, TicketPaid)
	stamped.CheckedInAt = sql.NullInt64{Int64: 500, Valid: true}
	if err := s.SaveTicket(ctx, stamped); err != nil {
		t.Fatalf("save ticket: %v", err)
	}
	if err := s.UpdateTicketStatus(ctx, 2, TicketCheckedIn); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = s.Ticket(ctx, 2)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if got.CheckedInAt.Int64 != 500 {
		t.Errorf("checked_in_at = %d, want the original 500", got.CheckedInAt.Int64)
	}

	// Non-check-in transitions leave the timestamp alone.
	if err := s.UpdateTicketStatus(ctx, 1, TicketUsed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = s.Ticket(ctx, 1)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if !got.CheckedInAt.Valid {
		t.Errorf("checked_in_at lost on later transition: %+v", got.CheckedInAt)
	}
}

func TestCleanupOldTickets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ancient := testTrip(1, time.Now().Add(-100*24*time.Hour))
	recent := testTrip(2, time.Now().Add(-10*24*time.Hour))
	if err := s.SaveTrips(ctx, []*Trip{ancient, recent}); err != nil {
		t.Fatalf("save trips: %v", err)
	}
	for _, tk := range []*Ticket{testTicket(1, 1, TicketUsed), testTicket(2, 2, TicketUsed)} {
		if err := s.SaveTicket(ctx, tk); err != nil {
			t.Fatalf("save ticket: %v", err)
		}
	}

	deleted, err := s.CleanupOldTickets(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d tickets, want 1", deleted)
	}

	survivor, err := s.Ticket(ctx, 2)
	if err != nil {
		t.Fatalf("read survivor: %v", err)
	}
	if survivor == nil {
		t.Error("recent ticket was cleaned up")
	}
}

func TestLastSyncTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("read last sync on empty store: %v", err)
	}
	if got != nil {
		t.Errorf("last sync on empty store = %v, want nil", got)
	}

	trip := testTrip(1, time.Now().Add(24*time.Hour))
	if err := s.SaveTrip(ctx, trip); err != nil {
		t.Fatalf("save trip: %v", err)
	}
	older := testTicket(1, 1, TicketPaid)
	older.SyncedAt = 1700000000
	newer := testTicket(2, 1, TicketPaid)
	newer.SyncedAt = 1700000500
	for _, tk := range []*Ticket{older, newer} {
		if err := s.SaveTicket(ctx, tk); err != nil {
			t.Fatalf("save ticket: %v", err)
		}
	}

	got, err = s.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("read last sync: %v", err)
	}
	if got == nil || got.Unix() != 1700000500 {
		t.Errorf("last sync = %v, want unix 1700000500", got)
	}
}

func TestSyncHistoryPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, startedAt := range []int64{100, 200, 300} {
		h := &SyncHistory{
			ID:        fmt.Sprintf("run-%d", i+1),
			StartedAt: startedAt,
			Status:    "running",
		}
		if err := s.CreateSyncHistory(ctx, h); err != nil {
			t.Fatalf("create history: %v", err)
		}
	}

	page, err := s.SyncHistory(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d records, want 2", len(page))
	}
	if page[0].StartedAt != 300 || page[1].StartedAt != 200 {
		t.Errorf("page order = [%d %d], want [300 200]", page[0].StartedAt, page[1].StartedAt)
	}

	page, err = s.SyncHistory(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list history offset: %v", err)
	}
	if len(page) != 1 || page[0].StartedAt != 100 {
		t.Fatalf("offset page = %+v, want the oldest record", page)
	}

	page[0].Status = "success"
	page[0].ActionsProcessed = 5
	if err := s.UpdateSyncHistory(ctx, page[0]); err != nil {
		t.Fatalf("update history: %v", err)
	}
	page, err = s.SyncHistory(ctx, 1, 2)
	if err != nil {
		t.Fatalf("re-list history: %v", err)
	}
	if page[0].Status != "success" || page[0].ActionsProcessed != 5 {
		t.Errorf("updated record = %+v", page[0])
	}
}
