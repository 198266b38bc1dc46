package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-sync-service/internal/store"
)

func TestTicketsPrefersLiveFetchAndCaches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.goOnline()

	trip := &store.Trip{ID: 5, OriginCity: "Kampala", DestinationCity: "Nairobi",
		DepartureTime: time.Now().Add(24 * time.Hour).Unix(), SyncedAt: time.Now().Unix()}
	f.backend.tickets = []*store.Ticket{{
		ID: 1, TicketNumber: "TKT-0001", TripID: 5, Trip: trip,
		Status: store.TicketPaid, PurchasedAt: time.Now().Unix(), SyncedAt: time.Now().Unix(),
	}}

	tickets, err := f.orch.Tickets(ctx)
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != 1 {
		t.Fatalf("tickets = %+v, want the fetched ticket", tickets)
	}

	// The fetch also refreshed the cache.
	cached, err := f.store.Ticket(ctx, 1)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if cached == nil {
		t.Error("fetched ticket not cached")
	}
}

func TestTicketsFallsBackToCacheOnFetchError(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.seedTicket(t, 42, store.TicketPaid)
	f.backend.ticketsErr = errors.New("backend down")
	f.goOnline()

	tickets, err := f.orch.Tickets(ctx)
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != 42 {
		t.Errorf("tickets = %+v, want the cached ticket", tickets)
	}
}

func TestTicketsOfflineServesCacheWithoutNetwork(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.seedTicket(t, 42, store.TicketPaid)

	tickets, err := f.orch.Tickets(ctx)
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Errorf("tickets = %d, want 1 from cache", len(tickets))
	}
	if f.backend.fetchCalls != 0 {
		t.Errorf("backend called %d times while offline", f.backend.fetchCalls)
	}
}

func TestSearchTripsOnlineCachesResults(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.goOnline()

	f.backend.searchResults = []*store.Trip{{
		ID: 9, OriginCity: "Kampala", DestinationCity: "Nairobi",
		DepartureTime: time.Now().Add(24 * time.Hour).Unix(),
	}}

	trips, err := f.orch.SearchTrips(ctx, "Kampala", "Nairobi", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != 9 {
		t.Fatalf("trips = %+v, want the live result", trips)
	}

	cached, err := f.store.Trip(ctx, 9)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if cached == nil {
		t.Error("search result not cached")
	}
}

func TestSearchTripsOfflineUsesCache(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	trip := &store.Trip{ID: 9, OriginCity: "Kampala", DestinationCity: "Nairobi",
		DepartureTime: time.Now().Add(24 * time.Hour).Unix()}
	if err := f.store.SaveTrip(ctx, trip); err != nil {
		t.Fatalf("seed trip: %v", err)
	}

	trips, err := f.orch.SearchTrips(ctx, "kampala", "nairobi", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != 9 {
		t.Errorf("trips = %+v, want the cached trip", trips)
	}
	if calls := f.backend.callLog(); len(calls) != 0 {
		t.Errorf("backend called while offline: %v", calls)
	}
}
