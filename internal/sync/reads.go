package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticket-sync-service/internal/logger"
	"ticket-sync-service/internal/store"
)

// Tickets returns the user's tickets, preferring one live fetch when
// online and silently serving the cache otherwise. There is no retry loop
// in the read path.
func (o *Orchestrator) Tickets(ctx context.Context) ([]*store.Ticket, error) {
	if o.monitor.IsOnline() && o.remote.Authenticated() {
		tickets, err := o.remote.FetchUserTickets(ctx)
		if err == nil {
			o.cacheTickets(ctx, tickets)
			return tickets, nil
		}
		logger.Log.Warn("Live ticket fetch failed, serving cache", zap.Error(err))
	}
	return o.store.AllTickets(ctx)
}

// SearchTrips searches live when online, upserting results for later
// offline use, and falls back to the cached trips on any failure.
func (o *Orchestrator) SearchTrips(ctx context.Context, origin, destination string, date *time.Time) ([]*store.Trip, error) {
	if o.monitor.IsOnline() {
		trips, err := o.remote.SearchTrips(ctx, origin, destination, date)
		if err == nil {
			if err := o.store.SaveTrips(ctx, trips); err != nil {
				logger.Log.Warn("Failed to cache search results", zap.Error(err))
			}
			return trips, nil
		}
		logger.Log.Warn("Live trip search failed, serving cache", zap.Error(err))
	}
	return o.store.TripsByRoute(ctx, origin, destination, date)
}

func (o *Orchestrator) cacheTickets(ctx context.Context, tickets []*store.Ticket) {
	for _, ticket := range tickets {
		if err := o.store.SaveTicket(ctx, ticket); err != nil {
			logger.Log.Warn("Failed to cache ticket",
				zap.Int64("ticket_id", ticket.ID), zap.Error(err))
			return
		}
	}
}
