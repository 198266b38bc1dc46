package sync

import (
	"context"
	"fmt"

	"ticket-sync-service/internal/store"
)

// dispatch replays one queued action: exactly one remote call, then the
// matching cache write on success.
func (o *Orchestrator) dispatch(ctx context.Context, action *store.QueuedAction) error {
	switch action.ActionType {
	case store.ActionCreateBooking:
		return o.replayCreateBooking(ctx, action)
	case store.ActionCancelTicket:
		return o.replayCancelTicket(ctx, action)
	case store.ActionUpdateProfile:
		return o.replayUpdateProfile(ctx, action)
	case store.ActionCheckIn:
		return o.replayCheckIn(ctx, action)
	default:
		return fmt.Errorf("unknown action type %q", action.ActionType)
	}
}

func (o *Orchestrator) replayCreateBooking(ctx context.Context, action *store.QueuedAction) error {
	var payload store.CreateBookingPayload
	if err := action.DecodePayload(&payload); err != nil {
		return err
	}

	ticket, err := o.remote.CreateBooking(ctx, payload)
	if err != nil {
		return err
	}
	return o.store.SaveTicket(ctx, ticket)
}

func (o *Orchestrator) replayCancelTicket(ctx context.Context, action *store.QueuedAction) error {
	var payload store.CancelTicketPayload
	if err := action.DecodePayload(&payload); err != nil {
		return err
	}

	if err := o.remote.CancelTicket(ctx, payload.TicketID, payload); err != nil {
		return err
	}
	// Redundant with the optimistic update applied at enqueue time; kept
	// so a replay after a partial cache restore still lands the status.
	return o.store.UpdateTicketStatus(ctx, payload.TicketID, store.TicketCancelled)
}

func (o *Orchestrator) replayUpdateProfile(ctx context.Context, action *store.QueuedAction) error {
	var payload store.UpdateProfilePayload
	if err := action.DecodePayload(&payload); err != nil {
		return err
	}
	return o.remote.UpdateProfile(ctx, payload)
}

func (o *Orchestrator) replayCheckIn(ctx context.Context, action *store.QueuedAction) error {
	var payload store.CheckInPayload
	if err := action.DecodePayload(&payload); err != nil {
		return err
	}

	if err := o.remote.CheckIn(ctx, payload.TicketID); err != nil {
		return err
	}
	return o.store.UpdateTicketStatus(ctx, payload.TicketID, store.TicketCheckedIn)
}
