// Package remote talks to the ticketing backend. The sync core treats it
// as an injected capability; everything here is the wire-level concern.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticket-sync-service/internal/config"
	"ticket-sync-service/internal/store"
)

// Client is the set of backend operations the sync core consumes.
type Client interface {
	// Authenticated reports whether an auth credential is configured.
	Authenticated() bool

	FetchUserTickets(ctx context.Context) ([]*store.Ticket, error)
	FetchPopularTrips(ctx context.Context) ([]*store.Trip, error)
	CreateBooking(ctx context.Context, payload store.CreateBookingPayload) (*store.Ticket, error)
	CancelTicket(ctx context.Context, ticketID int64, payload store.CancelTicketPayload) error
	UpdateProfile(ctx context.Context, payload store.UpdateProfilePayload) error
	CheckIn(ctx context.Context, ticketID int64) error
	SearchTrips(ctx context.Context, origin, destination string, date *time.Time) ([]*store.Trip, error)
}

// HTTPClient is the JSON-over-HTTP implementation of Client.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func NewHTTPClient(cfg config.BackendConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		client: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
		},
	}
}

func (c *HTTPClient) Authenticated() bool {
	return c.authToken != ""
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s %s failed: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *HTTPClient) FetchUserTickets(ctx context.Context) ([]*store.Ticket, error) {
	var tickets []*store.Ticket
	if err := c.do(ctx, http.MethodGet, "/api/tickets", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *HTTPClient) FetchPopularTrips(ctx context.Context) ([]*store.Trip, error) {
	var trips []*store.Trip
	if err := c.do(ctx, http.MethodGet, "/api/trips/popular", nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *HTTPClient) CreateBooking(ctx context.Context, payload store.CreateBookingPayload) (*store.Ticket, error) {
	var ticket store.Ticket
	if err := c.do(ctx, http.MethodPost, "/api/bookings", payload, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *HTTPClient) CancelTicket(ctx context.Context, ticketID int64, payload store.CancelTicketPayload) error {
	path := fmt.Sprintf("/api/tickets/%d/cancel", ticketID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, payload store.UpdateProfilePayload) error {
	return c.do(ctx, http.MethodPut, "/api/profile", payload, nil)
}

func (c *HTTPClient) CheckIn(ctx context.Context, ticketID int64) error {
	path := fmt.Sprintf("/api/tickets/%d/checkin", ticketID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *HTTPClient) SearchTrips(ctx context.Context, origin, destination string, date *time.Time) ([]*store.Trip, error) {
	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	if date != nil {
		q.Set("date", date.Format("2006-01-02"))
	}

	var trips []*store.Trip
	if err := c.do(ctx, http.MethodGet, "/api/trips/search?"+q.Encode(), nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
