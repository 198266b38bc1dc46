package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ticket-sync-service/internal/logger"
)

// Probe answers a point-in-time "is the backend reachable" question.
type Probe func(ctx context.Context) bool

// HTTPProbe checks reachability by hitting the backend health endpoint.
func HTTPProbe(baseURL string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	healthURL := strings.TrimRight(baseURL, "/") + "/health"

	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < 500
	}
}

// NetworkMonitor polls connectivity on a fixed interval and notifies
// subscribers on transitions. Purely observational: it retries nothing and
// queues nothing.
type NetworkMonitor struct {
	probe    Probe
	interval time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID

	mu     gosync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

func NewNetworkMonitor(probe Probe, interval time.Duration) *NetworkMonitor {
	return &NetworkMonitor{
		probe:    probe,
		interval: interval,
		cron:     cron.New(),
		subs:     make(map[int]func(bool)),
	}
}

func (m *NetworkMonitor) Start() error {
	spec := fmt.Sprintf("@every %s", m.interval)
	id, err := m.cron.AddFunc(spec, func() {
		m.Poll(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule connectivity poll: %w", err)
	}
	m.entryID = id
	m.cron.Start()

	logger.Log.Info("Network monitor started", zap.Duration("interval", m.interval))

	// Establish the initial state without waiting a full interval.
	m.Poll(context.Background())
	return nil
}

func (m *NetworkMonitor) Stop() {
	m.cron.Stop()
	logger.Log.Info("Network monitor stopped")
}

func (m *NetworkMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback and returns an unsubscribe
// function. Callbacks run outside the monitor lock.
func (m *NetworkMonitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Poll evaluates the probe once and fires subscribers if the state flipped.
func (m *NetworkMonitor) Poll(ctx context.Context) {
	online := m.probe(ctx)

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	var subs []func(bool)
	if changed {
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		logger.Log.Info("Connectivity changed", zap.Bool("online", online))
		for _, fn := range subs {
			fn(online)
		}
	}
}
