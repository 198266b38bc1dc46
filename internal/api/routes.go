package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ticket-sync-service/internal/config"
	"ticket-sync-service/internal/store"
	syncpkg "ticket-sync-service/internal/sync"
)

// Handler is the local control surface: sync triggering and inspection,
// queue management, and cached reads. It plays the role of the settings
// screen for this core, so queue errors surface as plain HTTP errors.
type Handler struct {
	orchestrator *syncpkg.Orchestrator
	store        store.Store
	authToken    string
}

func NewHandler(orchestrator *syncpkg.Orchestrator, st store.Store, cfg config.ServerConfig) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		store:        st,
		authToken:    cfg.AuthToken,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/sync/trigger", h.TriggerSync)
		r.Get("/sync/status", h.GetSyncStatus)
		r.Get("/sync/history", h.GetSyncHistory)

		r.Get("/queue/pending", h.GetPendingActions)
		r.Get("/queue/failed", h.GetFailedActions)
		r.Post("/queue/{id}/retry", h.RetryAction)
		r.Delete("/queue/failed", h.PurgeFailedActions)

		r.Get("/tickets", h.GetTickets)
		r.Get("/trips/search", h.SearchTrips)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	opts := syncpkg.DefaultOptions()
	opts.Force = r.URL.Query().Get("force") == "true"

	started := h.orchestrator.Sync(r.Context(), opts)
	writeJSON(w, map[string]interface{}{
		"executed": started,
		"state":    h.orchestrator.State(r.Context()),
	})
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.orchestrator.State(r.Context()))
}

func (h *Handler) GetSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	history, err := h.store.SyncHistory(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

func (h *Handler) GetPendingActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.store.PendingActions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, actions)
}

func (h *Handler) GetFailedActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.store.FailedActions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, actions)
}

func (h *Handler) RetryAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid action id", http.StatusBadRequest)
		return
	}

	if err := h.store.RetryAction(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "action not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "requeued"})
}

func (h *Handler) PurgeFailedActions(w http.ResponseWriter, r *http.Request) {
	purged, err := h.store.PurgeFailedActions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"purged": purged})
}

func (h *Handler) GetTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.orchestrator.Tickets(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tickets)
}

func (h *Handler) SearchTrips(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")
	if origin == "" || destination == "" {
		http.Error(w, "origin and destination are required", http.StatusBadRequest)
		return
	}

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &parsed
	}

	trips, err := h.orchestrator.SearchTrips(r.Context(), origin, destination, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, trips)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// Middleware

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
