package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

const defaultListLimit = 200

// StatusHandler serves the read-only status API.
type StatusHandler struct {
	Service ports.StatusService
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(service ports.StatusService) *StatusHandler {
	return &StatusHandler{
		Service: service,
	}
}

// HandleStatus returns the orchestrator snapshot
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Status(r.Context()))
}

// HandleCards returns detected adapters with their roles
func (h *StatusHandler) HandleCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": h.Service.Cards(),
	})
}

// HandleNetworks returns stored networks by attack score
func (h *StatusHandler) HandleNetworks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	networks, err := h.Service.Networks(r.Context(), limit)
	if err != nil {
		log.Printf("List networks failed: %v", err)
		http.Error(w, "Failed to list networks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"networks": networks,
	})
}

// HandleNetwork returns one network by BSSID
func (h *StatusHandler) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	bssid, err := domain.NormalizeMAC(mux.Vars(r)["bssid"])
	if err != nil {
		http.Error(w, "Invalid BSSID", http.StatusBadRequest)
		return
	}
	ap, err := h.Service.Network(r.Context(), bssid)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Network not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Get network %s failed: %v", bssid, err)
		http.Error(w, "Failed to load network", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ap)
}

// HandleQueue lists attack queue rows, optionally filtered by ?status=
func (h *StatusHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	status := domain.AttackStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted, domain.StatusFailed:
	default:
		http.Error(w, "Invalid status filter", http.StatusBadRequest)
		return
	}

	items, err := h.Service.Queue(r.Context(), status, limit)
	if err != nil {
		log.Printf("List queue failed: %v", err)
		http.Error(w, "Failed to list queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// HandleSessions lists scan sessions, newest first
func (h *StatusHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	sessions, err := h.Service.Sessions(r.Context(), limit)
	if err != nil {
		log.Printf("List sessions failed: %v", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// HandleHealth is the liveness probe
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}
