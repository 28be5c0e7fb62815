package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the read API HTTP endpoints.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler backed by the given Store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// DevicesResponse is the response for GET /v1/devices.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

// ReadingsResponse is the response for GET /v1/devices/{id}/readings.
type ReadingsResponse struct {
	EntityID string         `json:"entity_id"`
	Entries  []ReadingEntry `json:"entries"`
}

// HiveLatestResponse is the response for GET /v1/hives/{id}/latest.
type HiveLatestResponse struct {
	HiveID  int            `json:"hive_id"`
	Entries []ReadingEntry `json:"entries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ---------------------------------------------------------------------------
// GET /v1/devices
// ---------------------------------------------------------------------------

// ListDevices returns the distinct devices present in the readings table.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListDevices(r.Context())
	if err != nil {
		slog.Error("list devices", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []Device{}
	}
	writeJSON(w, http.StatusOK, DevicesResponse{Devices: devices})
}

// ---------------------------------------------------------------------------
// GET /v1/devices/{id}/readings
// ---------------------------------------------------------------------------

// GetReadings returns readings for one device ordered by timestamp
// ascending.  Optional query params start_time and end_time (RFC3339)
// bound the window.
func (h *Handler) GetReadings(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")
	if entityID == "" {
		writeErr(w, http.StatusBadRequest, "device id is required")
		return
	}

	start, end, err := parseTimeWindow(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.store.GetReadings(r.Context(), entityID, start, end)
	if err != nil {
		slog.Error("get readings", "entity_id", entityID, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to fetch readings")
		return
	}
	if entries == nil {
		entries = []ReadingEntry{}
	}

	writeJSON(w, http.StatusOK, ReadingsResponse{
		EntityID: entityID,
		Entries:  entries,
	})
}

// ---------------------------------------------------------------------------
// GET /v1/hives/{id}/latest
// ---------------------------------------------------------------------------

// HiveLatest returns the most recent reading per device/metric for the
// devices covering one hive.
func (h *Handler) HiveLatest(w http.ResponseWriter, r *http.Request) {
	hiveID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || hiveID <= 0 {
		writeErr(w, http.StatusBadRequest, "hive id must be a positive integer")
		return
	}

	entries, err := h.store.LatestForHive(r.Context(), hiveID)
	if err != nil {
		slog.Error("hive latest", "hive_id", hiveID, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to fetch hive readings")
		return
	}
	if entries == nil {
		entries = []ReadingEntry{}
	}

	writeJSON(w, http.StatusOK, HiveLatestResponse{
		HiveID:  hiveID,
		Entries: entries,
	})
}

// parseTimeWindow reads optional start_time / end_time query params.
// Both must be valid RFC3339 if present.  Defaults to a wide window.
func parseTimeWindow(r *http.Request) (start, end time.Time, err error) {
	start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

	if s := r.URL.Query().Get("start_time"); s != "" {
		start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_time: %w", err)
		}
	}

	if e := r.URL.Query().Get("end_time"); e != "" {
		end, err = time.Parse(time.RFC3339, e)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_time: %w", err)
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_time must be before or equal to end_time")
	}

	return start, end, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
