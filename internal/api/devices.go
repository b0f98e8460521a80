package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devices/internal/device"
)

// wireTimeLayout is the creation_time format on the wire (UTC, seconds).
const wireTimeLayout = "2006-01-02T15:04:05"

// Paging and history query limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// errInvalidTime is returned when creation_time does not parse.
var errInvalidTime = errors.New("invalid creation_time")

// wireTime is a timestamp in wireTimeLayout.
// RFC 3339 input is also accepted and converted to UTC.
type wireTime time.Time

// MarshalJSON implements json.Marshaler.
func (t wireTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).UTC().Format(wireTimeLayout))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *wireTime) UnmarshalJSON(data []byte) error {
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: expected a string", errInvalidTime)
	}
	if parsed, err := time.Parse(wireTimeLayout, raw); err == nil {
		*t = wireTime(parsed.UTC())
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		*t = wireTime(parsed.UTC())
		return nil
	}
	return fmt.Errorf("%w: expected format yyyy-MM-ddTHH:mm:ss", errInvalidTime)
}

// deviceResponse is the wire form of a device.
type deviceResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	State        string   `json:"state"`
	CreationTime wireTime `json:"creation_time"`
}

func toDeviceResponse(d *device.Device) deviceResponse {
	return deviceResponse{
		ID:           d.ID.String(),
		Name:         d.Name,
		Brand:        d.Brand,
		State:        string(d.State),
		CreationTime: wireTime(d.CreationTime),
	}
}

// pageMeta describes the page returned by a listing.
type pageMeta struct {
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// pageResponse is the body of GET /devices.
type pageResponse struct {
	Content []deviceResponse `json:"content"`
	Page    pageMeta         `json:"page"`
}

// createDeviceRequest is the body of POST /devices.
type createDeviceRequest struct {
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

// patchDeviceRequest is the body of PATCH /devices/{id}.
// Absent or null fields are left unchanged.
type patchDeviceRequest struct {
	Name  *string `json:"name"`
	Brand *string `json:"brand"`
	State *string `json:"state"`
}

// replaceDeviceRequest is the body of PUT /devices/{id}.
type replaceDeviceRequest struct {
	Name         string    `json:"name"`
	Brand        string    `json:"brand"`
	State        *string   `json:"state"`
	CreationTime *wireTime `json:"creation_time"`
}

// historyEntryResponse is one state transition on the wire.
type historyEntryResponse struct {
	ID            int64    `json:"id"`
	PreviousState *string  `json:"previous_state"`
	State         string   `json:"state"`
	ChangedAt     wireTime `json:"changed_at"`
}

// handleCreateDevice creates a new AVAILABLE device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var body createDeviceRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	dev, err := s.devices.CreateDevice(r.Context(), device.CreateRequest{
		Name:  body.Name,
		Brand: body.Brand,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/devices/"+dev.ID.String())
	writeJSON(w, http.StatusCreated, toDeviceResponse(dev))
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}

	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(dev))
}

// handleListDevices returns one page of devices.
//
// Query parameters:
//   - brand: exact brand match; wins over state when both are given
//   - state: AVAILABLE, IN_USE or INACTIVE
//   - page: zero-based page number (default 0)
//   - size: page size (default and maximum from config)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter device.ListFilter
	if raw := query.Get("state"); raw != "" {
		state, err := device.ParseState(raw)
		if err != nil {
			writeBadRequest(w, "Device state value is incorrect use: "+device.StatesDescription())
			return
		}
		filter.State = &state
	}
	if brand := query.Get("brand"); brand != "" {
		filter.Brand = &brand
	}

	number, err := queryInt(query.Get("page"))
	if err != nil {
		writeBadRequest(w, "page must be an integer")
		return
	}
	size, err := queryInt(query.Get("size"))
	if err != nil {
		writeBadRequest(w, "size must be an integer")
		return
	}

	page, err := s.devices.ListDevices(r.Context(), filter, device.PageRequest{Number: number, Size: size})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	content := make([]deviceResponse, 0, len(page.Items))
	for i := range page.Items {
		content = append(content, toDeviceResponse(&page.Items[i]))
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Content: content,
		Page: pageMeta{
			Number:        page.Number,
			Size:          page.Size,
			TotalElements: page.TotalItems,
			TotalPages:    page.TotalPages(),
		},
	})
}

// handleUpdateDevice applies a partial update.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}

	var body patchDeviceRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	dev, err := s.devices.UpdateDevice(r.Context(), id, device.PatchRequest{
		Name:  body.Name,
		Brand: body.Brand,
		State: body.State,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(dev))
}

// handleReplaceDevice replaces a device, creating it when the ID is unknown.
// It answers 201 when the device was created and 200 otherwise.
func (s *Server) handleReplaceDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}

	var body replaceDeviceRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	req := device.ReplaceRequest{
		Name:  body.Name,
		Brand: body.Brand,
		State: body.State,
	}
	if body.CreationTime != nil {
		ct := time.Time(*body.CreationTime)
		req.CreationTime = &ct
	}

	created, dev, err := s.devices.ReplaceDevice(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/devices/"+dev.ID.String())
	}
	writeJSON(w, status, toDeviceResponse(dev))
}

// handleDeleteDevice removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}

	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetDeviceHistory returns the recent state transitions of a device,
// newest first.
//
// Query parameters:
//   - limit: number of entries (default 50, max 200)
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceID(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.devices.GetStateHistory(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		entry := historyEntryResponse{
			ID:        e.ID,
			State:     string(e.State),
			ChangedAt: wireTime(e.ChangedAt),
		}
		if e.PreviousState != nil {
			prev := string(*e.PreviousState)
			entry.PreviousState = &prev
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id.String(),
		"entries":   out,
		"count":     len(out),
	})
}

// deviceID parses the {id} path parameter, writing a 400 on failure.
func (s *Server) deviceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := device.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
		case errors.Is(err, errInvalidTime):
			writeBadRequest(w, err.Error())
		default:
			writeBadRequest(w, msgInvalidJSON)
		}
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter. Empty means 0.
func queryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
	}
	return limit, nil
}
