package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devices/internal/device"
)

const unknownID = "3b241101-e2bb-4255-8caf-4136c566a962"

// createDevice posts a device and returns the decoded response.
func createDevice(t *testing.T, h http.Handler, name, brand string) deviceResponse {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"brand":%q}`, name, brand)
	w := doRequest(t, h, http.MethodPost, "/api/v1/devices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var dev deviceResponse
	decodeJSON(t, w, &dev)
	return dev
}

// setState patches only the state of a device.
func setState(t *testing.T, h http.Handler, id, state string) {
	t.Helper()
	w := doRequest(t, h, http.MethodPatch, "/api/v1/devices/"+id, fmt.Sprintf(`{"state":%q}`, state))
	if w.Code != http.StatusOK {
		t.Fatalf("set state %s: status = %d, body = %s", state, w.Code, w.Body.String())
	}
}

// ─── Create / Get ──────────────────────────────────────────────────

func TestCreateDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	before := time.Now().UTC().Truncate(time.Second)
	w := doRequest(t, router, http.MethodPost, "/api/v1/devices", `{"name":"Pixel","brand":"Google"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var raw map[string]any
	decodeJSON(t, w, &raw)
	for _, key := range []string{"id", "name", "brand", "state", "creation_time"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing %q: %v", key, raw)
		}
	}

	var dev deviceResponse
	decodeJSON(t, w, &dev)
	if dev.Name != "Pixel" || dev.Brand != "Google" || dev.State != "AVAILABLE" {
		t.Errorf("device = %+v", dev)
	}
	if _, err := uuid.Parse(dev.ID); err != nil {
		t.Errorf("id %q is not a UUID", dev.ID)
	}
	if got := w.Header().Get("Location"); got != "/api/v1/devices/"+dev.ID {
		t.Errorf("Location = %q", got)
	}

	ct, err := time.Parse(wireTimeLayout, raw["creation_time"].(string))
	if err != nil {
		t.Fatalf("creation_time %q not in wire layout: %v", raw["creation_time"], err)
	}
	if ct.Before(before) || ct.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("creation_time = %v, want about %v", ct, before)
	}
}

func TestCreateDevice_Validation(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name       string
		body       string
		wantFields map[string]string
	}{
		{
			name:       "missing both",
			body:       `{}`,
			wantFields: map[string]string{"name": "Device name is required", "brand": "Brand name is required"},
		},
		{
			name:       "blank name",
			body:       `{"name":"   ","brand":"Google"}`,
			wantFields: map[string]string{"name": "Device name is required"},
		},
		{
			name:       "name too long",
			body:       fmt.Sprintf(`{"name":%q,"brand":"Google"}`, strings.Repeat("n", 256)),
			wantFields: map[string]string{"name": "Device name should not be longer 255 characters"},
		},
		{
			name:       "brand too long",
			body:       fmt.Sprintf(`{"name":"Pixel","brand":%q}`, strings.Repeat("b", 256)),
			wantFields: map[string]string{"brand": "Brand name should not be longer 255 characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/api/v1/devices", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp Error
			decodeJSON(t, w, &resp)
			if resp.Code != ErrCodeValidation {
				t.Errorf("code = %q, want %q", resp.Code, ErrCodeValidation)
			}
			if len(resp.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", resp.Fields, tt.wantFields)
			}
			for k, v := range tt.wantFields {
				if resp.Fields[k] != v {
					t.Errorf("fields[%q] = %q, want %q", k, resp.Fields[k], v)
				}
			}
		})
	}

	page := listDevices(t, router, "")
	if page.Page.TotalElements != 0 {
		t.Errorf("invalid creates stored %d devices", page.Page.TotalElements)
	}
}

func TestCreateDevice_MaxLengthAccepted(t *testing.T) {
	srv, _ := testServer(t)
	dev := createDevice(t, srv.buildRouter(), strings.Repeat("é", 255), "Google")

	if len([]rune(dev.Name)) != 255 {
		t.Errorf("name length = %d runes, want 255", len([]rune(dev.Name)))
	}
}

func TestCreateDevice_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/devices", `{"name":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if resp.Message != msgInvalidJSON {
		t.Errorf("message = %q, want %q", resp.Message, msgInvalidJSON)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	created := createDevice(t, router, "Pixel", "Google")

	w := doRequest(t, router, http.MethodGet, "/api/v1/devices/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got deviceResponse
	decodeJSON(t, w, &got)
	if got != created {
		t.Errorf("got %+v, want %+v", got, created)
	}
}

func TestGetDevice_Errors(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name        string
		id          string
		wantStatus  int
		wantMessage string
	}{
		{"invalid uuid", "not-a-uuid", http.StatusBadRequest, "Invalid UUID format"},
		{"unknown", unknownID, http.StatusNotFound, "E00001: Device with provided id " + unknownID + " wasn't found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/api/v1/devices/"+tt.id, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp Error
			decodeJSON(t, w, &resp)
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

// ─── List ──────────────────────────────────────────────────────────

func listDevices(t *testing.T, h http.Handler, query string) pageResponse {
	t.Helper()
	w := doRequest(t, h, http.MethodGet, "/api/v1/devices"+query, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list%s: status = %d, body = %s", query, w.Code, w.Body.String())
	}
	var page pageResponse
	decodeJSON(t, w, &page)
	return page
}

func names(page pageResponse) []string {
	out := make([]string, 0, len(page.Content))
	for _, d := range page.Content {
		out = append(out, d.Name)
	}
	return out
}

func TestListDevices_BrandPagination(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	createDevice(t, router, "A", "X")
	createDevice(t, router, "B", "Y")
	createDevice(t, router, "C", "X")
	createDevice(t, router, "D", "X")

	first := listDevices(t, router, "?brand=X&page=0&size=2")
	if got := strings.Join(names(first), ","); got != "A,C" {
		t.Errorf("page 0 = %s, want A,C", got)
	}
	if first.Page.TotalElements != 3 || first.Page.TotalPages != 2 || first.Page.Size != 2 {
		t.Errorf("page meta = %+v", first.Page)
	}

	second := listDevices(t, router, "?brand=X&page=1&size=2")
	if got := strings.Join(names(second), ","); got != "D" {
		t.Errorf("page 1 = %s, want D", got)
	}

	beyond := listDevices(t, router, "?brand=X&page=5&size=2")
	if len(beyond.Content) != 0 || beyond.Page.TotalElements != 3 {
		t.Errorf("page beyond end = %+v", beyond)
	}

	if page := listDevices(t, router, "?brand=Nope"); len(page.Content) != 0 {
		t.Errorf("unknown brand returned %v", names(page))
	}
}

func TestListDevices_StateFilter(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	a := createDevice(t, router, "A", "X")
	createDevice(t, router, "B", "X")
	setState(t, router, a.ID, "IN_USE")

	inUse := listDevices(t, router, "?state=IN_USE")
	if got := strings.Join(names(inUse), ","); got != "A" {
		t.Errorf("IN_USE = %s, want A", got)
	}

	available := listDevices(t, router, "?state=AVAILABLE")
	if got := strings.Join(names(available), ","); got != "B" {
		t.Errorf("AVAILABLE = %s, want B", got)
	}

	all := listDevices(t, router, "")
	if all.Page.TotalElements != 2 || all.Page.Number != 0 {
		t.Errorf("unfiltered meta = %+v", all.Page)
	}
}

func TestListDevices_BadQuery(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name        string
		query       string
		wantMessage string
	}{
		{"unknown state", "?state=BROKEN", "Device state value is incorrect use: [ AVAILABLE IN_USE INACTIVE ]"},
		{"state with brand", "?brand=X&state=BROKEN", "Device state value is incorrect use: [ AVAILABLE IN_USE INACTIVE ]"},
		{"page not int", "?page=first", "page must be an integer"},
		{"size not int", "?size=big", "size must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp Error
			decodeJSON(t, w, &resp)
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

// ─── Patch ─────────────────────────────────────────────────────────

func TestUpdateDevice_InUseGuard(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")
	path := "/api/v1/devices/" + dev.ID

	setState(t, router, dev.ID, "IN_USE")

	w := doRequest(t, router, http.MethodPatch, path, `{"name":"Pixel 9"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("rename while IN_USE status = %d, want 409", w.Code)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if !strings.HasPrefix(resp.Message, "E00101: ") {
		t.Errorf("message = %q, want E00101 prefix", resp.Message)
	}

	// Same value still counts as touching the field.
	if w := doRequest(t, router, http.MethodPatch, path, `{"brand":"Google"}`); w.Code != http.StatusConflict {
		t.Errorf("same brand while IN_USE status = %d, want 409", w.Code)
	}

	setState(t, router, dev.ID, "AVAILABLE")

	w = doRequest(t, router, http.MethodPatch, path, `{"name":"Pixel 9"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body = %s", w.Code, w.Body.String())
	}
	var got deviceResponse
	decodeJSON(t, w, &got)
	if got.Name != "Pixel 9" || got.Brand != "Google" || got.State != "AVAILABLE" || got.CreationTime != dev.CreationTime {
		t.Errorf("patched device = %+v", got)
	}
}

func TestUpdateDevice_Validation(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")
	path := "/api/v1/devices/" + dev.ID

	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{"empty", `{}`, "message", "At least one field must be provided"},
		{"all null", `{"name":null,"brand":null,"state":null}`, "message", "At least one field must be provided"},
		{"blank name", `{"name":" "}`, "name", "Device name must not be blank"},
		{"bad state", `{"state":"BROKEN"}`, "state", "Invalid Device state type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPatch, path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp Error
			decodeJSON(t, w, &resp)
			if resp.Fields[tt.wantField] != tt.wantMsg {
				t.Errorf("fields = %v, want %s=%q", resp.Fields, tt.wantField, tt.wantMsg)
			}
		})
	}

	if w := doRequest(t, router, http.MethodPatch, "/api/v1/devices/"+unknownID, `{"state":"INACTIVE"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}
}

// ─── Put ───────────────────────────────────────────────────────────

func TestReplaceDevice_CreatesWithCreationTime(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	path := "/api/v1/devices/" + unknownID

	body := `{"name":"Nexus","brand":"Google","state":"INACTIVE","creation_time":"2020-01-15T10:30:00"}`
	w := doRequest(t, router, http.MethodPut, path, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != path {
		t.Errorf("Location = %q, want %q", got, path)
	}

	var dev deviceResponse
	decodeJSON(t, w, &dev)
	want := deviceResponse{
		ID:           unknownID,
		Name:         "Nexus",
		Brand:        "Google",
		State:        "INACTIVE",
		CreationTime: wireTime(time.Date(2020, 1, 15, 10, 30, 0, 0, time.UTC)),
	}
	if dev != want {
		t.Errorf("created = %+v, want %+v", dev, want)
	}

	w = doRequest(t, router, http.MethodGet, path, "")
	var stored deviceResponse
	decodeJSON(t, w, &stored)
	if stored != want {
		t.Errorf("stored = %+v, want %+v", stored, want)
	}
}

func TestReplaceDevice_RFC3339CreationTime(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"name":"Nexus","brand":"Google","state":"AVAILABLE","creation_time":"2020-01-15T12:30:00+02:00"}`
	w := doRequest(t, srv.buildRouter(), http.MethodPut, "/api/v1/devices/"+unknownID, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var raw map[string]any
	decodeJSON(t, w, &raw)
	if raw["creation_time"] != "2020-01-15T10:30:00" {
		t.Errorf("creation_time = %v, want UTC 2020-01-15T10:30:00", raw["creation_time"])
	}
}

func TestReplaceDevice_MissingCreationTime(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	path := "/api/v1/devices/" + unknownID

	w := doRequest(t, router, http.MethodPut, path, `{"name":"Nexus","brand":"Google","state":"AVAILABLE"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if resp.Message != "A required field 'creation_time' is missing" {
		t.Errorf("message = %q", resp.Message)
	}

	if w := doRequest(t, router, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("device stored after failed create: status = %d", w.Code)
	}
}

func TestReplaceDevice_Existing(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")
	path := "/api/v1/devices/" + dev.ID

	w := doRequest(t, router, http.MethodPut, path, `{"name":"Pixel 9","brand":"Google","state":"IN_USE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("replace status = %d, body = %s", w.Code, w.Body.String())
	}
	var got deviceResponse
	decodeJSON(t, w, &got)
	if got.Name != "Pixel 9" || got.State != "IN_USE" || got.CreationTime != dev.CreationTime {
		t.Errorf("replaced = %+v", got)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"rename while in use", `{"name":"Pixel 10","brand":"Google","state":"IN_USE"}`, http.StatusConflict},
		{"creation time on existing", `{"name":"Pixel 9","brand":"Google","state":"IN_USE","creation_time":"2020-01-01T00:00:00"}`, http.StatusConflict},
		{"missing state", `{"name":"Pixel 9","brand":"Google"}`, http.StatusBadRequest},
		{"bad creation time", `{"name":"Pixel 9","brand":"Google","state":"IN_USE","creation_time":"yesterday"}`, http.StatusBadRequest},
		{"unchanged fields while in use", `{"name":"Pixel 9","brand":"Google","state":"AVAILABLE"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPut, path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestReplaceDevice_InvalidID(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodPut, "/api/v1/devices/123",
		`{"name":"Nexus","brand":"Google","state":"AVAILABLE","creation_time":"2020-01-15T10:30:00"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ─── Delete ────────────────────────────────────────────────────────

func TestDeleteDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")
	path := "/api/v1/devices/" + dev.ID

	setState(t, router, dev.ID, "IN_USE")
	w := doRequest(t, router, http.MethodDelete, path, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("delete IN_USE status = %d, want 409", w.Code)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if !strings.HasPrefix(resp.Message, "E00101: ") {
		t.Errorf("message = %q", resp.Message)
	}

	setState(t, router, dev.ID, "INACTIVE")
	if w := doRequest(t, router, http.MethodDelete, path, ""); w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("delete status = %d, body = %q", w.Code, w.Body.String())
	}

	if w := doRequest(t, router, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w := doRequest(t, router, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

// ─── History ───────────────────────────────────────────────────────

func TestGetDeviceHistory(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")
	path := "/api/v1/devices/" + dev.ID + "/history"

	setState(t, router, dev.ID, "IN_USE")
	setState(t, router, dev.ID, "IN_USE")
	setState(t, router, dev.ID, "INACTIVE")

	w := doRequest(t, router, http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		DeviceID string                 `json:"device_id"`
		Entries  []historyEntryResponse `json:"entries"`
		Count    int                    `json:"count"`
	}
	decodeJSON(t, w, &resp)

	if resp.DeviceID != dev.ID || resp.Count != 3 || len(resp.Entries) != 3 {
		t.Fatalf("history = %+v", resp)
	}

	// Newest first; the repeated IN_USE patch left no entry.
	wantStates := []string{"INACTIVE", "IN_USE", "AVAILABLE"}
	for i, e := range resp.Entries {
		if e.State != wantStates[i] {
			t.Errorf("entry %d state = %q, want %q", i, e.State, wantStates[i])
		}
	}
	if resp.Entries[2].PreviousState != nil {
		t.Errorf("creation entry previous_state = %q, want null", *resp.Entries[2].PreviousState)
	}
	if p := resp.Entries[0].PreviousState; p == nil || *p != "IN_USE" {
		t.Errorf("latest previous_state = %v, want IN_USE", p)
	}

	limited := doRequest(t, router, http.MethodGet, path+"?limit=1", "")
	decodeJSON(t, limited, &resp)
	if resp.Count != 1 || resp.Entries[0].State != "INACTIVE" {
		t.Errorf("limited history = %+v", resp)
	}
}

func TestGetDeviceHistory_Errors(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	dev := createDevice(t, router, "Pixel", "Google")

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"unknown device", "/api/v1/devices/" + unknownID + "/history", http.StatusNotFound},
		{"zero limit", "/api/v1/devices/" + dev.ID + "/history?limit=0", http.StatusBadRequest},
		{"limit too large", "/api/v1/devices/" + dev.ID + "/history?limit=500", http.StatusBadRequest},
		{"limit not int", "/api/v1/devices/" + dev.ID + "/history?limit=all", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(t, router, http.MethodGet, tt.path, ""); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// ─── Unexpected errors ─────────────────────────────────────────────

// brokenDevices fails every call with an internal error.
type brokenDevices struct{}

var errStorage = errors.New("disk I/O error")

func (brokenDevices) CreateDevice(context.Context, device.CreateRequest) (*device.Device, error) {
	return nil, errStorage
}

func (brokenDevices) GetDevice(context.Context, uuid.UUID) (*device.Device, error) {
	return nil, errStorage
}

func (brokenDevices) ListDevices(context.Context, device.ListFilter, device.PageRequest) (*device.Page, error) {
	return nil, errStorage
}

func (brokenDevices) UpdateDevice(context.Context, uuid.UUID, device.PatchRequest) (*device.Device, error) {
	return nil, errStorage
}

func (brokenDevices) ReplaceDevice(context.Context, uuid.UUID, device.ReplaceRequest) (bool, *device.Device, error) {
	return false, nil, errStorage
}

func (brokenDevices) DeleteDevice(context.Context, uuid.UUID) error {
	return errStorage
}

func (brokenDevices) GetStateHistory(context.Context, uuid.UUID, int) ([]device.StateHistoryEntry, error) {
	return nil, errStorage
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	srv, err := New(Deps{Logger: testLogger(), Devices: brokenDevices{}, Version: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	router := srv.buildRouter()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/devices", `{"name":"a","brand":"b"}`},
		{http.MethodGet, "/api/v1/devices", ""},
		{http.MethodGet, "/api/v1/devices/" + unknownID, ""},
		{http.MethodPatch, "/api/v1/devices/" + unknownID, `{"state":"IN_USE"}`},
		{http.MethodDelete, "/api/v1/devices/" + unknownID, ""},
		{http.MethodGet, "/api/v1/metrics", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, tt.body)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}
			var resp Error
			decodeJSON(t, w, &resp)
			if resp.Message != "An unexpected error occurred." {
				t.Errorf("message = %q", resp.Message)
			}
			if strings.Contains(w.Body.String(), "disk") {
				t.Errorf("internal error leaked: %s", w.Body.String())
			}
		})
	}
}

// ─── Wire time ─────────────────────────────────────────────────────

func TestWireTime(t *testing.T) {
	ts := wireTime(time.Date(2024, 3, 9, 7, 5, 3, 999, time.FixedZone("CET", 3600)))
	data, err := ts.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(data) != `"2024-03-09T06:05:03"` {
		t.Errorf("MarshalJSON() = %s", data)
	}

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{`"2024-03-09T06:05:03"`, time.Date(2024, 3, 9, 6, 5, 3, 0, time.UTC), false},
		{`"2024-03-09T06:05:03Z"`, time.Date(2024, 3, 9, 6, 5, 3, 0, time.UTC), false},
		{`"2024-03-09"`, time.Time{}, true},
		{`12345`, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got wireTime
			err := got.UnmarshalJSON([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errInvalidTime) {
					t.Errorf("error = %v, want errInvalidTime", err)
				}
				return
			}
			if !time.Time(got).Equal(tt.want) {
				t.Errorf("got %v, want %v", time.Time(got), tt.want)
			}
		})
	}
}
