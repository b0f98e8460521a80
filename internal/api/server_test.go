package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-devices/internal/audit"
	"github.com/nerrad567/gray-logic-devices/internal/auth"
	"github.com/nerrad567/gray-logic-devices/internal/device"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/logging"
	_ "github.com/nerrad567/gray-logic-devices/migrations"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testLogger returns a logger that discards everything below error.
func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// testDeps returns server dependencies backed by a real registry.
func testDeps(t *testing.T) (Deps, *device.Registry) {
	t.Helper()

	db := setupTestDB(t)
	registry := device.NewRegistry(
		device.NewSQLiteRepository(db.DB),
		device.NewSQLiteStateHistoryRepository(db.DB),
		nil,
	)

	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:  testLogger(),
		Devices: registry,
		Checks:  map[string]HealthChecker{"database": db},
		Stats:   db,
		Audit:   audit.NewSQLiteRepository(db.DB),
		Version: "test",
	}, registry
}

// testServer creates a Server with a real device registry.
func testServer(t *testing.T) (*Server, *device.Registry) {
	t.Helper()

	deps, registry := testDeps(t)
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	registry.SetEventPublisher(srv.Hub())

	return srv, registry
}

// doRequest sends a request through the router and returns the recorder.
func doRequest(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeJSON unmarshals a response body into v.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		Components map[string]string `json:"components"`
	}
	decodeJSON(t, w, &resp)

	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Components["database"] != "ok" {
		t.Errorf("database component = %q, want ok", resp.Components["database"])
	}
}

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("mqtt: not connected") }

func TestHealth_Degraded(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Checks["mqtt"] = failingChecker{}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	body := w.Body.String()
	decodeJSON(t, w, &resp)
	if resp.Status != "degraded" || resp.Components["mqtt"] != "error" || resp.Components["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
	if strings.Contains(body, "not connected") {
		t.Errorf("health body leaks dependency error: %s", body)
	}
}

func TestNew_MissingDeps(t *testing.T) {
	deps, _ := testDeps(t)

	noLogger := deps
	noLogger.Logger = nil
	if _, err := New(noLogger); err == nil {
		t.Error("New() without logger should fail")
	}

	noDevices := deps
	noDevices.Devices = nil
	if _, err := New(noDevices); err == nil {
		t.Error("New() without device service should fail")
	}

	noSecret := deps
	noSecret.Security = config.SecurityConfig{AuthEnabled: true}
	if _, err := New(noSecret); err == nil {
		t.Error("New() with auth enabled and no secret should fail")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-123")

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodOptions, "/api/v1/devices", "", "Origin", "http://localhost:3000")

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") {
		t.Errorf("Access-Control-Allow-Methods = %q, want PATCH included", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"https://panel.example"}

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "", "Origin", "https://evil.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestRecovery(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := doRequest(t, h, http.MethodGet, "/", "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if resp.Message != "An unexpected error occurred." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)
	body := `{"name":"` + strings.Repeat("a", maxRequestBodySize) + `","brand":"b"}`

	w := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/devices", body)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/nonexistent", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var resp Error
	decodeJSON(t, w, &resp)
	if resp.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeNotFound)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, registry := testServer(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := registry.CreateDevice(ctx, device.CreateRequest{Name: name, Brand: "Acme"}); err != nil {
			t.Fatalf("CreateDevice() error = %v", err)
		}
	}

	w := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var m SystemMetrics
	decodeJSON(t, w, &m)

	if m.Devices.Total != 3 || m.Devices.ByState["AVAILABLE"] != 3 || m.Devices.ByState["IN_USE"] != 0 {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.Database == nil || m.Database.OpenConnections > 1 {
		t.Errorf("database = %+v, want single-connection pool stats", m.Database)
	}
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
}

// ─── Server lifecycle ──────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	addr := srv.Addr()

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if srv.Addr() != "" {
		t.Error("Addr() should be empty after Close()")
	}

	client := &http.Client{Timeout: time.Second}
	if _, err := client.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first, _ := testServer(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Close()

	second, _ := testServer(t)
	_, port, _ := strings.Cut(first.Addr(), ":")
	second.cfg.Port, _ = strconv.Atoi(port)

	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Error("Start() on a bound port should fail")
	}
}

// ─── Authentication ────────────────────────────────────────────────

// authServer returns a router with authentication enabled.
func authServer(t *testing.T) (http.Handler, *device.Registry) {
	t.Helper()
	deps, registry := testDeps(t)
	deps.Security.AuthEnabled = true
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv.buildRouter(), registry
}

func bearer(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateAccessToken("tester", role, testJWTSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return "Bearer " + token
}

func TestAuth_TokenRequired(t *testing.T) {
	router, _ := authServer(t)

	tests := []struct {
		name   string
		header []string
	}{
		{"missing", nil},
		{"not bearer", []string{"Authorization", "Basic dXNlcjpwYXNz"}},
		{"garbage", []string{"Authorization", "Bearer not-a-token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/api/v1/devices", "", tt.header...)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}

	// Health stays public.
	if w := doRequest(t, router, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestAuth_RolePermissions(t *testing.T) {
	router, registry := authServer(t)
	dev, err := registry.CreateDevice(context.Background(), device.CreateRequest{Name: "Pump", Brand: "Acme"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	path := "/api/v1/devices/" + dev.ID.String()

	tests := []struct {
		name   string
		role   auth.Role
		method string
		path   string
		body   string
		want   int
	}{
		{"viewer lists", auth.RoleViewer, http.MethodGet, "/api/v1/devices", "", http.StatusOK},
		{"viewer reads history", auth.RoleViewer, http.MethodGet, path + "/history", "", http.StatusOK},
		{"viewer cannot create", auth.RoleViewer, http.MethodPost, "/api/v1/devices", `{"name":"x","brand":"y"}`, http.StatusForbidden},
		{"viewer cannot patch", auth.RoleViewer, http.MethodPatch, path, `{"state":"IN_USE"}`, http.StatusForbidden},
		{"operator creates", auth.RoleOperator, http.MethodPost, "/api/v1/devices", `{"name":"x","brand":"y"}`, http.StatusCreated},
		{"operator patches", auth.RoleOperator, http.MethodPatch, path, `{"name":"Pump 2"}`, http.StatusOK},
		{"operator cannot delete", auth.RoleOperator, http.MethodDelete, path, "", http.StatusForbidden},
		{"admin deletes", auth.RoleAdmin, http.MethodDelete, path, "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, tt.body, "Authorization", bearer(t, tt.role))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ─── WebSocket tickets ─────────────────────────────────────────────

func TestWSTicket_SingleUse(t *testing.T) {
	router, _ := authServer(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", "", "Authorization", bearer(t, auth.RoleViewer))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeJSON(t, w, &resp)
	if resp.Ticket == "" || resp.ExpiresIn != 60 {
		t.Errorf("ticket response = %+v", resp)
	}
}

func TestTicketStore(t *testing.T) {
	store := newTicketStore()

	ticket := store.issue("tester", auth.RoleOperator)
	entry, ok := store.consume(ticket)
	if !ok || entry.subject != "tester" || entry.role != auth.RoleOperator {
		t.Errorf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := store.consume(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}

	expired := generateTicket()
	store.tickets[expired] = ticketEntry{expiresAt: time.Now().Add(-time.Second)}
	if _, ok := store.consume(expired); ok {
		t.Error("expired ticket should not be valid")
	}

	stale := generateTicket()
	store.tickets[stale] = ticketEntry{expiresAt: time.Now().Add(-time.Second)}
	store.cleanExpired()
	if len(store.tickets) != 0 {
		t.Errorf("tickets after cleanExpired = %d, want 0", len(store.tickets))
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, channels ...string) *WSClient {
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		client.subscriptions[ch] = struct{}{}
	}
	hub.Register(client)
	return client
}

func receive(t *testing.T, client *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return WSMessage{}, false
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)
	subscribed := newTestClient(hub, ChannelStateChanged)
	other := newTestClient(hub, ChannelDeviceDeleted)

	hub.Broadcast(ChannelStateChanged, map[string]any{"device_id": "test-1"})

	msg, ok := receive(t, subscribed)
	if !ok {
		t.Fatal("timed out waiting for broadcast message")
	}
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Errorf("message = %+v", msg)
	}
	if _, ok := receive(t, other); ok {
		t.Error("unsubscribed client should not receive message")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second unregister must not panic
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_PublishDeviceEvent(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, ChannelDeviceCreated, ChannelDeviceUpdated, ChannelDeviceDeleted, ChannelStateChanged)

	available := device.StateAvailable
	dev := device.Device{ID: [16]byte{1}, Name: "Pump", Brand: "Acme", State: device.StateInUse}

	tests := []struct {
		name  string
		event device.Event
		want  []string
	}{
		{"created", device.Event{Type: device.EventCreated, Device: dev}, []string{ChannelDeviceCreated, ChannelStateChanged}},
		{"renamed", device.Event{Type: device.EventUpdated, Device: dev, PreviousState: &dev.State}, []string{ChannelDeviceUpdated}},
		{"state moved", device.Event{Type: device.EventUpdated, Device: dev, PreviousState: &available}, []string{ChannelDeviceUpdated, ChannelStateChanged}},
		{"deleted", device.Event{Type: device.EventDeleted, Device: dev}, []string{ChannelDeviceDeleted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := hub.PublishDeviceEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("PublishDeviceEvent() error = %v", err)
			}
			for _, want := range tt.want {
				msg, ok := receive(t, client)
				if !ok {
					t.Fatalf("missing %s message", want)
				}
				if msg.EventType != want {
					t.Errorf("event_type = %q, want %q", msg.EventType, want)
				}
			}
			if msg, ok := receive(t, client); ok {
				t.Errorf("unexpected extra message %+v", msg)
			}
		})
	}
}

// ─── WebSocket end to end ──────────────────────────────────────────

// startServer starts srv on a random port and returns its address.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv.Addr()
}

func TestWebSocket_DeviceEvents(t *testing.T) {
	srv, _ := testServer(t)
	addr := startServer(t, srv)

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceCreated}},
	}); err != nil {
		t.Fatalf("write subscribe message: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Errorf("ack = %+v", ack)
	}

	body := bytes.NewBufferString(`{"name":"Pixel","brand":"Google"}`)
	httpResp, err := http.Post("http://"+addr+"/api/v1/devices", "application/json", body)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", httpResp.StatusCode)
	}

	var event struct {
		Type      string `json:"type"`
		EventType string `json:"event_type"`
		Payload   struct {
			Event  string `json:"event"`
			Device struct {
				Name string `json:"name"`
			} `json:"device"`
		} `json:"payload"`
	}
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.EventType != ChannelDeviceCreated || event.Payload.Event != "created" || event.Payload.Device.Name != "Pixel" {
		t.Errorf("event = %+v", event)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	srv, _ := testServer(t)
	addr := startServer(t, srv)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"invalid json", `{not json`, WSTypeError},
		{"unknown type", `{"type":"shout","id":"x"}`, WSTypeError},
		{"unsubscribe", `{"type":"unsubscribe","id":"u1","payload":{"channels":["device.created"]}}`, WSTypeResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				t.Fatalf("read: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestWebSocket_TicketRequired(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Security.AuthEnabled = true
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	router := srv.buildRouter()

	if w := doRequest(t, router, http.MethodGet, "/api/v1/ws", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no ticket status = %d, want 401", w.Code)
	}
	if w := doRequest(t, router, http.MethodGet, "/api/v1/ws?ticket=bogus", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad ticket status = %d, want 401", w.Code)
	}

	addr := startServer(t, srv)
	ticket := srv.tickets.issue("tester", auth.RoleViewer)
	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws?ticket="+ticket, nil)
	if err != nil {
		t.Fatalf("dial with ticket failed: %v (resp: %v)", err, resp)
	}
	ws.Close()
}
