package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/airwarden/internal/adapters/web"
	"github.com/lcalzada-xor/airwarden/internal/adapters/web/server"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

func setupServer(t *testing.T) (*server.Server, *web.MockStatusService, http.Handler) {
	mockService := new(web.MockStatusService)
	srv := server.NewServer("127.0.0.1:0", mockService)
	return srv, mockService, srv.Handler()
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Status(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Status", mock.Anything).Return(domain.SystemStatus{
		AttackInterface: "wlan1",
		AttackRunning:   true,
		AttacksDone:     4,
	})

	w := do(h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got domain.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "wlan1", got.AttackInterface)
	assert.Equal(t, int64(4), got.AttacksDone)
}

func TestServer_Cards(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Cards").Return([]domain.WirelessCard{
		{Interface: "wlan0", Role: domain.RoleScanner, State: domain.CardInUse},
	})

	w := do(h, http.MethodGet, "/api/cards")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"interface":"wlan0"`)
	assert.Contains(t, w.Body.String(), `"role":"scanner"`)
}

func TestServer_NetworksLimit(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Networks", mock.Anything, 200).Return([]domain.AccessPoint{{BSSID: "00:11:22:33:44:55"}}, nil)
	mockService.On("Networks", mock.Anything, 5).Return([]domain.AccessPoint{}, nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/networks").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/networks?limit=5").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/networks?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/networks?limit=abc").Code)

	mockService.AssertNumberOfCalls(t, "Networks", 2)
}

func TestServer_Network(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Network", mock.Anything, "AA:BB:CC:DD:EE:FF").Return(&domain.AccessPoint{BSSID: "AA:BB:CC:DD:EE:FF", SSID: "lab"}, nil)
	mockService.On("Network", mock.Anything, "00:00:00:00:00:01").Return(nil, domain.ErrNotFound)
	mockService.On("Network", mock.Anything, "00:00:00:00:00:02").Return(nil, errors.New("disk gone"))

	w := do(h, http.MethodGet, "/api/networks/aa:bb:cc:dd:ee:ff")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ssid":"lab"`)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/networks/00:00:00:00:00:01").Code)
	assert.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/api/networks/00:00:00:00:00:02").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/networks/not-a-mac").Code)
}

func TestServer_QueueFilter(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Queue", mock.Anything, domain.StatusPending, 200).Return([]domain.AttackQueueItem{
		{ID: 1, BSSID: "00:11:22:33:44:55", Type: domain.AttackHandshake, Status: domain.StatusPending, Priority: 10},
	}, nil)

	w := do(h, http.MethodGet, "/api/queue?status=pending")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"handshake_capture"`)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/queue?status=exploded").Code)
}

func TestServer_Sessions(t *testing.T) {
	_, mockService, h := setupServer(t)
	mockService.On("Sessions", mock.Anything, 200).Return([]domain.ScanSession{{ID: 1, Status: domain.SessionLive}}, nil)

	w := do(h, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"live"`)
}

func TestServer_ReadOnly(t *testing.T) {
	_, mockService, h := setupServer(t)

	for _, target := range []string{"/api/status", "/api/cards", "/api/queue", "/api/networks", "/api/networks/AA:BB:CC:DD:EE:01", "/api/sessions", "/healthz", "/metrics"} {
		w := do(h, http.MethodPost, target)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, target)
	}
	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		assert.Equal(t, http.StatusMethodNotAllowed, do(h, method, "/api/queue").Code, method)
	}
	mockService.AssertNotCalled(t, "Status", mock.Anything)
	mockService.AssertNotCalled(t, "Queue", mock.Anything, mock.Anything, mock.Anything)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, _, h := setupServer(t)

	w := do(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_WebSocketFeed(t *testing.T) {
	srv, _, h := setupServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.WSManager.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.WSManager.BroadcastCardEvent(domain.CardEvent{
		Type: domain.CardAdded,
		Card: domain.WirelessCard{Interface: "wlan2", Role: domain.RoleUnassigned},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "card.added", msg.Type)
	assert.Contains(t, string(msg.Payload), `"wlan2"`)
}

func TestServer_WebSocketRejectsForeignOrigin(t *testing.T) {
	_, _, h := setupServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := ws.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv, _, _ := setupServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(7 * time.Second):
		t.Fatal("server did not stop")
	}
}
