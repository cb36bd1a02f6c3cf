package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/estimate/go/internal/room/coordinator"
	"github.com/mcdev12/estimate/go/internal/room/storage"
)

type testServer struct {
	*httptest.Server
	hub     *coordinator.Hub
	service *Service
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	hub := coordinator.NewHub(
		coordinator.DefaultConfig(),
		storage.NewMemoryStore(),
		clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		nil,
	)

	config := DefaultConfig()
	for _, m := range mutate {
		m(&config)
	}
	service := NewService(config, hub)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Stop(ctx)
		server.Close()
	})

	return &testServer{Server: server, hub: hub, service: service}
}

func (s *testServer) createRoom(t *testing.T, body string) (*http.Response, CreateRoomResponse) {
	t.Helper()

	resp, err := http.Post(s.URL+"/api/rooms", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out CreateRoomResponse
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (s *testServer) get(t *testing.T, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(buf.Bytes(), v), buf.String())
}
