package gateway

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/room/coordinator"
	"github.com/mcdev12/estimate/go/internal/room/storage"
)

func TestHandleCreateRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, created := srv.createRoom(t, `{"roomId":"sprint-12","hostName":"Ann","mode":"closed"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sprint-12", created.RoomID)
	assert.NotEmpty(t, created.HostToken)
	require.NotNil(t, created.State)
	assert.Equal(t, "Ann", created.State.Host.Name)
	assert.Equal(t, created.HostToken, created.State.Host.Token)
	assert.Equal(t, room.ModeClosed, created.State.Mode)

	t.Run("existing room", func(t *testing.T) {
		resp, again := srv.createRoom(t, `{"roomId":"sprint-12","hostName":"Mallory"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, again.HostToken)
		require.NotNil(t, again.State)
		assert.Equal(t, "Ann", again.State.Host.Name)
		assert.Empty(t, again.State.Host.Token)
	})

	t.Run("generated id", func(t *testing.T) {
		resp, out := srv.createRoom(t, `{"hostName":"Ann"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, out.RoomID)
		assert.Equal(t, room.ModeOpen, out.State.Mode)
	})
}

func TestHandleCreateRoom_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"hostName":`},
		{"missing host", `{"roomId":"a"}`},
		{"blank host", `{"hostName":"   "}`},
		{"unknown mode", `{"hostName":"Ann","mode":"secret"}`},
		{"long host", `{"hostName":"` + strings.Repeat("a", 51) + `"}`},
		{"room id with slash", `{"roomId":"a/b","hostName":"Ann"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := srv.createRoom(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	require.Eventually(t, func() bool {
		return srv.hub.ActiveRooms() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleGetRoomState(t *testing.T) {
	srv := newTestServer(t)
	_, created := srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	t.Run("anonymous", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/r1/state", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var s room.State
		decodeBody(t, resp, &s)
		assert.Equal(t, "r1", s.RoomID)
		assert.Empty(t, s.Host.Token)
	})

	t.Run("host", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/r1/state", created.HostToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var s room.State
		decodeBody(t, resp, &s)
		assert.Equal(t, created.HostToken, s.Host.Token)
	})

	t.Run("wrong token", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/r1/state", "nope")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var s room.State
		decodeBody(t, resp, &s)
		assert.Empty(t, s.Host.Token)
	})

	t.Run("unknown room", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/missing/state", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHandleExportRoom(t *testing.T) {
	srv := newTestServer(t)
	_, created := srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	token := created.HostToken
	for _, payload := range []string{
		`{"type":"add_task","actor":"Ann","title":"Login"}`,
		`{"type":"start_voting","hostToken":"` + token + `"}`,
		`{"type":"cast_vote","actor":"Ann","value":"5"}`,
		`{"type":"reveal","hostToken":"` + token + `"}`,
	} {
		require.NoError(t, srv.hub.Dispatch(context.Background(), "r1", newRecorder("host"), []byte(payload)))
	}

	t.Run("requires host token", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/r1/export.csv", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("host", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/r1/export.csv", token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Login", records[1][0])
		assert.Equal(t, "Ann=5", records[1][4])
	})

	t.Run("unknown room", func(t *testing.T) {
		resp := srv.get(t, "/api/rooms/missing/export.csv", token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, bearerToken(r), tt.header)
	}
}

// recorder is an observer that discards frames.
type recorder struct{ id string }

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send([]byte) error { return nil }

func (r *recorder) Close(int, string) {}

// unreliableStore fails its first read.
type unreliableStore struct {
	storage.Store
	failed atomic.Bool
}

func (s *unreliableStore) Get(ctx context.Context, roomID string) (*room.State, error) {
	if s.failed.CompareAndSwap(false, true) {
		return nil, errors.New("connection reset by peer")
	}
	return s.Store.Get(ctx, roomID)
}

func TestHandleCreateRoom_StoreUnavailable(t *testing.T) {
	hub := coordinator.NewHub(coordinator.DefaultConfig(), &unreliableStore{Store: storage.NewMemoryStore()},
		clockwork.NewFakeClock(), nil)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	handler := NewStateHandler(hub)
	create := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"roomId":"r1","hostName":"Ann"}`))
		handler.HandleCreateRoom(w, r)
		return w
	}

	assert.Equal(t, http.StatusServiceUnavailable, create().Code)
	assert.Equal(t, http.StatusCreated, create().Code)
}
