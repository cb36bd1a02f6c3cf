package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/estimate/go/internal/room/coordinator"
)

func (s *testServer) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/rooms/" + roomID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) coordinator.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg coordinator.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
		return closeErr
	}
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestRoomConnection_SendsStateOnConnect(t *testing.T) {
	srv := newTestServer(t)
	srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	conn := srv.dial(t, "r1")

	msg := readMessage(t, conn)
	assert.Equal(t, coordinator.MessageTypeState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, "r1", msg.State.RoomID)
	assert.Contains(t, msg.State.Participants, "Ann")
	assert.Empty(t, msg.State.Host.Token)
}

func TestRoomConnection_UnknownRoom(t *testing.T) {
	srv := newTestServer(t)

	conn := srv.dial(t, "missing")

	msg := readMessage(t, conn)
	assert.Equal(t, coordinator.MessageTypeError, msg.Type)
	assert.Equal(t, coordinator.NoticeRoomNotFound, msg.Message)

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Eventually(t, func() bool {
		return srv.hub.ActiveRooms() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomConnection_BroadcastsProjections(t *testing.T) {
	srv := newTestServer(t)
	_, created := srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	host := srv.dial(t, "r1")
	readMessage(t, host)
	bob := srv.dial(t, "r1")
	readMessage(t, bob)

	send(t, host, `{"type":"join","name":"Ann","hostToken":"`+created.HostToken+`"}`)
	readMessage(t, host)
	readMessage(t, bob)

	send(t, bob, `{"type":"join","name":"Bob"}`)
	hostView := readMessage(t, host)
	bobView := readMessage(t, bob)
	assert.Contains(t, hostView.State.Participants, "Bob")
	assert.Equal(t, created.HostToken, hostView.State.Host.Token)
	assert.Empty(t, bobView.State.Host.Token)

	send(t, host, `{"type":"start_voting","hostToken":"`+created.HostToken+`"}`)
	readMessage(t, host)
	readMessage(t, bob)

	send(t, bob, `{"type":"cast_vote","actor":"Bob","value":"8"}`)
	hostView = readMessage(t, host)
	bobView = readMessage(t, bob)

	require.Len(t, hostView.State.Tasks, 1)
	assert.Equal(t, "voted", hostView.State.Tasks[0].Votes["Bob"])
	assert.Equal(t, "8", bobView.State.Tasks[0].Votes["Bob"])
}

func TestRoomConnection_MalformedMessage(t *testing.T) {
	srv := newTestServer(t)
	srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	conn := srv.dial(t, "r1")
	readMessage(t, conn)

	send(t, conn, `not json`)
	msg := readMessage(t, conn)
	assert.Equal(t, coordinator.MessageTypeError, msg.Type)
	assert.Equal(t, coordinator.NoticeInvalidAction, msg.Message)

	send(t, conn, `{"type":"levitate"}`)
	msg = readMessage(t, conn)
	assert.Equal(t, coordinator.NoticeInvalidAction, msg.Message)

	// The connection survives.
	send(t, conn, `{"type":"join","name":"Bob"}`)
	msg = readMessage(t, conn)
	assert.Equal(t, coordinator.MessageTypeState, msg.Type)
	assert.Contains(t, msg.State.Participants, "Bob")
}

func TestRoomConnection_RateLimited(t *testing.T) {
	srv := newTestServer(t, func(c *Config) {
		c.ConnectionConfig.RateLimit = 0
		c.ConnectionConfig.RateBurst = 1
	})
	srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	conn := srv.dial(t, "r1")
	readMessage(t, conn)

	send(t, conn, `{"type":"join","name":"Bob"}`)
	assert.Equal(t, coordinator.MessageTypeState, readMessage(t, conn).Type)

	send(t, conn, `{"type":"join","name":"Cleo"}`)
	msg := readMessage(t, conn)
	assert.Equal(t, coordinator.MessageTypeError, msg.Type)
	assert.Equal(t, noticeRateLimit, msg.Message)

	s, err := srv.hub.Snapshot(context.Background(), "r1")
	require.NoError(t, err)
	assert.NotContains(t, s.Participants, "Cleo")
}

func TestRoomConnection_Stats(t *testing.T) {
	srv := newTestServer(t)
	srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	conn := srv.dial(t, "r1")
	readMessage(t, conn)

	stats := srv.service.GetStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ConnectedRooms)
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, 1, stats.RoomConnections["r1"])

	resp := srv.get(t, "/ws/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body ConnectionStats
	decodeBody(t, resp, &body)
	assert.Equal(t, 1, body.TotalConnections)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		return srv.service.GetStats().TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_StopClosesConnections(t *testing.T) {
	srv := newTestServer(t)
	srv.createRoom(t, `{"roomId":"r1","hostName":"Ann"}`)

	conn := srv.dial(t, "r1")
	readMessage(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.service.Stop(ctx))

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, coordinator.NoticeShuttingDown, closeErr.Text)
}
