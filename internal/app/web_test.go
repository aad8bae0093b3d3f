package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
)

type commandSink struct {
	mu   sync.Mutex
	cmds []telemetry.Command
	err  error
}

func (s *commandSink) send(c telemetry.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, c)
	return s.err
}

func (s *commandSink) received() []telemetry.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Command(nil), s.cmds...)
}

func TestAPIWaitsForData(t *testing.T) {
	state := newWebState()
	srv := httptest.NewServer(newWebMux(state, (&commandSink{}).send))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/orientation")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	state.update("pose", orientation.Pose{Roll: 1.5, Pitch: -2, Yaw: 90})

	resp, err = http.Get(srv.URL + "/api/orientation")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got orientation.Pose
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, orientation.Pose{Roll: 1.5, Pitch: -2, Yaw: 90}, got)
}

func TestTapsAreNotCached(t *testing.T) {
	state := newWebState()
	state.update("tap", telemetry.TapEvent{Time: "now"})
	_, ok := state.get("tap")
	assert.False(t, ok)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketStreamsUpdates(t *testing.T) {
	state := newWebState()
	srv := httptest.NewServer(newWebMux(state, (&commandSink{}).send))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool {
		state.mu.RLock()
		defer state.mu.RUnlock()
		return len(state.subs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	state.update("tap", telemetry.TapEvent{Time: "t1"})
	msg := readMessage(t, conn)
	assert.Equal(t, "tap", msg.Type)
	assert.Equal(t, map[string]any{"time": "t1"}, msg.Data)
}

func TestWebSocketForwardsCommands(t *testing.T) {
	sink := &commandSink{}
	state := newWebState()
	srv := httptest.NewServer(newWebMux(state, sink.send))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(telemetry.Command{Action: telemetry.ActionRate, Hz: 25}))

	msg := readMessage(t, conn)
	assert.Equal(t, "ack", msg.Type)
	assert.Equal(t, telemetry.ActionRate, msg.Message)
	assert.Equal(t, []telemetry.Command{{Action: telemetry.ActionRate, Hz: 25}}, sink.received())

	sink.mu.Lock()
	sink.err = errors.New("MQTT publish failed")
	sink.mu.Unlock()
	require.NoError(t, conn.WriteJSON(telemetry.Command{Action: telemetry.ActionRetare}))

	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "MQTT publish failed", msg.Message)
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	state := newWebState()
	srv := httptest.NewServer(newWebMux(state, (&commandSink{}).send))
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool {
		state.mu.RLock()
		defer state.mu.RUnlock()
		return len(state.subs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		state.mu.RLock()
		defer state.mu.RUnlock()
		return len(state.subs) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
