package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubSendsSnapshotAndBroadcasts(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	hub.Snapshot = func() (events.RoundUpdate, bool) {
		return events.RoundUpdate{RoundID: "r1", Status: "betting"}, true
	}
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first ServerMsg
	require.NoError(t, conn.ReadJSON(&first))
	require.NotNil(t, first.Round)
	assert.Equal(t, "r1", first.Round.RoundID)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	Dispatch(hub, []byte(`{"roundId":"r1","status":"counting","result":"2.00"}`), zap.NewNop())
	var upd ServerMsg
	require.NoError(t, conn.ReadJSON(&upd))
	assert.Equal(t, "round", upd.Type)
	assert.Equal(t, "counting", upd.Round.Status)
	assert.Equal(t, "2.00", upd.Round.Result)
}

func TestHubAnswersPing(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))

	var msg ServerMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
}

func TestDispatchIgnoresGarbage(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	Dispatch(hub, []byte("not json"), zap.NewNop())
	assert.Zero(t, hub.Count())
}

func TestEnqueueNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < updateBuffer*3; i++ {
			hub.Enqueue(events.RoundUpdate{RoundID: fmt.Sprintf("r%d", i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked without a running hub")
	}

	// sobram as mais recentes
	last := <-hub.updates
	assert.Equal(t, fmt.Sprintf("r%d", updateBuffer*2), last.RoundID)
}

func TestRunDeliversEnqueuedUpdates(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.Enqueue(events.RoundUpdate{RoundID: "r1", Status: "betting"})
	hub.Enqueue(events.RoundUpdate{RoundID: "r1", Status: "counting"})

	var a, b ServerMsg
	require.NoError(t, conn.ReadJSON(&a))
	require.NoError(t, conn.ReadJSON(&b))
	assert.Equal(t, "betting", a.Round.Status)
	assert.Equal(t, "counting", b.Round.Status)
}
