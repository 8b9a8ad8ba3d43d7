package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"steadystream/internal/feeds"
	"steadystream/internal/logging"
	"steadystream/internal/realtime"
	"steadystream/internal/testutil"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialFeed(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) []feeds.FeedItem {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, "feed", f.Type, string(f.Data))

	var items []feeds.FeedItem
	require.NoError(t, json.Unmarshal(f.Data, &items))
	return items
}

func TestRealtime_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/ws", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/ws?token=bogus", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRealtime_FeedSession(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateProfile(t, s.db, "Alice")
	bob := testutil.CreateProfile(t, s.db, "Bob")
	post := testutil.CreatePost(t, s.db, alice, "lake", time.Now())

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialFeed(t, srv, s.token(bob.ID))
	defer conn.Close()

	// mount
	assert.Empty(t, readFeed(t, conn))

	// a throw addressed to bob recomposes their feed
	throw := testutil.CreateThrow(t, s.db, post, alice, bob, "", false)
	require.Eventually(t, func() bool {
		return s.broker.SubscriberCount(bob.ID) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, s.broker.Publish(context.Background(), realtime.Event{
		Type:        realtime.EventThrowInserted,
		ThrowID:     throw.ID,
		PostID:      post.ID,
		ThrowerID:   alice.ID,
		RecipientID: bob.ID,
	}))

	items := readFeed(t, conn)
	require.Len(t, items, 1)
	assert.Equal(t, post.ID, items[0].Post.ID)
	require.NotNil(t, items[0].ThrowID)
	assert.Equal(t, throw.ID, *items[0].ThrowID)
	assert.Equal(t, "Alice", items[0].ThrownBy[0].Name)

	// focus from the client
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "focus"}))
	assert.Len(t, readFeed(t, conn), 1)

	// unknown messages are answered with an error frame
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error", f.Type)

	conn.Close()
	assert.Eventually(t, func() bool {
		return s.broker.SubscriberCount(bob.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRealtime_ComposeFailureSendsRetryableError(t *testing.T) {
	s := newTestServer(t)
	bob := testutil.CreateProfile(t, s.db, "Bob")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	conn := dialFeed(t, srv, s.token(bob.ID))
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, "error", f.Type)

	var payload wsError
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.True(t, payload.Retryable)
	assert.Equal(t, "Failed to load feed", payload.Message)
}

func TestWSClient_ShutdownDeliversCloseFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := newWSClient(conn, logging.Discard())
		ctx, cancel := context.WithCancel(context.Background())
		go client.writePump(ctx, time.Hour)
		client.shutdown(cancel)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
