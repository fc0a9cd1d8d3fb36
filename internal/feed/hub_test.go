package feed

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastToTCPClient(t *testing.T) {
	hub := NewHub()

	server, client := net.Pipe()
	hub.Add(server)
	defer hub.Remove(server)

	lines := make(chan string, 2)
	go func() {
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	hub.BroadcastJSON(ReviewEvent{
		Type:     "review.created",
		ReviewID: "r1",
		BookID:   "b1",
		UserID:   "u1",
		Rating:   5,
		At:       time.Now().UTC(),
	})

	select {
	case line := <-lines:
		var ev ReviewEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		assert.Equal(t, "review.created", ev.Type)
		assert.Equal(t, "r1", ev.ReviewID)
		assert.Equal(t, 5, ev.Rating)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_DropsDeadTCPClient(t *testing.T) {
	hub := NewHub()

	server, client := net.Pipe()
	hub.Add(server)
	_ = client.Close()

	hub.BroadcastJSON(ReviewEvent{Type: "review.deleted", ReviewID: "r1"})
	assert.Equal(t, 0, hub.Count())
}

func TestWSHandler_ReceivesBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	router := gin.New()
	router.GET("/ws", WSHandler(hub))

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// welcome frame first
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "welcome")

	// wait for the hub to register the client before broadcasting
	require.Eventually(t, func() bool {
		return hub.Stats().WSClients == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastJSON(ReviewEvent{Type: "review.updated", ReviewID: "r2", BookID: "b1"})

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)

	var ev ReviewEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "review.updated", ev.Type)
	assert.Equal(t, "r2", ev.ReviewID)
}
