package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
)

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitClients polls until the hub has n clients registered.
func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	a := dialHub(t, ts.URL)
	b := dialHub(t, ts.URL)
	waitClients(t, hub, 2)

	res := pipeline.FrameResult{
		Time:     time.Now(),
		Decision: decision.Result{Advisory: decision.AdvisoryGo, TotalTracks: 1, GreenVotes: 1},
	}
	if err := hub.Publish(context.Background(), res); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got pipeline.FrameResult
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if got.Decision.Advisory != decision.AdvisoryGo || got.Decision.GreenVotes != 1 {
			t.Errorf("unexpected result %+v", got.Decision)
		}
	}
}

func TestHub_RemovesClosedClients(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts.URL)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	if err := hub.Publish(context.Background(), pipeline.FrameResult{}); err != nil {
		t.Errorf("Publish() with no clients error = %v", err)
	}
}
