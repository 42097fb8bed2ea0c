package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamos/tamos-client-go/internal/bridge"
	"github.com/tamos/tamos-client-go/internal/models"
)

func dial(t *testing.T, b *bridge.Bridge) (*Server, *websocket.Conn) {
	t.Helper()
	s := NewServer(b, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Wait until the server side has subscribed.
	deadline := time.Now().Add(time.Second)
	for s.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
	return s, conn
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return f
}

func TestServer_ForwardsBridgeEvents(t *testing.T) {
	b := bridge.New()
	_, conn := dial(t, b)

	b.PublishEntityPosition(models.EntityPosition{ID: "D1", Latitude: 37.5, Longitude: 127.1, Kind: models.EntityKindDrone})
	f := readFrame(t, conn)
	if f.Type != "entity-position" {
		t.Fatalf("type=%s", f.Type)
	}
	var pos models.EntityPosition
	if err := json.Unmarshal(f.Payload, &pos); err != nil || pos.ID != "D1" {
		t.Fatalf("payload=%s err=%v", f.Payload, err)
	}

	b.PublishHeatmap(models.HeatmapPayload(`{"points":[[1,2,3]]}`))
	f = readFrame(t, conn)
	if f.Type != "heatmap-ready" || string(f.Payload) != `{"points":[[1,2,3]]}` {
		t.Fatalf("frame=%+v payload=%s", f, f.Payload)
	}

	b.PublishKeys([]string{})
	f = readFrame(t, conn)
	if f.Type != "keys-reported" || string(f.Payload) != `[]` {
		t.Fatalf("frame=%+v payload=%s", f, f.Payload)
	}
}

func TestServer_UnsubscribesOnDisconnect(t *testing.T) {
	b := bridge.New()
	s, conn := dial(t, b)
	if n := b.ListenerCount(bridge.ChannelEntityPosition); n != 1 {
		t.Fatalf("listeners=%d", n)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() != 0 || b.ListenerCount(bridge.ChannelEntityPosition) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("clients=%d listeners=%d after disconnect", s.Clients(), b.ListenerCount(bridge.ChannelEntityPosition))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
