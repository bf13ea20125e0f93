package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"casegraph/pkg/models"
)

func dialSubscriber(t *testing.T, hub *Hub, incidentID string) (*websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	unsubCh := make(chan func(), 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		unsubCh <- hub.Subscribe(incidentID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	unsubscribe := <-unsubCh
	return client, unsubscribe
}

func TestHubDeliversEventsToIncidentSubscribers(t *testing.T) {
	hub := NewHub()
	client, unsubscribe := dialSubscriber(t, hub, "inc-1")

	if got := hub.SubscriberCount("inc-1"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	hub.GraphNodeAdded("inc-1", &models.GraphNode{
		ID: "n1", IncidentID: "inc-1", Type: models.NodeWorkstation, Label: "WS-01",
	})
	// Another incident's event must not reach this subscriber.
	hub.GraphDeleted("inc-2")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Event != "graph_node_added" {
		t.Fatalf("unexpected event: %s", msg.Event)
	}
	var node models.GraphNode
	if err := json.Unmarshal(msg.Data, &node); err != nil {
		t.Fatalf("unmarshal node failed: %v", err)
	}
	if node.ID != "n1" || node.Label != "WS-01" {
		t.Fatalf("unexpected node payload: %+v", node)
	}

	unsubscribe()
	if got := hub.SubscriberCount("inc-1"); got != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", got)
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	_, unsubscribe := dialSubscriber(t, hub, "inc-1")

	unsubscribe()
	unsubscribe()

	if got := hub.SubscriberCount("inc-1"); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}

	// Publishing after the last unsubscribe is a no-op.
	hub.GraphDeleted("inc-1")
}

type recordingBroadcaster struct {
	events []string
}

func (r *recordingBroadcaster) GraphNodeAdded(incidentID string, _ *models.GraphNode) {
	r.events = append(r.events, "added:"+incidentID)
}

func (r *recordingBroadcaster) GraphNodeUpdated(incidentID string, _ *models.GraphNode) {
	r.events = append(r.events, "updated:"+incidentID)
}

func (r *recordingBroadcaster) GraphEdgeAdded(incidentID string, _ *models.GraphEdge) {
	r.events = append(r.events, "edge:"+incidentID)
}

func (r *recordingBroadcaster) GraphDeleted(incidentID string) {
	r.events = append(r.events, "deleted:"+incidentID)
}

func TestMultiFansOutToAllBroadcasters(t *testing.T) {
	a := &recordingBroadcaster{}
	b := &recordingBroadcaster{}
	multi := Multi{a, b}

	multi.GraphNodeAdded("inc-1", &models.GraphNode{ID: "n1"})
	multi.GraphEdgeAdded("inc-1", &models.GraphEdge{ID: "e1"})
	multi.GraphDeleted("inc-1")

	want := []string{"added:inc-1", "edge:inc-1", "deleted:inc-1"}
	for _, rec := range []*recordingBroadcaster{a, b} {
		if len(rec.events) != len(want) {
			t.Fatalf("expected %d events, got %v", len(want), rec.events)
		}
		for i := range want {
			if rec.events[i] != want[i] {
				t.Fatalf("event %d = %s, want %s", i, rec.events[i], want[i])
			}
		}
	}
}
