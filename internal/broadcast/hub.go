package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"casegraph/internal/logger"
	"casegraph/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// envelope is the wire format pushed to websocket subscribers.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// subscriber is one websocket connection watching an incident.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub delivers graph change events to websocket subscribers grouped by
// incident. A slow subscriber is dropped rather than blocking delivery.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a websocket connection for an incident and starts
// its write loop. It returns an unsubscribe func the caller must invoke
// when the connection ends.
func (h *Hub) Subscribe(incidentID string, conn *websocket.Conn) func() {
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.subscribers[incidentID] == nil {
		h.subscribers[incidentID] = make(map[*subscriber]struct{})
	}
	h.subscribers[incidentID][sub] = struct{}{}
	h.mu.Unlock()

	go sub.writeLoop()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.remove(incidentID, sub)
			close(sub.send)
		})
	}
}

// SubscriberCount reports the number of live subscribers for an incident.
func (h *Hub) SubscriberCount(incidentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[incidentID])
}

func (h *Hub) remove(incidentID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[incidentID]
	if subs == nil {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, incidentID)
	}
}

func (h *Hub) publish(incidentID, event string, data any) {
	h.mu.RLock()
	subs := h.subscribers[incidentID]
	if len(subs) == 0 {
		h.mu.RUnlock()
		return
	}

	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.mu.RUnlock()
		logger.Errorf("Failed to marshal broadcast payload: %v", err)
		return
	}

	var dropped []*subscriber
	for sub := range subs {
		select {
		case sub.send <- payload:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		logger.Warnf("Dropping slow websocket subscriber for incident %s", incidentID)
		h.remove(incidentID, sub)
		sub.conn.Close()
	}
}

func (s *subscriber) writeLoop() {
	for payload := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.conn.Close()
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.conn.Close()
}

// GraphNodeAdded notifies subscribers of a new node.
func (h *Hub) GraphNodeAdded(incidentID string, node *models.GraphNode) {
	h.publish(incidentID, "graph_node_added", node)
}

// GraphNodeUpdated notifies subscribers of a changed node.
func (h *Hub) GraphNodeUpdated(incidentID string, node *models.GraphNode) {
	h.publish(incidentID, "graph_node_updated", node)
}

// GraphEdgeAdded notifies subscribers of a new edge.
func (h *Hub) GraphEdgeAdded(incidentID string, edge *models.GraphEdge) {
	h.publish(incidentID, "graph_edge_added", edge)
}

// GraphDeleted notifies subscribers that the incident graph was cleared.
func (h *Hub) GraphDeleted(incidentID string) {
	h.publish(incidentID, "graph_deleted", map[string]string{"incident_id": incidentID})
}
