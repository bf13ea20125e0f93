package broadcast

import "casegraph/pkg/models"

// Broadcaster pushes graph changes to interested listeners. Delivery is
// best effort and never blocks graph persistence.
type Broadcaster interface {
	GraphNodeAdded(incidentID string, node *models.GraphNode)
	GraphNodeUpdated(incidentID string, node *models.GraphNode)
	GraphEdgeAdded(incidentID string, edge *models.GraphEdge)
	GraphDeleted(incidentID string)
}

// NoopBroadcaster discards all notifications.
type NoopBroadcaster struct{}

func (NoopBroadcaster) GraphNodeAdded(string, *models.GraphNode)   {}
func (NoopBroadcaster) GraphNodeUpdated(string, *models.GraphNode) {}
func (NoopBroadcaster) GraphEdgeAdded(string, *models.GraphEdge)   {}
func (NoopBroadcaster) GraphDeleted(string)                        {}

// Multi fans a notification out to several broadcasters.
type Multi []Broadcaster

func (m Multi) GraphNodeAdded(incidentID string, node *models.GraphNode) {
	for _, b := range m {
		b.GraphNodeAdded(incidentID, node)
	}
}

func (m Multi) GraphNodeUpdated(incidentID string, node *models.GraphNode) {
	for _, b := range m {
		b.GraphNodeUpdated(incidentID, node)
	}
}

func (m Multi) GraphEdgeAdded(incidentID string, edge *models.GraphEdge) {
	for _, b := range m {
		b.GraphEdgeAdded(incidentID, edge)
	}
}

func (m Multi) GraphDeleted(incidentID string) {
	for _, b := range m {
		b.GraphDeleted(incidentID)
	}
}
