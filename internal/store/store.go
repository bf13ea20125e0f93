package store

import (
	"context"

	"casegraph/pkg/models"
)

// Store provides incident-scoped reads of source entities and
// persistence of attack graph nodes and edges. Lookup methods return
// (nil, nil) when the record does not exist; absence is not an error.
type Store interface {
	// HostsByFirstSeen returns the incident's hosts ordered by first-seen
	// ascending, hosts without a first-seen timestamp last.
	HostsByFirstSeen(ctx context.Context, incidentID string) ([]*models.Host, error)
	HostByID(ctx context.Context, incidentID, hostID string) (*models.Host, error)
	FindHostByHostname(ctx context.Context, incidentID, hostname string) (*models.Host, error)
	FindHostByIP(ctx context.Context, incidentID, ip string) (*models.Host, error)

	Accounts(ctx context.Context, incidentID string) ([]*models.Account, error)
	Malware(ctx context.Context, incidentID string) ([]*models.Malware, error)
	HostIndicators(ctx context.Context, incidentID string) ([]*models.HostIndicator, error)
	NetworkIndicators(ctx context.Context, incidentID string) ([]*models.NetworkIndicator, error)

	// EventsByTime returns the incident's host-referencing timeline events
	// ordered by timestamp ascending. Ties keep the store's read order.
	EventsByTime(ctx context.Context, incidentID string) ([]*models.TimelineEvent, error)

	Nodes(ctx context.Context, incidentID string) ([]*models.GraphNode, error)
	Edges(ctx context.Context, incidentID string) ([]*models.GraphEdge, error)
	NodeByHost(ctx context.Context, incidentID, hostID string) (*models.GraphNode, error)
	FindEdge(ctx context.Context, incidentID, sourceNodeID, targetNodeID string, edgeType models.EdgeType) (*models.GraphEdge, error)

	// SaveNode persists flag/position changes to an existing node.
	SaveNode(ctx context.Context, node *models.GraphNode) error

	// Update runs fn against a staged graph transaction. All mutations
	// commit together when fn returns nil; any error rolls everything
	// back and is returned.
	Update(ctx context.Context, fn func(tx GraphTx) error) error

	Close() error
}

// GraphTx stages graph mutations that commit atomically.
type GraphTx interface {
	// DeleteGraph removes the incident's edges, then its nodes.
	DeleteGraph(incidentID string) error
	CreateNode(node *models.GraphNode) error
	CreateEdge(edge *models.GraphEdge) error
}
