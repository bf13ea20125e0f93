package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"casegraph/internal/store"
	"casegraph/pkg/models"
)

// Store is an in-memory entity store. It preserves insertion order for
// reads, which doubles as the tie-break order the graph engine relies
// on, and stages graph mutations so a failed update leaves the graph
// untouched.
type Store struct {
	mu sync.RWMutex

	hosts             map[string][]*models.Host
	accounts          map[string][]*models.Account
	malware           map[string][]*models.Malware
	hostIndicators    map[string][]*models.HostIndicator
	networkIndicators map[string][]*models.NetworkIndicator
	events            map[string][]*models.TimelineEvent

	nodes map[string][]*models.GraphNode
	edges map[string][]*models.GraphEdge
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		hosts:             make(map[string][]*models.Host),
		accounts:          make(map[string][]*models.Account),
		malware:           make(map[string][]*models.Malware),
		hostIndicators:    make(map[string][]*models.HostIndicator),
		networkIndicators: make(map[string][]*models.NetworkIndicator),
		events:            make(map[string][]*models.TimelineEvent),
		nodes:             make(map[string][]*models.GraphNode),
		edges:             make(map[string][]*models.GraphEdge),
	}
}

// Seed helpers. The surrounding platform owns source-entity writes;
// these exist for tests and local fixtures.

// AddHost records a host.
func (s *Store) AddHost(h *models.Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[h.IncidentID] = append(s.hosts[h.IncidentID], h)
}

// AddAccount records an account.
func (s *Store) AddAccount(a *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.IncidentID] = append(s.accounts[a.IncidentID], a)
}

// AddMalware records a malware/tool entry.
func (s *Store) AddMalware(m *models.Malware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malware[m.IncidentID] = append(s.malware[m.IncidentID], m)
}

// AddHostIndicator records a host-based indicator.
func (s *Store) AddHostIndicator(h *models.HostIndicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostIndicators[h.IncidentID] = append(s.hostIndicators[h.IncidentID], h)
}

// AddNetworkIndicator records a network indicator.
func (s *Store) AddNetworkIndicator(n *models.NetworkIndicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkIndicators[n.IncidentID] = append(s.networkIndicators[n.IncidentID], n)
}

// AddEvent records a timeline event.
func (s *Store) AddEvent(e *models.TimelineEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.IncidentID] = append(s.events[e.IncidentID], e)
}

// HostsByFirstSeen returns hosts ordered by first-seen ascending, hosts
// without a timestamp last.
func (s *Store) HostsByFirstSeen(ctx context.Context, incidentID string) ([]*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]*models.Host(nil), s.hosts[incidentID]...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].FirstSeen, out[j].FirstSeen
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

// HostByID returns the host or (nil, nil).
func (s *Store) HostByID(ctx context.Context, incidentID, hostID string) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hosts[incidentID] {
		if h.ID == hostID {
			return h, nil
		}
	}
	return nil, nil
}

// FindHostByHostname matches the exact hostname, or returns (nil, nil).
func (s *Store) FindHostByHostname(ctx context.Context, incidentID, hostname string) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hosts[incidentID] {
		if h.Hostname == hostname {
			return h, nil
		}
	}
	return nil, nil
}

// FindHostByIP matches the host's IP address, or returns (nil, nil).
func (s *Store) FindHostByIP(ctx context.Context, incidentID, ip string) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hosts[incidentID] {
		if h.IPAddress != "" && strings.EqualFold(h.IPAddress, ip) {
			return h, nil
		}
	}
	return nil, nil
}

// Accounts returns the incident's accounts in insertion order.
func (s *Store) Accounts(ctx context.Context, incidentID string) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Account(nil), s.accounts[incidentID]...), nil
}

// Malware returns the incident's malware entries in insertion order.
func (s *Store) Malware(ctx context.Context, incidentID string) ([]*models.Malware, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Malware(nil), s.malware[incidentID]...), nil
}

// HostIndicators returns the incident's host indicators in insertion order.
func (s *Store) HostIndicators(ctx context.Context, incidentID string) ([]*models.HostIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.HostIndicator(nil), s.hostIndicators[incidentID]...), nil
}

// NetworkIndicators returns the incident's network indicators in insertion order.
func (s *Store) NetworkIndicators(ctx context.Context, incidentID string) ([]*models.NetworkIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.NetworkIndicator(nil), s.networkIndicators[incidentID]...), nil
}

// EventsByTime returns host-referencing events ordered by timestamp
// ascending; equal timestamps keep insertion order.
func (s *Store) EventsByTime(ctx context.Context, incidentID string) ([]*models.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TimelineEvent, 0, len(s.events[incidentID]))
	for _, e := range s.events[incidentID] {
		if e.HostID != "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Nodes returns copies of the incident's graph nodes.
func (s *Store) Nodes(ctx context.Context, incidentID string) ([]*models.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GraphNode, 0, len(s.nodes[incidentID]))
	for _, n := range s.nodes[incidentID] {
		c := *n
		out = append(out, &c)
	}
	return out, nil
}

// Edges returns copies of the incident's graph edges.
func (s *Store) Edges(ctx context.Context, incidentID string) ([]*models.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GraphEdge, 0, len(s.edges[incidentID]))
	for _, e := range s.edges[incidentID] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// NodeByHost returns a copy of the node backed by the host, or (nil, nil).
func (s *Store) NodeByHost(ctx context.Context, incidentID, hostID string) (*models.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes[incidentID] {
		if n.HostID == hostID {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

// FindEdge returns a copy of the edge matching the ordered triple, or (nil, nil).
func (s *Store) FindEdge(ctx context.Context, incidentID, sourceNodeID, targetNodeID string, edgeType models.EdgeType) (*models.GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges[incidentID] {
		if e.SourceNodeID == sourceNodeID && e.TargetNodeID == targetNodeID && e.Type == edgeType {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

// SaveNode replaces the stored node with the same ID.
func (s *Store) SaveNode(ctx context.Context, node *models.GraphNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.nodes[node.IncidentID] {
		if n.ID == node.ID {
			c := *node
			s.nodes[node.IncidentID][i] = &c
			return nil
		}
	}
	return fmt.Errorf("node %s not found in incident %s", node.ID, node.IncidentID)
}

// Update stages graph mutations and applies them atomically. When fn
// returns an error, or a staged record violates a graph invariant,
// nothing is applied.
func (s *Store) Update(ctx context.Context, fn func(tx store.GraphTx) error) error {
	tx := &graphTx{}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return tx.apply(s)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type graphTx struct {
	deletes []string
	nodes   []*models.GraphNode
	edges   []*models.GraphEdge
}

func (tx *graphTx) DeleteGraph(incidentID string) error {
	tx.deletes = append(tx.deletes, incidentID)
	return nil
}

func (tx *graphTx) CreateNode(node *models.GraphNode) error {
	if !node.Type.Valid() {
		return fmt.Errorf("invalid node type %q", node.Type)
	}
	tx.nodes = append(tx.nodes, node)
	return nil
}

func (tx *graphTx) CreateEdge(edge *models.GraphEdge) error {
	if !edge.Type.Valid() {
		return fmt.Errorf("invalid edge type %q", edge.Type)
	}
	tx.edges = append(tx.edges, edge)
	return nil
}

// apply validates the staged set against the post-delete graph and then
// mutates the store. Validation runs fully before the first mutation so
// a rejected transaction leaves no partial state.
func (tx *graphTx) apply(s *Store) error {
	deleted := make(map[string]bool, len(tx.deletes))
	for _, incidentID := range tx.deletes {
		deleted[incidentID] = true
	}

	nodeIncidents := make(map[string]string)
	for incidentID, nodes := range s.nodes {
		if deleted[incidentID] {
			continue
		}
		for _, n := range nodes {
			nodeIncidents[n.ID] = incidentID
		}
	}
	for _, n := range tx.nodes {
		nodeIncidents[n.ID] = n.IncidentID
	}

	for _, e := range tx.edges {
		if incidentID, ok := nodeIncidents[e.SourceNodeID]; !ok || incidentID != e.IncidentID {
			return fmt.Errorf("edge %s references source node %s outside incident %s", e.ID, e.SourceNodeID, e.IncidentID)
		}
		if incidentID, ok := nodeIncidents[e.TargetNodeID]; !ok || incidentID != e.IncidentID {
			return fmt.Errorf("edge %s references target node %s outside incident %s", e.ID, e.TargetNodeID, e.IncidentID)
		}
	}

	for _, incidentID := range tx.deletes {
		delete(s.edges, incidentID)
		delete(s.nodes, incidentID)
	}
	for _, n := range tx.nodes {
		c := *n
		s.nodes[n.IncidentID] = append(s.nodes[n.IncidentID], &c)
	}
	for _, e := range tx.edges {
		c := *e
		s.edges[e.IncidentID] = append(s.edges[e.IncidentID], &c)
	}
	return nil
}
