package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casegraph/internal/store"
	"casegraph/pkg/models"
)

// Outcome reports what one event update changed. Err records a failure
// the caller may log and discard; event ingestion never depends on a
// graph update succeeding.
type Outcome struct {
	Nodes   []*models.GraphNode
	Updated []*models.GraphNode
	Edges   []*models.GraphEdge
	Err     error
}

// Updater applies single timeline events to an existing attack graph
// without rebuilding it.
type Updater struct {
	store store.Store
	locks *IncidentLocks
}

// NewUpdater creates an updater over the given store.
func NewUpdater(st store.Store, locks *IncidentLocks) *Updater {
	return &Updater{store: st, locks: locks}
}

// ProcessEvent applies the event's MITRE tactic to the graph:
// initial-access and impact flag the host's node (creating it on first
// reference), lateral-movement with a resolvable source adds at most
// one lateral_movement edge per ordered host pair. Events without a
// host reference leave the graph untouched.
func (u *Updater) ProcessEvent(ctx context.Context, event *models.TimelineEvent) Outcome {
	if event == nil || event.HostID == "" {
		return Outcome{}
	}

	u.locks.Lock(event.IncidentID)
	defer u.locks.Unlock(event.IncidentID)

	var out Outcome
	target, created, err := u.getOrCreateHostNode(ctx, event.IncidentID, event.HostID, event.CreatedBy)
	if err != nil {
		out.Err = err
		return out
	}
	if target == nil {
		// Host record itself is gone; nothing to attach.
		return out
	}
	if created {
		out.Nodes = append(out.Nodes, target)
	}

	switch event.MitreTactic {
	case models.TacticInitialAccess:
		target.IsInitialAccess = true
		if err := u.store.SaveNode(ctx, target); err != nil {
			out.Err = fmt.Errorf("flag initial access on node %s: %w", target.ID, err)
		} else if !created {
			out.Updated = append(out.Updated, target)
		}
	case models.TacticImpact:
		target.IsObjective = true
		if err := u.store.SaveNode(ctx, target); err != nil {
			out.Err = fmt.Errorf("flag objective on node %s: %w", target.ID, err)
		} else if !created {
			out.Updated = append(out.Updated, target)
		}
	case models.TacticLateralMovement:
		if event.Source != "" {
			u.addLateralEdge(ctx, event, target, &out)
		}
	}

	return out
}

// addLateralEdge resolves the event's free-text source to a different
// host and links its node to the target's, unless such an edge already
// exists in the store.
func (u *Updater) addLateralEdge(ctx context.Context, event *models.TimelineEvent, target *models.GraphNode, out *Outcome) {
	sourceHost, err := u.store.FindHostByHostname(ctx, event.IncidentID, event.Source)
	if err != nil {
		out.Err = fmt.Errorf("resolve source host %q: %w", event.Source, err)
		return
	}
	if sourceHost == nil && looksLikeIP(event.Source) {
		sourceHost, err = u.store.FindHostByIP(ctx, event.IncidentID, event.Source)
		if err != nil {
			out.Err = fmt.Errorf("resolve source host %q by ip: %w", event.Source, err)
			return
		}
	}
	if sourceHost == nil || sourceHost.ID == event.HostID {
		return
	}

	source, created, err := u.getOrCreateHostNode(ctx, event.IncidentID, sourceHost.ID, event.CreatedBy)
	if err != nil {
		out.Err = err
		return
	}
	if source == nil {
		return
	}
	if created {
		out.Nodes = append(out.Nodes, source)
	}

	existing, err := u.store.FindEdge(ctx, event.IncidentID, source.ID, target.ID, models.EdgeLateralMovement)
	if err != nil {
		out.Err = fmt.Errorf("check lateral edge %s -> %s: %w", source.ID, target.ID, err)
		return
	}
	if existing != nil {
		return
	}

	label := event.MitreTechnique
	if label == "" {
		label = "Lateral Movement"
	}
	ts := event.Timestamp
	edge := &models.GraphEdge{
		ID:             uuid.NewString(),
		IncidentID:     event.IncidentID,
		SourceNodeID:   source.ID,
		TargetNodeID:   target.ID,
		Type:           models.EdgeLateralMovement,
		Label:          label,
		MitreTactic:    models.TacticLateralMovement,
		MitreTechnique: event.MitreTechnique,
		Timestamp:      &ts,
		Description:    event.Activity,
		CreatedBy:      event.CreatedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := u.store.Update(ctx, func(tx store.GraphTx) error {
		return tx.CreateEdge(edge)
	}); err != nil {
		out.Err = fmt.Errorf("create lateral edge %s -> %s: %w", source.ID, target.ID, err)
		return
	}
	out.Edges = append(out.Edges, edge)
}

// getOrCreateHostNode returns the incident's node for the host,
// creating it at the origin on first reference. A vanished host record
// yields (nil, false, nil): the reference is excluded, not an error.
func (u *Updater) getOrCreateHostNode(ctx context.Context, incidentID, hostID, createdBy string) (*models.GraphNode, bool, error) {
	node, err := u.store.NodeByHost(ctx, incidentID, hostID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup node for host %s: %w", hostID, err)
	}
	if node != nil {
		return node, false, nil
	}

	host, err := u.store.HostByID(ctx, incidentID, hostID)
	if err != nil {
		return nil, false, fmt.Errorf("load host %s: %w", hostID, err)
	}
	if host == nil {
		return nil, false, nil
	}

	node = &models.GraphNode{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		Type:       InferNodeType(host.SystemType),
		Label:      host.Hostname,
		HostID:     host.ID,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := u.store.Update(ctx, func(tx store.GraphTx) error {
		return tx.CreateNode(node)
	}); err != nil {
		return nil, false, fmt.Errorf("create node for host %s: %w", hostID, err)
	}
	return node, true, nil
}
