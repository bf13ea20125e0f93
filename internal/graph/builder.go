package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casegraph/internal/store"
	"casegraph/pkg/models"
)

// Builder regenerates an incident's attack graph from its source
// entities. Every run discards the previous graph; nodes and edges have
// no identity continuity across rebuilds.
type Builder struct {
	store store.Store
	locks *IncidentLocks
}

// NewBuilder creates a builder over the given store.
func NewBuilder(st store.Store, locks *IncidentLocks) *Builder {
	return &Builder{store: st, locks: locks}
}

// BuildResult lists everything one rebuild created, in creation order.
type BuildResult struct {
	Nodes []*models.GraphNode
	Edges []*models.GraphEdge
}

type edgeKey struct {
	source string
	target string
	kind   models.EdgeType
}

// Build regenerates the incident's graph:
//
//  1. delete the existing graph (edges before nodes)
//  2. host nodes on a grid, first-seen order, earliest host flagged as
//     the presumed initial access point
//  3. account/malware/host-indicator sub-nodes circled around each host
//  4. network IOC nodes deduplicated by observable value
//  5. lateral-movement edges inferred from the event chronology
//
// All mutations commit in one unit of work; a storage failure rolls the
// whole rebuild back and is returned. An incident with no hosts yields
// an empty result and an empty graph, not an error.
func (b *Builder) Build(ctx context.Context, incidentID, actorID string) (BuildResult, error) {
	b.locks.Lock(incidentID)
	defer b.locks.Unlock(incidentID)

	hosts, err := b.store.HostsByFirstSeen(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load hosts: %w", err)
	}
	if len(hosts) == 0 {
		err := b.store.Update(ctx, func(tx store.GraphTx) error {
			return tx.DeleteGraph(incidentID)
		})
		return BuildResult{}, err
	}

	accounts, err := b.store.Accounts(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load accounts: %w", err)
	}
	malware, err := b.store.Malware(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load malware: %w", err)
	}
	artifacts, err := b.store.HostIndicators(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load host indicators: %w", err)
	}
	iocs, err := b.store.NetworkIndicators(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load network indicators: %w", err)
	}
	events, err := b.store.EventsByTime(ctx, incidentID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("load timeline events: %w", err)
	}

	ix := NewHostIndex(hosts)
	hostAccounts := groupByHost(accounts, ix, func(a *models.Account) (string, string) {
		return a.HostID, a.HostSystem
	})
	hostMalware := groupByHost(malware, ix, func(m *models.Malware) (string, string) {
		return m.HostID, m.Host
	})
	hostArtifacts := groupByHost(artifacts, ix, func(h *models.HostIndicator) (string, string) {
		return h.HostID, h.Host
	})

	var result BuildResult
	nodeByHost := make(map[string]*models.GraphNode, len(hosts))
	seen := make(map[edgeKey]struct{})

	addEdge := func(e *models.GraphEdge) {
		seen[edgeKey{e.SourceNodeID, e.TargetNodeID, e.Type}] = struct{}{}
		result.Edges = append(result.Edges, e)
	}

	for i, host := range hosts {
		node := b.hostNode(incidentID, host, i, actorID)
		nodeByHost[host.ID] = node
		result.Nodes = append(result.Nodes, node)

		subs := b.subNodes(incidentID, host,
			hostAccounts[host.ID], hostMalware[host.ID], hostArtifacts[host.ID], actorID)
		for idx, sub := range subs {
			sub.PositionX, sub.PositionY = circlePosition(node.PositionX, node.PositionY, idx, len(subs))
			result.Nodes = append(result.Nodes, sub)
			addEdge(b.newEdge(incidentID, node.ID, sub.ID, models.EdgeAssociatedWith, "Associated", actorID))
		}
	}

	b.addNetworkIOCs(incidentID, actorID, iocs, ix, nodeByHost, seen, &result)
	b.addLateralMovement(incidentID, actorID, events, nodeByHost, seen, &result)

	err = b.store.Update(ctx, func(tx store.GraphTx) error {
		if err := tx.DeleteGraph(incidentID); err != nil {
			return err
		}
		for _, n := range result.Nodes {
			if err := tx.CreateNode(n); err != nil {
				return err
			}
		}
		for _, e := range result.Edges {
			if err := tx.CreateEdge(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BuildResult{}, fmt.Errorf("commit graph: %w", err)
	}
	return result, nil
}

func (b *Builder) hostNode(incidentID string, host *models.Host, index int, actorID string) *models.GraphNode {
	x, y := hostPosition(index)
	attrs := map[string]any{
		"containment_status": host.ContainmentStatus,
	}
	if host.IPAddress != "" {
		attrs["ip_address"] = host.IPAddress
	}
	return &models.GraphNode{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		Type:       InferNodeType(host.SystemType),
		Label:      host.Hostname,
		HostID:     host.ID,
		PositionX:  x,
		PositionY:  y,
		// Heuristic: the earliest-observed host is presumed to be the
		// entry point. Overridden by initial-access evidence arriving
		// through the incremental path.
		IsInitialAccess: index == 0,
		Attributes:      attrs,
		CreatedBy:       actorID,
		CreatedAt:       time.Now().UTC(),
	}
}

func (b *Builder) subNodes(incidentID string, host *models.Host,
	accounts []*models.Account, malware []*models.Malware,
	artifacts []*models.HostIndicator, actorID string) []*models.GraphNode {

	subs := make([]*models.GraphNode, 0, len(accounts)+len(malware)+len(artifacts))

	for _, acc := range accounts {
		label := acc.AccountName
		if acc.Domain != "" {
			label = acc.Domain + `\` + acc.AccountName
		}
		subs = append(subs, &models.GraphNode{
			ID:         uuid.NewString(),
			IncidentID: incidentID,
			Type:       models.NodeUser,
			Label:      label,
			AccountID:  acc.ID,
			Attributes: map[string]any{
				"account_type":  acc.AccountType,
				"is_privileged": acc.IsPrivileged,
				"domain":        acc.Domain,
				"status":        acc.Status,
				"sid":           acc.SID,
				"host_system":   host.Hostname,
			},
			CreatedBy: actorID,
			CreatedAt: time.Now().UTC(),
		})
	}

	for _, mal := range malware {
		subs = append(subs, &models.GraphNode{
			ID:         uuid.NewString(),
			IncidentID: incidentID,
			Type:       models.NodeMalware,
			Label:      mal.FileName,
			Attributes: map[string]any{
				"malware_family": mal.MalwareFamily,
				"sha256":         mal.SHA256,
				"md5":            mal.MD5,
				"is_tool":        mal.IsTool,
				"file_path":      mal.FilePath,
				"threat_actor":   mal.ThreatActor,
				"host_system":    host.Hostname,
			},
			CreatedBy: actorID,
			CreatedAt: time.Now().UTC(),
		})
	}

	for _, art := range artifacts {
		subs = append(subs, &models.GraphNode{
			ID:         uuid.NewString(),
			IncidentID: incidentID,
			Type:       models.NodeHostIndicator,
			Label:      art.ArtifactType + ": " + truncate(art.ArtifactValue, 60),
			Attributes: map[string]any{
				"artifact_type":  art.ArtifactType,
				"artifact_value": art.ArtifactValue,
				"is_malicious":   art.IsMalicious,
				"remediated":     art.Remediated,
				"notes":          art.Notes,
				"host_system":    host.Hostname,
			},
			CreatedBy: actorID,
			CreatedAt: time.Now().UTC(),
		})
	}

	return subs
}

// addNetworkIOCs creates one ip_address node per unique observable and
// associates every resolving host with it. Indicators whose host cannot
// be resolved are skipped without creating orphans.
func (b *Builder) addNetworkIOCs(incidentID, actorID string, iocs []*models.NetworkIndicator,
	ix *HostIndex, nodeByHost map[string]*models.GraphNode,
	seen map[edgeKey]struct{}, result *BuildResult) {

	grid := newIOCGrid()
	byValue := make(map[string]*models.GraphNode)

	for _, ioc := range iocs {
		hostID := ix.Resolve(ioc.HostID, ioc.SourceHost)
		hostNode, ok := nodeByHost[hostID]
		if hostID == "" || !ok {
			continue
		}

		node, exists := byValue[ioc.DNSOrIP]
		if !exists {
			x, y := grid.next()
			node = &models.GraphNode{
				ID:         uuid.NewString(),
				IncidentID: incidentID,
				Type:       models.NodeIPAddress,
				Label:      ioc.DNSOrIP,
				PositionX:  x,
				PositionY:  y,
				Attributes: map[string]any{
					"direction":           ioc.Direction,
					"is_malicious":        ioc.IsMalicious,
					"protocol":            ioc.Protocol,
					"port":                ioc.Port,
					"description":         ioc.Description,
					"destination_host":    ioc.DestinationHost,
					"threat_intel_source": ioc.ThreatIntelSource,
				},
				CreatedBy: actorID,
				CreatedAt: time.Now().UTC(),
			}
			byValue[ioc.DNSOrIP] = node
			result.Nodes = append(result.Nodes, node)
		}

		if _, dup := seen[edgeKey{hostNode.ID, node.ID, models.EdgeAssociatedWith}]; dup {
			continue
		}
		label := ioc.Direction
		if label == "" {
			label = "Network IOC"
		}
		e := b.newEdge(incidentID, hostNode.ID, node.ID, models.EdgeAssociatedWith, label, actorID)
		seen[edgeKey{e.SourceNodeID, e.TargetNodeID, e.Type}] = struct{}{}
		result.Edges = append(result.Edges, e)
	}
}

// addLateralMovement walks the chronological event stream and connects
// consecutive distinct hosts once per ordered pair.
func (b *Builder) addLateralMovement(incidentID, actorID string, events []*models.TimelineEvent,
	nodeByHost map[string]*models.GraphNode, seen map[edgeKey]struct{}, result *BuildResult) {

	prevHostID := ""
	for _, ev := range events {
		curHostID := ev.HostID
		if prevHostID != "" && curHostID != prevHostID {
			src, srcOK := nodeByHost[prevHostID]
			tgt, tgtOK := nodeByHost[curHostID]
			if srcOK && tgtOK {
				key := edgeKey{src.ID, tgt.ID, models.EdgeLateralMovement}
				if _, dup := seen[key]; !dup {
					ts := ev.Timestamp
					seen[key] = struct{}{}
					result.Edges = append(result.Edges, &models.GraphEdge{
						ID:           uuid.NewString(),
						IncidentID:   incidentID,
						SourceNodeID: src.ID,
						TargetNodeID: tgt.ID,
						Type:         models.EdgeLateralMovement,
						Label:        truncate(ev.Activity, 50),
						MitreTactic:  ev.MitreTactic,
						Timestamp:    &ts,
						CreatedBy:    actorID,
						CreatedAt:    time.Now().UTC(),
					})
				}
			}
		}
		prevHostID = curHostID
	}
}

func (b *Builder) newEdge(incidentID, sourceID, targetID string, kind models.EdgeType, label, actorID string) *models.GraphEdge {
	return &models.GraphEdge{
		ID:           uuid.NewString(),
		IncidentID:   incidentID,
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		Type:         kind,
		Label:        label,
		CreatedBy:    actorID,
		CreatedAt:    time.Now().UTC(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
