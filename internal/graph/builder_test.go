package graph

import (
	"context"
	"testing"
	"time"

	"casegraph/internal/store/memstore"
	"casegraph/pkg/models"
)

func seedHost(st *memstore.Store, incidentID, id, hostname, ip, systemType string, firstSeen *time.Time) {
	st.AddHost(&models.Host{
		ID:         id,
		IncidentID: incidentID,
		Hostname:   hostname,
		IPAddress:  ip,
		SystemType: systemType,
		FirstSeen:  firstSeen,
	})
}

func tp(t time.Time) *time.Time { return &t }

func TestBuildCreatesHostAndSubNodes(t *testing.T) {
	st := memstore.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedHost(st, "inc-1", "h1", "WS-01", "10.0.0.5", "workstation", tp(base))
	seedHost(st, "inc-1", "h2", "DC-01", "10.0.0.9", "domain_controller", tp(base.Add(time.Hour)))

	st.AddAccount(&models.Account{ID: "a1", IncidentID: "inc-1", AccountName: "jdoe", Domain: "CORP", HostID: "h1"})
	st.AddMalware(&models.Malware{ID: "m1", IncidentID: "inc-1", FileName: "beacon.exe", Host: "dc-01"})
	st.AddHostIndicator(&models.HostIndicator{ID: "hi1", IncidentID: "inc-1", ArtifactType: "registry", ArtifactValue: "HKLM\\Run", Host: "nowhere"})

	b := NewBuilder(st, NewIncidentLocks())
	result, err := b.Build(context.Background(), "inc-1", "analyst-1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// 2 hosts + 1 account + 1 malware; the unresolvable indicator is excluded.
	if len(result.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(result.Nodes))
	}
	if len(result.Edges) != 2 {
		t.Fatalf("expected 2 association edges, got %d", len(result.Edges))
	}

	var ws, dc *models.GraphNode
	for _, n := range result.Nodes {
		switch n.HostID {
		case "h1":
			ws = n
		case "h2":
			dc = n
		}
	}
	if ws == nil || dc == nil {
		t.Fatalf("missing host nodes: %+v", result.Nodes)
	}
	if !ws.IsInitialAccess {
		t.Fatalf("expected earliest host to be flagged as initial access")
	}
	if dc.IsInitialAccess {
		t.Fatalf("did not expect second host to be flagged as initial access")
	}
	if ws.Type != models.NodeWorkstation {
		t.Fatalf("unexpected type for WS-01: %s", ws.Type)
	}
	if dc.Type != models.NodeDomainController {
		t.Fatalf("unexpected type for DC-01: %s", dc.Type)
	}
	if ws.PositionX != 300 || ws.PositionY != 400 {
		t.Fatalf("unexpected position for first host: (%v, %v)", ws.PositionX, ws.PositionY)
	}
	if dc.PositionX != 900 || dc.PositionY != 400 {
		t.Fatalf("unexpected position for second host: (%v, %v)", dc.PositionX, dc.PositionY)
	}

	var user *models.GraphNode
	for _, n := range result.Nodes {
		if n.Type == models.NodeUser {
			user = n
		}
	}
	if user == nil {
		t.Fatalf("expected a user node")
	}
	if user.Label != `CORP\jdoe` {
		t.Fatalf("unexpected user label: %s", user.Label)
	}

	for _, e := range result.Edges {
		if e.Type != models.EdgeAssociatedWith || e.Label != "Associated" {
			t.Fatalf("unexpected association edge: %+v", e)
		}
	}

	stored, err := st.Nodes(context.Background(), "inc-1")
	if err != nil {
		t.Fatalf("load nodes: %v", err)
	}
	if len(stored) != len(result.Nodes) {
		t.Fatalf("store has %d nodes, result has %d", len(stored), len(result.Nodes))
	}
}

func TestBuildHostsWithoutFirstSeenSortLast(t *testing.T) {
	st := memstore.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedHost(st, "inc-1", "h-unknown", "WS-99", "", "workstation", nil)
	seedHost(st, "inc-1", "h-early", "WS-01", "", "workstation", tp(base))

	b := NewBuilder(st, NewIncidentLocks())
	result, err := b.Build(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	for _, n := range result.Nodes {
		if n.HostID == "h-early" && !n.IsInitialAccess {
			t.Fatalf("expected dated host to be flagged over undated host")
		}
		if n.HostID == "h-unknown" && n.IsInitialAccess {
			t.Fatalf("did not expect undated host to be flagged")
		}
	}
}

func TestBuildNetworkIOCsDeduplicateByValue(t *testing.T) {
	st := memstore.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedHost(st, "inc-1", "h1", "WS-01", "", "workstation", tp(base))
	seedHost(st, "inc-1", "h2", "WS-02", "", "workstation", tp(base.Add(time.Minute)))

	st.AddNetworkIndicator(&models.NetworkIndicator{ID: "n1", IncidentID: "inc-1", DNSOrIP: "evil.example.com", Direction: "outbound", HostID: "h1"})
	st.AddNetworkIndicator(&models.NetworkIndicator{ID: "n2", IncidentID: "inc-1", DNSOrIP: "evil.example.com", HostID: "h2"})
	st.AddNetworkIndicator(&models.NetworkIndicator{ID: "n3", IncidentID: "inc-1", DNSOrIP: "evil.example.com", HostID: "h1"})
	st.AddNetworkIndicator(&models.NetworkIndicator{ID: "n4", IncidentID: "inc-1", DNSOrIP: "203.0.113.7", SourceHost: "ws-02"})
	st.AddNetworkIndicator(&models.NetworkIndicator{ID: "n5", IncidentID: "inc-1", DNSOrIP: "orphan.example.com", SourceHost: "no-such-host"})

	b := NewBuilder(st, NewIncidentLocks())
	result, err := b.Build(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	var iocNodes []*models.GraphNode
	for _, n := range result.Nodes {
		if n.Type == models.NodeIPAddress {
			iocNodes = append(iocNodes, n)
		}
	}
	if len(iocNodes) != 2 {
		t.Fatalf("expected 2 IOC nodes, got %d", len(iocNodes))
	}
	for _, n := range iocNodes {
		if n.Label == "orphan.example.com" {
			t.Fatalf("did not expect an unresolvable IOC to create a node")
		}
	}

	// evil.example.com links to both hosts, 203.0.113.7 to one.
	if len(result.Edges) != 3 {
		t.Fatalf("expected 3 IOC edges, got %d", len(result.Edges))
	}
	seen := make(map[string]int)
	for _, e := range result.Edges {
		seen[e.SourceNodeID+"|"+e.TargetNodeID]++
	}
	for pair, count := range seen {
		if count != 1 {
			t.Fatalf("pair %s appears %d times", pair, count)
		}
	}
}

func TestBuildLateralMovementFollowsEventChronology(t *testing.T) {
	st := memstore.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedHost(st, "inc-1", "h1", "WS-01", "", "workstation", tp(base))
	seedHost(st, "inc-1", "h2", "SRV-01", "", "server", tp(base.Add(time.Minute)))

	longActivity := "PsExec execution against the file server using harvested domain administrator credentials"
	st.AddEvent(&models.TimelineEvent{ID: "e1", IncidentID: "inc-1", Timestamp: base, HostID: "h1", Activity: "Phishing payload executed"})
	st.AddEvent(&models.TimelineEvent{ID: "e2", IncidentID: "inc-1", Timestamp: base.Add(10 * time.Minute), HostID: "h2", Activity: longActivity})
	st.AddEvent(&models.TimelineEvent{ID: "e3", IncidentID: "inc-1", Timestamp: base.Add(20 * time.Minute), HostID: "h1", Activity: "Return to patient zero"})
	st.AddEvent(&models.TimelineEvent{ID: "e4", IncidentID: "inc-1", Timestamp: base.Add(30 * time.Minute), HostID: "h2", Activity: "Second hop"})
	st.AddEvent(&models.TimelineEvent{ID: "e5", IncidentID: "inc-1", Timestamp: base.Add(40 * time.Minute), Activity: "No host reference"})

	b := NewBuilder(st, NewIncidentLocks())
	result, err := b.Build(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	var lateral []*models.GraphEdge
	for _, e := range result.Edges {
		if e.Type == models.EdgeLateralMovement {
			lateral = append(lateral, e)
		}
	}
	// h1->h2 and h2->h1, each recorded once even though h1->h2 repeats.
	if len(lateral) != 2 {
		t.Fatalf("expected 2 lateral edges, got %d", len(lateral))
	}
	for _, e := range lateral {
		if len(e.Label) > 50 {
			t.Fatalf("lateral label not truncated: %q", e.Label)
		}
		if e.Timestamp == nil {
			t.Fatalf("lateral edge missing timestamp")
		}
	}
}

func TestBuildEmptyIncidentClearsExistingGraph(t *testing.T) {
	st := memstore.New()
	seedHost(st, "inc-1", "h1", "WS-01", "", "workstation", nil)

	b := NewBuilder(st, NewIncidentLocks())
	if _, err := b.Build(context.Background(), "inc-1", ""); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	result, err := b.Build(context.Background(), "inc-2", "")
	if err != nil {
		t.Fatalf("empty build failed: %v", err)
	}
	if len(result.Nodes) != 0 || len(result.Edges) != 0 {
		t.Fatalf("expected empty result, got %d nodes %d edges", len(result.Nodes), len(result.Edges))
	}

	// Incident with hosts is untouched by the other incident's rebuild.
	nodes, err := st.Nodes(context.Background(), "inc-1")
	if err != nil {
		t.Fatalf("load nodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected inc-1 graph to survive, got %d nodes", len(nodes))
	}
}

func TestBuildIsRepeatableWithoutAccumulation(t *testing.T) {
	st := memstore.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedHost(st, "inc-1", "h1", "WS-01", "", "workstation", tp(base))
	seedHost(st, "inc-1", "h2", "WS-02", "", "workstation", tp(base.Add(time.Minute)))
	st.AddAccount(&models.Account{ID: "a1", IncidentID: "inc-1", AccountName: "jdoe", HostID: "h1"})
	st.AddEvent(&models.TimelineEvent{ID: "e1", IncidentID: "inc-1", Timestamp: base, HostID: "h1", Activity: "a"})
	st.AddEvent(&models.TimelineEvent{ID: "e2", IncidentID: "inc-1", Timestamp: base.Add(time.Minute), HostID: "h2", Activity: "b"})

	b := NewBuilder(st, NewIncidentLocks())
	first, err := b.Build(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := b.Build(context.Background(), "inc-1", "")
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}

	if len(first.Nodes) != len(second.Nodes) || len(first.Edges) != len(second.Edges) {
		t.Fatalf("rebuild changed shape: %d/%d vs %d/%d",
			len(first.Nodes), len(first.Edges), len(second.Nodes), len(second.Edges))
	}

	nodes, _ := st.Nodes(context.Background(), "inc-1")
	edges, _ := st.Edges(context.Background(), "inc-1")
	if len(nodes) != len(second.Nodes) || len(edges) != len(second.Edges) {
		t.Fatalf("store accumulated rows across rebuilds: %d nodes %d edges", len(nodes), len(edges))
	}
}
