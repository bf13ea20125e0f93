package models

import "time"

// NodeType classifies an attack graph node. The set is closed; the
// builder and updater switch on it exhaustively.
type NodeType string

const (
	NodeWorkstation      NodeType = "workstation"
	NodeServer           NodeType = "server"
	NodeDomainController NodeType = "domain_controller"
	NodeAttacker         NodeType = "attacker"
	NodeC2Server         NodeType = "c2_server"
	NodeCloudResource    NodeType = "cloud_resource"
	NodeUser             NodeType = "user"
	NodeServiceAccount   NodeType = "service_account"
	NodeExternal         NodeType = "external"
	NodeUnknown          NodeType = "unknown"
	NodeIPAddress        NodeType = "ip_address"
	NodeMalware          NodeType = "malware"
	NodeHostIndicator    NodeType = "host_indicator"
	NodeDatabase         NodeType = "database"
	NodeWebServer        NodeType = "web_server"
	NodeFileServer       NodeType = "file_server"
)

// Valid reports whether the node type belongs to the closed set.
func (t NodeType) Valid() bool {
	switch t {
	case NodeWorkstation, NodeServer, NodeDomainController, NodeAttacker,
		NodeC2Server, NodeCloudResource, NodeUser, NodeServiceAccount,
		NodeExternal, NodeUnknown, NodeIPAddress, NodeMalware,
		NodeHostIndicator, NodeDatabase, NodeWebServer, NodeFileServer:
		return true
	}
	return false
}

// EdgeType classifies a relation between two graph nodes.
type EdgeType string

const (
	EdgeLateralMovement     EdgeType = "lateral_movement"
	EdgeCredentialTheft     EdgeType = "credential_theft"
	EdgeDataExfiltration    EdgeType = "data_exfiltration"
	EdgeCommandControl      EdgeType = "command_control"
	EdgeInitialAccess       EdgeType = "initial_access"
	EdgePrivilegeEscalation EdgeType = "privilege_escalation"
	EdgePersistence         EdgeType = "persistence"
	EdgeDiscovery           EdgeType = "discovery"
	EdgeExecution           EdgeType = "execution"
	EdgeDefenseEvasion      EdgeType = "defense_evasion"
	EdgeCollection          EdgeType = "collection"
	EdgeAssociatedWith      EdgeType = "associated_with"
)

// Valid reports whether the edge type belongs to the closed set.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeLateralMovement, EdgeCredentialTheft, EdgeDataExfiltration,
		EdgeCommandControl, EdgeInitialAccess, EdgePrivilegeEscalation,
		EdgePersistence, EdgeDiscovery, EdgeExecution, EdgeDefenseEvasion,
		EdgeCollection, EdgeAssociatedWith:
		return true
	}
	return false
}

// GraphNode is one visual entity in an incident's attack graph.
// HostID/AccountID reference the source entity the node was derived
// from; both must belong to the same incident when set.
type GraphNode struct {
	ID              string         `json:"id"`
	IncidentID      string         `json:"incident_id"`
	Type            NodeType       `json:"node_type"`
	Label           string         `json:"label"`
	HostID          string         `json:"host_id,omitempty"`
	AccountID       string         `json:"account_id,omitempty"`
	PositionX       float64        `json:"position_x"`
	PositionY       float64        `json:"position_y"`
	IsInitialAccess bool           `json:"is_initial_access"`
	IsObjective     bool           `json:"is_objective"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
}

// GraphEdge is a typed relation between two nodes of the same incident.
// At most one edge of a given type may exist per ordered (source,
// target) pair; the store has no unique constraint, so writers must
// check before insert.
type GraphEdge struct {
	ID             string         `json:"id"`
	IncidentID     string         `json:"incident_id"`
	SourceNodeID   string         `json:"source_node_id"`
	TargetNodeID   string         `json:"target_node_id"`
	Type           EdgeType       `json:"edge_type"`
	Label          string         `json:"label,omitempty"`
	MitreTactic    string         `json:"mitre_tactic,omitempty"`
	MitreTechnique string         `json:"mitre_technique,omitempty"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
	Description    string         `json:"description,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
}
