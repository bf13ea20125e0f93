package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"casegraph/internal/store"
	"casegraph/pkg/models"
)

// Config configures the MySQL-backed store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Store reads platform-owned source entities and persists attack graph
// rows over database/sql. The DSN must enable parseTime.
type Store struct {
	db *sql.DB
}

// Open connects to MySQL and verifies the connection.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &Store{db: db}, nil
}

// EnsureSchema creates the graph tables this service owns. Source-entity
// tables belong to the surrounding platform and are never created here.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attack_graph_nodes (
			id CHAR(36) PRIMARY KEY,
			incident_id CHAR(36) NOT NULL,
			node_type VARCHAR(50) NOT NULL,
			label VARCHAR(255) NOT NULL,
			host_id CHAR(36),
			account_id CHAR(36),
			position_x DOUBLE NOT NULL DEFAULT 0,
			position_y DOUBLE NOT NULL DEFAULT 0,
			is_initial_access TINYINT(1) NOT NULL DEFAULT 0,
			is_objective TINYINT(1) NOT NULL DEFAULT 0,
			attributes JSON,
			created_by CHAR(36) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_nodes_incident (incident_id),
			KEY idx_nodes_host (incident_id, host_id)
		)`,
		`CREATE TABLE IF NOT EXISTS attack_graph_edges (
			id CHAR(36) PRIMARY KEY,
			incident_id CHAR(36) NOT NULL,
			source_node_id CHAR(36) NOT NULL,
			target_node_id CHAR(36) NOT NULL,
			edge_type VARCHAR(50) NOT NULL,
			label VARCHAR(255),
			mitre_tactic VARCHAR(100),
			mitre_technique VARCHAR(20),
			timestamp DATETIME(6),
			description TEXT,
			attributes JSON,
			created_by CHAR(36) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_edges_incident (incident_id),
			KEY idx_edges_triple (incident_id, source_node_id, target_node_id, edge_type),
			CONSTRAINT fk_edges_source FOREIGN KEY (source_node_id) REFERENCES attack_graph_nodes (id) ON DELETE CASCADE,
			CONSTRAINT fk_edges_target FOREIGN KEY (target_node_id) REFERENCES attack_graph_nodes (id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure graph schema: %w", err)
		}
	}
	return nil
}

const hostColumns = `id, incident_id, hostname,
	COALESCE(ip_address, ''), COALESCE(system_type, ''), COALESCE(os_version, ''),
	first_seen, last_seen, COALESCE(containment_status, '')`

func scanHost(row interface{ Scan(...any) error }) (*models.Host, error) {
	var h models.Host
	var firstSeen, lastSeen sql.NullTime
	if err := row.Scan(&h.ID, &h.IncidentID, &h.Hostname, &h.IPAddress, &h.SystemType,
		&h.OSVersion, &firstSeen, &lastSeen, &h.ContainmentStatus); err != nil {
		return nil, err
	}
	if firstSeen.Valid {
		t := firstSeen.Time
		h.FirstSeen = &t
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		h.LastSeen = &t
	}
	return &h, nil
}

// HostsByFirstSeen returns hosts ordered by first-seen ascending, nulls last.
func (s *Store) HostsByFirstSeen(ctx context.Context, incidentID string) ([]*models.Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hostColumns+` FROM compromised_hosts
		 WHERE incident_id = ?
		 ORDER BY first_seen IS NULL, first_seen ASC, id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var out []*models.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) hostWhere(ctx context.Context, where string, args ...any) (*models.Host, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+hostColumns+` FROM compromised_hosts WHERE `+where+` LIMIT 1`, args...)
	h, err := scanHost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query host: %w", err)
	}
	return h, nil
}

// HostByID returns the host or (nil, nil).
func (s *Store) HostByID(ctx context.Context, incidentID, hostID string) (*models.Host, error) {
	return s.hostWhere(ctx, "incident_id = ? AND id = ?", incidentID, hostID)
}

// FindHostByHostname matches the exact hostname, or returns (nil, nil).
func (s *Store) FindHostByHostname(ctx context.Context, incidentID, hostname string) (*models.Host, error) {
	return s.hostWhere(ctx, "incident_id = ? AND hostname = ?", incidentID, hostname)
}

// FindHostByIP matches the host's IP address, or returns (nil, nil).
func (s *Store) FindHostByIP(ctx context.Context, incidentID, ip string) (*models.Host, error) {
	return s.hostWhere(ctx, "incident_id = ? AND ip_address = ?", incidentID, ip)
}

// Accounts returns the incident's accounts.
func (s *Store) Accounts(ctx context.Context, incidentID string) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, account_name, COALESCE(domain, ''), COALESCE(host_id, ''),
		        COALESCE(host_system, ''), COALESCE(account_type, ''), COALESCE(sid, ''),
		        is_privileged, COALESCE(status, '')
		 FROM compromised_accounts WHERE incident_id = ? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.AccountName, &a.Domain, &a.HostID,
			&a.HostSystem, &a.AccountType, &a.SID, &a.IsPrivileged, &a.Status); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Malware returns the incident's malware entries.
func (s *Store) Malware(ctx context.Context, incidentID string) ([]*models.Malware, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, file_name, COALESCE(file_path, ''), COALESCE(md5, ''),
		        COALESCE(sha256, ''), COALESCE(malware_family, ''), COALESCE(threat_actor, ''),
		        is_tool, COALESCE(host_id, ''), COALESCE(host, '')
		 FROM malware_tools WHERE incident_id = ? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query malware: %w", err)
	}
	defer rows.Close()

	var out []*models.Malware
	for rows.Next() {
		var m models.Malware
		if err := rows.Scan(&m.ID, &m.IncidentID, &m.FileName, &m.FilePath, &m.MD5,
			&m.SHA256, &m.MalwareFamily, &m.ThreatActor, &m.IsTool, &m.HostID, &m.Host); err != nil {
			return nil, fmt.Errorf("scan malware: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// HostIndicators returns the incident's host-based indicators.
func (s *Store) HostIndicators(ctx context.Context, incidentID string) ([]*models.HostIndicator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, artifact_type, artifact_value, is_malicious, remediated,
		        COALESCE(notes, ''), COALESCE(host_id, ''), COALESCE(host, '')
		 FROM host_based_indicators WHERE incident_id = ? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query host indicators: %w", err)
	}
	defer rows.Close()

	var out []*models.HostIndicator
	for rows.Next() {
		var h models.HostIndicator
		if err := rows.Scan(&h.ID, &h.IncidentID, &h.ArtifactType, &h.ArtifactValue,
			&h.IsMalicious, &h.Remediated, &h.Notes, &h.HostID, &h.Host); err != nil {
			return nil, fmt.Errorf("scan host indicator: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// NetworkIndicators returns the incident's network indicators.
func (s *Store) NetworkIndicators(ctx context.Context, incidentID string) ([]*models.NetworkIndicator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, dns_ip, COALESCE(direction, ''), COALESCE(protocol, ''),
		        COALESCE(port, 0), COALESCE(description, ''), COALESCE(destination_host, ''),
		        COALESCE(threat_intel_source, ''), is_malicious, COALESCE(host_id, ''),
		        COALESCE(source_host, '')
		 FROM network_indicators WHERE incident_id = ? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query network indicators: %w", err)
	}
	defer rows.Close()

	var out []*models.NetworkIndicator
	for rows.Next() {
		var n models.NetworkIndicator
		if err := rows.Scan(&n.ID, &n.IncidentID, &n.DNSOrIP, &n.Direction, &n.Protocol,
			&n.Port, &n.Description, &n.DestinationHost, &n.ThreatIntelSource,
			&n.IsMalicious, &n.HostID, &n.SourceHost); err != nil {
			return nil, fmt.Errorf("scan network indicator: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// EventsByTime returns host-referencing events ordered by timestamp
// ascending; ties break on row id, matching the platform's read order.
func (s *Store) EventsByTime(ctx context.Context, incidentID string) ([]*models.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, timestamp, COALESCE(host_id, ''), COALESCE(hostname, ''),
		        activity, COALESCE(source, ''), COALESCE(mitre_tactic, ''),
		        COALESCE(mitre_technique, ''), COALESCE(created_by, '')
		 FROM timeline_events
		 WHERE incident_id = ? AND host_id IS NOT NULL
		 ORDER BY timestamp ASC, id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query timeline events: %w", err)
	}
	defer rows.Close()

	var out []*models.TimelineEvent
	for rows.Next() {
		var e models.TimelineEvent
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.Timestamp, &e.HostID, &e.Hostname,
			&e.Activity, &e.Source, &e.MitreTactic, &e.MitreTechnique, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

const nodeColumns = `id, incident_id, node_type, label, COALESCE(host_id, ''),
	COALESCE(account_id, ''), position_x, position_y, is_initial_access, is_objective,
	attributes, created_by, created_at`

func scanNode(row interface{ Scan(...any) error }) (*models.GraphNode, error) {
	var n models.GraphNode
	var attrs []byte
	if err := row.Scan(&n.ID, &n.IncidentID, &n.Type, &n.Label, &n.HostID, &n.AccountID,
		&n.PositionX, &n.PositionY, &n.IsInitialAccess, &n.IsObjective,
		&attrs, &n.CreatedBy, &n.CreatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &n.Attributes); err != nil {
			return nil, fmt.Errorf("decode node attributes: %w", err)
		}
	}
	return &n, nil
}

// Nodes returns the incident's graph nodes.
func (s *Store) Nodes(ctx context.Context, incidentID string) ([]*models.GraphNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM attack_graph_nodes WHERE incident_id = ? ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.GraphNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const edgeColumns = `id, incident_id, source_node_id, target_node_id, edge_type,
	COALESCE(label, ''), COALESCE(mitre_tactic, ''), COALESCE(mitre_technique, ''),
	timestamp, COALESCE(description, ''), attributes, created_by, created_at`

func scanEdge(row interface{ Scan(...any) error }) (*models.GraphEdge, error) {
	var e models.GraphEdge
	var ts sql.NullTime
	var attrs []byte
	if err := row.Scan(&e.ID, &e.IncidentID, &e.SourceNodeID, &e.TargetNodeID, &e.Type,
		&e.Label, &e.MitreTactic, &e.MitreTechnique, &ts, &e.Description,
		&attrs, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	if ts.Valid {
		t := ts.Time
		e.Timestamp = &t
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return nil, fmt.Errorf("decode edge attributes: %w", err)
		}
	}
	return &e, nil
}

// Edges returns the incident's graph edges.
func (s *Store) Edges(ctx context.Context, incidentID string) ([]*models.GraphEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+edgeColumns+` FROM attack_graph_edges WHERE incident_id = ? ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []*models.GraphEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NodeByHost returns the node backed by the host, or (nil, nil).
func (s *Store) NodeByHost(ctx context.Context, incidentID, hostID string) (*models.GraphNode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM attack_graph_nodes WHERE incident_id = ? AND host_id = ? LIMIT 1`,
		incidentID, hostID)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query node by host: %w", err)
	}
	return n, nil
}

// FindEdge returns the edge matching the ordered triple, or (nil, nil).
func (s *Store) FindEdge(ctx context.Context, incidentID, sourceNodeID, targetNodeID string, edgeType models.EdgeType) (*models.GraphEdge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM attack_graph_edges
		 WHERE incident_id = ? AND source_node_id = ? AND target_node_id = ? AND edge_type = ?
		 LIMIT 1`, incidentID, sourceNodeID, targetNodeID, string(edgeType))
	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query edge: %w", err)
	}
	return e, nil
}

// SaveNode persists label, position and flag changes.
func (s *Store) SaveNode(ctx context.Context, node *models.GraphNode) error {
	attrs, err := marshalAttributes(node.Attributes)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attack_graph_nodes
		 SET label = ?, position_x = ?, position_y = ?, is_initial_access = ?, is_objective = ?, attributes = ?
		 WHERE id = ? AND incident_id = ?`,
		node.Label, node.PositionX, node.PositionY, node.IsInitialAccess, node.IsObjective,
		attrs, node.ID, node.IncidentID)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("node %s not found in incident %s", node.ID, node.IncidentID)
	}
	return nil
}

// Update runs fn inside a database transaction. Edges are deleted before
// nodes so the cascade constraints never see dangling references.
func (s *Store) Update(ctx context.Context, fn func(tx store.GraphTx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin graph transaction: %w", err)
	}

	gtx := &graphTx{ctx: ctx, tx: dbtx}
	if err := fn(gtx); err != nil {
		dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit graph transaction: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type graphTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *graphTx) DeleteGraph(incidentID string) error {
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM attack_graph_edges WHERE incident_id = ?`, incidentID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM attack_graph_nodes WHERE incident_id = ?`, incidentID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return nil
}

func (t *graphTx) CreateNode(node *models.GraphNode) error {
	if !node.Type.Valid() {
		return fmt.Errorf("invalid node type %q", node.Type)
	}
	attrs, err := marshalAttributes(node.Attributes)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO attack_graph_nodes
		 (id, incident_id, node_type, label, host_id, account_id, position_x, position_y,
		  is_initial_access, is_objective, attributes, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.IncidentID, string(node.Type), node.Label,
		nullable(node.HostID), nullable(node.AccountID),
		node.PositionX, node.PositionY, node.IsInitialAccess, node.IsObjective,
		attrs, node.CreatedBy, node.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

func (t *graphTx) CreateEdge(edge *models.GraphEdge) error {
	if !edge.Type.Valid() {
		return fmt.Errorf("invalid edge type %q", edge.Type)
	}
	attrs, err := marshalAttributes(edge.Attributes)
	if err != nil {
		return err
	}
	var ts any
	if edge.Timestamp != nil {
		ts = *edge.Timestamp
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO attack_graph_edges
		 (id, incident_id, source_node_id, target_node_id, edge_type, label, mitre_tactic,
		  mitre_technique, timestamp, description, attributes, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.IncidentID, edge.SourceNodeID, edge.TargetNodeID, string(edge.Type),
		nullable(edge.Label), nullable(edge.MitreTactic), nullable(edge.MitreTechnique),
		ts, nullable(edge.Description), attrs, edge.CreatedBy, edge.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}

func marshalAttributes(attrs map[string]any) (any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return raw, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
