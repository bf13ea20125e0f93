package broadcast

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"casegraph/internal/logger"
	"casegraph/pkg/models"
)

const publishTimeout = 2 * time.Second

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// RedisPublisher mirrors graph change events onto Redis pub/sub channels
// so other platform processes can forward them to their own clients.
// Publish failures are logged and dropped.
type RedisPublisher struct {
	client        *redis.Client
	channelPrefix string
}

// NewRedisPublisher creates a publisher for graph change channels.
func NewRedisPublisher(cfg RedisConfig) *RedisPublisher {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "graph_updates"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisPublisher{
		client:        client,
		channelPrefix: cfg.ChannelPrefix,
	}
}

// Close closes the underlying Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) publish(incidentID, event string, data any) {
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		logger.Errorf("Failed to marshal pub/sub payload: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	channel := p.channelPrefix + ":" + incidentID
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Errorf("Failed to publish to %s: %v", channel, err)
	}
}

// GraphNodeAdded publishes a new node event.
func (p *RedisPublisher) GraphNodeAdded(incidentID string, node *models.GraphNode) {
	p.publish(incidentID, "graph_node_added", node)
}

// GraphNodeUpdated publishes a changed node event.
func (p *RedisPublisher) GraphNodeUpdated(incidentID string, node *models.GraphNode) {
	p.publish(incidentID, "graph_node_updated", node)
}

// GraphEdgeAdded publishes a new edge event.
func (p *RedisPublisher) GraphEdgeAdded(incidentID string, edge *models.GraphEdge) {
	p.publish(incidentID, "graph_edge_added", edge)
}

// GraphDeleted publishes a graph cleared event.
func (p *RedisPublisher) GraphDeleted(incidentID string) {
	p.publish(incidentID, "graph_deleted", map[string]string{"incident_id": incidentID})
}
