package pipeline

import (
	"context"
	"sync"
	"time"

	"casegraph/internal/broadcast"
	"casegraph/internal/graph"
	inputredis "casegraph/internal/input/redis"
	"casegraph/internal/logger"
	"casegraph/internal/metrics"
	"casegraph/internal/rules"
	"casegraph/internal/transform/timeline"
	"casegraph/pkg/models"
)

// EventPipeline consumes timeline-event notifications from Redis and
// applies each one to its incident graph.
type EventPipeline struct {
	consumer    *inputredis.Consumer
	engine      rules.Engine
	updater     *graph.Updater
	broadcaster broadcast.Broadcaster
	workers     int
}

// NewEventPipeline creates a pipeline over the given consumer and updater.
func NewEventPipeline(consumer *inputredis.Consumer, engine rules.Engine, updater *graph.Updater, broadcaster broadcast.Broadcaster, workers int) *EventPipeline {
	return &EventPipeline{
		consumer:    consumer,
		engine:      engine,
		updater:     updater,
		broadcaster: broadcaster,
		workers:     workers,
	}
}

// Run starts the pipeline loop and blocks until ctx is canceled.
func (p *EventPipeline) Run(ctx context.Context) error {
	logger.Infof("Event pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}

	msgCh := make(chan []byte, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, msgCh)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *EventPipeline) Close() error {
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *EventPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			continue
		}
		out <- payload
	}
}

func (p *EventPipeline) workerLoop(ctx context.Context, in <-chan []byte) {
	for payload := range in {
		event, err := timeline.Parse(payload)
		if err != nil {
			logger.Warnf("Failed to parse timeline event: %v", err)
			metrics.EventFailures.Inc()
			continue
		}

		if p.engine != nil && event.MitreTactic == "" {
			applyTags(event, p.engine.Apply(event))
		}

		out := p.updater.ProcessEvent(ctx, event)
		metrics.EventsProcessed.Inc()
		if out.Err != nil {
			logger.Errorf("Failed to apply event %s to incident %s: %v", event.ID, event.IncidentID, out.Err)
			metrics.EventFailures.Inc()
		}

		metrics.NodesCreated.Add(float64(len(out.Nodes)))
		metrics.EdgesCreated.Add(float64(len(out.Edges)))

		for _, node := range out.Nodes {
			p.broadcaster.GraphNodeAdded(event.IncidentID, node)
		}
		for _, node := range out.Updated {
			p.broadcaster.GraphNodeUpdated(event.IncidentID, node)
		}
		for _, edge := range out.Edges {
			p.broadcaster.GraphEdgeAdded(event.IncidentID, edge)
		}
	}
}

// applyTags fills the event's MITRE fields from the first matching rule.
func applyTags(event *models.TimelineEvent, tags []rules.Tag) {
	if len(tags) == 0 {
		return
	}
	tag := tags[0]
	if tag.Tactic != "" {
		event.MitreTactic = tag.Tactic
	}
	if event.MitreTechnique == "" && tag.Technique != "" {
		event.MitreTechnique = tag.Technique
	}
}
