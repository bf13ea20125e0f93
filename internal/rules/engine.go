package rules

import "casegraph/pkg/models"

// Tag is a MITRE annotation derived from a matched rule.
type Tag struct {
	RuleID    string
	Name      string
	Severity  string
	Tactic    string
	Technique string
}

// Engine tags timeline events with MITRE context.
type Engine interface {
	Apply(event *models.TimelineEvent) []Tag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *models.TimelineEvent) []Tag {
	return nil
}
