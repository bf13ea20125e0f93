package pipeline

import (
	"testing"

	"casegraph/internal/rules"
	"casegraph/pkg/models"
)

func TestApplyTagsFillsMissingMitreFields(t *testing.T) {
	event := &models.TimelineEvent{Activity: "RDP session"}
	applyTags(event, []rules.Tag{
		{RuleID: "r1", Tactic: "lateral-movement", Technique: "T1021"},
		{RuleID: "r2", Tactic: "impact"},
	})

	if event.MitreTactic != "lateral-movement" {
		t.Fatalf("unexpected tactic: %q", event.MitreTactic)
	}
	if event.MitreTechnique != "T1021" {
		t.Fatalf("unexpected technique: %q", event.MitreTechnique)
	}
}

func TestApplyTagsKeepsExistingTechnique(t *testing.T) {
	event := &models.TimelineEvent{Activity: "RDP session", MitreTechnique: "T1570"}
	applyTags(event, []rules.Tag{{RuleID: "r1", Tactic: "lateral-movement", Technique: "T1021"}})

	if event.MitreTechnique != "T1570" {
		t.Fatalf("expected analyst technique to be kept, got %q", event.MitreTechnique)
	}
}

func TestApplyTagsWithoutMatchesIsNoop(t *testing.T) {
	event := &models.TimelineEvent{Activity: "Benign logon"}
	applyTags(event, nil)

	if event.MitreTactic != "" || event.MitreTechnique != "" {
		t.Fatalf("expected event to be unchanged: %+v", event)
	}
}
