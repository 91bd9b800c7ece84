package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueStatusOrder(t *testing.T) {
	ordered := []IssueStatus{IssuePending, IssueProcessing, IssueInProgress, IssueCompleted}
	for i, a := range ordered {
		assert.True(t, a.Valid())
		for j, b := range ordered {
			assert.Equal(t, i < j, a.Before(b), "%s before %s", a, b)
		}
	}
	assert.False(t, IssueStatus("archived").Valid())
	assert.False(t, IssueStatus("archived").Before(IssueCompleted))
	assert.False(t, IssuePending.Before("archived"))
}

func TestNewStages(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	stages := NewStages(now)
	require.Len(t, stages, StageCount)
	assert.Equal(t, StageInProgress, stages[0].Status)
	assert.Equal(t, now, *stages[0].StartedAt)
	for i, s := range stages {
		assert.Equal(t, StageNames[i], s.Name)
		if i > 0 {
			assert.Equal(t, StagePending, s.Status)
			assert.Nil(t, s.StartedAt)
		}
	}
}

func TestIssueStatusFor(t *testing.T) {
	project := func(completed int) *ConstructionProject {
		p := &ConstructionProject{Status: ProjectPreparing, Stages: NewStages(time.Now())}
		for i := range completed {
			p.Stages[i].Status = StageCompleted
			p.Status = StageTransitions[i].ProjectStatus
		}
		return p
	}

	assert.Equal(t, IssueProcessing, IssueStatusFor(project(0)))
	assert.Equal(t, IssueInProgress, IssueStatusFor(project(1)))
	assert.Equal(t, IssueInProgress, IssueStatusFor(project(3)))

	done := project(3)
	done.Completion = &Completion{Rating: 5}
	assert.Equal(t, IssueCompleted, IssueStatusFor(done))
}

func TestStageTransitionsNeverRegress(t *testing.T) {
	prev := IssueProcessing
	for i, tr := range StageTransitions {
		assert.False(t, tr.IssueStatus.Before(prev), "stage %d", i)
		assert.Equal(t, i == StageCount-1, tr.AcceptanceComplete, "stage %d", i)
		prev = tr.IssueStatus
	}
}

func TestTotalCost(t *testing.T) {
	assert.Zero(t, TotalCost(nil))
	assert.InDelta(t, 1750.5, TotalCost([]Stage{{Cost: 250}, {Cost: 1500.5}, {}}), 1e-9)
}
