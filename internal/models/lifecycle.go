package models

// IssueStatus is the primary lifecycle position of an issue. The values are
// totally ordered and an issue only ever moves forward.
type IssueStatus string

const (
	IssuePending    IssueStatus = "pending"
	IssueProcessing IssueStatus = "processing"
	IssueInProgress IssueStatus = "in_progress"
	IssueCompleted  IssueStatus = "completed"
)

var issueOrder = map[IssueStatus]int{
	IssuePending:    0,
	IssueProcessing: 1,
	IssueInProgress: 2,
	IssueCompleted:  3,
}

// Valid reports whether s is a known status
func (s IssueStatus) Valid() bool {
	_, ok := issueOrder[s]
	return ok
}

// Before reports whether s comes strictly earlier in the lifecycle than other
func (s IssueStatus) Before(other IssueStatus) bool {
	a, okA := issueOrder[s]
	b, okB := issueOrder[other]
	return okA && okB && a < b
}

// ProjectStatus mirrors the construction pipeline position
type ProjectStatus string

const (
	ProjectPreparing    ProjectStatus = "preparing"
	ProjectConstructing ProjectStatus = "constructing"
	ProjectAccepting    ProjectStatus = "accepting"
	ProjectCompleted    ProjectStatus = "completed"
)

// StageStatus is the state of one pipeline stage
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// StageCount is fixed: preparation, construction, acceptance
const StageCount = 3

// StageNames indexes the fixed pipeline
var StageNames = [StageCount]string{"preparation", "construction", "acceptance"}

// StageTransition is what completing a stage does to both aggregates
type StageTransition struct {
	ProjectStatus      ProjectStatus
	IssueStatus        IssueStatus
	AcceptanceComplete bool
}

// StageTransitions is the one table both the project and the issue follow
// when a stage completes.
var StageTransitions = [StageCount]StageTransition{
	{ProjectStatus: ProjectConstructing, IssueStatus: IssueInProgress},
	{ProjectStatus: ProjectAccepting, IssueStatus: IssueInProgress},
	{ProjectStatus: ProjectAccepting, IssueStatus: IssueInProgress, AcceptanceComplete: true},
}

// IssueStatusFor derives the issue status a project implies
func IssueStatusFor(p *ConstructionProject) IssueStatus {
	if p.Completion != nil || p.Status == ProjectCompleted {
		return IssueCompleted
	}
	status := IssueProcessing
	for i, stage := range p.Stages {
		if stage.Status == StageCompleted {
			status = StageTransitions[i].IssueStatus
		}
	}
	return status
}
