// Package plan tracks the current project plan and enforces its
// constraints against incoming requests.
package plan

import "time"

// Plan status constants.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusComplete = "complete"
)

// Constraint type constants.
const (
	ConstraintRequirement = "requirement"
	ConstraintPreference  = "preference"
	ConstraintRestriction = "restriction"
)

// Constraint enforcement levels.
const (
	EnforcementStrict   = "strict"
	EnforcementFlexible = "flexible"
	EnforcementAdvisory = "advisory"
)

// Phase is one step of a plan's strategy. Keywords drive request
// alignment scoring; Tasks drive phase-advance readiness.
type Phase struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
	Tasks    []string `json:"tasks,omitempty"`
}

// Strategy is the ordered phase breakdown of a plan.
type Strategy struct {
	Phases []Phase `json:"phases"`
}

// Progress tracks task state for a plan. A task string belongs to at
// most one of completed/active/pending at a time.
type Progress struct {
	CurrentPhase       int      `json:"current_phase"`
	CompletedTasks     []string `json:"completed_tasks"`
	ActiveTasks        []string `json:"active_tasks"`
	PendingTasks       []string `json:"pending_tasks"`
	ProgressPercentage float64  `json:"progress_percentage"`
}

// Recalculate updates the progress percentage from the task sets:
// completed / (completed+active+pending) * 100, or 0 when all are empty.
func (p *Progress) Recalculate() {
	total := len(p.CompletedTasks) + len(p.ActiveTasks) + len(p.PendingTasks)
	if total == 0 {
		p.ProgressPercentage = 0
		return
	}
	p.ProgressPercentage = float64(len(p.CompletedTasks)) / float64(total) * 100
}

// Plan is one project plan with phased tasks and progress tracking.
// Exactly one plan is "current" per project, tracked by a pointer record.
type Plan struct {
	SchemaVersion     int            `json:"schema_version"`
	ID                string         `json:"id"`
	Status            string         `json:"status"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ProblemDefinition map[string]any `json:"problem_definition,omitempty"`
	Strategy          Strategy       `json:"strategy"`
	Progress          Progress       `json:"progress"`
	QualityGates      map[string]any `json:"quality_gates,omitempty"`
	CreatedAt         time.Time      `json:"created_at,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at,omitempty"`
}

// Constraint is one requirement/preference/restriction rule owned by a
// plan and evaluated against incoming requests.
type Constraint struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Type             string `json:"type"`
	Priority         string `json:"priority,omitempty"`
	Scope            string `json:"scope,omitempty"`
	EnforcementLevel string `json:"enforcement_level"`
	Status           string `json:"status"`
}

// ConstraintSet is the constraint document for one plan.
type ConstraintSet struct {
	SchemaVersion int          `json:"schema_version"`
	PlanID        string       `json:"plan_id,omitempty"`
	Constraints   []Constraint `json:"constraints"`
}

// CurrentPlanPointer is the single record naming the current plan.
type CurrentPlanPointer struct {
	PlanID    string    `json:"plan_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationResult is the outcome of validating a request against the
// current plan and its constraints.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
	Suggestions   []string `json:"suggestions"`
	PlanAdherence string   `json:"plan_adherence"`
}

// UpdateResult is the outcome of folding a completed activity into the
// plan's progress.
type UpdateResult struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	CompletedItems     []string `json:"completed_items,omitempty"`
	ProgressPercentage float64  `json:"progress_percentage,omitempty"`
}

// Suggestions is the next-action recommendation set.
type Suggestions struct {
	Suggestions  []string `json:"suggestions"`
	CurrentPhase int      `json:"current_phase,omitempty"`
	PhaseName    string   `json:"phase_name,omitempty"`
	Progress     float64  `json:"progress,omitempty"`
}

// SequenceCheck is one sub-check of sequence enforcement.
type SequenceCheck struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
}

// EnforcementResult is the conjunction of the sequence sub-checks.
type EnforcementResult struct {
	Allowed           bool          `json:"allowed"`
	Message           string        `json:"message,omitempty"`
	PhaseCheck        SequenceCheck `json:"phase_check,omitempty"`
	DependencyCheck   SequenceCheck `json:"dependency_check,omitempty"`
	PrerequisiteCheck SequenceCheck `json:"prerequisite_check,omitempty"`
	Recommendations   []string      `json:"recommendations,omitempty"`
}
