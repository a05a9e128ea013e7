package plan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/agenthive/agenthive/internal/store"
)

const (
	plansCategory       = "plans"
	constraintsCategory = "constraints"
	currentPlanID       = "current_plan"

	// Keyword tokens at or below this length are ignored by constraint
	// evaluation. Inherited heuristic; see the package tests for its
	// known false-positive surface.
	minKeywordLength = 3
)

// Tracker validates requests against the current plan, folds completed
// activities into plan progress, and recommends next actions.
type Tracker struct {
	store *store.Store
	log   *slog.Logger
	now   func() time.Time
}

// NewTracker creates a plan tracker backed by st.
func NewTracker(st *store.Store) *Tracker {
	return &Tracker{store: st, log: slog.Default(), now: time.Now}
}

// CurrentPlan resolves the current plan: the pointer record if it names
// an existing plan, else the most recently updated active plan. Returns
// nil with no error when no plan exists; absence of a plan is not an
// error anywhere in the tracker.
func (t *Tracker) CurrentPlan() (*Plan, error) {
	var ptr CurrentPlanPointer
	err := t.store.Get("", currentPlanID, &ptr)
	if err == nil && ptr.PlanID != "" {
		var p Plan
		if err := t.store.Get(plansCategory, ptr.PlanID, &p); err == nil {
			return &p, nil
		} else if !store.IsNotFound(err) {
			return nil, err
		}
	} else if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	return t.mostRecentActivePlan()
}

func (t *Tracker) mostRecentActivePlan() (*Plan, error) {
	raw, err := t.store.List(plansCategory)
	if err != nil {
		return nil, err
	}
	var active []Plan
	for _, data := range raw {
		var p Plan
		if err := json.Unmarshal(data, &p); err != nil {
			t.log.Warn("plan: skipping undecodable plan record", "error", err)
			continue
		}
		if p.Status == StatusActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	return &active[0], nil
}

// SavePlan persists a plan and repoints the current-plan record at it.
func (t *Tracker) SavePlan(p *Plan) error {
	p.SchemaVersion = store.SchemaVersion
	if err := t.store.Put(plansCategory, p.ID, p); err != nil {
		return err
	}
	return t.store.Put("", currentPlanID, &CurrentPlanPointer{PlanID: p.ID, UpdatedAt: t.now()})
}

func (t *Tracker) planConstraints(planID string) []Constraint {
	var set ConstraintSet
	if err := t.store.Get(constraintsCategory, planID, &set); err != nil {
		if !store.IsNotFound(err) {
			t.log.Warn("plan: could not read constraints", "plan_id", planID, "error", err)
		}
		return nil
	}
	return set.Constraints
}

// SaveConstraints persists a plan's constraint document.
func (t *Tracker) SaveConstraints(planID string, constraints []Constraint) error {
	return t.store.Put(constraintsCategory, planID, &ConstraintSet{
		SchemaVersion: store.SchemaVersion,
		PlanID:        planID,
		Constraints:   constraints,
	})
}

// Validate checks a request against the current plan: strict constraint
// violations become errors, phase alignment sets plan adherence, and a
// request unrelated to every active task draws a warning. With no
// current plan the request is valid with a warning.
func (t *Tracker) Validate(requestData map[string]any) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:         true,
		Warnings:      []string{},
		Errors:        []string{},
		Suggestions:   []string{},
		PlanAdherence: "unknown",
	}

	current, err := t.CurrentPlan()
	if err != nil {
		return nil, err
	}
	if current == nil {
		result.Warnings = append(result.Warnings, "No active plan found - proceeding without plan validation")
		return result, nil
	}

	requestText := lowerJSON(requestData)

	for _, c := range t.planConstraints(current.ID) {
		if c.Status != "active" || c.EnforcementLevel != EnforcementStrict {
			continue
		}
		if violation := evaluateConstraint(requestText, c); violation != "" {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Constraint violation: %s - %s", c.Title, violation))
		}
	}

	alignment := t.checkPhaseAlignment(requestText, current)
	result.PlanAdherence = alignment.status
	result.Suggestions = append(result.Suggestions, alignment.suggestions...)

	warnings, suggestions := t.checkPriorityAlignment(requestText, current)
	result.Warnings = append(result.Warnings, warnings...)
	result.Suggestions = append(result.Suggestions, suggestions...)

	return result, nil
}

// evaluateConstraint applies keyword containment between the constraint
// description's tokens (length > minKeywordLength) and the serialized
// request text. Restrictions fail when any token appears; requirements
// fail when none do.
func evaluateConstraint(requestText string, c Constraint) string {
	keywords := keywordTokens(c.Description)
	switch c.Type {
	case ConstraintRestriction:
		for _, kw := range keywords {
			if strings.Contains(requestText, kw) {
				return "Request contains restricted elements: " + c.Title
			}
		}
	case ConstraintRequirement:
		if len(keywords) == 0 {
			return ""
		}
		for _, kw := range keywords {
			if strings.Contains(requestText, kw) {
				return ""
			}
		}
		return "Request missing required elements: " + c.Title
	}
	return ""
}

type phaseAlignment struct {
	status      string
	suggestions []string
	score       float64
}

func (t *Tracker) checkPhaseAlignment(requestText string, p *Plan) phaseAlignment {
	phases := p.Strategy.Phases
	idx := p.Progress.CurrentPhase
	if idx >= len(phases) {
		return phaseAlignment{status: "complete", suggestions: []string{"Project phases are complete"}}
	}

	phase := phases[idx]
	name := phase.Name
	if name == "" {
		name = fmt.Sprintf("Phase %d", idx+1)
	}

	score := 50.0 // neutral when the phase defines no keywords
	if len(phase.Keywords) > 0 {
		hits := 0
		for _, kw := range phase.Keywords {
			if strings.Contains(requestText, strings.ToLower(kw)) {
				hits++
			}
		}
		score = float64(hits) / float64(len(phase.Keywords)) * 100
	}

	switch {
	case score >= 70:
		return phaseAlignment{status: "aligned", score: score,
			suggestions: []string{"Good alignment with current phase: " + name}}
	case score >= 30:
		return phaseAlignment{status: "partially_aligned", score: score,
			suggestions: []string{fmt.Sprintf("Partial alignment with %s - consider focusing on phase objectives", name)}}
	default:
		return phaseAlignment{status: "misaligned", score: score,
			suggestions: []string{fmt.Sprintf("Low alignment with current phase %s - consider if this fits the plan", name)}}
	}
}

func (t *Tracker) checkPriorityAlignment(requestText string, p *Plan) (warnings, suggestions []string) {
	active := p.Progress.ActiveTasks
	if len(active) == 0 {
		return nil, nil
	}
	relevant := 0
	for _, task := range active {
		for _, word := range strings.Fields(strings.ToLower(task)) {
			if strings.Contains(requestText, word) {
				relevant++
				break
			}
		}
	}
	if relevant == 0 {
		warnings = append(warnings, "Request doesn't seem to relate to current active tasks")
		shown := active
		if len(shown) > 3 {
			shown = shown[:3]
		}
		suggestions = append(suggestions, "Consider focusing on active tasks: "+strings.Join(shown, ", "))
	}
	return warnings, suggestions
}

// UpdateProgress matches an activity against active and pending tasks by
// shared-word overlap and marks every match completed. Completed tasks
// only grow; a completed task is removed from active and pending.
func (t *Tracker) UpdateProgress(activityData map[string]any) (*UpdateResult, error) {
	current, err := t.CurrentPlan()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &UpdateResult{Success: false, Message: "No active plan to update"}, nil
	}

	activityText := lowerJSON(activityData)
	var completed []string
	for _, task := range append(append([]string{}, current.Progress.ActiveTasks...), current.Progress.PendingTasks...) {
		for _, word := range strings.Fields(strings.ToLower(task)) {
			if strings.Contains(activityText, word) {
				completed = append(completed, task)
				break
			}
		}
	}

	if len(completed) == 0 {
		return &UpdateResult{Success: true, Message: "No plan items matched this activity"}, nil
	}

	for _, item := range completed {
		if !containsString(current.Progress.CompletedTasks, item) {
			current.Progress.CompletedTasks = append(current.Progress.CompletedTasks, item)
		}
		current.Progress.ActiveTasks = removeString(current.Progress.ActiveTasks, item)
		current.Progress.PendingTasks = removeString(current.Progress.PendingTasks, item)
	}
	current.Progress.Recalculate()
	current.UpdatedAt = t.now()

	if err := t.SavePlan(current); err != nil {
		return nil, fmt.Errorf("save updated plan: %w", err)
	}

	return &UpdateResult{
		Success:            true,
		Message:            fmt.Sprintf("Updated progress - completed %d items", len(completed)),
		CompletedItems:     completed,
		ProgressPercentage: current.Progress.ProgressPercentage,
	}, nil
}

// SuggestNextActions recommends what to do next from the current plan
// state: continue active tasks, start pending ones, or advance the phase
// once enough of its declared tasks are complete.
func (t *Tracker) SuggestNextActions(_ map[string]any) (*Suggestions, error) {
	current, err := t.CurrentPlan()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &Suggestions{Suggestions: []string{"Create a project plan to guide systematic development"}}, nil
	}

	idx := current.Progress.CurrentPhase
	phases := current.Strategy.Phases
	out := &Suggestions{
		Suggestions:  []string{},
		CurrentPhase: idx,
		PhaseName:    "Complete",
		Progress:     current.Progress.ProgressPercentage,
	}

	if idx >= len(phases) {
		out.Suggestions = append(out.Suggestions, "All phases complete - consider project review and reflection")
		return out, nil
	}

	phase := phases[idx]
	out.PhaseName = phase.Name

	active := current.Progress.ActiveTasks
	pending := current.Progress.PendingTasks

	switch {
	case len(active) == 0 && len(pending) > 0:
		name := phase.Name
		if name == "" {
			name = fmt.Sprintf("Phase %d", idx+1)
		}
		out.Suggestions = append(out.Suggestions, "Start working on next tasks for "+name)
		shown := pending
		if len(shown) > 3 {
			shown = shown[:3]
		}
		out.Suggestions = append(out.Suggestions, shown...)
	case len(active) > 0:
		out.Suggestions = append(out.Suggestions, "Continue working on active tasks:")
		out.Suggestions = append(out.Suggestions, active...)
	}

	if t.hasUnresolvedBlockers(current) {
		out.Suggestions = append([]string{"Address unresolved blockers before proceeding"}, out.Suggestions...)
	}

	if ready, _ := phaseCompletion(current, idx); ready {
		next := "Project completion"
		if idx+1 < len(phases) {
			next = phases[idx+1].Name
		}
		out.Suggestions = append(out.Suggestions, "Ready to advance to next phase: "+next)
	}

	return out, nil
}

// phaseCompletion reports readiness to advance: at least 80% of the
// phase's declared tasks completed (a phase with no declared tasks is
// always ready).
func phaseCompletion(p *Plan, idx int) (bool, float64) {
	tasks := p.Strategy.Phases[idx].Tasks
	if len(tasks) == 0 {
		return true, 100
	}
	done := 0
	for _, task := range tasks {
		if containsString(p.Progress.CompletedTasks, task) {
			done++
		}
	}
	pct := float64(done) / float64(len(tasks)) * 100
	return pct >= 80, pct
}

// EnforceSequence gates a request behind the phase, dependency and
// prerequisite sub-checks. The sub-checks are extension points that
// currently always pass (no concrete plan metadata drives them yet);
// the conjunction and remediation text are in place for when one does.
func (t *Tracker) EnforceSequence(requestData map[string]any) (*EnforcementResult, error) {
	current, err := t.CurrentPlan()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &EnforcementResult{Allowed: true, Message: "No plan constraints"}, nil
	}

	phaseCheck := t.checkPhaseAppropriateness(requestData, current)
	dependencyCheck := t.checkDependencies(requestData, current)
	prerequisiteCheck := t.checkPrerequisites(requestData, current)

	result := &EnforcementResult{
		Allowed:           phaseCheck.Allowed && dependencyCheck.Allowed && prerequisiteCheck.Allowed,
		PhaseCheck:        phaseCheck,
		DependencyCheck:   dependencyCheck,
		PrerequisiteCheck: prerequisiteCheck,
	}
	if !result.Allowed {
		result.Recommendations = append(result.Recommendations,
			"Consider following the planned sequence for better outcomes",
			"If this is intentional, update the plan to reflect new priorities",
			"Ensure prerequisites are met before proceeding",
		)
	}
	return result, nil
}

func (t *Tracker) checkPhaseAppropriateness(_ map[string]any, _ *Plan) SequenceCheck {
	return SequenceCheck{Allowed: true, Message: "Phase check passed"}
}

func (t *Tracker) checkDependencies(_ map[string]any, _ *Plan) SequenceCheck {
	return SequenceCheck{Allowed: true, Message: "Dependencies satisfied"}
}

func (t *Tracker) checkPrerequisites(_ map[string]any, _ *Plan) SequenceCheck {
	return SequenceCheck{Allowed: true, Message: "Prerequisites met"}
}

func (t *Tracker) hasUnresolvedBlockers(_ *Plan) bool {
	// Extension point: would inspect iteration reflections for recent
	// blockers once those are recorded.
	return false
}

// lowerJSON serializes a payload to lowercase JSON for keyword matching.
// Field names are part of the matched text, matching the inherited
// heuristic.
func lowerJSON(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(data))
}

func keywordTokens(description string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(description)) {
		if len(tok) > minKeywordLength {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
