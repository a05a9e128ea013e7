package plan

import (
	"strings"
	"testing"
	"time"

	"github.com/agenthive/agenthive/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewTracker(st), st
}

func buildPlan() *Plan {
	return &Plan{
		ID:     "plan_001",
		Status: StatusActive,
		Strategy: Strategy{Phases: []Phase{
			{Name: "Design", Keywords: []string{"architecture", "schema"}, Tasks: []string{"draft architecture", "review schema"}},
			{Name: "Build", Keywords: []string{"implement", "code"}, Tasks: []string{"implement core"}},
		}},
		Progress: Progress{
			CurrentPhase: 0,
			ActiveTasks:  []string{"draft architecture"},
			PendingTasks: []string{"review schema", "implement core"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestCurrentPlanNilWhenEmpty(t *testing.T) {
	tr, _ := newTestTracker(t)
	p, err := tr.CurrentPlan()
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no plan, got %s", p.ID)
	}
}

func TestCurrentPlanFollowsPointer(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	p, err := tr.CurrentPlan()
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if p == nil || p.ID != "plan_001" {
		t.Fatalf("current plan %+v, want plan_001", p)
	}
}

func TestCurrentPlanFallsBackToMostRecentActive(t *testing.T) {
	tr, st := newTestTracker(t)
	older := buildPlan()
	older.ID = "plan_old"
	older.UpdatedAt = time.Now().Add(-2 * time.Hour)
	newer := buildPlan()
	newer.ID = "plan_new"
	newer.UpdatedAt = time.Now()
	archived := buildPlan()
	archived.ID = "plan_archived"
	archived.Status = StatusArchived
	archived.UpdatedAt = time.Now().Add(time.Hour)
	// Written directly so no pointer record exists.
	for _, p := range []*Plan{older, newer, archived} {
		if err := st.Put("plans", p.ID, p); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	p, err := tr.CurrentPlan()
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if p == nil || p.ID != "plan_new" {
		t.Fatalf("fallback picked %+v, want plan_new", p)
	}
}

func TestValidateNoPlan(t *testing.T) {
	tr, _ := newTestTracker(t)
	res, err := tr.Validate(map[string]any{"description": "anything"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatal("no-plan validation should pass")
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "No active plan found - proceeding without plan validation" {
		t.Fatalf("warnings %v", res.Warnings)
	}
}

func TestValidateRestrictionViolation(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	constraints := []Constraint{{
		ID:               "c1",
		Title:            "No gambling content",
		Description:      "avoid gambling casino betting",
		Type:             ConstraintRestriction,
		EnforcementLevel: EnforcementStrict,
		Status:           "active",
	}}
	if err := tr.SaveConstraints("plan_001", constraints); err != nil {
		t.Fatalf("SaveConstraints: %v", err)
	}

	res, err := tr.Validate(map[string]any{"description": "add a casino game page"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("restricted request passed validation")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "Constraint violation: No gambling content") {
		t.Fatalf("errors %v", res.Errors)
	}

	// A clean request passes the same constraint.
	res, err = tr.Validate(map[string]any{"description": "draft architecture for auth"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("clean request failed validation: %v", res.Errors)
	}
}

func TestValidateRequirementConstraint(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	constraints := []Constraint{{
		ID:               "c2",
		Title:            "Must include disclaimer",
		Description:      "every page needs disclaimer text",
		Type:             ConstraintRequirement,
		EnforcementLevel: EnforcementStrict,
		Status:           "active",
	}}
	if err := tr.SaveConstraints("plan_001", constraints); err != nil {
		t.Fatalf("SaveConstraints: %v", err)
	}

	res, err := tr.Validate(map[string]any{"description": "ship the landing copy"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("request missing all required keywords should fail")
	}
	if !strings.Contains(res.Errors[0], "Request missing required elements") {
		t.Fatalf("errors %v", res.Errors)
	}

	res, err = tr.Validate(map[string]any{"description": "add the disclaimer section"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("request with required keyword failed: %v", res.Errors)
	}
}

func TestValidateIgnoresInactiveAndAdvisoryConstraints(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	constraints := []Constraint{
		{ID: "c3", Title: "Retired rule", Description: "avoid casino content", Type: ConstraintRestriction, EnforcementLevel: EnforcementStrict, Status: "retired"},
		{ID: "c4", Title: "Soft rule", Description: "avoid casino content", Type: ConstraintRestriction, EnforcementLevel: EnforcementAdvisory, Status: "active"},
	}
	if err := tr.SaveConstraints("plan_001", constraints); err != nil {
		t.Fatalf("SaveConstraints: %v", err)
	}
	res, err := tr.Validate(map[string]any{"description": "casino page"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("inactive/advisory constraints should not block: %v", res.Errors)
	}
}

func TestPhaseAlignment(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	res, err := tr.Validate(map[string]any{"description": "refine the architecture and schema docs"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.PlanAdherence != "aligned" {
		t.Fatalf("adherence %q, want aligned", res.PlanAdherence)
	}

	res, err = tr.Validate(map[string]any{"description": "write marketing blurb"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.PlanAdherence != "misaligned" {
		t.Fatalf("adherence %q, want misaligned", res.PlanAdherence)
	}

	res, err = tr.Validate(map[string]any{"description": "update the schema only"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.PlanAdherence != "partially_aligned" {
		t.Fatalf("adherence %q, want partially_aligned", res.PlanAdherence)
	}
}

func TestValidateWarnsOnUnrelatedRequest(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	res, err := tr.Validate(map[string]any{"note": "xyz"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w == "Request doesn't seem to relate to current active tasks" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected active-task warning, got %v", res.Warnings)
	}
}

func TestUpdateProgress(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	res, err := tr.UpdateProgress(map[string]any{"summary": "finished the architecture draft"})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if !res.Success {
		t.Fatalf("update failed: %s", res.Message)
	}
	if len(res.CompletedItems) != 1 || res.CompletedItems[0] != "draft architecture" {
		t.Fatalf("completed items %v", res.CompletedItems)
	}
	// 1 of 3 tracked tasks complete.
	if res.ProgressPercentage < 33.3 || res.ProgressPercentage > 33.4 {
		t.Fatalf("progress %v, want ~33.3", res.ProgressPercentage)
	}

	current, err := tr.CurrentPlan()
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if len(current.Progress.ActiveTasks) != 0 {
		t.Fatalf("active tasks %v, want empty", current.Progress.ActiveTasks)
	}
	if !containsString(current.Progress.CompletedTasks, "draft architecture") {
		t.Fatal("completed task not persisted")
	}

	// Completing the same task again must not shrink completed tasks.
	if _, err := tr.UpdateProgress(map[string]any{"summary": "another architecture tweak"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	current, _ = tr.CurrentPlan()
	n := 0
	for _, task := range current.Progress.CompletedTasks {
		if task == "draft architecture" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("completed task duplicated %d times", n)
	}
}

func TestUpdateProgressNoMatch(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	res, err := tr.UpdateProgress(map[string]any{"summary": "zzz"})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if !res.Success || res.Message != "No plan items matched this activity" {
		t.Fatalf("result %+v", res)
	}
}

func TestUpdateProgressNoPlan(t *testing.T) {
	tr, _ := newTestTracker(t)
	res, err := tr.UpdateProgress(map[string]any{"summary": "anything"})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if res.Success || res.Message != "No active plan to update" {
		t.Fatalf("result %+v", res)
	}
}

func TestSuggestNextActionsNoPlan(t *testing.T) {
	tr, _ := newTestTracker(t)
	s, err := tr.SuggestNextActions(nil)
	if err != nil {
		t.Fatalf("SuggestNextActions: %v", err)
	}
	if len(s.Suggestions) != 1 || s.Suggestions[0] != "Create a project plan to guide systematic development" {
		t.Fatalf("suggestions %v", s.Suggestions)
	}
}

func TestSuggestNextActionsContinueActive(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	s, err := tr.SuggestNextActions(nil)
	if err != nil {
		t.Fatalf("SuggestNextActions: %v", err)
	}
	if s.PhaseName != "Design" {
		t.Fatalf("phase name %q", s.PhaseName)
	}
	if len(s.Suggestions) == 0 || s.Suggestions[0] != "Continue working on active tasks:" {
		t.Fatalf("suggestions %v", s.Suggestions)
	}
	if !containsString(s.Suggestions, "draft architecture") {
		t.Fatalf("active task missing from suggestions: %v", s.Suggestions)
	}
}

func TestSuggestNextActionsPhaseAdvance(t *testing.T) {
	tr, _ := newTestTracker(t)
	p := buildPlan()
	p.Progress.CompletedTasks = []string{"draft architecture", "review schema"}
	p.Progress.ActiveTasks = nil
	p.Progress.PendingTasks = []string{"implement core"}
	if err := tr.SavePlan(p); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	s, err := tr.SuggestNextActions(nil)
	if err != nil {
		t.Fatalf("SuggestNextActions: %v", err)
	}
	if !containsString(s.Suggestions, "Ready to advance to next phase: Build") {
		t.Fatalf("suggestions %v", s.Suggestions)
	}
}

func TestSuggestNextActionsAllPhasesComplete(t *testing.T) {
	tr, _ := newTestTracker(t)
	p := buildPlan()
	p.Progress.CurrentPhase = len(p.Strategy.Phases)
	if err := tr.SavePlan(p); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	s, err := tr.SuggestNextActions(nil)
	if err != nil {
		t.Fatalf("SuggestNextActions: %v", err)
	}
	if !containsString(s.Suggestions, "All phases complete - consider project review and reflection") {
		t.Fatalf("suggestions %v", s.Suggestions)
	}
}

func TestEnforceSequence(t *testing.T) {
	tr, _ := newTestTracker(t)

	res, err := tr.EnforceSequence(map[string]any{"description": "anything"})
	if err != nil {
		t.Fatalf("EnforceSequence: %v", err)
	}
	if !res.Allowed || res.Message != "No plan constraints" {
		t.Fatalf("no-plan result %+v", res)
	}

	if err := tr.SavePlan(buildPlan()); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	res, err = tr.EnforceSequence(map[string]any{"description": "anything"})
	if err != nil {
		t.Fatalf("EnforceSequence: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("sequence check blocked: %+v", res)
	}
	if res.PhaseCheck.Message != "Phase check passed" {
		t.Fatalf("phase check %+v", res.PhaseCheck)
	}
}

func TestKeywordTokens(t *testing.T) {
	tokens := keywordTokens("Use the new API for all data")
	// Tokens of length <= 3 are dropped.
	want := []string{"data"}
	if len(tokens) != len(want) || tokens[0] != "data" {
		t.Fatalf("tokens %v, want %v", tokens, want)
	}
}

func TestProgressRecalculate(t *testing.T) {
	p := Progress{
		CompletedTasks: []string{"a", "b"},
		ActiveTasks:    []string{"c"},
		PendingTasks:   []string{"d"},
	}
	p.Recalculate()
	if p.ProgressPercentage != 50 {
		t.Fatalf("progress %v, want 50", p.ProgressPercentage)
	}
	empty := Progress{}
	empty.Recalculate()
	if empty.ProgressPercentage != 0 {
		t.Fatalf("empty progress %v, want 0", empty.ProgressPercentage)
	}
}
