package learning

import (
	"errors"
	"testing"
	"time"

	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewEngine(st, config.LearningConfig{}), st
}

func successInteraction() map[string]any {
	return map[string]any{
		"agent":         "researcher",
		"task_type":     "research",
		"input":         "find prior art",
		"success":       true,
		"quality_score": 0.9,
	}
}

func failureInteraction() map[string]any {
	return map[string]any{
		"agent":      "researcher",
		"task_type":  "research",
		"input":      "find prior art",
		"success":    false,
		"error_type": "timeout",
	}
}

func TestPatternIDDeterministic(t *testing.T) {
	ctx := map[string]any{"task_type": "research", "input_complexity": "low"}
	a := PatternID(PatternSuccess, "researcher", ctx)
	b := PatternID(PatternSuccess, "researcher", map[string]any{"input_complexity": "low", "task_type": "research"})
	if a != b {
		t.Fatalf("same context hashed differently: %s vs %s", a, b)
	}
	if a == PatternID(PatternSuccess, "planner", ctx) {
		t.Fatal("different agents share a pattern id")
	}
	if a == PatternID(PatternFailure, "researcher", ctx) {
		t.Fatal("different pattern types share a pattern id")
	}
}

func TestLearnAccumulatesPattern(t *testing.T) {
	e, st := newTestEngine(t)

	for i := 0; i < 3; i++ {
		res, err := e.Learn(successInteraction())
		if err != nil {
			t.Fatalf("Learn %d: %v", i, err)
		}
		if res.PatternsIdentified != 1 {
			t.Fatalf("Learn %d identified %d patterns, want 1", i, res.PatternsIdentified)
		}
	}

	if st.Count("patterns") != 1 {
		t.Fatalf("stored %d patterns, want 1 (repeat observations merge)", st.Count("patterns"))
	}
	patterns, err := e.loadPatterns()
	if err != nil {
		t.Fatalf("loadPatterns: %v", err)
	}
	for _, p := range patterns {
		if p.Frequency != 3 {
			t.Fatalf("frequency %d, want 3", p.Frequency)
		}
		if p.SuccessRate != 1.0 {
			t.Fatalf("success rate %v, want 1.0", p.SuccessRate)
		}
		if p.ConfidenceScore != 0.3 {
			t.Fatalf("confidence %v, want 0.3 (frequency/10)", p.ConfidenceScore)
		}
	}
}

func TestPatternRunningMeanMixedOutcomes(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()
	ctx := map[string]any{"task_type": "research", "input_complexity": "low"}
	observe := func(outcome string) *Pattern {
		t.Helper()
		p, err := e.updateOrCreatePattern(newPattern(PatternSuccess, "researcher", ctx, map[string]any{"outcome": outcome}, now))
		if err != nil {
			t.Fatalf("updateOrCreatePattern(%s): %v", outcome, err)
		}
		return p
	}

	observe("success")
	observe("failure")
	p := observe("success")

	if p.Frequency != 3 {
		t.Fatalf("frequency %d, want 3", p.Frequency)
	}
	if diff := p.SuccessRate - 2.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("success rate %v, want 2/3 running mean", p.SuccessRate)
	}
	if p.ConfidenceScore != 0.3 {
		t.Fatalf("confidence %v, want 0.3 (frequency/10)", p.ConfidenceScore)
	}
}

func TestLearnFailureInsightAtThreshold(t *testing.T) {
	e, st := newTestEngine(t)

	for i := 0; i < 2; i++ {
		res, err := e.Learn(failureInteraction())
		if err != nil {
			t.Fatalf("Learn %d: %v", i, err)
		}
		if res.InsightsGenerated != 0 {
			t.Fatalf("Learn %d generated %d insights before the frequency threshold", i, res.InsightsGenerated)
		}
	}

	res, err := e.Learn(failureInteraction())
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if res.InsightsGenerated != 1 {
		t.Fatalf("generated %d insights at frequency 3, want 1", res.InsightsGenerated)
	}
	if res.RulesCreated != 1 {
		t.Fatalf("created %d rules, want 1", res.RulesCreated)
	}

	insights, err := e.loadInsights()
	if err != nil {
		t.Fatalf("loadInsights: %v", err)
	}
	if len(insights) != 1 {
		t.Fatalf("stored %d insights, want 1", len(insights))
	}
	in := insights[0]
	if in.InsightType != InsightFailureAnalysis {
		t.Fatalf("insight type %q", in.InsightType)
	}
	if in.Description != "Agent researcher frequently fails on research tasks" {
		t.Fatalf("description %q", in.Description)
	}
	if in.ImpactEstimate != "medium" || !in.Actionable {
		t.Fatalf("insight shape: impact=%s actionable=%v", in.ImpactEstimate, in.Actionable)
	}

	rules, err := e.loadRules()
	if err != nil {
		t.Fatalf("loadRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("stored %d rules, want 1", len(rules))
	}
	for _, r := range rules {
		if r.Action["type"] != "fallback_strategy" || r.Priority != 3 {
			t.Fatalf("rule shape: action=%v priority=%d", r.Action, r.Priority)
		}
	}
	if st.Count("rules") != 1 {
		t.Fatalf("rules on disk %d, want 1", st.Count("rules"))
	}
}

func TestLearnSlowPerformanceInsight(t *testing.T) {
	e, _ := newTestEngine(t)

	interaction := successInteraction()
	interaction["response_time"] = 6.5
	res, err := e.Learn(interaction)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if res.PatternsIdentified != 2 {
		t.Fatalf("identified %d patterns, want 2 (success + performance)", res.PatternsIdentified)
	}
	if res.InsightsGenerated != 1 {
		t.Fatalf("generated %d insights, want 1 (slow performance)", res.InsightsGenerated)
	}

	insights, err := e.loadInsights()
	if err != nil {
		t.Fatalf("loadInsights: %v", err)
	}
	in := insights[0]
	if in.InsightType != InsightPerformanceOptimization {
		t.Fatalf("insight type %q", in.InsightType)
	}
	if in.ImpactEstimate != "high" {
		t.Fatalf("impact %q, want high", in.ImpactEstimate)
	}
	if len(in.AgentsAffected) != 1 || in.AgentsAffected[0] != "researcher" {
		t.Fatalf("agents affected %v", in.AgentsAffected)
	}

	rules, err := e.loadRules()
	if err != nil {
		t.Fatalf("loadRules: %v", err)
	}
	for _, r := range rules {
		if r.Action["type"] != "optimization_strategy" || r.Priority != 2 {
			t.Fatalf("rule shape: action=%v priority=%d", r.Action, r.Priority)
		}
	}
}

func TestLearnFastResponseNoInsight(t *testing.T) {
	e, _ := newTestEngine(t)
	interaction := successInteraction()
	interaction["response_time"] = 0.4
	res, err := e.Learn(interaction)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if res.InsightsGenerated != 0 {
		t.Fatalf("fast response generated %d insights", res.InsightsGenerated)
	}
}

func TestAssessComplexity(t *testing.T) {
	if got := assessComplexity("tiny"); got != "low" {
		t.Fatalf("small input complexity %q", got)
	}
	big := make([]any, 200)
	for i := range big {
		big[i] = "padding"
	}
	if got := assessComplexity(big); got != "high" {
		t.Fatalf("large input complexity %q", got)
	}
}

func TestCategorizePerformance(t *testing.T) {
	cases := map[float64]string{0.5: "fast", 3.0: "normal", 7.5: "slow"}
	for rt, want := range cases {
		if got := categorizePerformance(rt); got != want {
			t.Fatalf("categorizePerformance(%v) = %q, want %q", rt, got, want)
		}
	}
}

func seedPattern(t *testing.T, st *store.Store, agent, taskType string, freq int, sr, conf float64) {
	t.Helper()
	p := &Pattern{
		SchemaVersion:   store.SchemaVersion,
		PatternID:       PatternID(PatternSuccess, agent, map[string]any{"task_type": taskType}),
		PatternType:     PatternSuccess,
		AgentName:       agent,
		Context:         map[string]any{"task_type": taskType},
		Outcome:         map[string]any{"outcome": "success"},
		Frequency:       freq,
		SuccessRate:     sr,
		ConfidenceScore: conf,
		CreatedAt:       time.Now(),
		LastSeen:        time.Now(),
	}
	if err := st.Put("patterns", p.PatternID, p); err != nil {
		t.Fatalf("seed pattern: %v", err)
	}
}

func seedRule(t *testing.T, st *store.Store, id string, scope []string, effectiveness float64) {
	t.Helper()
	r := &Rule{
		SchemaVersion:      store.SchemaVersion,
		RuleID:             id,
		Condition:          map[string]any{"agents": scope},
		Action:             map[string]any{"type": "fallback_strategy", "description": "Apply alternative approach when failure pattern detected"},
		AgentScope:         scope,
		EffectivenessScore: effectiveness,
		Priority:           3,
		CreatedAt:          time.Now(),
	}
	if err := st.Put("rules", id, r); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
}

func TestRecommendationsFilterAndRank(t *testing.T) {
	e, st := newTestEngine(t)
	seedPattern(t, st, "researcher", "research", 9, 0.9, 0.9)   // qualifies
	seedPattern(t, st, "researcher", "summarize", 9, 0.5, 0.9)  // low success rate
	seedPattern(t, st, "researcher", "translate", 2, 0.95, 0.2) // low confidence
	seedRule(t, st, "rule_a", []string{"researcher"}, 0.75)     // qualifies
	seedRule(t, st, "rule_b", []string{"researcher"}, 0.4)      // below cutoff
	seedRule(t, st, "rule_c", []string{"planner"}, 0.9)         // out of scope

	res, err := e.Recommendations(map[string]any{"agent": "researcher"})
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(res.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2: %+v", len(res.Recommendations), res.Recommendations)
	}
	// Ranked by confidence: pattern 0.9 ahead of rule 0.75.
	if res.Recommendations[0].Type != "pattern_based" || res.Recommendations[1].Type != "rule_based" {
		t.Fatalf("ranking wrong: %+v", res.Recommendations)
	}
	if res.Recommendations[0].Evidence != "Seen 9 times with 90.0% success rate" {
		t.Fatalf("pattern evidence %q", res.Recommendations[0].Evidence)
	}
	if res.Recommendations[1].Evidence != "Rule succeeded 0 times, failed 0 times" {
		t.Fatalf("rule evidence %q", res.Recommendations[1].Evidence)
	}
	if res.PatternsConsidered != 3 {
		t.Fatalf("patterns considered %d, want 3", res.PatternsConsidered)
	}
	if res.RulesConsidered != 2 {
		t.Fatalf("rules considered %d, want 2 (planner rule out of scope)", res.RulesConsidered)
	}
}

func TestRecommendationsTaskTypeFilter(t *testing.T) {
	e, st := newTestEngine(t)
	seedPattern(t, st, "researcher", "research", 9, 0.9, 0.9)
	seedPattern(t, st, "researcher", "summarize", 9, 0.9, 0.9)

	res, err := e.Recommendations(map[string]any{"agent": "researcher", "task_type": "research"})
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if res.PatternsConsidered != 1 {
		t.Fatalf("patterns considered %d, want 1", res.PatternsConsidered)
	}
}

func TestRecommendationsCap(t *testing.T) {
	e, st := newTestEngine(t)
	for i := 0; i < 15; i++ {
		seedRule(t, st, ruleID(i), []string{"all"}, 0.8)
	}
	res, err := e.Recommendations(map[string]any{"agent": "researcher"})
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(res.Recommendations) != 10 {
		t.Fatalf("got %d recommendations, want cap of 10", len(res.Recommendations))
	}
}

func ruleID(i int) string {
	return "rule_" + string(rune('a'+i))
}

func TestAdaptBehaviorAppliesAndRecordsOutcome(t *testing.T) {
	e, st := newTestEngine(t)
	seedRule(t, st, "rule_strong", []string{"researcher"}, 0.8)
	seedRule(t, st, "rule_weak", []string{"researcher"}, 0.5)

	res, err := e.AdaptBehavior("researcher", map[string]any{
		"outcome": map[string]any{"success": false},
	})
	if err != nil {
		t.Fatalf("AdaptBehavior: %v", err)
	}
	if res.AdaptationsApplied != 1 {
		t.Fatalf("applied %d adaptations, want 1 (only above threshold)", res.AdaptationsApplied)
	}
	if res.AdaptationDetails[0].RuleID != "rule_strong" {
		t.Fatalf("applied rule %s", res.AdaptationDetails[0].RuleID)
	}

	rules, err := e.loadRules()
	if err != nil {
		t.Fatalf("loadRules: %v", err)
	}
	strong := rules["rule_strong"]
	// Applied once, then the failed outcome was folded in.
	if strong.SuccessCount != 1 || strong.FailureCount != 1 {
		t.Fatalf("strong rule counters: success=%d failure=%d", strong.SuccessCount, strong.FailureCount)
	}
	if strong.EffectivenessScore != 0.5 {
		t.Fatalf("strong rule effectiveness %v, want 0.5", strong.EffectivenessScore)
	}
	weak := rules["rule_weak"]
	// Not applied, but the outcome still counts against it.
	if weak.SuccessCount != 0 || weak.FailureCount != 1 {
		t.Fatalf("weak rule counters: success=%d failure=%d", weak.SuccessCount, weak.FailureCount)
	}
}

func TestAdaptBehaviorMissingOutcomeIsFailure(t *testing.T) {
	e, st := newTestEngine(t)
	seedRule(t, st, "rule_strong", []string{"all"}, 0.9)
	if _, err := e.AdaptBehavior("researcher", map[string]any{}); err != nil {
		t.Fatalf("AdaptBehavior: %v", err)
	}
	rules, _ := e.loadRules()
	if rules["rule_strong"].FailureCount != 1 {
		t.Fatalf("missing outcome should fold in as failure: %+v", rules["rule_strong"])
	}
}

func TestRuleInScope(t *testing.T) {
	r := &Rule{AgentScope: []string{"researcher"}}
	if !r.InScope("") {
		t.Fatal("empty agent should match every rule")
	}
	if !r.InScope("researcher") || r.InScope("planner") {
		t.Fatal("scope match wrong")
	}
	all := &Rule{AgentScope: []string{"all"}}
	if !all.InScope("planner") {
		t.Fatal("all scope should match any agent")
	}
}

func TestGenerateReport(t *testing.T) {
	e, st := newTestEngine(t)
	seedPattern(t, st, "researcher", "research", 9, 0.9, 0.9)
	seedPattern(t, st, "planner", "plan", 4, 0.5, 0.4)
	seedRule(t, st, "rule_a", []string{"researcher"}, 0.75)
	if _, err := e.Learn(successInteraction()); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	report, err := e.GenerateReport()
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.SystemStatistics["total_patterns"] != 3 {
		t.Fatalf("total_patterns %d, want 3", report.SystemStatistics["total_patterns"])
	}
	if report.SystemStatistics["total_rules"] != 1 {
		t.Fatalf("total_rules %d, want 1", report.SystemStatistics["total_rules"])
	}
	if report.SystemStatistics["learning_events"] != 1 {
		t.Fatalf("learning_events %d, want 1", report.SystemStatistics["learning_events"])
	}
	if len(report.TopPatterns) != 3 {
		t.Fatalf("top patterns %d, want 3", len(report.TopPatterns))
	}
	// Highest success×confidence first.
	if report.TopPatterns[0]["agent"] != "researcher" || report.TopPatterns[0]["success_rate"] != 0.9 {
		t.Fatalf("top pattern %+v", report.TopPatterns[0])
	}
	stats, ok := report.AgentStats["planner"]
	if !ok {
		t.Fatal("planner missing from agent stats")
	}
	if stats.Patterns != 1 || stats.SuccessRate != 0.5 {
		t.Fatalf("planner stats %+v", stats)
	}
}

func TestAnalyzeTrendsNoEvents(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AnalyzeTrends("", "7d")
	if !errors.Is(err, ErrNoEvents) {
		t.Fatalf("got %v, want ErrNoEvents", err)
	}
}

func seedHistory(t *testing.T, st *store.Store, ev HistoryEvent) {
	t.Helper()
	if err := st.AppendLog("learning_events.jsonl", ev); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
}

func TestAnalyzeTrendsWindowFilter(t *testing.T) {
	e, st := newTestEngine(t)
	seedHistory(t, st, HistoryEvent{Timestamp: time.Now().Add(-2 * time.Hour), Agent: "researcher", PatternsFound: 1})
	seedHistory(t, st, HistoryEvent{Timestamp: time.Now(), Agent: "researcher", PatternsFound: 2})

	analysis, err := e.AnalyzeTrends("", "1h")
	if err != nil {
		t.Fatalf("AnalyzeTrends: %v", err)
	}
	if analysis.LearningEvents != 1 {
		t.Fatalf("events in 1h window %d, want 1", analysis.LearningEvents)
	}
	if analysis.PatternsIdentified != 2 {
		t.Fatalf("patterns in window %d, want 2", analysis.PatternsIdentified)
	}
	if analysis.Agent != "all_agents" {
		t.Fatalf("agent label %q, want all_agents", analysis.Agent)
	}
	if !analysis.ImprovementIndicators.InsufficientData {
		t.Fatal("one event should flag insufficient data")
	}
}

func TestAnalyzeTrendsAgentFilter(t *testing.T) {
	e, st := newTestEngine(t)
	seedHistory(t, st, HistoryEvent{Timestamp: time.Now(), Agent: "researcher"})
	seedHistory(t, st, HistoryEvent{Timestamp: time.Now(), Agent: "planner"})

	analysis, err := e.AnalyzeTrends("planner", "24h")
	if err != nil {
		t.Fatalf("AnalyzeTrends: %v", err)
	}
	if analysis.LearningEvents != 1 {
		t.Fatalf("events for planner %d, want 1", analysis.LearningEvents)
	}
	if analysis.Agent != "planner" {
		t.Fatalf("agent label %q", analysis.Agent)
	}
}

func TestAnalyzeTrendsImprovement(t *testing.T) {
	e, st := newTestEngine(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		found := 1
		if i >= 6 {
			found = 3 // recent half finds more patterns
		}
		seedHistory(t, st, HistoryEvent{Timestamp: base.Add(time.Duration(i) * time.Minute), PatternsFound: found})
	}

	analysis, err := e.AnalyzeTrends("", "24h")
	if err != nil {
		t.Fatalf("AnalyzeTrends: %v", err)
	}
	ind := analysis.ImprovementIndicators
	if ind.InsufficientData {
		t.Fatal("12 events should be sufficient")
	}
	if ind.PatternIdentificationTrend != "improving" {
		t.Fatalf("pattern trend %q, want improving", ind.PatternIdentificationTrend)
	}
	if ind.InsightGenerationTrend != "stable" {
		t.Fatalf("insight trend %q, want stable", ind.InsightGenerationTrend)
	}
	if !ind.LearningAcceleration {
		t.Fatal("recent half outpacing early half should flag acceleration")
	}
	if analysis.LearningVelocity != 12.0/24.0 {
		t.Fatalf("velocity %v, want 0.5", analysis.LearningVelocity)
	}
}

func TestHistoryCompaction(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	e := NewEngine(st, config.LearningConfig{HistoryCapacity: 5})
	for i := 0; i < 11; i++ {
		if err := e.appendHistory(HistoryEvent{Timestamp: time.Now(), PatternsFound: i}); err != nil {
			t.Fatalf("appendHistory %d: %v", i, err)
		}
	}
	entries, err := st.ReadLog("learning_events.jsonl", 0)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	// Crossing 2x capacity compacts back down to the capacity.
	if len(entries) != 5 {
		t.Fatalf("history holds %d entries after compaction, want 5", len(entries))
	}
}
