package learning

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/store"
)

const (
	patternsCategory = "patterns"
	rulesCategory    = "rules"
	insightsCategory = "insights"

	historyLog = "learning_events.jsonl"
)

// Engine runs the learning pipeline over the record store. Patterns and
// rules are cached in-process, populated lazily on first read and kept
// write-through on every mutation; the cache is owned by the engine, not
// shared state.
type Engine struct {
	store *store.Store
	cfg   config.LearningConfig
	log   *slog.Logger
	now   func() time.Time

	patterns       map[string]*Pattern
	patternsLoaded bool
	rules          map[string]*Rule
	rulesLoaded    bool
}

// NewEngine creates a learning engine backed by st. Zero-valued config
// fields fall back to the package defaults (frequency 3, threshold 0.7,
// history capacity 1000).
func NewEngine(st *store.Store, cfg config.LearningConfig) *Engine {
	if cfg.MinPatternFrequency <= 0 {
		cfg.MinPatternFrequency = 3
	}
	if cfg.MinConfidenceThreshold <= 0 {
		cfg.MinConfidenceThreshold = 0.7
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 1000
	}
	return &Engine{
		store:    st,
		cfg:      cfg,
		log:      slog.Default(),
		now:      time.Now,
		patterns: map[string]*Pattern{},
		rules:    map[string]*Rule{},
	}
}

// Learn runs the full pipeline for one interaction: feature extraction,
// pattern recognition, insight generation, rule derivation, and a
// learning-event record appended to the bounded history.
func (e *Engine) Learn(interaction map[string]any) (*LearnResult, error) {
	features := e.extractFeatures(interaction)
	candidates := identifyPatterns(features, e.now())

	updated := make([]*Pattern, 0, len(candidates))
	for _, candidate := range candidates {
		p, err := e.updateOrCreatePattern(candidate)
		if err != nil {
			return nil, fmt.Errorf("update pattern: %w", err)
		}
		updated = append(updated, p)
	}

	insights, err := e.generateInsights(updated)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	rules, err := e.deriveRules(insights)
	if err != nil {
		return nil, fmt.Errorf("derive rules: %w", err)
	}

	interactionID, _ := interaction["id"].(string)
	event := HistoryEvent{
		Timestamp:         e.now(),
		InteractionID:     interactionID,
		Agent:             features.Agent,
		PatternsFound:     len(candidates),
		InsightsGenerated: len(insights),
		RulesCreated:      len(rules),
	}
	if err := e.appendHistory(event); err != nil {
		e.log.Warn("learning: history append failed", "error", err)
	}

	return &LearnResult{
		PatternsIdentified: len(updated),
		InsightsGenerated:  len(insights),
		RulesCreated:       len(rules),
		LearningEventID:    event.Timestamp,
	}, nil
}

func (e *Engine) extractFeatures(interaction map[string]any) Features {
	f := Features{
		Agent:           asString(interaction["agent"]),
		TaskType:        asString(interaction["task_type"]),
		InputComplexity: assessComplexity(interaction["input"]),
		OutputQuality:   asFloat(interaction["quality_score"]),
		ResponseTime:    asFloat(interaction["response_time"]),
		Success:         interaction["success"] == true,
		ErrorType:       asString(interaction["error_type"]),
		ContextSize:     len(jsonString(interaction["context"])),
		Timestamp:       e.now(),
		Extra:           map[string]any{},
	}
	if ts, err := time.Parse(time.RFC3339, asString(interaction["timestamp"])); err == nil {
		f.Timestamp = ts
	}
	if strings.Contains(f.TaskType, "optimization") {
		f.Extra["optimization_algorithm"] = asString(interaction["algorithm_used"])
		f.Extra["convergence_achieved"] = interaction["converged"] == true
	}
	if strings.Contains(f.TaskType, "data_analysis") {
		f.Extra["data_size"] = asFloat(interaction["data_size"])
		depth := asString(interaction["analysis_depth"])
		if depth == "" {
			depth = "basic"
		}
		f.Extra["analysis_depth"] = depth
	}
	return f
}

// identifyPatterns derives the candidate patterns for one interaction:
// always a success or failure pattern, plus a performance pattern when a
// response time was recorded.
func identifyPatterns(f Features, now time.Time) []*Pattern {
	var patterns []*Pattern

	if f.Success {
		patterns = append(patterns, newPattern(PatternSuccess, f.Agent, map[string]any{
			"task_type":        f.TaskType,
			"input_complexity": f.InputComplexity,
			"context_conditions": map[string]any{
				"complexity":   f.InputComplexity,
				"context_size": f.ContextSize,
				"time_of_day":  now.Hour(),
			},
		}, map[string]any{
			"outcome": "success",
			"quality": f.OutputQuality,
		}, now))
	} else {
		patterns = append(patterns, newPattern(PatternFailure, f.Agent, map[string]any{
			"task_type":  f.TaskType,
			"error_type": f.ErrorType,
			"conditions": map[string]any{
				"complexity":    f.InputComplexity,
				"error_type":    f.ErrorType,
				"response_time": f.ResponseTime,
			},
		}, map[string]any{
			"outcome":    "failure",
			"error_type": f.ErrorType,
		}, now))
	}

	if f.ResponseTime > 0 {
		patterns = append(patterns, newPattern(PatternPerformance, f.Agent, map[string]any{
			"task_type":    f.TaskType,
			"complexity":   f.InputComplexity,
			"context_size": f.ContextSize,
		}, map[string]any{
			"performance_category": categorizePerformance(f.ResponseTime),
			"response_time":        f.ResponseTime,
		}, now))
	}

	return patterns
}

func newPattern(patternType, agent string, context, outcome map[string]any, now time.Time) *Pattern {
	successRate := 0.0
	if outcome["outcome"] == "success" {
		successRate = 1.0
	}
	return &Pattern{
		SchemaVersion:   store.SchemaVersion,
		PatternID:       PatternID(patternType, agent, context),
		PatternType:     patternType,
		AgentName:       agent,
		Context:         context,
		Outcome:         outcome,
		Frequency:       1,
		SuccessRate:     successRate,
		ConfidenceScore: 0.5,
		CreatedAt:       now,
		LastSeen:        now,
	}
}

// PatternID is the deterministic hash of type, agent and canonical
// context JSON; repeat observations of the same context resolve to the
// same stored pattern.
func PatternID(patternType, agent string, context map[string]any) string {
	canonical, _ := json.Marshal(context) // map keys marshal in sorted order
	sum := md5.Sum([]byte(patternType + "_" + agent + "_" + string(canonical)))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) updateOrCreatePattern(candidate *Pattern) (*Pattern, error) {
	patterns, err := e.loadPatterns()
	if err != nil {
		return nil, err
	}

	existing, ok := patterns[candidate.PatternID]
	if !ok {
		patterns[candidate.PatternID] = candidate
		return candidate, e.store.Put(patternsCategory, candidate.PatternID, candidate)
	}

	observed := 0.0
	if candidate.Outcome["outcome"] == "success" {
		observed = 1.0
	}
	existing.Frequency++
	existing.SuccessRate = (existing.SuccessRate*float64(existing.Frequency-1) + observed) / float64(existing.Frequency)
	existing.ConfidenceScore = min(1.0, float64(existing.Frequency)/10.0)
	existing.LastSeen = e.now()

	return existing, e.store.Put(patternsCategory, existing.PatternID, existing)
}

// generateInsights raises a failure-analysis insight per failure pattern
// that has recurred often enough, and one aggregated
// performance-optimization insight covering all slow patterns.
func (e *Engine) generateInsights(patterns []*Pattern) ([]*Insight, error) {
	var insights []*Insight

	for _, p := range patterns {
		if p.PatternType != PatternFailure || p.Frequency < e.cfg.MinPatternFrequency {
			continue
		}
		taskType := asString(p.Context["task_type"])
		if taskType == "" {
			taskType = "unknown"
		}
		insights = append(insights, &Insight{
			SchemaVersion:   store.SchemaVersion,
			InsightID:       e.newInsightID(),
			InsightType:     InsightFailureAnalysis,
			Description:     fmt.Sprintf("Agent %s frequently fails on %s tasks", p.AgentName, taskType),
			Evidence:        []map[string]any{{"pattern_id": p.PatternID, "frequency": p.Frequency}},
			ConfidenceLevel: p.ConfidenceScore,
			Actionable:      true,
			ImpactEstimate:  "medium",
			AgentsAffected:  []string{p.AgentName},
			CreatedAt:       e.now(),
		})
	}

	var slow []*Pattern
	for _, p := range patterns {
		if p.PatternType == PatternPerformance && p.Outcome["performance_category"] == "slow" {
			slow = append(slow, p)
		}
	}
	if len(slow) > 0 {
		evidence := make([]map[string]any, 0, len(slow))
		confidence := 0.0
		agents := map[string]bool{}
		for _, p := range slow {
			evidence = append(evidence, map[string]any{"pattern_id": p.PatternID})
			confidence += p.ConfidenceScore
			agents[p.AgentName] = true
		}
		affected := make([]string, 0, len(agents))
		for name := range agents {
			affected = append(affected, name)
		}
		sort.Strings(affected)
		insights = append(insights, &Insight{
			SchemaVersion:   store.SchemaVersion,
			InsightID:       e.newInsightID(),
			InsightType:     InsightPerformanceOptimization,
			Description:     "Performance optimization opportunity identified",
			Evidence:        evidence,
			ConfidenceLevel: confidence / float64(len(slow)),
			Actionable:      true,
			ImpactEstimate:  "high",
			AgentsAffected:  affected,
			CreatedAt:       e.now(),
		})
	}

	for _, insight := range insights {
		if err := e.store.Put(insightsCategory, insight.InsightID, insight); err != nil {
			return nil, err
		}
	}
	return insights, nil
}

// deriveRules creates one adaptation rule per actionable insight, seeded
// with the insight's confidence as the initial effectiveness score.
func (e *Engine) deriveRules(insights []*Insight) ([]*Rule, error) {
	rules, err := e.loadRules()
	if err != nil {
		return nil, err
	}

	var created []*Rule
	for _, insight := range insights {
		if !insight.Actionable {
			continue
		}
		var rule *Rule
		switch insight.InsightType {
		case InsightFailureAnalysis:
			rule = &Rule{
				Condition: map[string]any{
					"agents":                   insight.AgentsAffected,
					"failure_pattern_detected": true,
				},
				Action: map[string]any{
					"type":        "fallback_strategy",
					"description": "Apply alternative approach when failure pattern detected",
				},
				Priority: 3,
			}
		case InsightPerformanceOptimization:
			rule = &Rule{
				Condition: map[string]any{
					"agents":                     insight.AgentsAffected,
					"performance_issue_detected": true,
				},
				Action: map[string]any{
					"type":        "optimization_strategy",
					"description": "Apply performance optimization when slow patterns detected",
				},
				Priority: 2,
			}
		default:
			continue
		}
		rule.SchemaVersion = store.SchemaVersion
		rule.RuleID = e.newRuleID()
		rule.AgentScope = insight.AgentsAffected
		rule.EffectivenessScore = insight.ConfidenceLevel
		rule.CreatedAt = e.now()

		rules[rule.RuleID] = rule
		if err := e.store.Put(rulesCategory, rule.RuleID, rule); err != nil {
			return nil, err
		}
		created = append(created, rule)
	}
	return created, nil
}

// Recommendations gathers high-confidence patterns and effective rules
// matching the context, ranked by confidence and capped at 10.
func (e *Engine) Recommendations(context map[string]any) (*RecommendationsResult, error) {
	agent := asString(context["agent"])
	taskType := asString(context["task_type"])

	patterns, err := e.relevantPatterns(agent, taskType)
	if err != nil {
		return nil, err
	}
	rules, err := e.applicableRules(agent)
	if err != nil {
		return nil, err
	}

	recommendations := []Recommendation{}
	for _, p := range patterns {
		if p.SuccessRate > 0.8 && p.ConfidenceScore > 0.7 {
			recommendations = append(recommendations, Recommendation{
				Type:           "pattern_based",
				Recommendation: "Apply successful pattern: " + p.PatternType,
				Confidence:     p.ConfidenceScore,
				Evidence:       fmt.Sprintf("Seen %d times with %.1f%% success rate", p.Frequency, p.SuccessRate*100),
				PatternID:      p.PatternID,
			})
		}
	}
	for _, r := range rules {
		if r.EffectivenessScore > 0.6 {
			recommendations = append(recommendations, Recommendation{
				Type:           "rule_based",
				Recommendation: "Apply adaptation rule: " + asString(r.Action["description"]),
				Confidence:     r.EffectivenessScore,
				Evidence:       fmt.Sprintf("Rule succeeded %d times, failed %d times", r.SuccessCount, r.FailureCount),
				RuleID:         r.RuleID,
			})
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})
	if len(recommendations) > 10 {
		recommendations = recommendations[:10]
	}

	return &RecommendationsResult{
		Recommendations:    recommendations,
		PatternsConsidered: len(patterns),
		RulesConsidered:    len(rules),
	}, nil
}

// AdaptBehavior applies every in-scope rule above the confidence
// threshold, then folds the supplied outcome into all in-scope rules'
// counters. Rules record success/failure rather than retrying anything.
func (e *Engine) AdaptBehavior(agent string, adaptationContext map[string]any) (*AdaptResult, error) {
	rules, err := e.applicableRules(agent)
	if err != nil {
		return nil, err
	}

	applied := []AppliedAdaptation{}
	for _, rule := range rules {
		if rule.EffectivenessScore <= e.cfg.MinConfidenceThreshold {
			continue
		}
		rule.SuccessCount++
		if err := e.store.Put(rulesCategory, rule.RuleID, rule); err != nil {
			return nil, err
		}
		applied = append(applied, AppliedAdaptation{
			RuleID:      rule.RuleID,
			ActionType:  asString(rule.Action["type"]),
			Description: asString(rule.Action["description"]),
			Timestamp:   e.now(),
		})
	}

	outcome, _ := adaptationContext["outcome"].(map[string]any)
	success := outcome["success"] == true
	for _, rule := range rules {
		rule.RecordOutcome(success)
		if err := e.store.Put(rulesCategory, rule.RuleID, rule); err != nil {
			return nil, err
		}
	}

	return &AdaptResult{AdaptationsApplied: len(applied), AdaptationDetails: applied}, nil
}

func (e *Engine) relevantPatterns(agent, taskType string) ([]*Pattern, error) {
	patterns, err := e.loadPatterns()
	if err != nil {
		return nil, err
	}
	var relevant []*Pattern
	for _, p := range patterns {
		if agent != "" && p.AgentName != agent {
			continue
		}
		if taskType != "" && asString(p.Context["task_type"]) != taskType {
			continue
		}
		relevant = append(relevant, p)
	}
	sort.Slice(relevant, func(i, j int) bool { return relevant[i].PatternID < relevant[j].PatternID })
	return relevant, nil
}

func (e *Engine) applicableRules(agent string) ([]*Rule, error) {
	rules, err := e.loadRules()
	if err != nil {
		return nil, err
	}
	var applicable []*Rule
	for _, r := range rules {
		if r.InScope(agent) {
			applicable = append(applicable, r)
		}
	}
	sort.Slice(applicable, func(i, j int) bool { return applicable[i].RuleID < applicable[j].RuleID })
	return applicable, nil
}

func (e *Engine) loadPatterns() (map[string]*Pattern, error) {
	if e.patternsLoaded {
		return e.patterns, nil
	}
	raw, err := e.store.List(patternsCategory)
	if err != nil {
		return nil, err
	}
	for _, data := range raw {
		var p Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			e.log.Warn("learning: skipping undecodable pattern", "error", err)
			continue
		}
		e.patterns[p.PatternID] = &p
	}
	e.patternsLoaded = true
	return e.patterns, nil
}

func (e *Engine) loadRules() (map[string]*Rule, error) {
	if e.rulesLoaded {
		return e.rules, nil
	}
	raw, err := e.store.List(rulesCategory)
	if err != nil {
		return nil, err
	}
	for _, data := range raw {
		var r Rule
		if err := json.Unmarshal(data, &r); err != nil {
			e.log.Warn("learning: skipping undecodable rule", "error", err)
			continue
		}
		e.rules[r.RuleID] = &r
	}
	e.rulesLoaded = true
	return e.rules, nil
}

func (e *Engine) loadInsights() ([]*Insight, error) {
	raw, err := e.store.List(insightsCategory)
	if err != nil {
		return nil, err
	}
	insights := make([]*Insight, 0, len(raw))
	for _, data := range raw {
		var i Insight
		if err := json.Unmarshal(data, &i); err != nil {
			e.log.Warn("learning: skipping undecodable insight", "error", err)
			continue
		}
		insights = append(insights, &i)
	}
	return insights, nil
}

func (e *Engine) appendHistory(event HistoryEvent) error {
	if err := e.store.AppendLog(historyLog, event); err != nil {
		return err
	}
	// Compact once the file holds twice the ring capacity.
	entries, err := e.store.ReadLog(historyLog, 0)
	if err != nil || len(entries) <= 2*e.cfg.HistoryCapacity {
		return err
	}
	return e.store.ReplaceLog(historyLog, entries[len(entries)-e.cfg.HistoryCapacity:])
}

func (e *Engine) loadHistory() ([]HistoryEvent, error) {
	raw, err := e.store.ReadLog(historyLog, e.cfg.HistoryCapacity)
	if err != nil {
		return nil, err
	}
	events := make([]HistoryEvent, 0, len(raw))
	for _, data := range raw {
		var ev HistoryEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			e.log.Warn("learning: skipping undecodable history event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e *Engine) newRuleID() string {
	return fmt.Sprintf("rule_%s_%s", e.now().Format("20060102_150405"), uuid.NewString()[:8])
}

func (e *Engine) newInsightID() string {
	return fmt.Sprintf("insight_%s_%s", e.now().Format("20060102_150405"), uuid.NewString()[:8])
}

// assessComplexity buckets an input payload by serialized size.
func assessComplexity(input any) string {
	size := len(jsonString(input))
	switch {
	case size < 100:
		return "low"
	case size < 1000:
		return "medium"
	default:
		return "high"
	}
}

// categorizePerformance buckets a response time in seconds.
func categorizePerformance(responseTime float64) string {
	switch {
	case responseTime < 1.0:
		return "fast"
	case responseTime < 5.0:
		return "normal"
	default:
		return "slow"
	}
}

func jsonString(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
