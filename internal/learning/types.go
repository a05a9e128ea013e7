// Package learning implements the adaptive learning engine: it distills
// agent interaction outcomes into recurring patterns, raises insights
// from high-frequency patterns, derives adaptation rules from insights,
// and scores rule effectiveness over time.
package learning

import "time"

// Pattern type constants.
const (
	PatternSuccess     = "success_pattern"
	PatternFailure     = "failure_pattern"
	PatternPerformance = "performance_pattern"
)

// Insight type constants.
const (
	InsightFailureAnalysis         = "failure_analysis"
	InsightPerformanceOptimization = "performance_optimization"
)

// Pattern is a recurring (context, outcome) observation with accumulated
// frequency and success statistics. Its id is a deterministic hash of
// type, agent and context, so repeat observations mutate in place.
type Pattern struct {
	SchemaVersion   int            `json:"schema_version"`
	PatternID       string         `json:"pattern_id"`
	PatternType     string         `json:"pattern_type"`
	AgentName       string         `json:"agent_name"`
	Context         map[string]any `json:"context"`
	Outcome         map[string]any `json:"outcome"`
	Frequency       int            `json:"frequency"`
	SuccessRate     float64        `json:"success_rate"`
	ConfidenceScore float64        `json:"confidence_score"`
	CreatedAt       time.Time      `json:"created_at"`
	LastSeen        time.Time      `json:"last_seen"`
}

// Rule is an actionable condition→action policy derived from an insight,
// with its own success/failure tracking.
type Rule struct {
	SchemaVersion      int            `json:"schema_version"`
	RuleID             string         `json:"rule_id"`
	Condition          map[string]any `json:"condition"`
	Action             map[string]any `json:"action"`
	AgentScope         []string       `json:"agent_scope"`
	Priority           int            `json:"priority"`
	SuccessCount       int            `json:"success_count"`
	FailureCount       int            `json:"failure_count"`
	EffectivenessScore float64        `json:"effectiveness_score"`
	CreatedAt          time.Time      `json:"created_at"`
}

// InScope reports whether the rule applies to the given agent. An empty
// agent matches every rule; an "all" scope matches every agent.
func (r *Rule) InScope(agent string) bool {
	if agent == "" {
		return true
	}
	for _, name := range r.AgentScope {
		if name == agent || name == "all" {
			return true
		}
	}
	return false
}

// RecordOutcome folds one application outcome into the rule's counters
// and recomputes the effectiveness score.
func (r *Rule) RecordOutcome(success bool) {
	if success {
		r.SuccessCount++
	} else {
		r.FailureCount++
	}
	if total := r.SuccessCount + r.FailureCount; total > 0 {
		r.EffectivenessScore = float64(r.SuccessCount) / float64(total)
	}
}

// Insight is a derived, read-only claim synthesized from one or more
// high-confidence patterns; it feeds rule derivation.
type Insight struct {
	SchemaVersion   int              `json:"schema_version"`
	InsightID       string           `json:"insight_id"`
	InsightType     string           `json:"insight_type"`
	Description     string           `json:"description"`
	Evidence        []map[string]any `json:"evidence"`
	ConfidenceLevel float64          `json:"confidence_level"`
	Actionable      bool             `json:"actionable"`
	ImpactEstimate  string           `json:"impact_estimate"`
	AgentsAffected  []string         `json:"agents_affected"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Features is the snapshot extracted from one interaction before pattern
// derivation.
type Features struct {
	Agent           string
	TaskType        string
	InputComplexity string
	OutputQuality   float64
	ResponseTime    float64
	Success         bool
	ErrorType       string
	ContextSize     int
	Timestamp       time.Time
	Extra           map[string]any
}

// HistoryEvent is one learning-event record (counts only) in the bounded
// persisted history.
type HistoryEvent struct {
	Timestamp         time.Time `json:"timestamp"`
	InteractionID     string    `json:"interaction_id,omitempty"`
	Agent             string    `json:"agent,omitempty"`
	PatternsFound     int       `json:"patterns_found"`
	InsightsGenerated int       `json:"insights_generated"`
	RulesCreated      int       `json:"rules_created"`
}

// LearnResult summarizes one learn pipeline run.
type LearnResult struct {
	PatternsIdentified int       `json:"patterns_identified"`
	InsightsGenerated  int       `json:"insights_generated"`
	RulesCreated       int       `json:"rules_created"`
	LearningEventID    time.Time `json:"learning_event_id"`
}

// Recommendation is one ranked suggestion from patterns or rules.
type Recommendation struct {
	Type           string  `json:"type"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Evidence       string  `json:"evidence"`
	PatternID      string  `json:"pattern_id,omitempty"`
	RuleID         string  `json:"rule_id,omitempty"`
}

// RecommendationsResult is the ranked recommendation set for a context.
type RecommendationsResult struct {
	Recommendations    []Recommendation `json:"recommendations"`
	PatternsConsidered int              `json:"patterns_considered"`
	RulesConsidered    int              `json:"rules_considered"`
}

// EffectivenessStats aggregates pattern or rule effectiveness.
type EffectivenessStats struct {
	Effectiveness          float64 `json:"effectiveness"`
	PatternsEvaluated      int     `json:"patterns_evaluated,omitempty"`
	RulesEvaluated         int     `json:"rules_evaluated,omitempty"`
	HighConfidencePatterns int     `json:"high_confidence_patterns,omitempty"`
	SuccessfulApplications int     `json:"successful_applications,omitempty"`
}

// ImprovementIndicators labels the trend between the early and recent
// halves of the filtered history.
type ImprovementIndicators struct {
	InsufficientData           bool   `json:"insufficient_data,omitempty"`
	PatternIdentificationTrend string `json:"pattern_identification_trend,omitempty"`
	InsightGenerationTrend     string `json:"insight_generation_trend,omitempty"`
	LearningAcceleration       bool   `json:"learning_acceleration,omitempty"`
}

// TrendAnalysis is the aggregate view over a time window of the history.
type TrendAnalysis struct {
	TimeRange             string                `json:"time_range"`
	Agent                 string                `json:"agent"`
	LearningEvents        int                   `json:"learning_events"`
	PatternsIdentified    int                   `json:"patterns_identified"`
	InsightsGenerated     int                   `json:"insights_generated"`
	RulesCreated          int                   `json:"rules_created"`
	LearningVelocity      float64               `json:"learning_velocity"`
	PatternEffectiveness  EffectivenessStats    `json:"pattern_effectiveness"`
	RuleEffectiveness     EffectivenessStats    `json:"rule_effectiveness"`
	ImprovementIndicators ImprovementIndicators `json:"improvement_indicators"`
}

// AppliedAdaptation records one rule application during behavior
// adaptation.
type AppliedAdaptation struct {
	RuleID      string    `json:"rule_id"`
	ActionType  string    `json:"action_type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// AdaptResult summarizes one adapt-behavior run.
type AdaptResult struct {
	AdaptationsApplied int                 `json:"adaptations_applied"`
	AdaptationDetails  []AppliedAdaptation `json:"adaptation_details"`
}

// AgentStats accumulates per-agent learning statistics for reports.
type AgentStats struct {
	Patterns      int     `json:"patterns"`
	SuccessRate   float64 `json:"success_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Report is the learning-system snapshot.
type Report struct {
	SystemStatistics map[string]int        `json:"system_statistics"`
	TopPatterns      []map[string]any      `json:"top_patterns"`
	TopRules         []map[string]any      `json:"top_rules"`
	RecentInsights   []map[string]any      `json:"recent_insights"`
	AgentStats       map[string]AgentStats `json:"agent_learning_stats"`
}
