package learning

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEvents is returned by AnalyzeTrends when the window holds no
// learning events; callers surface it as a structured result, not a
// crash.
var ErrNoEvents = errors.New("no learning events found for the specified criteria")

func windowFor(timeRange string) time.Duration {
	switch timeRange {
	case "1h":
		return time.Hour
	case "24h":
		return 24 * time.Hour
	default: // "7d" and anything unrecognized
		return 7 * 24 * time.Hour
	}
}

// AnalyzeTrends aggregates the persisted learning-event history over a
// time window, optionally filtered to one agent: totals, learning
// velocity, pattern/rule effectiveness, and improvement indicators from
// comparing the early and recent halves of the window.
func (e *Engine) AnalyzeTrends(agent, timeRange string) (*TrendAnalysis, error) {
	end := e.now()
	start := end.Add(-windowFor(timeRange))

	history, err := e.loadHistory()
	if err != nil {
		return nil, err
	}

	var events []HistoryEvent
	for _, ev := range history {
		if ev.Timestamp.Before(start) {
			continue
		}
		if agent != "" && ev.Agent != agent {
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	totalPatterns, totalInsights, totalRules := 0, 0, 0
	for _, ev := range events {
		totalPatterns += ev.PatternsFound
		totalInsights += ev.InsightsGenerated
		totalRules += ev.RulesCreated
	}

	hours := end.Sub(start).Hours()
	velocity := 0.0
	if hours > 0 {
		velocity = float64(len(events)) / hours
	}

	patternStats, err := e.patternEffectiveness(agent)
	if err != nil {
		return nil, err
	}
	ruleStats, err := e.ruleEffectiveness(agent)
	if err != nil {
		return nil, err
	}

	agentLabel := agent
	if agentLabel == "" {
		agentLabel = "all_agents"
	}

	return &TrendAnalysis{
		TimeRange:             fmt.Sprintf("%s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		Agent:                 agentLabel,
		LearningEvents:        len(events),
		PatternsIdentified:    totalPatterns,
		InsightsGenerated:     totalInsights,
		RulesCreated:          totalRules,
		LearningVelocity:      velocity,
		PatternEffectiveness:  patternStats,
		RuleEffectiveness:     ruleStats,
		ImprovementIndicators: improvementIndicators(events),
	}, nil
}

func (e *Engine) patternEffectiveness(agent string) (EffectivenessStats, error) {
	patterns, err := e.loadPatterns()
	if err != nil {
		return EffectivenessStats{}, err
	}
	sum, count, highConfidence := 0.0, 0, 0
	for _, p := range patterns {
		if agent != "" && p.AgentName != agent {
			continue
		}
		sum += p.SuccessRate * p.ConfidenceScore
		count++
		if p.ConfidenceScore > 0.8 {
			highConfidence++
		}
	}
	if count == 0 {
		return EffectivenessStats{}, nil
	}
	return EffectivenessStats{
		Effectiveness:          sum / float64(count),
		PatternsEvaluated:      count,
		HighConfidencePatterns: highConfidence,
	}, nil
}

func (e *Engine) ruleEffectiveness(agent string) (EffectivenessStats, error) {
	rules, err := e.loadRules()
	if err != nil {
		return EffectivenessStats{}, err
	}
	sum, count, applications := 0.0, 0, 0
	for _, r := range rules {
		if agent != "" && !r.InScope(agent) {
			continue
		}
		sum += r.EffectivenessScore
		count++
		applications += r.SuccessCount
	}
	if count == 0 {
		return EffectivenessStats{}, nil
	}
	return EffectivenessStats{
		Effectiveness:          sum / float64(count),
		RulesEvaluated:         count,
		SuccessfulApplications: applications,
	}, nil
}

// improvementIndicators splits the filtered events at the midpoint and
// compares mean patterns-found and insights-generated between halves.
func improvementIndicators(events []HistoryEvent) ImprovementIndicators {
	if len(events) < 10 {
		return ImprovementIndicators{InsufficientData: true}
	}

	mid := len(events) / 2
	early, recent := events[:mid], events[mid:]

	earlyPatterns := meanOf(early, func(ev HistoryEvent) int { return ev.PatternsFound })
	recentPatterns := meanOf(recent, func(ev HistoryEvent) int { return ev.PatternsFound })
	earlyInsights := meanOf(early, func(ev HistoryEvent) int { return ev.InsightsGenerated })
	recentInsights := meanOf(recent, func(ev HistoryEvent) int { return ev.InsightsGenerated })

	indicators := ImprovementIndicators{
		PatternIdentificationTrend: "stable",
		InsightGenerationTrend:     "stable",
		LearningAcceleration:       recentPatterns+recentInsights > earlyPatterns+earlyInsights,
	}
	if recentPatterns > earlyPatterns {
		indicators.PatternIdentificationTrend = "improving"
	}
	if recentInsights > earlyInsights {
		indicators.InsightGenerationTrend = "improving"
	}
	return indicators
}

func meanOf(events []HistoryEvent, value func(HistoryEvent) int) float64 {
	if len(events) == 0 {
		return 0
	}
	sum := 0
	for _, ev := range events {
		sum += value(ev)
	}
	return float64(sum) / float64(len(events))
}
