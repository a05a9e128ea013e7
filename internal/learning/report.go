package learning

import "sort"

// GenerateReport snapshots the learning system: top patterns by
// success×confidence, top rules by effectiveness, the most recent
// insights, and per-agent aggregate statistics.
func (e *Engine) GenerateReport() (*Report, error) {
	patterns, err := e.loadPatterns()
	if err != nil {
		return nil, err
	}
	rules, err := e.loadRules()
	if err != nil {
		return nil, err
	}
	insights, err := e.loadInsights()
	if err != nil {
		return nil, err
	}
	history, err := e.loadHistory()
	if err != nil {
		return nil, err
	}

	patternList := make([]*Pattern, 0, len(patterns))
	for _, p := range patterns {
		patternList = append(patternList, p)
	}
	sort.Slice(patternList, func(i, j int) bool {
		si := patternList[i].SuccessRate * patternList[i].ConfidenceScore
		sj := patternList[j].SuccessRate * patternList[j].ConfidenceScore
		if si != sj {
			return si > sj
		}
		return patternList[i].PatternID < patternList[j].PatternID
	})

	ruleList := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		ruleList = append(ruleList, r)
	}
	sort.Slice(ruleList, func(i, j int) bool {
		if ruleList[i].EffectivenessScore != ruleList[j].EffectivenessScore {
			return ruleList[i].EffectivenessScore > ruleList[j].EffectivenessScore
		}
		return ruleList[i].RuleID < ruleList[j].RuleID
	})

	sort.Slice(insights, func(i, j int) bool {
		return insights[i].CreatedAt.After(insights[j].CreatedAt)
	})

	report := &Report{
		SystemStatistics: map[string]int{
			"total_patterns":  len(patterns),
			"total_rules":     len(rules),
			"total_insights":  len(insights),
			"learning_events": len(history),
		},
		TopPatterns:    []map[string]any{},
		TopRules:       []map[string]any{},
		RecentInsights: []map[string]any{},
		AgentStats:     agentLearningStats(patternList),
	}

	for _, p := range top(patternList) {
		report.TopPatterns = append(report.TopPatterns, map[string]any{
			"id":           p.PatternID,
			"type":         p.PatternType,
			"agent":        p.AgentName,
			"success_rate": p.SuccessRate,
			"confidence":   p.ConfidenceScore,
			"frequency":    p.Frequency,
		})
	}
	for _, r := range top(ruleList) {
		report.TopRules = append(report.TopRules, map[string]any{
			"id":            r.RuleID,
			"effectiveness": r.EffectivenessScore,
			"success_count": r.SuccessCount,
			"failure_count": r.FailureCount,
			"agents":        r.AgentScope,
		})
	}
	for _, i := range top(insights) {
		report.RecentInsights = append(report.RecentInsights, map[string]any{
			"id":          i.InsightID,
			"type":        i.InsightType,
			"description": i.Description,
			"confidence":  i.ConfidenceLevel,
			"actionable":  i.Actionable,
		})
	}

	return report, nil
}

// agentLearningStats folds per-agent running means over all patterns.
func agentLearningStats(patterns []*Pattern) map[string]AgentStats {
	stats := map[string]AgentStats{}
	for _, p := range patterns {
		s := stats[p.AgentName]
		s.Patterns++
		n := float64(s.Patterns)
		s.SuccessRate = (s.SuccessRate*(n-1) + p.SuccessRate) / n
		s.AvgConfidence = (s.AvgConfidence*(n-1) + p.ConfidenceScore) / n
		stats[p.AgentName] = s
	}
	return stats
}

func top[T any](list []T) []T {
	if len(list) > 10 {
		return list[:10]
	}
	return list
}
