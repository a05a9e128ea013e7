package hook

import (
	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/learning"
	"github.com/agenthive/agenthive/internal/store"
)

// Learning engine operations.
const (
	OpLearn              = "learn"
	OpGetRecommendations = "get_recommendations"
	OpAnalyzeTrends      = "analyze_trends"
	OpAdaptBehavior      = "adapt_behavior"
	OpGenerateReport     = "generate_report"
)

// LearnHook exposes the learning engine over the hook contract.
type LearnHook struct {
	engine *learning.Engine
}

// NewLearnHook builds the learning-engine hook.
func NewLearnHook(st *store.Store, cfg config.LearningConfig) *LearnHook {
	return &LearnHook{engine: learning.NewEngine(st, cfg)}
}

func (h *LearnHook) Name() string             { return "learning-engine" }
func (h *LearnHook) DefaultOperation() string { return "" }

// Dispatch routes one learning operation.
func (h *LearnHook) Dispatch(operation string, data map[string]any) (map[string]any, error) {
	switch operation {
	case OpLearn:
		result, err := h.engine.Learn(mapField(data, "interaction_data"))
		if err != nil {
			return nil, err
		}
		fields, err := toMap(result)
		if err != nil {
			return nil, err
		}
		fields["success"] = true
		return fields, nil

	case OpGetRecommendations:
		result, err := h.engine.Recommendations(mapField(data, "context"))
		if err != nil {
			return nil, err
		}
		fields, err := toMap(result)
		if err != nil {
			return nil, err
		}
		fields["success"] = true
		return fields, nil

	case OpAnalyzeTrends:
		timeRange := stringField(data, "time_range")
		if timeRange == "" {
			timeRange = "7d"
		}
		// ErrNoEvents surfaces like any other handler failure: a
		// structured success:false response, never a crash.
		analysis, err := h.engine.AnalyzeTrends(stringField(data, "agent_name"), timeRange)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":  true,
			"analysis": analysis,
		}, nil

	case OpAdaptBehavior:
		result, err := h.engine.AdaptBehavior(
			stringField(data, "agent_name"),
			mapField(data, "adaptation_context"),
		)
		if err != nil {
			return nil, err
		}
		fields, err := toMap(result)
		if err != nil {
			return nil, err
		}
		fields["success"] = true
		return fields, nil

	case OpGenerateReport:
		report, err := h.engine.GenerateReport()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success": true,
			"report":  report,
		}, nil

	default:
		return nil, ErrUnknownOperation(operation)
	}
}
