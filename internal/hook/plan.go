package hook

import (
	"github.com/agenthive/agenthive/internal/plan"
	"github.com/agenthive/agenthive/internal/store"
)

// Plan tracker operations.
const (
	OpValidate        = "validate"
	OpUpdateProgress  = "update_progress"
	OpSuggestActions  = "suggest_actions"
	OpEnforceSequence = "enforce_sequence"
)

// PlanHook exposes the plan tracker over the hook contract.
type PlanHook struct {
	tracker *plan.Tracker
}

// NewPlanHook builds the plan-tracker hook.
func NewPlanHook(st *store.Store) *PlanHook {
	return &PlanHook{tracker: plan.NewTracker(st)}
}

func (h *PlanHook) Name() string { return "plan-tracker" }

// DefaultOperation keeps the historical behavior of treating a bare
// request as a validation.
func (h *PlanHook) DefaultOperation() string { return OpValidate }

// Dispatch routes one plan-tracking operation.
func (h *PlanHook) Dispatch(operation string, data map[string]any) (map[string]any, error) {
	switch operation {
	case OpValidate:
		result, err := h.tracker.Validate(mapField(data, "request_data"))
		if err != nil {
			return nil, err
		}
		return toMap(result)

	case OpUpdateProgress:
		result, err := h.tracker.UpdateProgress(mapField(data, "activity_data"))
		if err != nil {
			return nil, err
		}
		return toMap(result)

	case OpSuggestActions:
		result, err := h.tracker.SuggestNextActions(mapField(data, "context"))
		if err != nil {
			return nil, err
		}
		return toMap(result)

	case OpEnforceSequence:
		result, err := h.tracker.EnforceSequence(mapField(data, "request_data"))
		if err != nil {
			return nil, err
		}
		return toMap(result)

	default:
		return nil, ErrUnknownOperation(operation)
	}
}
