package simulation

import (
	"context"

	"github.com/jeknom/udp-game-example/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a single fast tick takes longer than one tick interval.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCatchupDeferred is emitted when an outer iteration hit the catch-up cap with ticks still owed.
	EventCatchupDeferred logging.EventType = "simulation.catchup_deferred"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
}

// CatchupDeferredPayload reports how far behind wall-clock the scheduler is.
type CatchupDeferredPayload struct {
	Executed  int    `json:"executed"`
	Owed      uint64 `json:"owed"`
	LagMillis int64  `json:"lagMillis"`
}

// TickBudgetOverrun publishes a warning when a fast tick exceeds its budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// CatchupDeferred publishes a warning when owed ticks spill into the next iteration.
func CatchupDeferred(ctx context.Context, pub logging.Publisher, tick uint64, payload CatchupDeferredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCatchupDeferred,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
