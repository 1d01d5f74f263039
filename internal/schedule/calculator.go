package schedule

import (
	"context"
	"time"

	"github.com/intellagent/scheduling-service/internal/observability/metrics"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// SlotSource fetches the authoritative slot list for an agent and date,
// already filtered against existing meetings and expressed in the customer's
// timezone.
type SlotSource interface {
	AvailableSlots(ctx context.Context, agentID, date, timezone string) ([]string, error)
}

// Calculator resolves bookable time slots, preferring the authoritative
// backend and falling back to local working-hours computation so the user is
// never left without options.
type Calculator struct {
	source  SlotSource
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// NewCalculator builds a calculator. source may be nil, in which case only
// the local computation is used.
func NewCalculator(source SlotSource, m *metrics.SchedulingMetrics, logger *logging.Logger) *Calculator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Calculator{source: source, logger: logger, metrics: m}
}

// Slots returns the sorted slot list for the given agent and customer
// timezone. When date is zero no backend call is made: the local computation
// shows a typical day's pattern before the user commits to a date. Backend
// failures degrade silently to the local fallback.
func (c *Calculator) Slots(ctx context.Context, agentID, agentTZ, customerTZ string, date time.Time) []string {
	if !date.IsZero() && agentID != "" && c.source != nil {
		dateStr := FormatCalendarDate(date)
		slots, err := c.source.AvailableSlots(ctx, agentID, dateStr, customerTZ)
		if err == nil {
			c.metrics.ObserveSlotFetch("backend")
			return SortSlots(slots)
		}
		c.logger.Warn("authoritative slot fetch failed, using local fallback",
			"agent_id", agentID,
			"date", dateStr,
			"error", err,
		)
		c.metrics.ObserveSlotFetch("fallback")
	}

	slots, err := ComputeSlots(agentTZ, customerTZ, date)
	if err != nil {
		c.logger.Error("local slot computation failed", "agent_tz", agentTZ, "customer_tz", customerTZ, "error", err)
		return nil
	}
	return SortSlots(slots)
}
