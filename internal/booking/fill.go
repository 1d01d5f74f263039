package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// FillConfig tunes the paced form fill.
type FillConfig struct {
	// SlotWaitAttempts and SlotWaitInterval bound how long the fill waits
	// for the requested slot to appear after a date is picked.
	SlotWaitAttempts int
	SlotWaitInterval time.Duration
	// TypingMinDelay and TypingMaxDelay bound the randomized pause between
	// revealed characters in the contact fields.
	TypingMinDelay time.Duration
	TypingMaxDelay time.Duration
	// Sleeper overrides the wall clock in tests.
	Sleeper automation.Sleeper
}

// AutomationHandle builds the target handle a session registers with the
// sequencer. The fill degrades gracefully: fields the payload omits or that
// cannot be applied are skipped with a log line, never a failed run, so a
// partially understood instruction still fills what it can.
func AutomationHandle(s *Session, cfg FillConfig, logger *logging.Logger) *automation.TargetHandle {
	if logger == nil {
		logger = logging.Default()
	}
	revealer := automation.NewRevealer(cfg.TypingMinDelay, cfg.TypingMaxDelay, cfg.Sleeper)

	return &automation.TargetHandle{
		FillForm: func(ctx context.Context, p automation.Payload) error {
			return fillForm(ctx, s, p, cfg, revealer, logger)
		},
		SubmitForm: func(ctx context.Context, p automation.Payload) error {
			_, err := s.Submit(ctx)
			return err
		},
	}
}

func fillForm(ctx context.Context, s *Session, p automation.Payload, cfg FillConfig, revealer *automation.Revealer, logger *logging.Logger) error {
	if ref := strings.TrimSpace(firstNonEmpty(p.AgentID, p.AgentName)); ref != "" {
		if _, err := s.SelectAgent(ctx, ref); err != nil {
			logger.Warn("fill: agent not applied", "agent", ref, "error", err)
		}
	}

	if p.Timezone != "" {
		if err := s.SetTimezone(p.Timezone); err != nil {
			logger.Warn("fill: timezone not applied", "timezone", p.Timezone, "error", err)
		}
	}

	if p.Date != "" {
		if err := s.SelectDate(ctx, p.Date); err != nil {
			logger.Warn("fill: date not applied", "date", p.Date, "error", err)
		}
	}

	if p.Time != "" {
		if err := fillTime(ctx, s, p.Time, cfg, logger); err != nil {
			logger.Warn("fill: time not applied", "time", p.Time, "error", err)
		}
	}

	fields := []struct {
		value string
		apply func(draft *Draft, partial string)
	}{
		{p.CustomerName, func(d *Draft, v string) { d.CustomerName = v }},
		{p.Email, func(d *Draft, v string) { d.Email = v }},
		{p.Phone, func(d *Draft, v string) { d.Phone = v }},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		apply := f.apply
		err := revealer.Reveal(ctx, f.value, func(partial string) {
			s.mu.Lock()
			apply(&s.draft, partial)
			s.mu.Unlock()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fillTime waits for the requested slot to show up after the date pick and
// then selects it. If it never appears, the first available slot is chosen so
// the run can still complete; the visitor sees and can correct the substitute.
func fillTime(ctx context.Context, s *Session, want string, cfg FillConfig, logger *logging.Logger) error {
	var slots []string
	automation.AwaitCondition(ctx, func() bool {
		slots = s.Slots(ctx)
		return slotListed(slots, want)
	}, cfg.SlotWaitAttempts, cfg.SlotWaitInterval, cfg.Sleeper)

	if len(slots) == 0 {
		return fmt.Errorf("no slots available")
	}

	chosen := slots[0]
	for _, slot := range slots {
		if strings.Contains(slot, want) {
			chosen = slot
			break
		}
	}
	if chosen != want {
		logger.Info("fill: requested slot unavailable, substituting", "want", want, "chosen", chosen)
	}
	return s.SelectTime(ctx, chosen)
}

func slotListed(slots []string, want string) bool {
	for _, slot := range slots {
		if strings.Contains(slot, want) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
