package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/intellagent/scheduling-service/internal/crm"
	"github.com/intellagent/scheduling-service/internal/observability/metrics"
	"github.com/intellagent/scheduling-service/internal/schedule"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// ErrIncompleteDraft is returned when submission is attempted before every
// required field is filled. The message is shown to the visitor verbatim.
var ErrIncompleteDraft = errors.New("Please fill in all fields")

// Directory is the slice of the CRM API the wizard needs.
type Directory interface {
	ActiveAgents(ctx context.Context) ([]crm.Agent, error)
	Meetings(ctx context.Context) ([]crm.Meeting, error)
	CreateMeeting(ctx context.Context, req crm.CreateMeetingRequest) (*crm.Meeting, error)
}

// Session is one visitor's booking wizard. All methods are safe for
// concurrent use; chat-driven automation and the HTTP surface may touch the
// same session at once.
type Session struct {
	id      string
	crm     Directory
	calc    *schedule.Calculator
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	tracer  trace.Tracer
	now     func() time.Time

	mu           sync.Mutex
	draft        Draft
	tzOverridden bool
	agents       []crm.Agent
	agentsFresh  bool
	booked       []string
	bookedFresh  bool
}

// NewSession creates a wizard session with the timezone preselected.
func NewSession(id string, directory Directory, calc *schedule.Calculator, defaultTZ string, m *metrics.SchedulingMetrics, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	return &Session{
		id:      id,
		crm:     directory,
		calc:    calc,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("booking"),
		now:     time.Now,
		draft:   Draft{Timezone: defaultTZ},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current draft and derived wizard state.
func (s *Session) Snapshot() (Draft, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.draft.State()
}

// Agents lists bookable agents, cached for the session's lifetime.
func (s *Session) Agents(ctx context.Context) ([]crm.Agent, error) {
	s.mu.Lock()
	if s.agentsFresh {
		agents := s.agents
		s.mu.Unlock()
		return agents, nil
	}
	s.mu.Unlock()

	agents, err := s.crm.ActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: list agents: %w", err)
	}

	s.mu.Lock()
	s.agents = agents
	s.agentsFresh = true
	s.mu.Unlock()
	return agents, nil
}

// SelectAgent chooses the agent by ID, exact name, or name substring
// (case-insensitive, in that order of preference). Choosing an agent clears
// any date and time picked for a previous one, and the customer timezone
// follows the agent's declared timezone unless the visitor has set one
// explicitly.
func (s *Session) SelectAgent(ctx context.Context, idOrName string) (*crm.Agent, error) {
	agents, err := s.Agents(ctx)
	if err != nil {
		return nil, err
	}

	agent := matchAgent(agents, idOrName)
	if agent == nil {
		return nil, fmt.Errorf("booking: no active agent matches %q", idOrName)
	}

	s.mu.Lock()
	if s.draft.AgentID != agent.ID {
		s.draft.Date = ""
		s.draft.Time = ""
		s.booked = nil
		s.bookedFresh = false
	}
	s.draft.AgentID = agent.ID
	s.draft.AgentName = agent.Name
	s.draft.AgentTimezone = agent.Timezone
	if !s.tzOverridden && agent.Timezone != "" && s.draft.Timezone != agent.Timezone {
		s.draft.Timezone = agent.Timezone
		s.draft.Time = ""
	}
	s.mu.Unlock()
	return agent, nil
}

func matchAgent(agents []crm.Agent, idOrName string) *crm.Agent {
	needle := strings.ToLower(strings.TrimSpace(idOrName))
	if needle == "" {
		return nil
	}
	for i := range agents {
		if agents[i].ID == idOrName {
			return &agents[i]
		}
	}
	for i := range agents {
		if strings.ToLower(agents[i].Name) == needle {
			return &agents[i]
		}
	}
	for i := range agents {
		if strings.Contains(strings.ToLower(agents[i].Name), needle) {
			return &agents[i]
		}
	}
	return nil
}

// SetTimezone changes the customer timezone the slots are rendered in. A
// previously chosen time is cleared because its clock rendering is no longer
// meaningful. An explicit choice sticks; later agent selections no longer
// adjust the timezone.
func (s *Session) SetTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("booking: unknown timezone %q: %w", tz, err)
	}
	s.mu.Lock()
	if s.draft.Timezone != tz {
		s.draft.Time = ""
	}
	s.draft.Timezone = tz
	s.tzOverridden = true
	s.mu.Unlock()
	return nil
}

// SelectDate picks a calendar date (YYYY-MM-DD). Past dates, weekends, and
// the agent's already-booked dates are rejected. Picking a date clears any
// previously chosen time.
func (s *Session) SelectDate(ctx context.Context, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("booking: invalid date %q: %w", date, err)
	}
	if !schedule.IsSelectable(day, s.now().UTC()) {
		return fmt.Errorf("booking: date %s is not selectable", date)
	}

	booked, err := s.BookedDates(ctx)
	if err != nil {
		// Booked dates are advisory; the CRM rejects true conflicts at
		// submission time.
		s.logger.Warn("could not load booked dates", "session_id", s.id, "error", err)
	}
	if schedule.IsBooked(day, booked) {
		return fmt.Errorf("booking: date %s is already booked", date)
	}

	s.mu.Lock()
	if s.draft.Date != date {
		s.draft.Time = ""
	}
	s.draft.Date = date
	s.mu.Unlock()
	return nil
}

// SelectTime picks a slot from the currently available list.
func (s *Session) SelectTime(ctx context.Context, slot string) error {
	if _, err := schedule.ParseClock(slot); err != nil {
		return fmt.Errorf("booking: invalid time %q: %w", slot, err)
	}

	slots := s.Slots(ctx)
	if len(slots) > 0 && !containsSlot(slots, slot) {
		return fmt.Errorf("booking: time %s is not available", slot)
	}

	s.mu.Lock()
	s.draft.Time = slot
	s.mu.Unlock()
	return nil
}

func containsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

// SetContact records the visitor's contact details.
func (s *Session) SetContact(name, email, phone string) error {
	if strings.TrimSpace(email) != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("booking: invalid email %q", email)
	}
	s.mu.Lock()
	s.draft.CustomerName = name
	s.draft.Email = email
	s.draft.Phone = phone
	s.mu.Unlock()
	return nil
}

// ChangeDate rewinds the wizard to the calendar, clearing date and time.
func (s *Session) ChangeDate() {
	s.mu.Lock()
	s.draft.Date = ""
	s.draft.Time = ""
	s.mu.Unlock()
}

// ChangeTime rewinds the wizard to the slot list, keeping the date.
func (s *Session) ChangeTime() {
	s.mu.Lock()
	s.draft.Time = ""
	s.mu.Unlock()
}

// Slots returns the bookable times for the drafted agent and date, rendered
// in the customer timezone.
func (s *Session) Slots(ctx context.Context) []string {
	s.mu.Lock()
	agentID := s.draft.AgentID
	agentTZ := s.draft.AgentTimezone
	customerTZ := s.draft.Timezone
	dateStr := s.draft.Date
	s.mu.Unlock()

	if agentTZ == "" {
		agentTZ = "UTC"
	}

	var date time.Time
	if dateStr != "" {
		if parsed, err := time.Parse("2006-01-02", dateStr); err == nil {
			date = parsed
		}
	}
	return s.calc.Slots(ctx, agentID, agentTZ, customerTZ, date)
}

// BookedDates returns the drafted agent's fully booked dates (agent-local,
// YYYY-MM-DD), cached until the agent changes or a booking succeeds.
func (s *Session) BookedDates(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.bookedFresh {
		booked := s.booked
		s.mu.Unlock()
		return booked, nil
	}
	agentID := s.draft.AgentID
	s.mu.Unlock()

	if agentID == "" {
		return nil, nil
	}

	meetings, err := s.crm.Meetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: list meetings: %w", err)
	}

	booked := bookedDatesFor(meetings, agentID)

	s.mu.Lock()
	s.booked = booked
	s.bookedFresh = true
	s.mu.Unlock()
	return booked, nil
}

func bookedDatesFor(meetings []crm.Meeting, agentID string) []string {
	seen := make(map[string]struct{})
	var dates []string
	for _, m := range meetings {
		if m.AgentID != agentID {
			continue
		}
		date := m.AgentDate
		if date == "" {
			date = m.CustomerDate
		}
		if date == "" {
			continue
		}
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	return dates
}

// Submit books the drafted meeting. On success the meeting's date is added to
// the cached booked list immediately so the calendar reflects it without a
// refetch, and the draft is cleared so the wizard starts over at agent
// selection. On failure the draft is kept so the visitor can retry.
func (s *Session) Submit(ctx context.Context) (*crm.Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "booking.submit",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if !draft.Complete() {
		span.SetStatus(codes.Error, "incomplete draft")
		return nil, ErrIncompleteDraft
	}

	meeting, err := s.crm.CreateMeeting(ctx, crm.CreateMeetingRequest{
		CustomerName: draft.CustomerName,
		Date:         draft.Date,
		Time:         draft.Time,
		Timezone:     draft.Timezone,
		Email:        draft.Email,
		Phone:        draft.Phone,
		AgentID:      draft.AgentID,
	})
	if err != nil {
		s.metrics.ObserveSubmission("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "create meeting")
		return nil, err
	}

	bookedDate := meeting.AgentDate
	if bookedDate == "" {
		bookedDate = draft.Date
	}

	s.mu.Lock()
	if !containsSlot(s.booked, bookedDate) {
		s.booked = append(s.booked, bookedDate)
	}
	s.mu.Unlock()
	s.Reset()

	s.metrics.ObserveSubmission("success")
	s.logger.Info("meeting booked",
		"session_id", s.id,
		"agent_id", draft.AgentID,
		"date", draft.Date,
		"time", draft.Time,
	)
	return meeting, nil
}

// Reset clears the draft back to the initial wizard step, keeping the
// customer timezone. Submit calls it after a successful booking so a stale
// draft cannot be submitted twice.
func (s *Session) Reset() {
	s.mu.Lock()
	tz := s.draft.Timezone
	s.draft = Draft{Timezone: tz}
	s.mu.Unlock()
}
