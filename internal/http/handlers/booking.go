// Package handlers exposes the scheduling service's HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/intellagent/scheduling-service/internal/booking"
	"github.com/intellagent/scheduling-service/internal/schedule"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// BookingHandler drives the booking wizard over HTTP. Each wizard lives in a
// server-side session; the widget only ever posts answers and renders the
// returned snapshot.
type BookingHandler struct {
	manager *booking.Manager
	logger  *logging.Logger
}

// NewBookingHandler creates a booking wizard handler.
func NewBookingHandler(manager *booking.Manager, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{manager: manager, logger: logger}
}

// SessionResponse is the wizard snapshot returned after every mutation.
type SessionResponse struct {
	SessionID   string        `json:"sessionId"`
	State       booking.State `json:"state"`
	Draft       booking.Draft `json:"draft"`
	Slots       []string      `json:"slots,omitempty"`
	BookedDates []string      `json:"bookedDates,omitempty"`
}

// CalendarDay is one cell of the booking calendar grid.
type CalendarDay struct {
	Date       string `json:"date"`
	Selectable bool   `json:"selectable"`
	Booked     bool   `json:"booked"`
}

// CalendarResponse describes a month for the calendar grid.
type CalendarResponse struct {
	Month        string        `json:"month"` // YYYY-MM
	Days         int           `json:"days"`
	FirstWeekday int           `json:"firstWeekday"` // Monday=0
	Grid         []CalendarDay `json:"grid"`
}

// CreateSession starts a new wizard session. The new session becomes the
// automation target for chat-driven bookings.
func (h *BookingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	h.writeSnapshot(w, r, s, http.StatusCreated)
}

// GetSession returns the current wizard snapshot.
func (h *BookingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// CloseSession tears the wizard down and releases its automation slot.
func (h *BookingHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.manager.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// ListAgents returns the bookable agents.
func (h *BookingHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	agents, err := s.Agents(r.Context())
	if err != nil {
		h.logger.Error("list agents failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not load agents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// SelectAgent answers the agent step.
func (h *BookingHandler) SelectAgent(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Agent) == "" {
		writeError(w, http.StatusBadRequest, "agent is required")
		return
	}
	if _, err := s.SelectAgent(r.Context(), req.Agent); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// SetTimezone changes the customer timezone slots are rendered in.
func (h *BookingHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Timezone == "" {
		writeError(w, http.StatusBadRequest, "timezone is required")
		return
	}
	if err := s.SetTimezone(req.Timezone); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// SelectDate answers the calendar step.
func (h *BookingHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if err := s.SelectDate(r.Context(), req.Date); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// SelectTime answers the slot step.
func (h *BookingHandler) SelectTime(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == "" {
		writeError(w, http.StatusBadRequest, "time is required")
		return
	}
	if err := s.SelectTime(r.Context(), req.Time); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// SetContact answers the contact step.
func (h *BookingHandler) SetContact(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		CustomerName string `json:"customerName"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.SetContact(req.CustomerName, req.Email, req.Phone); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// ChangeDate rewinds the wizard to the calendar.
func (h *BookingHandler) ChangeDate(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.ChangeDate()
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// ChangeTime rewinds the wizard to the slot list.
func (h *BookingHandler) ChangeTime(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.ChangeTime()
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// Submit books the drafted meeting.
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	meeting, err := s.Submit(r.Context())
	if err != nil {
		if errors.Is(err, booking.ErrIncompleteDraft) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("submit failed", "session_id", s.ID(), "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"meeting": meeting})
}

// Slots returns the bookable times for the current draft.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	slots := s.Slots(r.Context())
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Calendar returns the grid metadata for a month, with per-day selectability
// and booked flags.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	month := r.URL.Query().Get("month")
	var anchor time.Time
	if month == "" {
		anchor = time.Now().UTC()
	} else {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		anchor = parsed
	}

	booked, err := s.BookedDates(r.Context())
	if err != nil {
		h.logger.Warn("booked dates unavailable for calendar", "session_id", s.ID(), "error", err)
	}

	now := time.Now().UTC()
	days := schedule.DaysInMonth(anchor)
	grid := make([]CalendarDay, 0, days)
	for day := 1; day <= days; day++ {
		date := time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
		grid = append(grid, CalendarDay{
			Date:       schedule.FormatCalendarDate(date),
			Selectable: schedule.IsSelectable(date, now),
			Booked:     schedule.IsBooked(date, booked),
		})
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		Month:        anchor.Format("2006-01"),
		Days:         days,
		FirstWeekday: schedule.FirstWeekdayOfMonth(anchor),
		Grid:         grid,
	})
}

func (h *BookingHandler) session(w http.ResponseWriter, r *http.Request) *booking.Session {
	id := chi.URLParam(r, "sessionID")
	s := h.manager.Get(id)
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return s
}

func (h *BookingHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, s *booking.Session, status int) {
	draft, state := s.Snapshot()
	resp := SessionResponse{
		SessionID: s.ID(),
		State:     state,
		Draft:     draft,
	}
	if state == booking.StateSelectTime || state == booking.StateContact || state == booking.StateReady {
		resp.Slots = s.Slots(r.Context())
	}
	if booked, err := s.BookedDates(r.Context()); err == nil {
		resp.BookedDates = booked
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
