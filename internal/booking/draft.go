// Package booking manages the meeting-booking wizard: a per-visitor session
// that walks agent selection, date and time choice, and contact details, then
// submits the meeting to the CRM.
package booking

import "strings"

// Draft accumulates the wizard's answers. Zero values mean "not answered yet".
type Draft struct {
	AgentID       string `json:"agentId,omitempty"`
	AgentName     string `json:"agentName,omitempty"`
	AgentTimezone string `json:"agentTimezone,omitempty"`
	Date          string `json:"date,omitempty"` // YYYY-MM-DD, customer-local
	Time          string `json:"time,omitempty"` // HH:mm, customer-local
	Timezone      string `json:"timezone,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// State is the wizard step implied by the draft's unanswered fields.
type State string

const (
	StateSelectAgent State = "select_agent"
	StateSelectDate  State = "select_date"
	StateSelectTime  State = "select_time"
	StateContact     State = "contact"
	StateReady       State = "ready"
)

// State derives the current step from the first unanswered field, so
// clearing an earlier answer naturally rewinds the wizard.
func (d Draft) State() State {
	switch {
	case d.AgentID == "":
		return StateSelectAgent
	case d.Date == "":
		return StateSelectDate
	case d.Time == "":
		return StateSelectTime
	case !d.contactComplete():
		return StateContact
	default:
		return StateReady
	}
}

// Complete reports whether every field required for submission is present.
func (d Draft) Complete() bool {
	return d.State() == StateReady
}

func (d Draft) contactComplete() bool {
	return strings.TrimSpace(d.CustomerName) != "" &&
		strings.TrimSpace(d.Email) != "" &&
		strings.TrimSpace(d.Phone) != ""
}
