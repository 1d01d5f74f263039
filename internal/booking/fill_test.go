package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/internal/crm"
)

type immediateSleeper struct{}

func (immediateSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func testFillConfig() FillConfig {
	return FillConfig{
		SlotWaitAttempts: 3,
		SlotWaitInterval: time.Millisecond,
		TypingMinDelay:   time.Millisecond,
		TypingMaxDelay:   2 * time.Millisecond,
		Sleeper:          immediateSleeper{},
	}
}

func TestAutomationHandleFillsAndSubmits(t *testing.T) {
	date := nextWorkday(t, 0)
	f := &fakeCRM{
		agents: []crm.Agent{{ID: "a1", Name: "Dana Cole", Timezone: "UTC", IsActive: true}},
		slots:  []string{"09:00", "10:00", "11:00"},
	}
	s := newTestSession(f)
	handle := AutomationHandle(s, testFillConfig(), nil)

	payload := automation.Payload{
		AgentName:    "Dana",
		Date:         date,
		Time:         "10:00",
		Timezone:     "UTC",
		CustomerName: "Ana Souza",
		Email:        "ana@example.com",
		Phone:        "+5511999990000",
	}
	require.NoError(t, handle.FillForm(context.Background(), payload))

	draft, state := s.Snapshot()
	assert.Equal(t, StateReady, state)
	assert.Equal(t, "a1", draft.AgentID)
	assert.Equal(t, date, draft.Date)
	assert.Equal(t, "10:00", draft.Time)
	assert.Equal(t, "Ana Souza", draft.CustomerName)
	assert.Equal(t, "ana@example.com", draft.Email)
	assert.Equal(t, "+5511999990000", draft.Phone)

	require.NoError(t, handle.SubmitForm(context.Background(), payload))
	require.Len(t, f.created, 1)
	assert.Equal(t, "a1", f.created[0].AgentID)
}

func TestFillDegradesGracefully(t *testing.T) {
	f := &fakeCRM{
		agents: []crm.Agent{{ID: "a1", Name: "Dana Cole", Timezone: "UTC"}},
	}
	s := newTestSession(f)
	handle := AutomationHandle(s, testFillConfig(), nil)

	// Unknown agent, malformed date, unknown timezone: each is skipped and
	// the contact details still land.
	payload := automation.Payload{
		AgentName:    "nobody",
		Date:         "tomorrow-ish",
		Timezone:     "Mars/Olympus_Mons",
		CustomerName: "Ana Souza",
		Email:        "ana@example.com",
		Phone:        "+60123",
	}
	require.NoError(t, handle.FillForm(context.Background(), payload))

	draft, _ := s.Snapshot()
	assert.Empty(t, draft.AgentID)
	assert.Empty(t, draft.Date)
	assert.Equal(t, "Ana Souza", draft.CustomerName)
	assert.Equal(t, "ana@example.com", draft.Email)
}

func TestFillSubstitutesFirstSlotWhenRequestedMissing(t *testing.T) {
	date := nextWorkday(t, 0)
	f := &fakeCRM{
		agents: []crm.Agent{{ID: "a1", Name: "Dana Cole", Timezone: "UTC"}},
		slots:  []string{"09:00", "11:00"},
	}
	s := newTestSession(f)
	handle := AutomationHandle(s, testFillConfig(), nil)

	payload := automation.Payload{AgentID: "a1", Date: date, Time: "19:00"}
	require.NoError(t, handle.FillForm(context.Background(), payload))

	draft, _ := s.Snapshot()
	assert.Equal(t, "09:00", draft.Time)
}
