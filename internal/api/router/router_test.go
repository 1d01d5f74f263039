package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/internal/booking"
	"github.com/intellagent/scheduling-service/internal/chat"
	"github.com/intellagent/scheduling-service/internal/crm"
	"github.com/intellagent/scheduling-service/internal/http/handlers"
	"github.com/intellagent/scheduling-service/internal/schedule"
)

// fakeUpstream records the meetings the stack books against the CRM.
type fakeUpstream struct {
	mu      sync.Mutex
	created []crm.CreateMeetingRequest
}

func (u *fakeUpstream) record(req crm.CreateMeetingRequest) {
	u.mu.Lock()
	u.created = append(u.created, req)
	u.mu.Unlock()
}

func (u *fakeUpstream) Created() []crm.CreateMeetingRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]crm.CreateMeetingRequest(nil), u.created...)
}

// fakeCRMServer stands in for the upstream CRM API.
func fakeCRMServer(t *testing.T, assistantReply string, upstream *fakeUpstream) *httptest.Server {
	t.Helper()
	// method-prefixed ServeMux patterns need go1.22+; dispatch manually so the
	// fake server also works on go1.21 toolchains.
	handle := func(mux *http.ServeMux, method, path string, fn http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			fn(w, r)
		})
	}
	mux := http.NewServeMux()
	handle(mux, http.MethodGet, "/agents/active", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]crm.Agent{
			{ID: "a1", Email: "dana@example.com", Name: "Dana Cole", Timezone: "UTC", IsActive: true},
		})
	})
	handle(mux, http.MethodGet, "/agents/a1/available-slots", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"09:00", "10:00", "11:00"})
	})
	mux.HandleFunc("/meetings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]crm.Meeting{})
		case http.MethodPost:
			var req crm.CreateMeetingRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			upstream.record(req)
			_ = json.NewEncoder(w).Encode(crm.Meeting{
				ID:           "m-1",
				CustomerDate: req.Date,
				CustomerTime: req.Time,
				AgentDate:    req.Date,
				AgentID:      req.AgentID,
			})
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})
	handle(mux, http.MethodPost, "/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	handle(mux, http.MethodPost, "/chat/message", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(crm.ChatResponse{Response: assistantReply, SessionID: "chat-1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testStack struct {
	server   *httptest.Server
	manager  *booking.Manager
	seq      *automation.Sequencer
	upstream *fakeUpstream
}

func newTestStack(t *testing.T, assistantReply string) *testStack {
	t.Helper()
	upstream := &fakeUpstream{}
	crmSrv := fakeCRMServer(t, assistantReply, upstream)
	client := crm.NewClient(crmSrv.URL)

	seq := automation.NewSequencer(nil, automation.WithClearDelay(time.Hour))
	t.Cleanup(seq.Close)

	calc := schedule.NewCalculator(client, nil, nil)
	manager := booking.NewManager(client, calc, seq, "UTC", booking.FillConfig{
		SlotWaitAttempts: 3,
		SlotWaitInterval: time.Millisecond,
		TypingMinDelay:   time.Microsecond,
		TypingMaxDelay:   2 * time.Microsecond,
	}, nil, nil)

	chatSvc := chat.NewService(client, seq, nil, nil)

	handler := New(&Config{
		BookingHandler:    handlers.NewBookingHandler(manager, nil),
		ChatHandler:       chat.NewHandler(chatSvc, seq, nil),
		NewsletterHandler: handlers.NewNewsletterHandler(client, nil),
		AutomationHandler: handlers.NewAutomationHandler(seq, nil),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testStack{server: srv, manager: manager, seq: seq, upstream: upstream}
}

func (ts *testStack) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func nextWorkday() string {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return schedule.FormatCalendarDate(d)
}

func TestHealth(t *testing.T) {
	ts := newTestStack(t, "hello")
	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestBookingWizardEndToEnd(t *testing.T) {
	ts := newTestStack(t, "hello")

	resp, body := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, booking.StateSelectAgent, created.State)

	base := "/api/sessions/" + created.SessionID

	resp, body = ts.do(t, http.MethodPut, base+"/agent", map[string]string{"agent": "Dana"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var snap handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, booking.StateSelectDate, snap.State)
	assert.Equal(t, "a1", snap.Draft.AgentID)

	resp, body = ts.do(t, http.MethodPut, base+"/date", map[string]string{"date": nextWorkday()})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, booking.StateSelectTime, snap.State)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, snap.Slots)

	resp, body = ts.do(t, http.MethodPut, base+"/time", map[string]string{"time": "10:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = ts.do(t, http.MethodPut, base+"/contact", map[string]string{
		"customerName": "Ana Souza",
		"email":        "ana@example.com",
		"phone":        "+5511999990000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, booking.StateReady, snap.State)

	resp, body = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"id":"m-1"`)

	// A successful booking rewinds the wizard to the first step. Decode into a
	// fresh struct: the draft fields are omitempty, and unmarshalling into the
	// reused snap would keep stale values for fields absent from the JSON.
	resp, body = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &after))
	assert.Equal(t, booking.StateSelectAgent, after.State)
	assert.Empty(t, after.Draft.CustomerName)
}

func TestBookingValidationErrors(t *testing.T) {
	ts := newTestStack(t, "hello")

	_, body := ts.do(t, http.MethodPost, "/api/sessions", nil)
	var created handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	base := "/api/sessions/" + created.SessionID

	resp, _ := ts.do(t, http.MethodPut, base+"/agent", map[string]string{"agent": "nobody"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, base+"/date", map[string]string{"date": "2020-01-06"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "fill in all fields")

	resp, _ = ts.do(t, http.MethodGet, "/api/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCalendarEndpoint(t *testing.T) {
	ts := newTestStack(t, "hello")

	_, body := ts.do(t, http.MethodPost, "/api/sessions", nil)
	var created handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := ts.do(t, http.MethodGet, "/api/sessions/"+created.SessionID+"/calendar?month=2026-06", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cal handlers.CalendarResponse
	require.NoError(t, json.Unmarshal(body, &cal))
	assert.Equal(t, "2026-06", cal.Month)
	assert.Equal(t, 30, cal.Days)
	// June 1 2026 is a Monday.
	assert.Equal(t, 0, cal.FirstWeekday)
	require.Len(t, cal.Grid, 30)
	// June 6 2026 is a Saturday.
	assert.False(t, cal.Grid[5].Selectable)
}

func TestChatTurnDrivesAutomation(t *testing.T) {
	date := nextWorkday()
	reply := fmt.Sprintf("Booking it! MEETING_AUTOMATION {\"agentName\": \"Dana\", \"date\": %q, \"time\": \"10:00\", \"timezone\": \"UTC\", \"customerName\": \"Ana Souza\", \"email\": \"ana@example.com\", \"phone\": \"+60123\"}", date)
	ts := newTestStack(t, reply)

	// Mount a wizard session for the automation to drive.
	_, body := ts.do(t, http.MethodPost, "/api/sessions", nil)
	var created handlers.SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := ts.do(t, http.MethodPost, "/api/chat/message", map[string]string{"message": "book me with Dana"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var turn chat.TurnResult
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.True(t, turn.AutomationTriggered)
	assert.Equal(t, "Booking it!", turn.Reply)
	assert.NotContains(t, turn.Reply, "MEETING_AUTOMATION")

	require.Eventually(t, func() bool {
		stage, _ := ts.seq.Stage()
		return stage == automation.StageCompleted
	}, 5*time.Second, 20*time.Millisecond)

	booked := ts.upstream.Created()
	require.Len(t, booked, 1)
	assert.Equal(t, "Ana Souza", booked[0].CustomerName)
	assert.Equal(t, date, booked[0].Date)

	// The driven session booked and is ready for the next visitor request.
	session := ts.manager.Get(created.SessionID)
	require.NotNil(t, session)
	_, state := session.Snapshot()
	assert.Equal(t, booking.StateSelectAgent, state)
}

func TestNewsletterSubscribe(t *testing.T) {
	ts := newTestStack(t, "hello")

	resp, _ := ts.do(t, http.MethodPost, "/api/newsletter", map[string]string{"email": "ana@example.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/newsletter", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutomationStatus(t *testing.T) {
	ts := newTestStack(t, "hello")

	resp, body := ts.do(t, http.MethodGet, "/api/automation/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"stage":"idle"`)

	require.NoError(t, ts.seq.Trigger(automation.Payload{Date: "2026-09-14"}))
	resp, body = ts.do(t, http.MethodGet, "/api/automation/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"stage":"pending"`)

	resp, _ = ts.do(t, http.MethodPost, "/api/automation/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stage, _ := ts.seq.Stage()
	assert.Equal(t, automation.StageIdle, stage)
}

func TestChatRateLimit(t *testing.T) {
	crmSrv := fakeCRMServer(t, "hello", &fakeUpstream{})
	client := crm.NewClient(crmSrv.URL)
	seq := automation.NewSequencer(nil)
	t.Cleanup(seq.Close)
	chatSvc := chat.NewService(client, seq, nil, nil)

	handler := New(&Config{
		ChatHandler:   chat.NewHandler(chatSvc, seq, nil),
		ChatRateLimit: 0.0001,
		ChatRateBurst: 1,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	payload := strings.NewReader(`{"message": "hi"}`)
	resp, err := http.Post(srv.URL+"/api/chat/message", "application/json", payload)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/chat/message", "application/json", strings.NewReader(`{"message": "hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
