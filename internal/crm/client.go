// Package crm provides an HTTP client for the upstream CRM API that owns
// agents, meetings, newsletter subscriptions and the chat assistant.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/intellagent/scheduling-service/pkg/logging"
)

// Agent is a staff user bookable for meetings.
type Agent struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	IsActive bool   `json:"isActive"`
}

// Meeting is a scheduled meeting as the CRM stores it, carrying both the
// customer-local and agent-local renderings of the appointment.
type Meeting struct {
	ID               string `json:"id"`
	CustomerDate     string `json:"customerDate"`
	CustomerTime     string `json:"customerTime"`
	CustomerTimezone string `json:"customerTimezone"`
	AgentDate        string `json:"agentDate,omitempty"`
	AgentTime        string `json:"agentTime,omitempty"`
	AgentTimezone    string `json:"agentTimezone,omitempty"`
	AgentID          string `json:"agentId,omitempty"`
}

// CreateMeetingRequest is the booking payload, expressed in the customer's
// timezone.
type CreateMeetingRequest struct {
	CustomerName string `json:"customerName"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Timezone     string `json:"timezone"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AgentID      string `json:"agentId,omitempty"`
}

// ChatResponse is one assistant turn. Response may embed instruction markers
// that the chat service extracts before display.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

type apiError struct {
	Message string `json:"message"`
}

// Client is an HTTP client for the CRM API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a CRM API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ActiveAgents lists bookable agents.
func (c *Client) ActiveAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.get(ctx, "/agents/active", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// AvailableSlots fetches the authoritative slot list for an agent on a date,
// pre-filtered against existing meetings and already expressed in the given
// customer timezone.
func (c *Client) AvailableSlots(ctx context.Context, agentID, date, timezone string) ([]string, error) {
	path := fmt.Sprintf("/agents/%s/available-slots?date=%s&timezone=%s",
		url.PathEscape(agentID), url.QueryEscape(date), url.QueryEscape(timezone))

	var slots []string
	if err := c.get(ctx, path, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// Meetings lists all meetings; used to derive an agent's booked dates.
func (c *Client) Meetings(ctx context.Context) ([]Meeting, error) {
	var meetings []Meeting
	if err := c.get(ctx, "/meetings", &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

// CreateMeeting books a meeting.
func (c *Client) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*Meeting, error) {
	var meeting Meeting
	if err := c.post(ctx, "/meetings", req, &meeting); err != nil {
		return nil, err
	}
	c.logger.Info("meeting created",
		"agent_id", req.AgentID,
		"date", req.Date,
		"time", req.Time,
		"timezone", req.Timezone,
	)
	return &meeting, nil
}

// SubscribeEmail adds an address to the newsletter list.
func (c *Client) SubscribeEmail(ctx context.Context, email string) error {
	return c.post(ctx, "/emails", map[string]string{"email": email}, nil)
}

// ChatMessage sends one chat turn to the assistant.
func (c *Client) ChatMessage(ctx context.Context, message, sessionID string) (*ChatResponse, error) {
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}

	var resp ChatResponse
	if err := c.post(ctx, "/chat/message", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("crm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("crm: %s %s: %s", req.Method, req.URL.Path, apiErr.Message)
		}
		return fmt.Errorf("crm: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}
