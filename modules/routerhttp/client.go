// Package routerhttp talks to the router service that owns the delivery side
// of a conversation: it sends messages, stores the session route and performs
// the end-of-chat and transfer actions.
package routerhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/message"
	"resty.dev/v3"
)

// Origin identifies this engine in end-of-chat requests.
const Origin = "chatgraph"

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds the connection settings of the router service.
type Config struct {
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
}

// ChatID identifies a conversation on the router side.
type ChatID struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}

// Menu is the menu a session currently belongs to.
type Menu struct {
	Name string `json:"name,omitempty"`
}

// UserState is the session record the router expects alongside a message.
type UserState struct {
	ChatID      ChatID `json:"chat_id"`
	Platform    string `json:"platform"`
	SessionID   string `json:"session_id,omitempty"`
	Menu        *Menu  `json:"menu,omitempty"`
	Route       string `json:"route,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// EndAction is a closing classification known to the router.
type EndAction struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DepartmentID int    `json:"department_id"`
	Observation  string `json:"observation"`
	LastUpdate   string `json:"last_update"`
}

// envelope is the body of every router response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is returned when the router answers with a failed status.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("router %s failed with HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("router %s failed with HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Client is a router service client. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New creates a client for cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("router base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.User != "" && cfg.Password != "" {
		c.SetBasicAuth(cfg.User, cfg.Password)
	}
	return &Client{http: c}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// SetRoute stores the session route.
func (c *Client) SetRoute(ctx context.Context, chat ChatID, route string) error {
	_, err := c.post(ctx, "/session/route/", map[string]any{
		"chat_id": chat,
		"route":   route,
	})
	return err
}

// SendMessage delivers msg to the user described by state.
func (c *Client) SendMessage(ctx context.Context, msg *message.Message, state UserState) error {
	_, err := c.post(ctx, "/messages/send/", map[string]any{
		"message":    msg,
		"user_state": state,
	})
	return err
}

// EndChat closes the conversation with the given end action.
func (c *Client) EndChat(ctx context.Context, chat ChatID, action EndAction) error {
	_, err := c.post(ctx, "/session/end/", map[string]any{
		"chat_id":    chat,
		"end_action": action,
		"origin":     Origin,
	})
	return err
}

// GetEndAction looks up an end action by id or by name.
func (c *Client) GetEndAction(ctx context.Context, id, name string) (*EndAction, error) {
	env, err := c.do(ctx, resty.MethodGet, "/end_actions/", nil, map[string]string{"id": id, "name": name})
	if err != nil {
		return nil, err
	}
	var action EndAction
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &action); err != nil {
			return nil, fmt.Errorf("decoding end action: %w", err)
		}
	}
	if action.ID == "" && action.Name == "" {
		return nil, fmt.Errorf("end action %q not found", firstNonEmpty(id, name))
	}
	return &action, nil
}

// TransferToHuman hands the conversation to a human attendant queue.
func (c *Client) TransferToHuman(ctx context.Context, chat ChatID, campaignID, campaignName, observation string) error {
	_, err := c.post(ctx, "/session/transfer/", map[string]any{
		"chat_id":       chat,
		"campaign_id":   campaignID,
		"campaign_name": campaignName,
		"observation":   observation,
	})
	return err
}

// TransferToMenu moves the conversation to another menu of the flow.
func (c *Client) TransferToMenu(ctx context.Context, chat ChatID, menu, userMessage string) error {
	_, err := c.post(ctx, "/session/transfer_menu/", map[string]any{
		"chat_id":      chat,
		"menu":         menu,
		"user_message": userMessage,
	})
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (*envelope, error) {
	return c.do(ctx, resty.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, query map[string]string) (*envelope, error) {
	logger := ctxlog.FromContext(ctx).With("endpoint", endpoint, "method", method)
	logger.Debug("Calling router.")

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("router %s: %w", endpoint, err)
	}
	var env envelope
	if raw := resp.String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &env); err != nil && !resp.IsError() {
			return nil, fmt.Errorf("router %s: decoding response: %w", endpoint, err)
		}
	}
	if resp.IsError() || !env.Status {
		logger.Warn("Router call failed.", "status_code", resp.StatusCode(), "message", env.Message)
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Message: env.Message}
	}
	logger.Debug("Router call finished.", "status_code", resp.StatusCode())
	return &env, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
