// Package supportclient is a Go client for the TrackImpact support API.
package supportclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	MinDetailsLength = 10
	MaxDetailsLength = 1000
)

// Identity is forwarded as gateway headers when the API trusts an upstream proxy.
type Identity struct {
	UserID       string
	Email        string
	Role         string
	EnterpriseID string
}

// Message mirrors one conversation message.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FromKnowledgeBase reports whether the reply was served without the completion service.
func (m Message) FromKnowledgeBase() bool {
	v, _ := m.Metadata["fromKnowledgeBase"].(bool)
	return v
}

type Reply struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
	CanEscalate    bool    `json:"canEscalate"`
}

type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
	LastActivity time.Time `json:"lastActivity"`
	Escalated    bool      `json:"escalated"`
	Resolved     bool      `json:"resolved"`
	CanEscalate  bool      `json:"canEscalate"`
}

type List struct {
	Data  []Summary `json:"data"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int64     `json:"total"`
}

type Metadata struct {
	Escalated    bool   `json:"escalated"`
	EscalationID string `json:"escalationId,omitempty"`
	Resolved     bool   `json:"resolved"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Role         string    `json:"role"`
	EnterpriseID string    `json:"enterpriseId,omitempty"`
	Messages     []Message `json:"messages"`
	MessageCount int       `json:"messageCount"`
	Metadata     Metadata  `json:"metadata"`
	CanEscalate  bool      `json:"canEscalate"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Escalation struct {
	TicketID string `json:"ticketId"`
	Status   string `json:"status"`
}

type Option func(*Client)

// WithToken authenticates with a bearer JWT.
func WithToken(token string) Option {
	return func(c *Client) {
		c.http.SetAuthToken(token)
	}
}

// WithIdentity sends the gateway identity headers on every request.
func WithIdentity(id Identity) Option {
	return func(c *Client) {
		headers := map[string]string{
			"X-User-ID":       id.UserID,
			"X-User-Email":    id.Email,
			"X-User-Role":     id.Role,
			"X-Enterprise-ID": id.EnterpriseID,
		}
		for k, v := range headers {
			if v != "" {
				c.http.SetHeader(k, v)
			}
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		next := resty.NewWithClient(hc).SetBaseURL(c.http.BaseURL)
		next.Header = c.http.Header.Clone()
		next.Token = c.http.Token
		c.http = next
	}
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(60 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts one message. An empty conversationID starts a new conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, message string) (*Reply, error) {
	path := "/v1/conversations/messages"
	if conversationID != "" {
		path = "/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	}
	var reply Reply
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"message": message}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Send runs one chat turn against the transcript: the user message is shown tentatively,
// committed with the reply on success and rolled back on any error.
func (c *Client) Send(ctx context.Context, t *Transcript, message string) (*Reply, error) {
	pending, err := t.TentativeAppend(message)
	if err != nil {
		return nil, err
	}

	reply, err := c.SendMessage(ctx, t.ConversationID(), message)
	if err != nil {
		pending.Rollback()
		return nil, err
	}
	if err := pending.Commit(reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) List(ctx context.Context, page, limit int) (*List, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list List
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/conversations/"+url.PathEscape(id), nil, nil)
}

// Escalate checks the details length locally before asking for a support ticket.
func (c *Client) Escalate(ctx context.Context, id, details string) (*Escalation, error) {
	details = strings.TrimSpace(details)
	if n := utf8.RuneCountInString(details); n < MinDetailsLength || n > MaxDetailsLength {
		return nil, &APIError{
			Type:    "validation_error",
			Field:   "details",
			Message: fmt.Sprintf("Veuillez décrire votre problème en %d à %d caractères.", MinDetailsLength, MaxDetailsLength),
		}
	}

	var out Escalation
	path := "/v1/conversations/" + url.PathEscape(id) + "/escalate"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"details": details}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve marks a conversation resolved. Only administrators may call it.
func (c *Client) Resolve(ctx context.Context, id string, resolved bool) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPatch, "/v1/conversations/"+url.PathEscape(id), map[string]bool{"resolved": resolved}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var apiErr APIError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter, _ = strconv.Atoi(resp.Header().Get("Retry-After"))
		}
		return &apiErr
	}
	return nil
}
