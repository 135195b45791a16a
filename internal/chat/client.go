// Package chat implements the client side of a conversation with the relay endpoint. A Client keeps the
// conversation in memory, submits it on every user action and applies the streamed reply to the
// in-progress assistant message as frames arrive.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/MegaGrindStone/english-buddy/internal/models"
	"github.com/MegaGrindStone/english-buddy/internal/stream"
	"github.com/google/uuid"
)

// ErrBusy is returned by Submit while a previous exchange is still in progress.
var ErrBusy = errors.New("an exchange is already in progress")

// HTTPError is returned by Submit when the relay answers with a non successful status.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Client holds one conversation and talks to the relay endpoint on its behalf. Only one exchange can be
// in progress at a time. All methods are safe for concurrent use.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	suggestions []string
	onUpdate    func()
	onDelta     func(text string)

	logger *slog.Logger

	mu          sync.Mutex
	messages    []models.Message
	loading     bool
	streamError string
}

// Option configures a Client.
type Option func(*Client)

type chatRequest struct {
	Messages []models.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// WithHTTPClient sets the HTTP client used to reach the relay. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger used to report skipped frames.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithSuggestions replaces DefaultSuggestions.
func WithSuggestions(suggestions []string) Option {
	return func(cl *Client) {
		cl.suggestions = suggestions
	}
}

// WithUpdateHandler registers fn to be called, outside of any lock, after every change of the
// conversation, the loading flag or the error state.
func WithUpdateHandler(fn func()) Option {
	return func(cl *Client) {
		cl.onUpdate = fn
	}
}

// WithDeltaHandler registers fn to be called with every text fragment appended to the in-progress
// assistant message, in arrival order.
func WithDeltaHandler(fn func(text string)) Option {
	return func(cl *Client) {
		cl.onDelta = fn
	}
}

// NewClient creates a Client that posts conversations to endpoint, the URL of the relay's /api/chat.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		httpClient:  http.DefaultClient,
		suggestions: DefaultSuggestions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("module", "chat"))
	return c
}

// Messages returns a copy of the conversation, in order.
func (c *Client) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Loading reports whether an exchange is in progress.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// StreamError returns the user visible description of the last failed exchange, or an empty string.
func (c *Client) StreamError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamError
}

// Suggestions returns the canned suggestions offered to the user.
func (c *Client) Suggestions() []string {
	return slices.Clone(c.suggestions)
}

// Suggest submits the i-th suggestion exactly as if the user had typed it.
func (c *Client) Suggest(ctx context.Context, i int) error {
	if i < 0 || i >= len(c.suggestions) {
		return fmt.Errorf("no suggestion at index %d", i)
	}
	return c.Submit(ctx, c.suggestions[i])
}

// Submit appends input to the conversation as a user message, sends the whole conversation to the relay
// and applies the streamed reply to a new assistant message. It returns once the reply stream is
// exhausted. Any failure is both returned and recorded as the visible error state; content received
// before the failure is kept.
func (c *Client) Submit(ctx context.Context, input string) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.streamError = ""
	c.messages = append(c.messages, models.Message{
		ID:      uuid.New().String(),
		Role:    models.RoleUser,
		Content: input,
	})
	payload := chatRequest{Messages: models.StripIDs(c.messages)}
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		c.notify()
	}()

	if err := c.exchange(ctx, payload); err != nil {
		c.mu.Lock()
		c.streamError = fmt.Sprintf("An error occurred: %s. Please try again.", err.Error())
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, payload chatRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	assistantID := uuid.New().String()
	c.mu.Lock()
	c.messages = append(c.messages, models.Message{
		ID:   assistantID,
		Role: models.RoleAssistant,
	})
	c.mu.Unlock()
	c.notify()

	done := false
	for data, err := range stream.Read(resp.Body) {
		if err != nil {
			return err
		}
		// The body is still drained after the sentinel, frames are just no longer applied.
		if done {
			continue
		}
		frame, err := stream.ParseFrame(data)
		if err != nil {
			c.logger.Error("Skipping frame", slog.String("err", err.Error()))
			continue
		}
		if frame.Done {
			done = true
			continue
		}
		if frame.Text != "" {
			c.appendText(assistantID, frame.Text)
		}
	}
	return nil
}

func responseError(resp *http.Response) error {
	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP error! status: %d", resp.StatusCode),
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpErr
	}
	var res errorResponse
	if err := json.Unmarshal(b, &res); err == nil && res.Error != "" {
		httpErr.Message = res.Error
	}
	return httpErr
}

func (c *Client) appendText(id, text string) {
	c.mu.Lock()
	idx := slices.IndexFunc(c.messages, func(m models.Message) bool { return m.ID == id })
	if idx == -1 {
		c.mu.Unlock()
		return
	}
	c.messages[idx].Content += text
	c.mu.Unlock()

	if c.onDelta != nil {
		c.onDelta(text)
	}
	c.notify()
}

func (c *Client) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
