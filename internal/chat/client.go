// Package chat answers inventory questions through an OpenAI-compatible
// chat completions API, keeping per-user conversation sessions in memory.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("chat assistant is not configured")
	// ErrRateLimited is returned when the upstream API refuses for quota or rate reasons.
	ErrRateLimited = errors.New("chat assistant temporarily unavailable")
	// ErrSessionNotFound is returned for unknown sessions and sessions owned by someone else.
	ErrSessionNotFound = errors.New("chat session not found")
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-3.5-turbo"
	defaultMaxHistory = 20
	maxTokens         = 500
	temperature       = 0.7
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxHistory int
	HTTPClient *http.Client
}

// Message is one turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation owned by one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client talks to the completions API and holds sessions.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxHistory int
	http       *http.Client

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxHistory: cfg.MaxHistory,
		http:       cfg.HTTPClient,
		sessions:   make(map[string]*Session),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxHistory <= 0 {
		c.maxHistory = defaultMaxHistory
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Chat sends message in the given session on behalf of userID and returns
// the assistant's reply and the session id. An empty sessionID starts a new
// session. The system prompt carries the supplied inventory snapshot.
func (c *Client) Chat(ctx context.Context, userID int64, sessionID, message string, items []ItemContext) (*Message, string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, "", errors.New("message is required")
	}
	if !c.Configured() {
		return nil, "", ErrNotConfigured
	}

	prompt, err := SystemPrompt(items, IsIndonesian(message))
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	sess, err := c.session(userID, sessionID)
	if err != nil {
		c.mu.Unlock()
		return nil, "", err
	}
	history := make([]apiMessage, 0, len(sess.Messages)+2)
	history = append(history, apiMessage{Role: "system", Content: prompt})
	for _, m := range sess.Messages {
		history = append(history, apiMessage{Role: m.Role, Content: m.Content})
	}
	history = append(history, apiMessage{Role: "user", Content: message})
	id := sess.ID
	c.mu.Unlock()

	reply, err := c.callAPI(ctx, history)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	userMsg := Message{ID: newMessageID(), Role: "user", Content: message, Timestamp: now}
	answer := Message{ID: newMessageID(), Role: "assistant", Content: reply, Timestamp: now}

	c.mu.Lock()
	// The session may have been deleted while the call was in flight.
	if sess, ok := c.sessions[id]; ok {
		sess.Messages = append(sess.Messages, userMsg, answer)
		if len(sess.Messages) > c.maxHistory {
			sess.Messages = sess.Messages[len(sess.Messages)-c.maxHistory:]
		}
		sess.UpdatedAt = now
	}
	c.mu.Unlock()

	return &answer, id, nil
}

// session returns the caller's session, creating it if needed. c.mu must be held.
func (c *Client) session(userID int64, id string) (*Session, error) {
	if id != "" {
		if sess, ok := c.sessions[id]; ok {
			if sess.UserID != userID {
				return nil, ErrSessionNotFound
			}
			return sess, nil
		}
	} else {
		id = "session_" + uuid.NewString()
	}
	now := time.Now().UTC()
	sess := &Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
	c.sessions[id] = sess
	return sess, nil
}

// NewSession starts an empty session for userID.
func (c *Client) NewSession(userID int64) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, _ := c.session(userID, "")
	cp := *sess
	cp.Messages = []Message{}
	return &cp
}

// Sessions lists the user's sessions, most recently used first. Messages
// are omitted.
func (c *Client) Sessions(userID int64) []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []Session{}
	for _, s := range c.sessions {
		if s.UserID == userID {
			out = append(out, Session{ID: s.ID, UserID: s.UserID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt})
		}
	}
	slices.SortFunc(out, func(a, b Session) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

// Session returns a copy of one of the user's sessions.
func (c *Client) Session(userID int64, id string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	cp := *s
	cp.Messages = append([]Message{}, s.Messages...)
	return &cp, nil
}

// DeleteSession removes one of the user's sessions.
func (c *Client) DeleteSession(userID int64, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[id]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	delete(c.sessions, id)
	return nil
}

func newMessageID() string {
	return "msg_" + uuid.NewString()
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) callAPI(ctx context.Context, messages []apiMessage) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completions API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}

	var result completionResponse
	if err := json.Unmarshal(data, &result); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("decoding completion response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || (result.Error != nil && result.Error.Code == "insufficient_quota") {
		return "", ErrRateLimited
	}
	if result.Error != nil {
		return "", fmt.Errorf("completions API error: %s", result.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("completions API returned status %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("completions API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
