// Package llm turns free-form text into tasks through an OpenAI-compatible
// chat completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/task"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 60 * time.Second

	temperature = 0.3
)

const systemPrompt = `You extract to-do tasks from user input.
Split the input into one or more tasks. Break complex instructions into subtasks.
Answer with strict JSON and no Markdown.

Answer format:
{"tasks": [{"title": "task title", "dueDate": "2024-03-14T12:00:00Z"}]}`

// Result is the decoded answer: zero or more tasks in the order given.
type Result struct {
	Tasks []task.Parsed
}

// Client calls the completion endpoint. It holds no credentials; those are
// passed to every Parse call.
type Client struct {
	http *http.Client
	now  func() time.Time
	loc  *time.Location
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Default: a client with DefaultTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock sets the source of the current time embedded in the prompt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithLocation sets the zone for due dates given without an offset.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		c.loc = loc
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: DefaultTimeout},
		now:  time.Now,
		loc:  time.Local,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// taskPayload is the JSON the model is asked to produce.
type taskPayload struct {
	Tasks *[]struct {
		Title   string `json:"title"`
		DueDate string `json:"dueDate"`
	} `json:"tasks"`
}

// Parse sends text to the endpoint described by cfg and decodes the tasks.
//
// Errors: *ConfigError when cfg has no API key, *RemoteError for transport
// failures and non-2xx answers, *DecodeError when the answer is not task
// JSON. There are no retries.
func (c *Client) Parse(ctx context.Context, text string, cfg config.LLM) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(text, c.now())},
		},
		Temperature: temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, &RemoteError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &RemoteError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &RemoteError{Err: fmt.Errorf("read response: %w", err)}
	}
	c.log.Debug("remote parser answered", "status", resp.StatusCode, "model", model, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &RemoteError{Status: resp.StatusCode, Body: errorBody(raw)}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Result{}, &DecodeError{Reason: "invalid completion envelope", Err: err}
	}
	if len(cr.Choices) == 0 {
		return Result{}, &DecodeError{Reason: "completion has no choices"}
	}
	return c.decodeTasks(cr.Choices[0].Message.Content)
}

// decodeTasks reads the model's message content.
// Entries with a blank title are skipped; an unreadable dueDate is dropped
// and the entry kept.
func (c *Client) decodeTasks(content string) (Result, error) {
	var p taskPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &p); err != nil {
		return Result{}, &DecodeError{Reason: "content is not JSON", Err: err}
	}
	if p.Tasks == nil {
		return Result{}, &DecodeError{Reason: `content has no "tasks" array`}
	}

	res := Result{Tasks: make([]task.Parsed, 0, len(*p.Tasks))}
	for i, t := range *p.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			c.log.Warn("skipping task without title", "index", i)
			continue
		}
		parsed := task.Parsed{Title: title}
		if due := strings.TrimSpace(t.DueDate); due != "" {
			d, err := parseDueDate(due, c.loc)
			if err != nil {
				c.log.Warn("dropping unreadable due date", "index", i, "dueDate", due, "error", err)
			} else {
				parsed.DueDate = &d
			}
		}
		res.Tasks = append(res.Tasks, parsed)
	}
	return res, nil
}

func userPrompt(text string, now time.Time) string {
	return fmt.Sprintf("The current time is %s.\n\nInput: %q", now.Format(time.RFC3339), text)
}

// stripFences removes a Markdown code fence around the answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// dueDateLayouts are tried in order; the last two have no zone and are read
// in the client's location.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDueDate(s string, loc *time.Location) (time.Time, error) {
	var firstErr error
	for _, layout := range dueDateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// errorBody decodes an error answer as JSON, falling back to its text.
func errorBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(raw))
}
