// Package ingest turns submitted text into stored tasks through either the
// offline parser or the remote parser.
//
// A Coordinator is a two-state machine, Idle and Parsing, that admits one
// submission at a time. In online mode any remote failure degrades to a
// single offline task holding the raw text, so a submission with text always
// produces at least one task.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/llm"
	"github.com/roach88/intellitodo/internal/task"
)

// TaskStore is the part of the store a Coordinator writes through.
type TaskStore interface {
	Add(ctx context.Context, d task.Draft) (int64, error)
	BulkAdd(ctx context.Context, drafts []task.Draft) ([]int64, error)
}

// OfflineParser extracts a due date locally.
type OfflineParser interface {
	Parse(text string) task.Parsed
}

// RemoteParser splits text into tasks through a remote service.
type RemoteParser interface {
	Parse(ctx context.Context, text string, cfg config.LLM) (llm.Result, error)
}

// State is the coordinator's lifecycle state.
type State int

const (
	Idle State = iota
	Parsing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Parsing:
		return "parsing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Notice tells the user that an online submission fell back to offline.
type Notice struct {
	Token string
	Err   error
}

// Result describes one accepted submission.
type Result struct {
	Token string
	IDs   []int64

	// Mode is the mode the created tasks carry. It differs from the
	// coordinator's mode when Degraded is set.
	Mode task.Mode

	Degraded bool
	Notice   error
}

// Coordinator admits submissions and writes the parsed tasks to the store.
type Coordinator struct {
	store    TaskStore
	offline  OfflineParser
	remote   RemoteParser
	settings config.Provider

	log     *slog.Logger
	tokens  TokenGenerator
	notices func(Notice)

	mu    sync.Mutex
	mode  task.Mode
	state State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithTokens sets the submission token generator. Default: UUIDv7Generator.
func WithTokens(g TokenGenerator) Option {
	return func(c *Coordinator) {
		c.tokens = g
	}
}

// WithNotices sets the function that shows fallback notices to the user.
// It is called synchronously from Submit, before the fallback task is written.
func WithNotices(fn func(Notice)) Option {
	return func(c *Coordinator) {
		c.notices = fn
	}
}

// WithMode sets the initial mode. Default: task.ModeOffline.
func WithMode(m task.Mode) Option {
	return func(c *Coordinator) {
		c.mode = m
	}
}

// New creates an idle Coordinator.
func New(store TaskStore, offline OfflineParser, remote RemoteParser, settings config.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		offline:  offline,
		remote:   remote,
		settings: settings,
		log:      slog.Default(),
		tokens:   UUIDv7Generator{},
		notices:  func(Notice) {},
		mode:     task.ModeOffline,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the mode the next submission will use.
func (c *Coordinator) Mode() task.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode changes the mode for later submissions. A submission already
// parsing keeps the mode it started with.
func (c *Coordinator) SetMode(m task.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("set mode: unknown mode %q", m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	return nil
}

// ToggleMode flips between offline and online and returns the new mode.
func (c *Coordinator) ToggleMode() task.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == task.ModeOnline {
		c.mode = task.ModeOffline
	} else {
		c.mode = task.ModeOnline
	}
	return c.mode
}

// State returns Parsing while a submission is in flight, else Idle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit parses text in the current mode and stores the resulting tasks.
//
// Returns ErrEmptyInput for blank text and ErrBusy while another submission
// is parsing; neither changes state. A remote failure is not an error: the
// Result is marked Degraded and carries the failure as Notice. Store errors
// are returned.
func (c *Coordinator) Submit(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.state == Parsing {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	c.state = Parsing
	mode := c.mode
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
	}()

	token := c.tokens.Generate()
	log := c.log.With("token", token, "mode", mode)
	log.Debug("submission started")

	if mode == task.ModeOnline {
		return c.submitOnline(ctx, log, token, text)
	}
	return c.submitOffline(ctx, log, token, text)
}

func (c *Coordinator) submitOffline(ctx context.Context, log *slog.Logger, token, text string) (Result, error) {
	parsed := c.offline.Parse(text)
	id, err := c.store.Add(ctx, task.Draft{
		Title:    parsed.Title,
		DueDate:  parsed.DueDate,
		Priority: task.PriorityMedium,
		Mode:     task.ModeOffline,
	})
	if err != nil {
		return Result{}, fmt.Errorf("submit %s: %w", token, err)
	}
	log.Info("task captured", "id", id, "has_due_date", parsed.DueDate != nil)
	return Result{Token: token, IDs: []int64{id}, Mode: task.ModeOffline}, nil
}

func (c *Coordinator) submitOnline(ctx context.Context, log *slog.Logger, token, text string) (Result, error) {
	res, err := c.remote.Parse(ctx, text, c.settings.Settings().LLM())
	if err != nil {
		return c.degrade(ctx, log, token, text, err)
	}

	drafts := make([]task.Draft, len(res.Tasks))
	for i, p := range res.Tasks {
		drafts[i] = task.Draft{
			Title:    p.Title,
			DueDate:  p.DueDate,
			Priority: task.PriorityMedium,
			Mode:     task.ModeOnline,
		}
	}
	ids, err := c.store.BulkAdd(ctx, drafts)
	if err != nil {
		return Result{}, fmt.Errorf("submit %s: %w", token, err)
	}
	log.Info("tasks captured", "count", len(ids))
	return Result{Token: token, IDs: ids, Mode: task.ModeOnline}, nil
}

// degrade stores the raw text as one offline task without a due date.
func (c *Coordinator) degrade(ctx context.Context, log *slog.Logger, token, text string, cause error) (Result, error) {
	log.Warn("remote parser failed, falling back to offline", "error", cause)
	c.notices(Notice{Token: token, Err: cause})

	id, err := c.store.Add(ctx, task.Draft{
		Title:    text,
		Priority: task.PriorityMedium,
		Mode:     task.ModeOffline,
	})
	if err != nil {
		return Result{}, fmt.Errorf("submit %s: fallback: %w", token, err)
	}
	return Result{
		Token:    token,
		IDs:      []int64{id},
		Mode:     task.ModeOffline,
		Degraded: true,
		Notice:   cause,
	}, nil
}

// Consume submits every transcript from the channel in arrival order until the
// channel closes or ctx is done. Blank transcripts are skipped and a failed
// submission is logged without stopping the stream.
//
// Returns nil when the channel closes, ctx.Err() on cancellation.
func (c *Coordinator) Consume(ctx context.Context, transcripts <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-transcripts:
			if !ok {
				return nil
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			if _, err := c.Submit(ctx, text); err != nil {
				c.log.Error("transcript not captured", "error", err)
			}
		}
	}
}
