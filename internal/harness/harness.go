package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/ingest"
	"github.com/roach88/intellitodo/internal/llm"
	"github.com/roach88/intellitodo/internal/offline"
	"github.com/roach88/intellitodo/internal/snapshot"
	"github.com/roach88/intellitodo/internal/store"
	"github.com/roach88/intellitodo/internal/task"
	"github.com/roach88/intellitodo/internal/testutil"
)

// placeholderKey is the API key used when a scenario has remote answers but
// no apiKey setting.
const placeholderKey = "scenario-key"

// Harness is the test execution engine.
// It runs scenarios with a frozen clock and sequential submission tokens.
type Harness struct {
	store       *store.Store
	coordinator *ingest.Coordinator
	snapshots   *snapshot.Engine
	clock       *testutil.Clock

	result *Result

	// Deliveries arrive on the store's notifier goroutine; they are parked
	// here and moved into the trace after each step settles.
	mu      sync.Mutex
	pending []TraceEvent
}

// sequentialTokens generates "<prefix>-1", "<prefix>-2", ...
type sequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (g *sequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh database in a temporary directory that is
// removed afterwards. An error means the scenario could not be run; failed
// expectations and assertions are reported in Result.Errors instead.
//
// Execution flow:
// 1. Create fresh database, fake completion endpoint and coordinator
// 2. Store setup tasks and subscribe to the watched view
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions and capture the final tasks
func Run(scenario *Scenario) (*Result, error) {
	start, err := scenario.startTime()
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}

	dir, err := os.MkdirTemp("", "intellitodo-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewClock(start)

	st, err := store.Open(filepath.Join(dir, "tasks.db"),
		store.WithClock(clock.Now),
		store.WithLocation(time.UTC),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	srv, endpoint := startEndpoint(scenario.Remote)
	defer srv.Close()

	settings := config.Settings{BaseURL: srv.URL}
	if len(scenario.Remote) > 0 {
		settings.APIKey = placeholderKey
	}
	for key, value := range scenario.Settings {
		if err := settings.Set(key, value); err != nil {
			return nil, fmt.Errorf("invalid settings: %w", err)
		}
	}

	prefix := scenario.TokenPrefix
	if prefix == "" {
		prefix = "sub"
	}

	h := &Harness{
		store:  st,
		clock:  clock,
		result: NewResult(),
	}
	h.coordinator = ingest.New(st,
		offline.New(offline.WithClock(clock.Now), offline.WithLogger(logger)),
		llm.New(
			llm.WithHTTPClient(srv.Client()),
			llm.WithClock(clock.Now),
			llm.WithLocation(time.UTC),
			llm.WithLogger(logger),
		),
		config.Static(settings),
		ingest.WithLogger(logger),
		ingest.WithTokens(&sequentialTokens{prefix: prefix}),
		ingest.WithNotices(func(n ingest.Notice) {
			h.result.addEvent(TraceEvent{Type: EventNotice, Token: n.Token, Error: n.Err.Error()})
		}),
	)
	h.snapshots = snapshot.New(st, snapshot.WithClock(clock.Now), snapshot.WithLogger(logger))

	ctx := context.Background()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if scenario.Watch != "" {
		f, _ := task.ParseFilter(scenario.Watch)
		sub, err := st.Subscribe(ctx, f, h.deliver)
		if err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", f, err)
		}
		defer sub.Close()
		h.flushDeliveries()
	}

	if err := h.executeFlow(ctx, scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if n := endpoint.Served(); n < len(scenario.Remote) {
		h.result.AddError(fmt.Sprintf("remote: %d of %d canned answers used", n, len(scenario.Remote)))
	}

	// Evaluate assertions against the result
	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	tasks, err := st.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	for _, t := range tasks {
		h.result.Tasks = append(h.result.Tasks, newTaskState(t))
	}

	return h.result, nil
}

// executeSetup stores the setup tasks in order.
func (h *Harness) executeSetup(ctx context.Context, setup []SetupTask) error {
	for i, s := range setup {
		d := task.Draft{
			Title:       s.Title,
			Description: s.Description,
			Priority:    task.Priority(s.Priority),
			Mode:        task.Mode(s.Mode),
		}
		if s.Due != "" {
			due, err := parseDate(s.Due)
			if err != nil {
				return fmt.Errorf("setup %d: %w", i, err)
			}
			d.DueDate = &due
		}
		id, err := h.store.Add(ctx, d)
		if err != nil {
			return fmt.Errorf("setup %d: %w", i, err)
		}
		if s.Completed {
			done := true
			if err := h.store.Update(ctx, id, task.Patch{Completed: &done}); err != nil {
				return fmt.Errorf("setup %d: %w", i, err)
			}
		}
	}
	return h.store.Settle(ctx)
}

// executeFlow runs every step, settling live queries after each one.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep) error {
	for i, step := range flow {
		if err := h.executeStep(ctx, i, step); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		if err := h.store.Settle(ctx); err != nil {
			return fmt.Errorf("flow step %d: settle: %w", i, err)
		}
		h.flushDeliveries()
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step FlowStep) error {
	r := h.result
	switch {
	case step.Submit != nil:
		return h.executeSubmit(ctx, index, step)

	case step.Edit != nil:
		p, err := step.Edit.patch()
		if err != nil {
			return err
		}
		return h.recordWrite(EventEdit, step.Edit.ID, h.store.Update(ctx, step.Edit.ID, p))

	case step.Complete != 0:
		done := true
		return h.recordWrite(EventComplete, step.Complete, h.store.Update(ctx, step.Complete, task.Patch{Completed: &done}))

	case step.Reopen != 0:
		done := false
		return h.recordWrite(EventReopen, step.Reopen, h.store.Update(ctx, step.Reopen, task.Patch{Completed: &done}))

	case step.Delete != 0:
		return h.recordWrite(EventDelete, step.Delete, h.store.Delete(ctx, step.Delete))

	case step.Import != "":
		n, err := h.snapshots.Import(ctx, strings.NewReader(step.Import))
		if err != nil {
			r.addEvent(TraceEvent{Type: EventImport, Error: err.Error()})
			return nil
		}
		r.addEvent(TraceEvent{Type: EventImport, Count: n})
		return nil

	case step.Export:
		var buf bytes.Buffer
		if err := h.snapshots.ExportTo(ctx, &buf); err != nil {
			return err
		}
		s, err := snapshot.Decode(buf.Bytes(), h.clock.Now())
		if err != nil {
			return fmt.Errorf("exported snapshot does not decode: %w", err)
		}
		r.addEvent(TraceEvent{Type: EventExport, Count: len(s)})
		return nil

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		r.addEvent(TraceEvent{Type: EventAdvance, Text: d.String()})
		return nil
	}
	return fmt.Errorf("no action")
}

func (h *Harness) executeSubmit(ctx context.Context, index int, step FlowStep) error {
	r := h.result
	mode := task.ModeOffline
	if step.Mode != "" {
		mode = task.Mode(step.Mode)
	}
	if err := h.coordinator.SetMode(mode); err != nil {
		return err
	}

	text := *step.Submit
	r.addEvent(TraceEvent{Type: EventSubmit, Text: text, Mode: string(mode)})
	res, err := h.coordinator.Submit(ctx, text)
	if err != nil {
		r.addEvent(TraceEvent{Type: EventRejected, Error: err.Error()})
	} else {
		r.addEvent(TraceEvent{Type: EventStored, Token: res.Token, Mode: string(res.Mode), IDs: res.IDs})
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(*step.Expect, res, err) {
			r.AddError(fmt.Sprintf("flow[%d]: %s", index, msg))
		}
	}
	return nil
}

// recordWrite traces a direct store write. A missing task is traced, other
// errors abort the run.
func (h *Harness) recordWrite(kind string, id int64, err error) error {
	if err != nil && !store.IsNotFound(err) && !store.IsValidation(err) {
		return err
	}
	e := TraceEvent{Type: kind, IDs: []int64{id}}
	if err != nil {
		e.Error = err.Error()
	}
	h.result.addEvent(e)
	return nil
}

// deliver is the live-query callback.
func (h *Harness) deliver(tasks []task.Task) {
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}
	h.mu.Lock()
	h.pending = append(h.pending, TraceEvent{Type: EventDelivered, Titles: titles})
	h.mu.Unlock()
}

func (h *Harness) flushDeliveries() {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, e := range pending {
		h.result.addEvent(e)
	}
}

// checkExpect compares a submission outcome with its expect clause.
func checkExpect(want ExpectClause, res ingest.Result, err error) []string {
	var msgs []string
	if want.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %q, submission stored %d task(s)", want.Error, len(res.IDs))}
		}
		if !errorMatches(err, want.Error) {
			msgs = append(msgs, fmt.Sprintf("expected error %q, got %v", want.Error, err))
		}
		return msgs
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}
	if want.Tasks != nil && len(res.IDs) != *want.Tasks {
		msgs = append(msgs, fmt.Sprintf("expected %d task(s), got %d", *want.Tasks, len(res.IDs)))
	}
	if want.Degraded != nil && res.Degraded != *want.Degraded {
		msgs = append(msgs, fmt.Sprintf("expected degraded=%t, got %t", *want.Degraded, res.Degraded))
	}
	return msgs
}

func errorMatches(err error, want string) bool {
	switch want {
	case "empty_input":
		return errors.Is(err, ingest.ErrEmptyInput)
	case "busy":
		return errors.Is(err, ingest.ErrBusy)
	}
	return strings.Contains(err.Error(), want)
}

func (e *EditStep) patch() (task.Patch, error) {
	p := task.Patch{
		Title:        e.Title,
		Description:  e.Description,
		ClearDueDate: e.ClearDue,
	}
	if e.Priority != nil {
		prio := task.Priority(*e.Priority)
		p.Priority = &prio
	}
	if e.Due != nil {
		due, err := parseDate(*e.Due)
		if err != nil {
			return task.Patch{}, err
		}
		p.DueDate = &due
	}
	return p, nil
}

func newTaskState(t task.Task) TaskState {
	s := TaskState{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		Mode:        string(t.Mode),
	}
	if t.DueDate != nil {
		s.Due = t.DueDate.UTC().Format(time.RFC3339)
	}
	return s
}
