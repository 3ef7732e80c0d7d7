package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/intellitodo/internal/task"
)

// followInterval is how often watch checks for commits by other processes.
const followInterval = 500 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a view every time it changes",
		Long: `Print the current contents of a view, then print it again every time it
changes, including changes made by other intellitodo processes on the same
database. Runs until Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "all", "view (all|today|important|inbox)")

	return cmd
}

func runWatch(opts *ListOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := task.ParseFilter(opts.Filter)
	if err != nil {
		return a.badArgs("%v", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	loc := opts.location()
	var mu sync.Mutex
	render := func(tasks []task.Task) {
		mu.Lock()
		defer mu.Unlock()
		_ = a.out.Render(newTaskViews(tasks, loc), func(w io.Writer) {
			fmt.Fprintf(w, "== %s @ %s ==\n", f, opts.now().In(loc).Format("15:04:05"))
			writeTable(w, a.printer, tasks, loc)
		})
	}

	sub, err := a.store.Subscribe(ctx, f, render)
	if err != nil {
		return a.out.Fail("failed to watch tasks", err)
	}
	defer sub.Close()

	err = a.store.Follow(ctx, followInterval)
	if err != nil && ctx.Err() == nil {
		return a.out.Fail("watch stopped", err)
	}
	return nil
}

// FocusOptions holds flags for the focus command.
type FocusOptions struct {
	*RootOptions
	Duration time.Duration
}

// NewFocusCommand creates the focus command.
func NewFocusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FocusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "focus <id>",
		Short: "Work on a task for a fixed time, then complete it",
		Long: `Start a focus timer for a task. When the timer runs out the task is
marked completed. Ctrl-C stops the timer and leaves the task open.

Example:
  intellitodo focus 3 --duration 45m`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFocus(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 25*time.Minute, "length of the focus session")

	return cmd
}

// focusResult is the JSON payload of focus.
type focusResult struct {
	Task      taskView `json:"task"`
	Completed bool     `json:"completed"`
	Elapsed   string   `json:"elapsed"`
}

func runFocus(opts *FocusOptions, arg string, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.parseID(arg)
	if err != nil {
		return err
	}
	if opts.Duration <= 0 {
		return a.badArgs("duration must be positive, got %s", opts.Duration)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	t, err := a.store.Get(ctx, id)
	if err != nil {
		return a.out.Fail("failed to read task", err)
	}
	if opts.Format == "text" {
		fmt.Fprintf(a.out.Writer, "Focusing on task %d: %s for %s\n", t.ID, t.Title, opts.Duration)
	}

	start := time.Now()
	finished := a.countdown(ctx, opts.Duration)
	elapsed := time.Since(start).Round(time.Second)

	if !finished {
		t, err = a.store.Get(context.WithoutCancel(ctx), id)
		if err != nil {
			return a.out.Fail("failed to read task", err)
		}
		return a.out.Render(focusResult{Task: newTaskView(t, opts.location()), Elapsed: elapsed.String()}, func(w io.Writer) {
			fmt.Fprintf(w, "Focus stopped after %s; task %d left open\n", elapsed, t.ID)
		})
	}

	// The timer ran out; finish even if the signal context is cancelled now.
	ctx = context.WithoutCancel(ctx)
	done := true
	if err := a.store.Update(ctx, id, task.Patch{Completed: &done}); err != nil {
		return a.out.Fail("failed to complete task", err)
	}
	t, err = a.store.Get(ctx, id)
	if err != nil {
		return a.out.Fail("failed to read task", err)
	}
	return a.out.Render(focusResult{Task: newTaskView(t, opts.location()), Completed: true, Elapsed: elapsed.String()}, func(w io.Writer) {
		fmt.Fprintf(w, "Focus complete. Completed task %d: %s\n", t.ID, t.Title)
	})
}

// countdown waits for d, logging the remaining time once a minute. Returns
// false if ctx is done first.
func (a *app) countdown(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(min(time.Minute, d))
	defer ticker.Stop()

	deadline := time.Now().Add(d)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			a.out.VerboseLog("%s remaining", time.Until(deadline).Round(time.Second))
		}
	}
}
