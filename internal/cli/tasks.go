package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/intellitodo/internal/ingest"
	"github.com/roach88/intellitodo/internal/task"
)

func modeFor(online bool) task.Mode {
	if online {
		return task.ModeOnline
	}
	return task.ModeOffline
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Online bool
}

// addResult is the JSON payload of add.
type addResult struct {
	Token    string     `json:"token"`
	Mode     string     `json:"mode"`
	Degraded bool       `json:"degraded"`
	Notice   string     `json:"notice,omitempty"`
	Tasks    []taskView `json:"tasks"`
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Capture tasks from free-form text",
		Long: `Capture tasks from free-form text.

Offline (default), the text becomes one task and a date expression such as
"tomorrow" or "next friday" becomes its due date. With --online the text is
sent to the configured language model, which may return several tasks. If
the model cannot be reached the text is saved offline and a notice is shown.

Example:
  intellitodo add buy milk tomorrow
  intellitodo add --online "call mom on sunday and book the dentist"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Online, "online", false, "parse with the language model")

	return cmd
}

func runAdd(opts *AddOptions, text string, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	res, err := a.coordinator(opts.Online).Submit(ctx, text)
	if errors.Is(err, ingest.ErrEmptyInput) {
		return a.badArgs("nothing to add: text is empty")
	}
	if err != nil {
		return a.out.Fail("failed to add task", err)
	}

	tasks, err := a.lookup(ctx, res.IDs)
	if err != nil {
		return a.out.Fail("failed to read added tasks", err)
	}

	loc := opts.location()
	result := addResult{
		Token:    res.Token,
		Mode:     string(res.Mode),
		Degraded: res.Degraded,
		Tasks:    newTaskViews(tasks, loc),
	}
	if res.Notice != nil {
		result.Notice = res.Notice.Error()
	}
	a.out.VerboseLog("submission %s stored %d task(s)", res.Token, len(res.IDs))

	return a.out.Render(result, func(w io.Writer) {
		if len(tasks) == 0 {
			fmt.Fprintln(w, "No tasks found in input.")
			return
		}
		for _, t := range tasks {
			fmt.Fprintf(w, "Added task %d: %s", t.ID, t.Title)
			if t.DueDate != nil {
				fmt.Fprintf(w, " (due %s)", dueText(t, loc))
			}
			fmt.Fprintln(w)
		}
	})
}

func (a *app) lookup(ctx context.Context, ids []int64) ([]task.Task, error) {
	tasks := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := a.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Capture one task per line read from stdin",
		Long: `Read transcripts from stdin, one per line, and capture each as it
arrives. Blank lines are skipped. Stops at end of input or on Ctrl-C.

Example:
  speech-to-text | intellitodo listen --online`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Online, "online", false, "parse with the language model")

	return cmd
}

func runListen(opts *AddOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	before, err := a.store.Count(ctx)
	if err != nil {
		return a.out.Fail("failed to count tasks", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			a.log.Error("read transcripts", "error", err)
		}
	}()

	a.out.VerboseLog("listening on stdin (mode %s)", modeFor(opts.Online))
	if err := a.coordinator(opts.Online).Consume(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
		return a.out.Fail("listen stopped", err)
	}

	after, err := a.store.Count(context.WithoutCancel(ctx))
	if err != nil {
		return a.out.Fail("failed to count tasks", err)
	}
	captured := after - before
	return a.out.Render(map[string]int{"captured": captured}, func(w io.Writer) {
		fmt.Fprintln(w, a.printer.Sprintf("Captured %d task(s).", captured))
	})
}

// ListOptions holds flags for the list and watch commands.
type ListOptions struct {
	*RootOptions
	Filter string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in one of the views",
		Long: `List tasks. Views:
  all        every task
  today      tasks due today
  important  high-priority tasks
  inbox      tasks without a due date

Tasks are listed newest first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "all", "view (all|today|important|inbox)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := task.ParseFilter(opts.Filter)
	if err != nil {
		return a.badArgs("%v", err)
	}

	tasks, err := a.store.Query(cmd.Context(), f)
	if err != nil {
		return a.out.Fail("failed to list tasks", err)
	}

	loc := opts.location()
	return a.out.Render(newTaskViews(tasks, loc), func(w io.Writer) {
		writeTable(w, a.printer, tasks, loc)
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, arg string, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.parseID(arg)
	if err != nil {
		return err
	}
	return a.showTask(cmd.Context(), id)
}

func (a *app) showTask(ctx context.Context, id int64) error {
	t, err := a.store.Get(ctx, id)
	if err != nil {
		return a.out.Fail("failed to read task", err)
	}
	loc := a.opts.location()
	return a.out.Render(newTaskView(t, loc), func(w io.Writer) {
		writeDetail(w, t, loc)
	})
}

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Title       string
	Description string
	Priority    string
	Due         string
	ClearDue    bool
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Long: `Change the title, description, priority or due date of a task.
Only the given flags are changed.

Example:
  intellitodo edit 3 --priority high --due 2024-03-20
  intellitodo edit 3 --clear-due`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "new description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "new priority (low|medium|high)")
	cmd.Flags().StringVar(&opts.Due, "due", "", "new due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&opts.ClearDue, "clear-due", false, "remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	return cmd
}

func runEdit(opts *EditOptions, arg string, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.parseID(arg)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var p task.Patch
	if flags.Changed("title") {
		p.Title = task.Ptr(opts.Title)
	}
	if flags.Changed("description") {
		p.Description = task.Ptr(opts.Description)
	}
	if flags.Changed("priority") {
		prio, err := task.ParsePriority(opts.Priority)
		if err != nil {
			return a.badArgs("%v", err)
		}
		p.Priority = &prio
	}
	if flags.Changed("due") {
		due, err := parseDue(opts.Due, opts.location())
		if err != nil {
			return a.badArgs("%v", err)
		}
		p.DueDate = &due
	}
	p.ClearDueDate = opts.ClearDue
	if p.Empty() {
		return a.badArgs("nothing to change: pass at least one of --title, --description, --priority, --due, --clear-due")
	}

	ctx := cmd.Context()
	if err := a.store.Update(ctx, id, p); err != nil {
		return a.out.Fail("failed to edit task", err)
	}
	return a.showTask(ctx, id)
}

// parseDue accepts a calendar date, taken as local midnight, or an RFC 3339
// timestamp.
func parseDue(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", s)
}

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompletionCommand(rootOpts, "done", "Mark a task completed", true)
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompletionCommand(rootOpts, "undo", "Mark a task not completed", false)
}

func newCompletionCommand(rootOpts *RootOptions, name, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetCompleted(rootOpts, args[0], completed, cmd)
		},
	}
}

func runSetCompleted(opts *RootOptions, arg string, completed bool, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.parseID(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := a.store.Update(ctx, id, task.Patch{Completed: &completed}); err != nil {
		return a.out.Fail("failed to update task", err)
	}
	t, err := a.store.Get(ctx, id)
	if err != nil {
		return a.out.Fail("failed to read task", err)
	}

	return a.out.Render(newTaskView(t, opts.location()), func(w io.Writer) {
		if completed {
			fmt.Fprintf(w, "Completed task %d: %s\n", t.ID, t.Title)
		} else {
			fmt.Fprintf(w, "Reopened task %d: %s\n", t.ID, t.Title)
		}
	})
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <id>",
		Short:         "Delete a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args[0], cmd)
		},
	}
}

func runRemove(opts *RootOptions, arg string, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.parseID(arg)
	if err != nil {
		return err
	}
	if err := a.store.Delete(cmd.Context(), id); err != nil {
		return a.out.Fail("failed to delete task", err)
	}
	return a.out.Render(map[string]int64{"id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "Removed task %d\n", id)
	})
}
