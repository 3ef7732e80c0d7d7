package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/intellitodo/internal/task"
)

const monthLayout = "2006-01"

// CalendarOptions holds flags for the calendar command.
type CalendarOptions struct {
	*RootOptions
	Month string
}

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalendarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show tasks due in a month, grouped by day",
		Long: `Show the tasks due in a calendar month, grouped by day. Defaults to the
current month.

Example:
  intellitodo calendar --month 2024-03`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalendar(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Month, "month", "", "month to show (YYYY-MM)")

	return cmd
}

// calendarDay is one day with due tasks.
type calendarDay struct {
	Date  string     `json:"date"`
	Tasks []taskView `json:"tasks"`
}

// calendarResult is the JSON payload of calendar.
type calendarResult struct {
	Month string        `json:"month"`
	Days  []calendarDay `json:"days"`
}

func runCalendar(opts *CalendarOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := opts.location()
	month := opts.now().In(loc)
	if opts.Month != "" {
		month, err = time.ParseInLocation(monthLayout, opts.Month, loc)
		if err != nil {
			return a.badArgs("invalid month %q: use YYYY-MM", opts.Month)
		}
	}

	tasks, err := a.store.DueInMonth(cmd.Context(), month.Year(), month.Month())
	if err != nil {
		return a.out.Fail("failed to read calendar", err)
	}
	days := groupByDay(tasks, loc)

	result := calendarResult{Month: month.Format(monthLayout), Days: make([]calendarDay, 0, len(days))}
	for _, d := range days {
		result.Days = append(result.Days, calendarDay{
			Date:  d.date,
			Tasks: newTaskViews(d.tasks, loc),
		})
	}

	return a.out.Render(result, func(w io.Writer) {
		fmt.Fprintln(w, month.Format("January 2006"))
		if len(days) == 0 {
			fmt.Fprintln(w, "No tasks due.")
			return
		}
		for _, d := range days {
			fmt.Fprintf(w, "\n%s %s\n", d.date, d.tasks[0].DueDate.In(loc).Format("Mon"))
			for _, t := range d.tasks {
				fmt.Fprintf(w, "  %s %d %s\n", checkbox(t.Completed), t.ID, t.Title)
			}
		}
	})
}

type dayGroup struct {
	date  string
	tasks []task.Task
}

// groupByDay splits tasks ordered by due date into runs sharing a local date.
func groupByDay(tasks []task.Task, loc *time.Location) []dayGroup {
	var days []dayGroup
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		date := t.DueDate.In(loc).Format(dateLayout)
		if n := len(days); n > 0 && days[n-1].date == date {
			days[n-1].tasks = append(days[n-1].tasks, t)
			continue
		}
		days = append(days, dayGroup{date: date, tasks: []task.Task{t}})
	}
	return days
}
