package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/message"

	"github.com/roach88/intellitodo/internal/task"
)

const dateLayout = "2006-01-02"

// taskView is the JSON form of a task.
type taskView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	Mode        string `json:"mode"`
}

func newTaskView(t task.Task, loc *time.Location) taskView {
	v := taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt.In(loc).Format(time.RFC3339),
		Mode:        string(t.Mode),
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.In(loc).Format(time.RFC3339)
	}
	return v
}

func newTaskViews(tasks []task.Task, loc *time.Location) []taskView {
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t, loc))
	}
	return views
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func dueText(t task.Task, loc *time.Location) string {
	if t.DueDate == nil {
		return "-"
	}
	return t.DueDate.In(loc).Format(dateLayout)
}

// writeTable prints tasks as aligned columns followed by a count line.
func writeTable(w io.Writer, p *message.Printer, tasks []task.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, checkbox(t.Completed), t.Priority, dueText(t, loc), t.Title)
	}
	tw.Flush()
	fmt.Fprintln(w, p.Sprintf("%d task(s)", len(tasks)))
}

// writeDetail prints every field of one task.
func writeDetail(w io.Writer, t task.Task, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Completed:\t%t\n", t.Completed)
	fmt.Fprintf(tw, "Priority:\t%s\n", t.Priority)
	fmt.Fprintf(tw, "Due:\t%s\n", dueText(t, loc))
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.In(loc).Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "Mode:\t%s\n", t.Mode)
	tw.Flush()
}
