package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/intellitodo/internal/task"
)

// timeLayout is RFC 3339 with milliseconds; times are always written in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Snapshot is the full task set at one point in time.
type Snapshot struct {
	Tasks      []task.Task
	ExportedAt time.Time
}

type wireSnapshot struct {
	Tasks      []wireTask `json:"tasks"`
	ExportedAt string     `json:"exportedAt"`
}

type wireTask struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	Mode        string  `json:"mode"`
}

// readTask is wireTask with every optional field nullable.
type readTask struct {
	ID          *int64  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
	CreatedAt   *string `json:"createdAt"`
	Mode        *string `json:"mode"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Encode renders s as 2-space indented JSON.
func Encode(s Snapshot) ([]byte, error) {
	ws := wireSnapshot{
		Tasks:      make([]wireTask, len(s.Tasks)),
		ExportedAt: formatTime(s.ExportedAt),
	}
	for i, t := range s.Tasks {
		wt := wireTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Completed:   t.Completed,
			Priority:    string(t.Priority),
			CreatedAt:   formatTime(t.CreatedAt),
			Mode:        string(t.Mode),
		}
		if t.DueDate != nil {
			d := formatTime(*t.DueDate)
			wt.DueDate = &d
		}
		ws.Tasks[i] = wt
	}

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses snapshot JSON into full task records ready for BulkPut.
//
// Missing fields take defaults: createdAt is now, priority is medium, mode
// is offline and a missing id means "insert". Any malformed record fails the
// whole document with a *FormatError.
func Decode(data []byte, now time.Time) ([]task.Task, error) {
	if err := checkShape(data); err != nil {
		return nil, err
	}

	var doc struct {
		Tasks []readTask `json:"tasks"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Reason: "decode tasks", Err: err}
	}

	tasks := make([]task.Task, 0, len(doc.Tasks))
	for i, rt := range doc.Tasks {
		t, err := rt.toTask(now)
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("task %d", i), Err: err}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (rt readTask) toTask(now time.Time) (task.Task, error) {
	t := task.Task{
		Title:     strings.TrimSpace(rt.Title),
		Priority:  task.PriorityMedium,
		Mode:      task.ModeOffline,
		CreatedAt: now,
	}
	if t.Title == "" {
		return task.Task{}, errors.New("empty title")
	}
	if rt.ID != nil {
		t.ID = *rt.ID
	}
	if rt.Description != nil {
		t.Description = *rt.Description
	}
	if rt.Completed != nil {
		t.Completed = *rt.Completed
	}
	if rt.Priority != nil {
		t.Priority = task.Priority(*rt.Priority)
	}
	if rt.Mode != nil {
		t.Mode = task.Mode(*rt.Mode)
	}
	if rt.CreatedAt != nil {
		c, err := time.Parse(time.RFC3339Nano, *rt.CreatedAt)
		if err != nil {
			return task.Task{}, fmt.Errorf("createdAt: %w", err)
		}
		t.CreatedAt = c
	}
	if rt.DueDate != nil {
		d, err := time.Parse(time.RFC3339Nano, *rt.DueDate)
		if err != nil {
			return task.Task{}, fmt.Errorf("dueDate: %w", err)
		}
		t.DueDate = &d
	}
	return t, nil
}
