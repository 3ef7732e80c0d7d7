package task

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks a task for the "important" view.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities lists the accepted priority values in ascending order.
var ValidPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority converts user input into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q: must be one of %v", s, ValidPriorities)
	}
	return p, nil
}

// Mode records which ingestion pipeline created a task.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeOffline || m == ModeOnline
}

// Task is a persisted to-do record.
type Task struct {
	ID          int64
	Title       string
	Description string
	Completed   bool
	Priority    Priority
	DueDate     *time.Time
	CreatedAt   time.Time
	Mode        Mode
}

// Equal compares two tasks field by field, using time.Equal for timestamps.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Description != o.Description ||
		t.Completed != o.Completed || t.Priority != o.Priority || t.Mode != o.Mode {
		return false
	}
	if !t.CreatedAt.Equal(o.CreatedAt) {
		return false
	}
	return sameDueDate(t.DueDate, o.DueDate)
}

func sameDueDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// EqualSlices reports whether two ordered task lists hold the same records.
func EqualSlices(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Draft is a candidate task produced by a parser, prior to being committed.
type Draft struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    Priority
	Mode        Mode
}

// Normalize trims the title and fills in default priority and mode.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if d.Mode == "" {
		d.Mode = ModeOffline
	}
	return d
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title        *string
	Description  *string
	Completed    *bool
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

// Parsed is the output of either parser: a title and an optional due date.
type Parsed struct {
	Title   string
	DueDate *time.Time
}

// Ptr returns a pointer to v. Convenient for building Patch values.
func Ptr[T any](v T) *T {
	return &v
}
