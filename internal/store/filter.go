package store

import (
	"fmt"
	"time"

	"github.com/roach88/intellitodo/internal/task"
)

// orderNewestFirst is appended to every list query so results are
// deterministic even when two tasks share a created_at millisecond.
const orderNewestFirst = " ORDER BY created_at DESC, id DESC"

// compileFilter converts a list view into a parameterized WHERE clause.
// Values are always bound, never interpolated. An empty clause means no filter.
func compileFilter(f task.Filter, now time.Time, loc *time.Location) (string, []any, error) {
	switch f {
	case task.FilterAll, "":
		return "", nil, nil
	case task.FilterToday:
		start, end := task.DayBounds(now, loc)
		return " WHERE due_date >= ? AND due_date < ?", []any{toMillis(start), toMillis(end)}, nil
	case task.FilterImportant:
		return " WHERE priority = ?", []any{string(task.PriorityHigh)}, nil
	case task.FilterInbox:
		return " WHERE due_date IS NULL", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter %q", f)
	}
}

// compileQuery builds the full SELECT for a list view.
func compileQuery(f task.Filter, now time.Time, loc *time.Location) (string, []any, error) {
	where, args, err := compileFilter(f, now, loc)
	if err != nil {
		return "", nil, err
	}
	return "SELECT " + taskColumns + " FROM tasks" + where + orderNewestFirst, args, nil
}
