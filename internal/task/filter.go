package task

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects one of the list views.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterToday     Filter = "today"
	FilterImportant Filter = "important"
	FilterInbox     Filter = "inbox"
)

// ValidFilters lists the accepted filter names.
var ValidFilters = []Filter{FilterAll, FilterToday, FilterImportant, FilterInbox}

// ParseFilter converts a view name into a Filter. An empty string means FilterAll.
func ParseFilter(s string) (Filter, error) {
	if strings.TrimSpace(s) == "" {
		return FilterAll, nil
	}
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidFilters {
		if v == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid filter %q: must be one of %v", s, ValidFilters)
}

// DayBounds returns the half-open interval [local midnight, local midnight + 24h)
// containing now, evaluated in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

// Matches evaluates the filter against a single task in memory.
// The store compiles the same predicates to SQL; Matches is used where a
// filter has to be applied to already loaded records.
func (f Filter) Matches(t Task, now time.Time, loc *time.Location) bool {
	switch f {
	case FilterToday:
		if t.DueDate == nil {
			return false
		}
		start, end := DayBounds(now, loc)
		return !t.DueDate.Before(start) && t.DueDate.Before(end)
	case FilterImportant:
		return t.Priority == PriorityHigh
	case FilterInbox:
		return t.DueDate == nil
	default:
		return true
	}
}
