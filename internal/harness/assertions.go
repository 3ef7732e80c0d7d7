package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/intellitodo/internal/store"
	"github.com/roach88/intellitodo/internal/task"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

// describeEvent renders one trace line for failure output.
func describeEvent(e TraceEvent) string {
	parts := []string{e.Type}
	if e.Token != "" {
		parts = append(parts, "token="+e.Token)
	}
	if e.Text != "" {
		parts = append(parts, strconv.Quote(e.Text))
	}
	if len(e.IDs) > 0 {
		parts = append(parts, fmt.Sprintf("ids=%v", e.IDs))
	}
	if e.Titles != nil {
		parts = append(parts, fmt.Sprintf("titles=%q", e.Titles))
	}
	if e.Error != "" {
		parts = append(parts, "error="+strconv.Quote(e.Error))
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that the trace holds an event of the given type,
// for the given submission token when one is set.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == assertion.Event && (assertion.Token == "" || event.Token == assertion.Token) {
			return nil
		}
	}

	expected := assertion.Event
	if assertion.Token != "" {
		expected += " for token " + assertion.Token
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the event types appear as a subsequence of the
// trace. Events don't need to be consecutive and may repeat.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Type == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	matched := "no events"
	if next > 0 {
		matched = fmt.Sprintf("%v", assertion.Events[:next])
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("matched %s, then no %s", matched, assertion.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the event type appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks one task's fields or the ordered titles of a view.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.View != "" {
		return assertView(ctx, st, assertion)
	}

	t, err := st.Get(ctx, assertion.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("task %d", assertion.ID),
			Actual:   err.Error(),
		}
	}

	// Sorted for a stable first failure.
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, err := taskField(t, key, expected)
		if err != nil {
			return err
		}
		if want := expectedText(expected); want != actual {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("task %d %s = %q", assertion.ID, key, want),
				Actual:   fmt.Sprintf("task %d %s = %q", assertion.ID, key, actual),
			}
		}
	}
	return nil
}

func assertView(ctx context.Context, st *store.Store, assertion Assertion) error {
	f, err := task.ParseFilter(assertion.View)
	if err != nil {
		return err
	}
	tasks, err := st.Query(ctx, f)
	if err != nil {
		return fmt.Errorf("query %s: %w", f, err)
	}

	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}
	want := assertion.Titles
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(titles, want) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("view %s = %q", f, want),
			Actual:   fmt.Sprintf("view %s = %q", f, titles),
		}
	}
	return nil
}

// taskField renders one field of t the way expected values are written.
// A due date compares as YYYY-MM-DD unless the expected value is a full
// RFC 3339 time.
func taskField(t task.Task, key string, expected interface{}) (string, error) {
	switch key {
	case "title":
		return t.Title, nil
	case "description":
		return t.Description, nil
	case "completed":
		return strconv.FormatBool(t.Completed), nil
	case "priority":
		return string(t.Priority), nil
	case "mode":
		return string(t.Mode), nil
	case "due":
		if t.DueDate == nil {
			return "", nil
		}
		if s, ok := expected.(string); ok && len(s) > len("2006-01-02") {
			return t.DueDate.UTC().Format(time.RFC3339), nil
		}
		return t.DueDate.UTC().Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("final_state: unknown task field %q", key)
}

func expectedText(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
