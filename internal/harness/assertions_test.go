package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/store"
	"github.com/roach88/intellitodo/internal/task"
	"github.com/roach88/intellitodo/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventSubmit, Text: "renew passport", Mode: "online"},
		{Seq: 2, Type: EventNotice, Token: "sub-1", Error: "remote parser: status 503: unavailable"},
		{Seq: 3, Type: EventStored, Token: "sub-1", Mode: "offline", IDs: []int64{1}},
		{Seq: 4, Type: EventSubmit, Text: "buy milk", Mode: "offline"},
		{Seq: 5, Type: EventStored, Token: "sub-2", Mode: "offline", IDs: []int64{2}},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Event: EventNotice})
	assert.NoError(t, err)
}

func TestAssertTraceContains_Token(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: EventStored, Token: "sub-2"}))

	err := assertTraceContains(trace, Assertion{Event: EventNotice, Token: "sub-2"})
	require.Error(t, err)
	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "notice for token sub-2", assertErr.Expected)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Event: EventRejected})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_contains", assertErr.Type)
	assert.Contains(t, assertErr.Expected, "rejected")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Events: []string{EventSubmit, EventNotice, EventStored}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_RepeatedEvents(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Events: []string{EventSubmit, EventStored, EventSubmit, EventStored}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_InterveningEventsAllowed(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Events: []string{EventSubmit, EventStored}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Events: []string{EventStored, EventNotice}})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_order", assertErr.Type)
	assert.Equal(t, "matched [stored], then no notice", assertErr.Actual)
}

func TestAssertTraceOrder_MissingEvent(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Events: []string{EventDelete}})
	require.Error(t, err)
	assert.Equal(t, "matched no events, then no delete", err.(*AssertionError).Actual)
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		count   int
		wantErr bool
	}{
		{"exact", EventStored, 2, false},
		{"too few", EventStored, 3, true},
		{"too many", EventSubmit, 1, true},
		{"zero", EventRejected, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), Assertion{Event: tt.event, Count: tt.count})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, "trace_count", err.(*AssertionError).Type)
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_count",
		Expected: "1 occurrences of notice",
		Actual:   "0 occurrences",
		Trace: []TraceEvent{
			{Seq: 1, Type: EventSubmit, Text: "buy milk"},
			{Seq: 2, Type: EventStored, Token: "sub-1", IDs: []int64{4}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of notice")
	assert.Contains(t, msg, "Actual: 0 occurrences")
	assert.Contains(t, msg, `[1] submit "buy milk"`)
	assert.Contains(t, msg, "[2] stored token=sub-1 ids=[4]")
}

// newAssertionStore returns a store holding:
//
//	1 "file taxes"   high, due 2024-03-14, completed
//	2 "buy milk"     medium, no due date
func newAssertionStore(t *testing.T) *store.Store {
	t.Helper()
	clock := testutil.NewClock(time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"),
		store.WithClock(clock.Now),
		store.WithLocation(time.UTC),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	due := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	id, err := st.Add(ctx, task.Draft{Title: "file taxes", Priority: task.PriorityHigh, DueDate: &due})
	require.NoError(t, err)
	require.NoError(t, st.Update(ctx, id, task.Patch{Completed: task.Ptr(true)}))
	_, err = st.Add(ctx, task.Draft{Title: "buy milk"})
	require.NoError(t, err)
	return st
}

func TestAssertFinalState_TaskFields(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      int64
		expect  map[string]interface{}
		wantErr string
	}{
		{"subset match", 1, map[string]interface{}{"completed": true, "priority": "high"}, ""},
		{"due as date", 1, map[string]interface{}{"due": "2024-03-14"}, ""},
		{"due as time", 1, map[string]interface{}{"due": "2024-03-14T00:00:00Z"}, ""},
		{"no due", 2, map[string]interface{}{"due": nil, "mode": "offline", "description": ""}, ""},
		{"value mismatch", 2, map[string]interface{}{"title": "buy bread"}, `title = "buy bread"`},
		{"due mismatch", 2, map[string]interface{}{"due": "2024-03-14"}, `due = "2024-03-14"`},
		{"bool mismatch", 2, map[string]interface{}{"completed": true}, `completed = "true"`},
		{"unknown field", 1, map[string]interface{}{"color": "red"}, `unknown task field "color"`},
		{"missing task", 9, map[string]interface{}{"title": "x"}, "task 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, Assertion{Type: AssertFinalState, ID: tt.id, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertFinalState_View(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	assert.NoError(t, assertFinalState(ctx, st, Assertion{View: "all", Titles: []string{"buy milk", "file taxes"}}))
	assert.NoError(t, assertFinalState(ctx, st, Assertion{View: "inbox", Titles: []string{"buy milk"}}))
	assert.NoError(t, assertFinalState(ctx, st, Assertion{View: "today", Titles: []string{"file taxes"}}))

	err := assertFinalState(ctx, st, Assertion{View: "important", Titles: []string{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `view important = []`)
	assert.Contains(t, err.Error(), `["file taxes"]`)

	err = assertFinalState(ctx, st, Assertion{View: "all", Titles: []string{"file taxes", "buy milk"}})
	assert.Error(t, err, "order matters")
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: EventNotice},
		{Type: AssertTraceOrder, Events: []string{EventSubmit, EventStored}},
		{Type: AssertTraceCount, Event: EventStored, Count: 2},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: EventNotice},
		{Type: AssertTraceContains, Event: EventDelete},
		{Type: AssertTraceCount, Event: EventSubmit, Count: 5},
	}, nil)
	assert.Len(t, errs, 2)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "eventually"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "eventually"`)
}

func TestEvaluateAssertions_FinalStateWithoutContext_Fail(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertFinalState, View: "all"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "final_state requires database context")
}

func TestEvaluateAssertions_FinalStateWithContext_Pass(t *testing.T) {
	st := newAssertionStore(t)
	actx := &AssertionContext{Store: st, Ctx: context.Background()}

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, ID: 2, Expect: map[string]interface{}{"title": "buy milk"}},
	}, actx)
	assert.Empty(t, errs)
}
