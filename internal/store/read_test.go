package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/task"
)

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "task 7 not found")
}

func TestAll_NewestFirst(t *testing.T) {
	s, clock := createTestStoreWithClock(t)

	mustAdd(t, s, task.Draft{Title: "first"})
	clock.Advance(time.Minute)
	mustAdd(t, s, task.Draft{Title: "second"})
	clock.Advance(time.Minute)
	mustAdd(t, s, task.Draft{Title: "third"})

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(all))
}

func TestAll_SameMillisecondOrdersByID(t *testing.T) {
	s := createTestStore(t)

	_, err := s.BulkAdd(context.Background(), []task.Draft{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, titles(all))
}

func TestAll_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestQuery_Filters(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()

	midnight := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	atMidnight := midnight
	lastMs := midnight.Add(24*time.Hour - time.Millisecond)
	tomorrow := midnight.Add(24 * time.Hour)
	yesterday := midnight.Add(-time.Millisecond)

	add := func(title string, due *time.Time, p task.Priority) {
		mustAdd(t, s, task.Draft{Title: title, DueDate: due, Priority: p})
		clock.Advance(time.Second)
	}
	add("midnight", &atMidnight, task.PriorityLow)
	add("last ms", &lastMs, task.PriorityHigh)
	add("tomorrow", &tomorrow, task.PriorityMedium)
	add("yesterday", &yesterday, task.PriorityMedium)
	add("undated", nil, task.PriorityHigh)

	// Queries evaluate "today" against the clock, which has moved a few seconds.
	tests := []struct {
		filter task.Filter
		want   []string
	}{
		{task.FilterAll, []string{"undated", "yesterday", "tomorrow", "last ms", "midnight"}},
		{task.FilterToday, []string{"last ms", "midnight"}},
		{task.FilterImportant, []string{"undated", "last ms"}},
		{task.FilterInbox, []string{"undated"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestQuery_TodayFollowsClock(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()

	due := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	mustAdd(t, s, task.Draft{Title: "friday", DueDate: &due})

	got, err := s.Query(ctx, task.FilterToday)
	require.NoError(t, err)
	assert.Empty(t, got)

	clock.Set(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	got, err = s.Query(ctx, task.FilterToday)
	require.NoError(t, err)
	assert.Equal(t, []string{"friday"}, titles(got))
}

func TestQuery_TodayUsesStoreLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 20:00 UTC on the 14th is 05:00 on the 15th at UTC+9.
	now := time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC)
	s, err := Open(t.TempDir()+"/tz.db", WithClock(func() time.Time { return now }), WithLocation(loc))
	require.NoError(t, err)
	defer s.Close()

	due := time.Date(2024, time.March, 15, 12, 0, 0, 0, loc)
	_, err = s.Add(context.Background(), task.Draft{Title: "lunch", DueDate: &due})
	require.NoError(t, err)

	got, err := s.Query(context.Background(), task.FilterToday)
	require.NoError(t, err)
	assert.Equal(t, []string{"lunch"}, titles(got))
	assert.Equal(t, loc, s.Location())
}

func TestQuery_UnknownFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Query(context.Background(), task.Filter("someday"))
	assert.Error(t, err)
}

func TestDueInMonth(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d := func(day int) *time.Time {
		v := time.Date(2024, time.March, day, 9, 0, 0, 0, time.UTC)
		return &v
	}
	feb := time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC)
	apr := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	mustAdd(t, s, task.Draft{Title: "late", DueDate: d(30)})
	mustAdd(t, s, task.Draft{Title: "early", DueDate: d(2)})
	mustAdd(t, s, task.Draft{Title: "feb", DueDate: &feb})
	mustAdd(t, s, task.Draft{Title: "apr", DueDate: &apr})
	mustAdd(t, s, task.Draft{Title: "undated"})

	got, err := s.DueInMonth(ctx, 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, titles(got))
}

func TestCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BulkAdd(ctx, []task.Draft{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
