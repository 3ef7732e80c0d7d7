package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/task"
	"github.com/roach88/intellitodo/internal/testutil"
)

// testNow is the frozen "now" for store tests: mid-morning on a weekday, UTC.
var testNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

// createTestStore creates a store in a temp dir with a controllable clock.
// Local midnight is evaluated in UTC.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createTestStoreWithClock(t)
	return s
}

func createTestStoreWithClock(t *testing.T) (*Store, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(testNow)
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now), WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// mustAdd inserts a draft and returns its ID.
func mustAdd(t *testing.T, s *Store, d task.Draft) int64 {
	t.Helper()
	id, err := s.Add(context.Background(), d)
	require.NoError(t, err)
	return id
}

func titles(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, tk := range tasks {
		out[i] = tk.Title
	}
	return out
}
