package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/intellitodo/internal/testutil"
)

// testNow is the frozen "now" for CLI tests.
var testNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

// syncBuffer is a bytes.Buffer safe to write from the store's notifier
// goroutine while a test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv runs commands against one database and settings file.
type testEnv struct {
	t      *testing.T
	dir    string
	db     string
	config string
	clock  *testutil.Clock
	stdin  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "tasks.db"),
		config: filepath.Join(dir, "config.yaml"),
		clock:  testutil.NewClock(testNow),
	}
}

func (e *testEnv) options() *RootOptions {
	return &RootOptions{
		Now:      e.clock.Now,
		Location: time.UTC,
		Language: language.English,
	}
}

// run executes one command line and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	return e.runContext(context.Background(), &syncBuffer{}, args...)
}

func (e *testEnv) runContext(ctx context.Context, out *syncBuffer, args ...string) (string, string, error) {
	e.t.Helper()
	errOut := &syncBuffer{}

	cmd := newRootCommand(e.options())
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(e.stdin))
	cmd.SetArgs(append([]string{"--db", e.db, "--config", e.config}, args...))

	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// mustRun executes a command line that must succeed and returns stdout.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, errOut, err := e.run(args...)
	require.NoError(e.t, err, "stderr: %s\nstdout: %s", errOut, out)
	return out
}

// runJSON executes a command line with --format json and decodes the response.
func (e *testEnv) runJSON(args ...string) (CLIResponse, error) {
	e.t.Helper()
	out, _, err := e.run(append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	return resp, err
}

// decodeData re-decodes the data field of a JSON response into v.
func decodeData(t *testing.T, resp CLIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
