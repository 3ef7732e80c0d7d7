package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

// newDAVServer starts an in-memory WebDAV server behind basic auth.
func newDAVServer(t *testing.T) *httptest.Server {
	t.Helper()
	dav := &webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configureDAV(env *testEnv, url string) {
	env.mustRun("config", "set", "webdavUrl", url)
	env.mustRun("config", "set", "webdavUser", "alice")
	env.mustRun("config", "set", "webdavPass", "secret")
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	srv := newDAVServer(t)

	src := newTestEnv(t)
	configureDAV(src, srv.URL)
	seedTasks(t, src)
	assert.Equal(t, "Backed up 3 task(s) to /intellitodo_backup.json.\n", src.mustRun("backup"))

	dst := newTestEnv(t)
	configureDAV(dst, srv.URL)
	assert.Equal(t, "Restored 3 task(s).\n", dst.mustRun("restore"))

	assert.Equal(t, src.mustRun("list"), dst.mustRun("list"))
	assert.Equal(t, src.mustRun("show", "3"), dst.mustRun("show", "3"))
}

func TestRestore_KeepsLocalOnlyTasks(t *testing.T) {
	srv := newDAVServer(t)

	src := newTestEnv(t)
	configureDAV(src, srv.URL)
	src.mustRun("add", "buy milk")
	src.mustRun("backup")

	dst := newTestEnv(t)
	configureDAV(dst, srv.URL)
	dst.mustRun("add", "local draft")
	dst.mustRun("add", "second local")
	dst.mustRun("restore")

	resp, err := dst.runJSON("list")
	require.NoError(t, err)
	var views []taskView
	decodeData(t, resp, &views)

	byID := map[int64]string{}
	for _, v := range views {
		byID[v.ID] = v.Title
	}
	assert.Equal(t, map[int64]string{1: "buy milk", 2: "second local"}, byID)
}

func TestRestore_NoBackup(t *testing.T) {
	srv := newDAVServer(t)
	env := newTestEnv(t)
	configureDAV(env, srv.URL)

	resp, err := env.runJSON("restore")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestBackup_NotConfigured(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.runJSON("backup")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestBackup_Unreachable(t *testing.T) {
	srv := newDAVServer(t)
	url := srv.URL
	srv.Close()

	env := newTestEnv(t)
	configureDAV(env, url)
	env.mustRun("add", "buy milk")

	resp, err := env.runJSON("backup")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRemote, resp.Error.Code)
}

func TestExportImport(t *testing.T) {
	src := newTestEnv(t)
	seedTasks(t, src)

	out := src.mustRun("export")
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc["tasks"], 3)
	assert.Equal(t, "2024-03-14T09:30:00.000Z", doc["exportedAt"])

	path := filepath.Join(t.TempDir(), "tasks.json")
	assert.Equal(t, "Exported 3 task(s) to "+path+".\n", src.mustRun("export", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))

	dst := newTestEnv(t)
	assert.Equal(t, "Imported 3 task(s).\n", dst.mustRun("import", path))
	assert.Equal(t, src.mustRun("list"), dst.mustRun("list"))
}

func TestImport_Stdin(t *testing.T) {
	env := newTestEnv(t)
	env.stdin = `{"tasks": [{"id": 7, "title": "from stdin", "priority": "high"}]}`

	assert.Equal(t, "Imported 1 task(s).\n", env.mustRun("import", "-"))
	assert.Regexp(t, `Priority:\s+high\n`, env.mustRun("show", "7"))
}

func TestImport_Rejected(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("add", "buy milk")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks": [{"id": 1, "title": "   "}]}`), 0o600))

	resp, err := env.runJSON("import", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFormat, resp.Error.Code)

	assert.Regexp(t, `Title:\s+buy milk\n`, env.mustRun("show", "1"))
}

func TestImport_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("import", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
