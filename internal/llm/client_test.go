package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/testutil"
)

var callTime = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

// fakeEndpoint serves one canned answer and records the last request.
type fakeEndpoint struct {
	status int
	answer string

	gotPath string
	gotAuth string
	gotBody []byte
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.gotPath = r.URL.Path
	f.gotAuth = r.Header.Get("Authorization")
	f.gotBody, _ = io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.answer))
}

// completion wraps content in a chat completion envelope.
func completion(t *testing.T, content string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return string(data)
}

func newTestClient(t *testing.T, f *fakeEndpoint) (*Client, config.LLM) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	clock := testutil.NewClock(callTime)
	c := New(
		WithHTTPClient(srv.Client()),
		WithClock(clock.Now),
		WithLocation(time.UTC),
	)
	return c, config.LLM{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}
}

func TestParse_RequestShape(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusOK, answer: completion(t, `{"tasks": []}`)}
	c, cfg := newTestClient(t, f)

	_, err := c.Parse(context.Background(), "buy milk tomorrow and call mom", cfg)
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", f.gotPath)
	assert.Equal(t, "Bearer sk-test", f.gotAuth)

	var pretty bytes.Buffer
	require.NoError(t, json.Indent(&pretty, f.gotBody, "", "  "))
	pretty.WriteByte('\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "chat_request", pretty.Bytes())
}

func TestParse_InstructionsLiveInSystemMessage(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusOK, answer: completion(t, `{"tasks": []}`)}
	c, cfg := newTestClient(t, f)

	_, err := c.Parse(context.Background(), "water the plants", cfg)
	require.NoError(t, err)

	var req chatRequest
	require.NoError(t, json.Unmarshal(f.gotBody, &req))
	require.Len(t, req.Messages, 2)

	system, user := req.Messages[0], req.Messages[1]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "strict JSON and no Markdown")
	assert.Contains(t, system.Content, `{"tasks": [`)

	assert.Equal(t, "user", user.Role)
	assert.Equal(t, "The current time is 2024-03-14T09:30:00Z.\n\nInput: \"water the plants\"", user.Content)
}

func TestParse_DecodesTasks(t *testing.T) {
	content := "```json\n" + `{"tasks": [
		{"title": "buy milk", "dueDate": "2024-03-15T08:00:00.000Z"},
		{"title": "call mom"},
		{"title": "dentist", "dueDate": "2024-03-20"},
		{"title": "standup", "dueDate": "2024-03-15T09:15:00"}
	]}` + "\n```"
	f := &fakeEndpoint{status: http.StatusOK, answer: completion(t, content)}
	c, cfg := newTestClient(t, f)

	res, err := c.Parse(context.Background(), "plan my week", cfg)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 4)

	assert.Equal(t, "buy milk", res.Tasks[0].Title)
	require.NotNil(t, res.Tasks[0].DueDate)
	assert.True(t, res.Tasks[0].DueDate.Equal(time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, "call mom", res.Tasks[1].Title)
	assert.Nil(t, res.Tasks[1].DueDate)

	require.NotNil(t, res.Tasks[2].DueDate)
	assert.True(t, res.Tasks[2].DueDate.Equal(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)))

	require.NotNil(t, res.Tasks[3].DueDate)
	assert.True(t, res.Tasks[3].DueDate.Equal(time.Date(2024, time.March, 15, 9, 15, 0, 0, time.UTC)))
}

func TestParse_DropsBadEntries(t *testing.T) {
	content := `{"tasks": [{"title": "  "}, {"title": "keep", "dueDate": "next tuesday"}]}`
	f := &fakeEndpoint{status: http.StatusOK, answer: completion(t, content)}
	c, cfg := newTestClient(t, f)

	res, err := c.Parse(context.Background(), "x", cfg)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "keep", res.Tasks[0].Title)
	assert.Nil(t, res.Tasks[0].DueDate)
}

func TestParse_EmptyTaskList(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusOK, answer: completion(t, `{"tasks": []}`)}
	c, cfg := newTestClient(t, f)

	res, err := c.Parse(context.Background(), "nothing to do", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Tasks)
}

func TestParse_MissingAPIKey(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusOK}
	c, cfg := newTestClient(t, f)
	cfg.APIKey = ""

	_, err := c.Parse(context.Background(), "x", cfg)
	require.Error(t, err)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, config.KeyAPIKey, ce.Key)
	assert.True(t, config.IsMissing(err))
	assert.Nil(t, f.gotBody, "no request without credentials")
}

func TestParse_NonSuccessStatus(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusUnauthorized, answer: `{"error": {"message": "bad key"}}`}
	c, cfg := newTestClient(t, f)

	_, err := c.Parse(context.Background(), "x", cfg)
	require.Error(t, err)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Equal(t, map[string]any{"error": map[string]any{"message": "bad key"}}, re.Body)
	assert.True(t, IsRemote(err))
}

func TestParse_NonJSONErrorBody(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusBadGateway, answer: "upstream down\n"}
	c, cfg := newTestClient(t, f)

	_, err := c.Parse(context.Background(), "x", cfg)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "upstream down", re.Body)
}

func TestParse_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(WithClock(testutil.NewClock(callTime).Now))
	_, err := c.Parse(context.Background(), "x", config.LLM{APIKey: "k", BaseURL: url})
	require.Error(t, err)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, re.Status)
	assert.Error(t, re.Unwrap())
}

func TestParse_DecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer func(t *testing.T) string
	}{
		{"envelope not JSON", func(*testing.T) string { return "<html>" }},
		{"no choices", func(*testing.T) string { return `{"choices": []}` }},
		{"content not JSON", func(t *testing.T) string { return completion(t, "Sure! Here are your tasks.") }},
		{"no tasks array", func(t *testing.T) string { return completion(t, `{"items": []}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEndpoint{status: http.StatusOK, answer: tt.answer(t)}
			c, cfg := newTestClient(t, f)

			_, err := c.Parse(context.Background(), "x", cfg)
			require.Error(t, err)
			assert.True(t, IsDecode(err), "got %v", err)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}

func TestParseDueDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)

	got, err := parseDueDate("2024-03-15", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, loc)))

	got, err = parseDueDate("2024-03-15T10:00:00+02:00", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)))

	_, err = parseDueDate("tomorrow", loc)
	assert.Error(t, err)
}
