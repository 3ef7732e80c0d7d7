package snapshot

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/task"
)

var decodeNow = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

func sampleSnapshot() Snapshot {
	due := time.Date(2024, time.March, 15, 18, 0, 0, 0, time.UTC)
	return Snapshot{
		Tasks: []task.Task{
			{
				ID:        2,
				Title:     "call mom",
				Priority:  task.PriorityHigh,
				DueDate:   &due,
				CreatedAt: time.Date(2024, time.March, 14, 9, 30, 0, 123_000_000, time.UTC),
				Mode:      task.ModeOnline,
			},
			{
				ID:          1,
				Title:       "buy milk",
				Description: "2% please",
				Completed:   true,
				Priority:    task.PriorityMedium,
				CreatedAt:   time.Date(2024, time.March, 13, 8, 0, 0, 0, time.FixedZone("UTC+8", 8*60*60)),
				Mode:        task.ModeOffline,
			},
		},
		ExportedAt: time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestEncode_Golden(t *testing.T) {
	data, err := Encode(sampleSnapshot())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "snapshot", append(data, '\n'))
}

func TestEncode_EmptyTaskList(t *testing.T) {
	data, err := Encode(Snapshot{ExportedAt: decodeNow})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks": []`)
}

func TestDecode_RoundTrip(t *testing.T) {
	in := sampleSnapshot()
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data, decodeNow)
	require.NoError(t, err)
	require.Len(t, out, len(in.Tasks))

	for i := range in.Tasks {
		assert.True(t, in.Tasks[i].Equal(out[i]), "task %d: %+v != %+v", i, in.Tasks[i], out[i])
	}
}

func TestDecode_Defaults(t *testing.T) {
	out, err := Decode([]byte(`{"tasks": [{"title": " bare "}]}`), decodeNow)
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, int64(0), got.ID)
	assert.Equal(t, "bare", got.Title)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	assert.Equal(t, task.ModeOffline, got.Mode)
	assert.False(t, got.Completed)
	assert.Nil(t, got.DueDate)
	assert.True(t, got.CreatedAt.Equal(decodeNow))
}

func TestDecode_NullsTakeDefaults(t *testing.T) {
	out, err := Decode([]byte(`{"tasks": [{"id": 4, "title": "t", "dueDate": null, "priority": null, "description": null}], "exportedAt": null}`), decodeNow)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(4), out[0].ID)
	assert.Nil(t, out[0].DueDate)
	assert.Equal(t, task.PriorityMedium, out[0].Priority)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	out, err := Decode([]byte(`{"version": 3, "tasks": [{"title": "t", "tags": ["x"]}]}`), decodeNow)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestDecode_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `tasks: []`},
		{"truncated", `{"tasks": [`},
		{"array document", `[]`},
		{"missing tasks", `{"exportedAt": "2024-03-14T10:00:00.000Z"}`},
		{"tasks not a list", `{"tasks": {"title": "x"}}`},
		{"task not an object", `{"tasks": ["x"]}`},
		{"missing title", `{"tasks": [{"completed": true}]}`},
		{"blank title", `{"tasks": [{"title": "  "}]}`},
		{"bad priority", `{"tasks": [{"title": "x", "priority": "urgent"}]}`},
		{"bad mode", `{"tasks": [{"title": "x", "mode": "hybrid"}]}`},
		{"completed not bool", `{"tasks": [{"title": "x", "completed": "yes"}]}`},
		{"negative id", `{"tasks": [{"id": -1, "title": "x"}]}`},
		{"bad due date", `{"tasks": [{"title": "x", "dueDate": "next week"}]}`},
		{"bad created at", `{"tasks": [{"title": "x", "createdAt": 1700000000}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), decodeNow)
			require.Error(t, err)
			assert.True(t, IsFormat(err), "got %T: %v", err, err)
		})
	}
}
