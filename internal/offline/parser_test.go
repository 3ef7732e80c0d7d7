package offline

import (
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intellitodo/internal/task"
	"github.com/roach88/intellitodo/internal/testutil"
)

var base = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestParser() *Parser {
	clock := testutil.NewClock(base)
	return New(WithClock(clock.Now))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func TestParse_Tomorrow(t *testing.T) {
	p := newTestParser()

	got := p.Parse("buy milk tomorrow")

	assert.Equal(t, "buy milk tomorrow", got.Title, "title keeps the date phrase")
	require.NotNil(t, got.DueDate)
	assert.True(t, sameDay(base.AddDate(0, 0, 1), *got.DueDate), "due %v", got.DueDate)
}

func TestParse_NoDate(t *testing.T) {
	p := newTestParser()

	got := p.Parse("  water the plants ")

	assert.Equal(t, "water the plants", got.Title)
	assert.Nil(t, got.DueDate)
}

func TestParse_TextWithoutDates(t *testing.T) {
	p := newTestParser()

	texts := []string{
		"call mom",
		"buy 2 apples",
		"buy 2-3 apples",
		"water the plants",
		"note: renew passport",
		"开会",
		"给妈妈打电话",
		"快点交报告",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			var got task.Parsed
			require.NotPanics(t, func() { got = p.Parse(text) })
			assert.Equal(t, text, got.Title)
			assert.Nil(t, got.DueDate, "due %v", got.DueDate)
		})
	}
}

func TestParse_Dates(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		text string
		want time.Time
	}{
		{"明天开会", time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)},
		{"buy milk 明天", time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)},
		{"下午3点开会", time.Date(2024, time.March, 14, 15, 0, 0, 0, time.UTC)},
		{"5月1日 看牙医", time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)},
		{"５月１日交报告", time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)},
		{"五月二十一号交报告", time.Date(2024, time.May, 21, 9, 30, 0, 0, time.UTC)},
		{"2025年3月20号 体检", time.Date(2025, time.March, 20, 9, 30, 0, 0, time.UTC)},
		{"2024-05-01 dentist", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"dentist 2024-05-01", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"renew passport 2025-1-9", time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := p.Parse(tt.text)

			assert.Equal(t, tt.text, got.Title)
			require.NotNil(t, got.DueDate)
			assert.True(t, tt.want.Equal(*got.DueDate), "want %v, got %v", tt.want, *got.DueDate)
		})
	}
}

func TestParse_NextWeekday(t *testing.T) {
	p := newTestParser()

	got := p.Parse("standup next friday")

	require.NotNil(t, got.DueDate)
	assert.Equal(t, time.Friday, got.DueDate.Weekday())
	assert.True(t, got.DueDate.After(base))
}

func TestParse_PanickingRuleMeansNoDate(t *testing.T) {
	w := when.New(nil)
	w.Add(&rules.F{
		RegExp: regexp.MustCompile(`(boom)`),
		Applier: func(*rules.Match, *rules.Context, *rules.Options, time.Time) (bool, error) {
			panic("slice bounds out of range")
		},
	})
	p := &Parser{
		now: testutil.NewClock(base).Now,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		w:   w,
	}

	var got task.Parsed
	require.NotPanics(t, func() { got = p.Parse("boom tomorrow") })
	assert.Equal(t, "boom tomorrow", got.Title)
	assert.Nil(t, got.DueDate)
}

func TestChineseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"7", 7, true},
		{"07", 7, true},
		{"五", 5, true},
		{"两", 2, true},
		{"十", 10, true},
		{"十二", 12, true},
		{"二十", 20, true},
		{"三十一", 31, true},
		{"", 0, false},
		{"五五", 0, false},
		{"十十", 0, false},
		{"月", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := chineseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidDate(t *testing.T) {
	assert.True(t, validDate(2024, 2, 29))
	assert.False(t, validDate(2023, 2, 29))
	assert.False(t, validDate(2024, 13, 1))
	assert.False(t, validDate(2024, 4, 31))
	assert.False(t, validDate(2024, 4, 0))
}

func TestParse_Empty(t *testing.T) {
	p := newTestParser()

	got := p.Parse("   ")
	assert.Equal(t, "", got.Title)
	assert.Nil(t, got.DueDate)
}

func TestParse_UsesClockAtCallTime(t *testing.T) {
	clock := testutil.NewClock(base)
	p := New(WithClock(clock.Now))

	clock.Advance(48 * time.Hour)
	got := p.Parse("call mom tomorrow")

	require.NotNil(t, got.DueDate)
	assert.True(t, sameDay(base.AddDate(0, 0, 3), *got.DueDate), "due %v", got.DueDate)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "tomorrow 3pm", normalize("ｔｏｍｏｒｒｏｗ ３pm"))
	assert.Equal(t, "\u00e9", normalize("e\u0301"))
}
