package offline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/zh"
)

// chineseRules is the Chinese rule set without zh.ExactMonthDate, which
// panics on text that has no month in it. monthDate takes its place.
func chineseRules() []rules.Rule {
	return []rules.Rule{
		zh.Weekday(rules.Override),
		zh.CasualDate(rules.Override),
		zh.CasualTime(rules.Override),
		clockTime{zh.HourMinute(rules.Override)},
		zh.TraditionHour(rules.Override),
		zh.AfterTime(rules.Override),
		monthDate(),
	}
}

// clockTime narrows zh.HourMinute to matches that name an hour and do not
// use "-" as the separator. The stock rule reads a bare ":" as midnight and
// the "4-05" inside "2024-05-01" as a clock time.
type clockTime struct {
	rules.Rule
}

func (r clockTime) Find(text string) *rules.Match {
	m := r.Rule.Find(text)
	if m == nil || len(m.Captures) < 4 {
		return m
	}
	hour, zhHour, sep := m.Captures[1], m.Captures[2], m.Captures[3]
	if (hour == "" && zhHour == "") || sep == "-" {
		return nil
	}
	return m
}

const (
	zhMonth = `(1[0-2]|0?[1-9]|十[一二]?|[一二三四五六七八九])`
	zhDay   = `(3[01]|[12][0-9]|0?[1-9]|[一二三]?十[一二三四五六七八九]?|[一二三四五六七八九])`
)

// monthDate matches "5月1日", "五月一号" and "2025年3月20日". The time of
// day is left to other rules.
func monthDate() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?:(\d{4})\s*年\s*)?` + zhMonth + `\s*月\s*` + zhDay + `\s*(?:日|号)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			year := ref.Year()
			if m.Captures[0] != "" {
				year, _ = strconv.Atoi(m.Captures[0])
			}
			month, ok := chineseNumber(m.Captures[1])
			if !ok {
				return false, nil
			}
			day, ok := chineseNumber(m.Captures[2])
			if !ok || !validDate(year, month, day) {
				return false, nil
			}
			if m.Captures[0] != "" {
				c.Year = pointer.ToInt(year)
			}
			c.Month = pointer.ToInt(month)
			c.Day = pointer.ToInt(day)
			return true, nil
		},
	}
}

// isoDate matches "2024-05-01". It is registered last and resets the time
// of day to midnight, so it wins over any clock time read out of the digits.
func isoDate() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?:\W|^)(\d{4})-(\d{1,2})-(\d{1,2})(?:\W|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			year, _ := strconv.Atoi(m.Captures[0])
			month, _ := strconv.Atoi(m.Captures[1])
			day, _ := strconv.Atoi(m.Captures[2])
			if !validDate(year, month, day) {
				return false, nil
			}
			c.Year = pointer.ToInt(year)
			c.Month = pointer.ToInt(month)
			c.Day = pointer.ToInt(day)
			c.Hour = pointer.ToInt(0)
			c.Minute = pointer.ToInt(0)
			c.Second = pointer.ToInt(0)
			return true, nil
		},
	}
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day
}

var chineseDigits = map[rune]int{
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// chineseNumber reads Arabic digits or a Chinese numeral up to 99.
func chineseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	tens, ones, found := strings.Cut(s, "十")
	if !found {
		r := []rune(s)
		if len(r) != 1 {
			return 0, false
		}
		n, ok := chineseDigits[r[0]]
		return n, ok
	}

	n := 10
	if tens != "" {
		r := []rune(tens)
		d, ok := chineseDigits[r[0]]
		if len(r) != 1 || !ok {
			return 0, false
		}
		n = d * 10
	}
	if ones != "" {
		r := []rune(ones)
		d, ok := chineseDigits[r[0]]
		if len(r) != 1 || !ok {
			return 0, false
		}
		n += d
	}
	return n, true
}
