// Package offline extracts a due date from free-form task text without
// leaving the machine.
package offline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/roach88/intellitodo/internal/task"
)

// Parser finds the first date expression in a piece of text.
// It is safe for concurrent use.
type Parser struct {
	now func() time.Time
	log *slog.Logger
	w   *when.Parser
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the reference time relative expressions resolve against.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.log = l
	}
}

// New creates a Parser with English, Chinese and language-neutral rules,
// plus ISO "2024-05-01" dates, which resolve to local midnight.
func New(opts ...Option) *Parser {
	p := &Parser{
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(chineseRules()...)
	w.Add(common.All...)
	w.Add(isoDate())
	p.w = w
	return p
}

// Parse returns the text as the title and the first recognized date, if any.
//
// The title is never rewritten: the date phrase stays in it. Parse does not
// fail; a text with no recognizable date has a nil DueDate.
func (p *Parser) Parse(text string) task.Parsed {
	parsed := task.Parsed{Title: strings.TrimSpace(text)}

	folded := normalize(parsed.Title)
	if folded == "" {
		return parsed
	}

	res, err := p.match(folded, p.now())
	if err != nil {
		p.log.Debug("date rules failed", "text", folded, "error", err)
		return parsed
	}
	if res == nil {
		return parsed
	}

	due := res.Time
	parsed.DueDate = &due
	return parsed
}

// match runs the date rules. A panicking rule counts as no date.
func (p *Parser) match(text string, ref time.Time) (res *when.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("date rules panicked: %v", r)
		}
	}()
	return p.w.Parse(text, ref)
}

// normalize folds full-width forms to their ASCII equivalents and composes
// the text to NFC, so "明天３点" matches the same rules as "明天3点".
func normalize(s string) string {
	return norm.NFC.String(width.Fold.String(s))
}
