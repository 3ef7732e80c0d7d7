package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/task"
)

// DefaultNow is the clock start for scenarios that do not set now.
var DefaultNow = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// Scenario defines an end-to-end capture scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 start time of the frozen clock. Default: DefaultNow.
	Now string `yaml:"now,omitempty"`

	// TokenPrefix prefixes sequential submission tokens. Default: "sub".
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// Settings are applied before the run, keyed like the settings file.
	// apiKey defaults to a placeholder when Remote is set.
	Settings map[string]string `yaml:"settings,omitempty"`

	// Remote holds the canned answers of the completion endpoint, in order.
	Remote []RemoteAnswer `yaml:"remote,omitempty"`

	// Watch names a view to subscribe to for the whole run.
	Watch string `yaml:"watch,omitempty"`

	// Setup contains tasks stored before the flow starts.
	Setup []SetupTask `yaml:"setup,omitempty"`

	// Flow contains the steps to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// RemoteAnswer is one response of the fake completion endpoint.
type RemoteAnswer struct {
	// Content is the assistant message returned with status 200.
	Content string `yaml:"content,omitempty"`

	// Status, when not 2xx, fails the request with Body as the answer.
	Status int    `yaml:"status,omitempty"`
	Body   string `yaml:"body,omitempty"`
}

// SetupTask is a task present before the flow.
type SetupTask struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Priority    string `yaml:"priority,omitempty"`
	Due         string `yaml:"due,omitempty"`
	Completed   bool   `yaml:"completed,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

// FlowStep is one action. Exactly one action field must be set.
type FlowStep struct {
	// Submit hands text to the coordinator in Mode (default offline).
	Submit *string       `yaml:"submit,omitempty"`
	Mode   string        `yaml:"mode,omitempty"`
	Expect *ExpectClause `yaml:"expect,omitempty"`

	Edit     *EditStep `yaml:"edit,omitempty"`
	Complete int64     `yaml:"complete,omitempty"`
	Reopen   int64     `yaml:"reopen,omitempty"`
	Delete   int64     `yaml:"delete,omitempty"`

	// Import merges an inline snapshot document.
	Import string `yaml:"import,omitempty"`

	// Export records the number of exported tasks.
	Export bool `yaml:"export,omitempty"`

	// Advance moves the clock by a Go duration, such as 24h.
	Advance string `yaml:"advance,omitempty"`
}

// EditStep changes fields of one task.
type EditStep struct {
	ID          int64   `yaml:"id"`
	Title       *string `yaml:"title,omitempty"`
	Description *string `yaml:"description,omitempty"`
	Priority    *string `yaml:"priority,omitempty"`
	Due         *string `yaml:"due,omitempty"`
	ClearDue    bool    `yaml:"clear_due,omitempty"`
}

// ExpectClause specifies the expected outcome of a submission.
type ExpectClause struct {
	// Tasks is the number of tasks created.
	Tasks *int `yaml:"tasks,omitempty"`

	// Degraded is whether an online submission fell back to offline.
	Degraded *bool `yaml:"degraded,omitempty"`

	// Error is "empty_input", "busy" or a substring of the error message.
	// When set, the submission must fail.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event is the event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Token restricts trace_contains to one submission.
	Token string `yaml:"token,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// ID and Expect check one task's fields (final_state). Subset match:
	// only the given fields are compared. Keys: title, description,
	// completed, priority, due, mode. A null due means no due date.
	ID     int64                  `yaml:"id,omitempty"`
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// View and Titles check the ordered titles of a view (final_state).
	View   string   `yaml:"view,omitempty"`
	Titles []string `yaml:"titles,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// startTime returns the parsed Now or DefaultNow.
func (s *Scenario) startTime() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	return time.Parse(time.RFC3339, s.Now)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := s.startTime(); err != nil {
		return fmt.Errorf("now: %w", err)
	}

	var settings config.Settings
	for key, value := range s.Settings {
		if err := settings.Set(key, value); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}

	if s.Watch != "" {
		if _, err := task.ParseFilter(s.Watch); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}

	for i, st := range s.Setup {
		if strings.TrimSpace(st.Title) == "" {
			return fmt.Errorf("setup[%d]: title is required", i)
		}
		if st.Priority != "" {
			if _, err := task.ParsePriority(st.Priority); err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
		}
		if st.Due != "" {
			if _, err := parseDate(st.Due); err != nil {
				return fmt.Errorf("setup[%d]: %w", i, err)
			}
		}
		if st.Mode != "" && !task.Mode(st.Mode).Valid() {
			return fmt.Errorf("setup[%d]: invalid mode %q", i, st.Mode)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a flow step names exactly one action.
func validateStep(index int, step *FlowStep) error {
	actions := 0
	for _, set := range []bool{
		step.Submit != nil,
		step.Edit != nil,
		step.Complete != 0,
		step.Reopen != 0,
		step.Delete != 0,
		step.Import != "",
		step.Export,
		step.Advance != "",
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("flow[%d]: exactly one action is required, got %d", index, actions)
	}

	if step.Submit == nil && (step.Mode != "" || step.Expect != nil) {
		return fmt.Errorf("flow[%d]: mode and expect only apply to submit", index)
	}
	if step.Mode != "" && !task.Mode(step.Mode).Valid() {
		return fmt.Errorf("flow[%d]: invalid mode %q", index, step.Mode)
	}
	if step.Advance != "" {
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("flow[%d]: advance: %w", index, err)
		}
	}
	if e := step.Edit; e != nil {
		if e.ID <= 0 {
			return fmt.Errorf("flow[%d]: edit: id is required", index)
		}
		if e.Due != nil && e.ClearDue {
			return fmt.Errorf("flow[%d]: edit: due and clear_due are exclusive", index)
		}
		if e.Due != nil {
			if _, err := parseDate(*e.Due); err != nil {
				return fmt.Errorf("flow[%d]: edit: %w", index, err)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		switch {
		case a.ID != 0 && a.View != "":
			return fmt.Errorf("assertions[%d]: final_state takes id or view, not both", index)
		case a.ID != 0:
			if len(a.Expect) == 0 {
				return fmt.Errorf("assertions[%d]: expect is required for final_state on a task", index)
			}
		case a.View != "":
			if _, err := task.ParseFilter(a.View); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		default:
			return fmt.Errorf("assertions[%d]: id or view is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// parseDate reads a calendar date as UTC midnight, or an RFC 3339 time.
func parseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
