package harness

// Trace event types.
const (
	EventSubmit    = "submit"
	EventNotice    = "notice"
	EventStored    = "stored"
	EventRejected  = "rejected"
	EventDelivered = "delivered"
	EventEdit      = "edit"
	EventComplete  = "complete"
	EventReopen    = "reopen"
	EventDelete    = "delete"
	EventImport    = "import"
	EventExport    = "export"
	EventAdvance   = "advance"
)

// TraceEvent is one step of a run as observed from outside the coordinator.
type TraceEvent struct {
	Seq    int64    `json:"seq"`
	Type   string   `json:"type"`
	Token  string   `json:"token,omitempty"`
	Text   string   `json:"text,omitempty"`
	Mode   string   `json:"mode,omitempty"`
	IDs    []int64  `json:"ids,omitempty"`
	Titles []string `json:"titles,omitempty"`
	Count  int      `json:"count,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// TaskState is the final form of one task.
type TaskState struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority"`
	Due         string `json:"due,omitempty"`
	CreatedAt   string `json:"created_at"`
	Mode        string `json:"mode"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tasks is the final content of the store, newest first.
	Tasks []TaskState `json:"tasks"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Tasks:  []TaskState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends e with the next sequence number.
func (r *Result) addEvent(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
