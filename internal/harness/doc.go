// Package harness runs end-to-end capture scenarios against a real store,
// ingestion coordinator and snapshot engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2024-03-14T09:30:00Z"
//	settings: { modelName: gpt-4o-mini }
//	remote:
//	  - content: '{"tasks": [{"title": "call mom", "dueDate": "2024-03-15"}]}'
//	watch: today
//	setup:
//	  - title: existing task
//	    priority: high
//	    due: "2024-03-14"
//	flow:
//	  - submit: "call mom tomorrow"
//	    mode: online
//	    expect: { tasks: 1, degraded: false }
//	  - advance: 24h
//	  - complete: 2
//	assertions:
//	  - type: trace_count
//	    event: stored
//	    count: 1
//	  - type: final_state
//	    id: 2
//	    expect: { completed: true, mode: online }
//	  - type: final_state
//	    view: today
//	    titles: [call mom]
//
// Each remote entry answers one completion request, in order. A non-2xx
// status makes the request fail with body as the answer; content is the
// assistant message otherwise. Answers left unused fail the run.
//
// # Trace
//
// Every run records a trace of events:
//
//   - submit: a text was handed to the coordinator
//   - notice: an online submission fell back to offline
//   - stored: a submission committed tasks
//   - rejected: a submission failed
//   - delivered: the watched view produced a new result
//   - edit, complete, reopen, delete, import, export, advance: direct steps
//
// # Assertion Types
//
//   - trace_contains: an event of the given type (and token) is in the trace
//   - trace_order: event types appear in the given order
//   - trace_count: an event type appears exactly N times
//   - final_state: a task has the expected fields, or a view lists the
//     expected titles in order
//
// # Deterministic Testing
//
// Runs use a frozen clock that only moves on advance steps, sequential
// submission tokens, a fresh database per run and live-query delivery
// settled after every step, so traces are identical across runs and can be
// compared with golden files.
package harness
