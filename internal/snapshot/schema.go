package snapshot

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// shapeSchema is the accepted snapshot document. Only title is required per
// task; every other field has a default applied by Decode.
const shapeSchema = `
#Task: {
	id?:          int & >=0
	title:        string
	description?: string | null
	completed?:   bool | null
	priority?:    "low" | "medium" | "high" | null
	dueDate?:     string | null
	createdAt?:   string | null
	mode?:        "offline" | "online" | null
	...
}

#Snapshot: {
	tasks:       [...#Task]
	exportedAt?: string | null
	...
}
`

// checkShape validates data against shapeSchema.
func checkShape(data []byte) error {
	if !json.Valid(data) {
		return &FormatError{Reason: "not JSON"}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(shapeSchema, cue.Filename("snapshot.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename("snapshot.json"))
	if err := doc.Err(); err != nil {
		return &FormatError{Reason: "not JSON", Err: err}
	}
	if doc.Kind() != cue.StructKind {
		return &FormatError{Reason: "document is not an object"}
	}
	if !doc.LookupPath(cue.ParsePath("tasks")).Exists() {
		return &FormatError{Reason: `missing "tasks"`}
	}

	shape := schema.LookupPath(cue.ParsePath("#Snapshot"))
	if err := shape.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &FormatError{Reason: "unexpected shape", Err: err}
	}
	return nil
}
