// Package task provides the task record types shared by every IntelliTodo package.
//
// This package contains type definitions and value validation only. The store,
// parsers, ingestion coordinator and snapshot engine all import task; task
// imports nothing internal.
//
// Key constraints:
//   - ID is assigned by the store and is zero until the record is persisted
//   - CreatedAt and Mode are set once at creation; Patch has no field for either
//   - DueDate is optional and may lie in the past
package task
