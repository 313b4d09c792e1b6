package app

import "time"

// Operation tracks the CLI command being run. Commands that change the
// catalog mark the operation dirty, and Close then uploads a catalog snapshot.
type Operation struct {
	ID      string // run identifier, written to every log line
	Command string
	dirty   bool
}

// NewOperation creates an operation for command started at now.
func NewOperation(command string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Command: command,
	}
}

// MarkDirty records that the catalog changed.
func (op *Operation) MarkDirty() {
	op.dirty = true
}

// Dirty reports whether the catalog changed during this operation.
func (op *Operation) Dirty() bool {
	return op.dirty
}
