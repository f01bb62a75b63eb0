package models

import (
	"errors"
	"fmt"
)

// ErrEmptyGraph is returned when resolving against a graph built from zero
// observations.
var ErrEmptyGraph = errors.New("value graph has no edges")

// MalformedRecordError reports a structural defect in one input record. It
// aborts the ingest call it occurred in and nothing else.
type MalformedRecordError struct {
	Index int    // position of the record in the batch
	Field string // name of the missing required field
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: missing required field %q", e.Index, e.Field)
}

// UnreachableItemError means no path exists between an item and the base unit
// in the current graph. It is surfaced to the caller instead of substituting
// a sentinel value.
type UnreachableItemError struct {
	Item string
	Base string
}

func (e *UnreachableItemError) Error() string {
	return fmt.Sprintf("no path from base %q to item %q", e.Base, e.Item)
}
