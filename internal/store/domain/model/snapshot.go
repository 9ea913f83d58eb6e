package model

import "time"

// ChangeType classifies a document mutation
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent is published on the change feed after every committed write
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	Path       string     `json:"path"`
	Collection string     `json:"collection"`
	At         time.Time  `json:"at"`
}

// Snapshot is one delivery of a subscription: the complete result set of the
// query (or zero/one documents for a document listener) at ReadTime.
// Err is set instead when the listener failed to read.
type Snapshot struct {
	Documents []*Document
	ReadTime  time.Time
	Err       error
}

// First returns the single document of a document listener, nil when absent
func (s Snapshot) First() *Document {
	if len(s.Documents) == 0 {
		return nil
	}
	return s.Documents[0]
}
