// Package model defines core data structures for pmdash.
package model

import "time"

// Required column names. No header-name variants are accepted.
const (
	ColumnCaseID    = "case_id"
	ColumnActivity  = "activity"
	ColumnTimestamp = "timestamp"
)

// RequiredColumns lists the columns every record set must carry.
var RequiredColumns = []string{ColumnCaseID, ColumnActivity, ColumnTimestamp}

// RawRecord is a single unvalidated input row.
// Values are kept exactly as read; an absent cell is the empty string.
type RawRecord struct {
	// Row is the 1-based data row number in the source (header excluded).
	Row int

	CaseID    string
	Activity  string
	Timestamp string
}

// RecordSet is tabular input as produced by a source.
type RecordSet struct {
	// Columns is the full header, including columns the engine ignores.
	Columns []string

	Records []RawRecord
}

// HasColumn reports whether the header contains name exactly.
func (rs *RecordSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Event represents a single validated process mining event.
// Events are immutable once produced by validation.
type Event struct {
	// Row is the source row the event was read from.
	Row int `json:"row" msgpack:"row"`

	// CaseID identifies the process instance (trace).
	CaseID string `json:"case_id" msgpack:"case_id"`

	// Activity is the event name/activity label.
	Activity string `json:"activity" msgpack:"activity"`

	// Timestamp is normalized to UTC.
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// EventLog is an ordered collection of validated events.
// Input order is preserved and duplicates are kept.
type EventLog struct {
	Columns []string `json:"columns" msgpack:"columns"`
	Events  []Event  `json:"events" msgpack:"events"`
}

// Len returns the number of events.
func (l *EventLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Events)
}
