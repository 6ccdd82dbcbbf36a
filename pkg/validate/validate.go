// Package validate turns raw tabular records into a well-formed event log.
//
// Validation is the only place the engine rejects input. Analyzers in
// pkg/mining assume every event they receive has a non-empty case id, a
// non-empty activity and a parsed timestamp.
package validate

import (
	"strings"
	"time"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// Validate normalizes and validates a record set.
//
// Checks run in this order, each across every row:
//  1. the header carries case_id, activity and timestamp
//  2. every non-empty timestamp parses (TimestampParseError)
//  3. no record has an empty required field (MissingFieldError)
//
// Records are neither reordered nor deduplicated. Surrounding whitespace is
// trimmed from every value.
func Validate(rs *model.RecordSet) (*model.EventLog, error) {
	var columns []string
	if rs != nil {
		columns = rs.Columns
	}
	for _, col := range model.RequiredColumns {
		if rs == nil || !rs.HasColumn(col) {
			return nil, pmerrors.MissingColumn(col, columns)
		}
	}

	stamps := make([]time.Time, len(rs.Records))
	present := make([]bool, len(rs.Records))
	for i, rec := range rs.Records {
		raw := strings.TrimSpace(rec.Timestamp)
		if raw == "" {
			continue
		}
		ts, ok := ParseTimestamp(raw)
		if !ok {
			return nil, pmerrors.InvalidTimestamp(rec.Timestamp, rowOf(rec, i))
		}
		stamps[i] = ts
		present[i] = true
	}

	events := make([]model.Event, len(rs.Records))
	for i, rec := range rs.Records {
		caseID := strings.TrimSpace(rec.CaseID)
		activity := strings.TrimSpace(rec.Activity)

		switch {
		case caseID == "":
			return nil, pmerrors.MissingField(model.ColumnCaseID, rowOf(rec, i))
		case activity == "":
			return nil, pmerrors.MissingField(model.ColumnActivity, rowOf(rec, i))
		case !present[i]:
			return nil, pmerrors.MissingField(model.ColumnTimestamp, rowOf(rec, i))
		}

		events[i] = model.Event{
			Row:       rowOf(rec, i),
			CaseID:    caseID,
			Activity:  activity,
			Timestamp: stamps[i],
		}
	}

	cols := make([]string, len(rs.Columns))
	copy(cols, rs.Columns)

	return &model.EventLog{Columns: cols, Events: events}, nil
}

// rowOf falls back to the record's position when the source did not number it.
func rowOf(rec model.RawRecord, idx int) int {
	if rec.Row > 0 {
		return rec.Row
	}
	return idx + 1
}
