package ingest

import (
	"github.com/logflow/pmdash/internal/model"
)

// columnIndex locates the required columns in a header.
// Missing columns get -1; the validator reports them.
type columnIndex struct {
	caseID, activity, timestamp int
}

func indexColumns(header []string) columnIndex {
	idx := columnIndex{-1, -1, -1}
	for i, name := range header {
		switch name {
		case model.ColumnCaseID:
			if idx.caseID < 0 {
				idx.caseID = i
			}
		case model.ColumnActivity:
			if idx.activity < 0 {
				idx.activity = i
			}
		case model.ColumnTimestamp:
			if idx.timestamp < 0 {
				idx.timestamp = i
			}
		}
	}
	return idx
}

// record builds a raw record from a row; short rows yield empty fields.
func (c columnIndex) record(row []string, rowNum int) model.RawRecord {
	return model.RawRecord{
		Row:       rowNum,
		CaseID:    cell(row, c.caseID),
		Activity:  cell(row, c.activity),
		Timestamp: cell(row, c.timestamp),
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// isBlank reports whether every cell in row is empty.
func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
