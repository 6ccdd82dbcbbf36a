package ingest

import (
	"context"
	"strings"
	"testing"

	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

func TestReadCSV(t *testing.T) {
	input := "\xEF\xBB\xBFcase_id,activity,timestamp,resource\r\n" +
		"C1,Start,2024-01-01 10:00:00,alice\r\n" +
		"\r\n" +
		"C1,\"Review, legal\",2024-01-01 10:30:00,bob\r\n" +
		"C2,End\r\n"

	rs, err := ReadCSV(context.Background(), strings.NewReader(input), ',')
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if len(rs.Columns) != 4 || rs.Columns[0] != "case_id" {
		t.Errorf("Columns = %q, BOM not stripped?", rs.Columns)
	}
	if rs.Len() != 3 {
		t.Fatalf("Expected 3 records, got %d", rs.Len())
	}
	if rs.Records[1].Activity != "Review, legal" || rs.Records[1].Row != 2 {
		t.Errorf("Record 2 = %+v", rs.Records[1])
	}
	if short := rs.Records[2]; short.CaseID != "C2" || short.Timestamp != "" {
		t.Errorf("Short row = %+v", short)
	}
}

func TestReadCSV_ColumnOrder(t *testing.T) {
	input := "timestamp,activity,case_id\n2024-01-01 10:00:00,Start,C9\n"

	rs, err := ReadCSV(context.Background(), strings.NewReader(input), ',')
	if err != nil {
		t.Fatal(err)
	}
	if r := rs.Records[0]; r.CaseID != "C9" || r.Activity != "Start" {
		t.Errorf("Columns not mapped by name: %+v", r)
	}
}

func TestReadCSV_MissingColumnIsLeftToValidator(t *testing.T) {
	rs, err := ReadCSV(context.Background(), strings.NewReader("case,activity\nC1,Start\n"), ',')
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if rs.HasColumn("case_id") {
		t.Error("case_id must not be invented")
	}
	if rs.Records[0].CaseID != "" {
		t.Errorf("Expected empty case id, got %q", rs.Records[0].CaseID)
	}
}

func TestReadCSV_MultilineField(t *testing.T) {
	input := "case_id,activity,timestamp\nC1,\"Start\nnote\",2024-01-01\nC1,End,2024-01-02\n"

	rs, err := ReadCSV(context.Background(), strings.NewReader(input), ',')
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", rs.Len())
	}
	if rs.Records[0].Activity != "Start\nnote" {
		t.Errorf("Activity = %q", rs.Records[0].Activity)
	}
}

func TestReadCSV_NoTrailingNewline(t *testing.T) {
	rs, err := ReadCSV(context.Background(), strings.NewReader("case_id,activity,timestamp\nC1,A,2024-01-01"), ',')
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 1 || rs.Records[0].Timestamp != "2024-01-01" {
		t.Errorf("Unexpected records: %+v", rs.Records)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("\n\n"), ',')
	if !pmerrors.IsCode(err, pmerrors.CodeInvalidFormat) {
		t.Errorf("Expected E103, got %v", err)
	}
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	rs, err := ReadCSV(context.Background(), strings.NewReader("case_id,activity,timestamp\n"), ',')
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 0 || len(rs.Columns) != 3 {
		t.Errorf("Unexpected result: %+v", rs)
	}
}
