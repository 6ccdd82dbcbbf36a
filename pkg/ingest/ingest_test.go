package ingest

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/rs/zerolog"

	pmerrors "github.com/logflow/pmdash/pkg/errors"
	"github.com/logflow/pmdash/pkg/validate"
)

const sampleCSV = "case_id,activity,timestamp\nC1,Start,2024-01-01 10:00:00\nC1,End,2024-01-01 11:00:00\n"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"log.csv", FormatCSV, false},
		{"LOG.CSV", FormatCSV, false},
		{"dir/log.tsv", FormatTSV, false},
		{"s3://bucket/a/b.parquet", FormatParquet, false},
		{"book.xlsx", FormatXLSX, false},
		{"events.ndjson", FormatJSONL, false},
		{"events.json", FormatJSON, false},
		{"legacy.xls", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
		if tt.wantErr && !pmerrors.IsCode(err, pmerrors.CodeInvalidFormat) {
			t.Errorf("Expected E103 for %q, got %v", tt.name, err)
		}
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://logs/2024/orders.csv")
	if err != nil || bucket != "logs" || key != "2024/orders.csv" {
		t.Errorf("ParseS3URI = %q %q %v", bucket, key, err)
	}

	for _, bad := range []string{"s3://bucket", "s3:///key", "file:///tmp/x.csv"} {
		if _, _, err := ParseS3URI(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
	if !IsS3URI("s3://b/k") || IsS3URI("/tmp/s3://x") {
		t.Error("IsS3URI mismatch")
	}
}

func TestLoader_LoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	var wrapped bool
	loader := NewLoader(Options{
		Logger: zerolog.Nop(),
		Progress: func(r io.Reader, size int64, label string) io.Reader {
			wrapped = size == int64(len(sampleCSV)) && label == "log.csv"
			return r
		},
	})

	rs, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rs.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", rs.Len())
	}
	if !wrapped {
		t.Error("Progress hook not called with file size and name")
	}
}

func TestLoader_LoadMissing(t *testing.T) {
	loader := NewLoader(Options{Logger: zerolog.Nop()})

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "gone.csv"))
	if !pmerrors.IsCode(err, pmerrors.CodeFileNotFound) {
		t.Errorf("Expected E101, got %v", err)
	}
}

func TestLoader_ReadUpload(t *testing.T) {
	loader := NewLoader(Options{Logger: zerolog.Nop()})

	rs, err := loader.Read(context.Background(), strings.NewReader(sampleCSV), "upload.csv")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := validate.Validate(rs); err != nil {
		t.Errorf("Uploaded CSV failed validation: %v", err)
	}

	if _, err := loader.Read(context.Background(), strings.NewReader("x"), "upload.txt"); !pmerrors.IsCode(err, pmerrors.CodeInvalidFormat) {
		t.Errorf("Expected E103 for .txt upload, got %v", err)
	}
}

func TestReadParquet(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "case_id", Type: arrow.BinaryTypes.String},
		{Name: "activity", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "timestamp", Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}},
		{Name: "cost", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"C1", "C1"}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Start", ""}, []bool{true, false})
	b.Field(2).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{
		arrow.Timestamp(start.UnixMilli()),
		arrow.Timestamp(start.Add(time.Hour).UnixMilli()),
	}, nil)
	b.Field(3).(*array.Int64Builder).AppendValues([]int64{5, 7}, nil)

	rec := b.NewRecord()
	defer rec.Release()
	table := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer table.Release()

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(table, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}

	rs, err := ReadParquet(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}

	if len(rs.Columns) != 4 {
		t.Errorf("Columns = %q", rs.Columns)
	}
	if rs.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", rs.Len())
	}
	if rs.Records[1].Activity != "" {
		t.Errorf("Null activity should be empty, got %q", rs.Records[1].Activity)
	}

	ts, ok := validate.ParseTimestamp(rs.Records[1].Timestamp)
	if !ok || !ts.Equal(start.Add(time.Hour)) {
		t.Errorf("Timestamp %q parsed as %v", rs.Records[1].Timestamp, ts)
	}
}

// skipWithoutExtension skips when DuckDB cannot fetch an extension, as in
// offline builds.
func skipWithoutExtension(t *testing.T, err error) {
	t.Helper()
	var pe *pmerrors.Error
	if stderrors.As(err, &pe) && pe.Context["extension"] != nil {
		t.Skipf("duckdb %v extension not available: %v", pe.Context["extension"], err)
	}
}

func TestDuckDBReader_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	data := `{"case_id":"C1","activity":"Start","timestamp":"2024-01-01 10:00:00"}
{"case_id":"C1","activity":"End","timestamp":"2024-01-01 11:30:00"}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(Options{Logger: zerolog.Nop()})
	rs, err := loader.Load(context.Background(), path)
	if err != nil {
		skipWithoutExtension(t, err)
		t.Fatalf("Load failed: %v", err)
	}

	log, err := validate.Validate(rs)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := log.Events[1].Timestamp.Sub(log.Events[0].Timestamp); got != 90*time.Minute {
		t.Errorf("Gap = %v, want 90m", got)
	}
}

func TestDuckDBReader_JSONUpload(t *testing.T) {
	data := `[{"case_id":"C1","activity":"Start","timestamp":"2024-01-01T10:00:00+02:00"},
{"case_id":"C1","activity":"End","timestamp":"2024-01-01T11:00:00+02:00"}]`

	loader := NewLoader(Options{Logger: zerolog.Nop()})
	rs, err := loader.Read(context.Background(), strings.NewReader(data), "events.json")
	if err != nil {
		skipWithoutExtension(t, err)
		t.Fatalf("Read failed: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", rs.Len())
	}

	log, err := validate.Validate(rs)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !log.Events[0].Timestamp.Equal(want) {
		t.Errorf("First event at %v, want %v", log.Events[0].Timestamp, want)
	}
}

func TestDuckDBReader_MissingExtension(t *testing.T) {
	db, err := NewDuckDBReader()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	err = db.loadExtension(context.Background(), "no_such_extension")
	if !pmerrors.IsCode(err, pmerrors.CodeInvalidFormat) {
		t.Fatalf("Expected E103, got %v", err)
	}
	if !strings.Contains(err.Error(), "no_such_extension") {
		t.Errorf("Error should name the extension: %v", err)
	}
}
