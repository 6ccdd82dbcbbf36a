package ingest

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// parquetTimeLayout renders timestamp columns so ParseTimestamp accepts them.
const parquetTimeLayout = time.RFC3339Nano

// ReadParquet reads a Parquet file into a record set. Any column type is
// rendered as text; timestamp columns are rendered in RFC 3339.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*model.RecordSet, error) {
	pqReader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeInvalidFormat, "failed to open parquet")
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: 8192,
	}, memory.DefaultAllocator)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeInvalidFormat, "failed to create arrow reader")
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to read parquet schema")
	}

	header := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		header[i] = f.Name
	}
	rs := &model.RecordSet{Columns: header}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to read parquet table")
	}
	defer table.Release()

	n := int(table.NumRows())
	caseIDs := columnStrings(table, model.ColumnCaseID, n)
	activities := columnStrings(table, model.ColumnActivity, n)
	stamps := columnStrings(table, model.ColumnTimestamp, n)

	rs.Records = make([]model.RawRecord, n)
	for i := 0; i < n; i++ {
		rs.Records[i] = model.RawRecord{
			Row:       i + 1,
			CaseID:    valueAt(caseIDs, i),
			Activity:  valueAt(activities, i),
			Timestamp: valueAt(stamps, i),
		}
	}
	return rs, nil
}

// columnStrings renders one named column of table as text. Nulls become
// empty strings. A missing column yields nil.
func columnStrings(table arrow.Table, name string, n int) []string {
	fieldIdx := table.Schema().FieldIndices(name)
	if len(fieldIdx) == 0 {
		return nil
	}

	out := make([]string, 0, n)
	for _, chunk := range table.Column(fieldIdx[0]).Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				out = append(out, "")
				continue
			}
			out = append(out, arrayValueString(chunk, i))
		}
	}
	return out
}

func arrayValueString(arr arrow.Array, i int) string {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC().Format(parquetTimeLayout)
	case *array.Date32:
		return a.Value(i).ToTime().Format("2006-01-02")
	case *array.Date64:
		return a.Value(i).ToTime().Format("2006-01-02")
	default:
		return arr.ValueStr(i)
	}
}

func valueAt(col []string, i int) string {
	if i >= len(col) {
		return ""
	}
	return col[i]
}
