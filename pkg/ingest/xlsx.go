package ingest

import (
	"context"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// ReadXLSX reads the first sheet of a workbook. The first non-empty row
// is the header. Numeric timestamp cells are Excel serial dates and are
// rendered as "2006-01-02 15:04:05".
func ReadXLSX(ctx context.Context, r io.Reader) (*model.RecordSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeInvalidFormat, "failed to open xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, pmerrors.New(pmerrors.CodeInvalidFormat, "no sheets found in xlsx file")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to read rows").
			WithContext("sheet", sheets[0])
	}
	defer rows.Close()

	var (
		rs     = &model.RecordSet{}
		idx    columnIndex
		header = true
		rowNum int
	)

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, pmerrors.Wrap(err, pmerrors.CodeContextCanceled, "xlsx read canceled")
		}

		cols, err := rows.Columns()
		if err != nil {
			return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to read row").
				WithContext("row", rowNum+1)
		}
		if isBlank(cols) {
			continue
		}

		if header {
			rs.Columns = cols
			idx = indexColumns(cols)
			header = false
			continue
		}

		rowNum++
		rec := idx.record(cols, rowNum)
		rec.Timestamp = excelSerialToString(rec.Timestamp)
		rs.Records = append(rs.Records, rec)
	}

	if header {
		return nil, pmerrors.New(pmerrors.CodeInvalidFormat, "xlsx file is empty")
	}
	return rs, nil
}

func excelSerialToString(s string) string {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 1 {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04:05")
}
