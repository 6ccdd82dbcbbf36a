package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a delimited file with a header row. Blank lines are
// skipped and rows shorter than the header yield empty fields.
func ReadCSV(ctx context.Context, r io.Reader, delimiter byte) (*model.RecordSet, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	scanner := NewCSVScanner(delimiter)

	var (
		rs     = &model.RecordSet{}
		idx    columnIndex
		header = true
		rowNum int
		buf    []byte
	)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "csv read failed")
		}

		if len(line) > 0 {
			buf = append(buf, line...)
			if openQuote(buf) && err == nil {
				// Quoted field spans lines
				continue
			}

			record := bytes.TrimSuffix(buf, []byte{'\n'})
			if header {
				record = bytes.TrimPrefix(record, utf8BOM)
			}
			fields := scanner.ScanRecord(record)
			buf = buf[:0]

			switch {
			case len(fields) == 0 || isBlank(fields):
			case header:
				rs.Columns = fields
				idx = indexColumns(fields)
				header = false
			default:
				rowNum++
				if rowNum%4096 == 0 {
					if cerr := ctx.Err(); cerr != nil {
						return nil, pmerrors.Wrap(cerr, pmerrors.CodeContextCanceled, "csv read canceled")
					}
				}
				rs.Records = append(rs.Records, idx.record(fields, rowNum))
			}
		}

		if err == io.EOF {
			break
		}
	}

	if header {
		return nil, pmerrors.New(pmerrors.CodeInvalidFormat, "csv input has no header row")
	}
	return rs, nil
}
