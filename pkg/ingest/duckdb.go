package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// DuckDBReader reads JSON, NDJSON and CSV files through an in-process
// DuckDB instance.
type DuckDBReader struct {
	db *sql.DB
}

// NewDuckDBReader opens an in-memory DuckDB database.
func NewDuckDBReader() (*DuckDBReader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to open duckdb")
	}
	// Extensions are loaded per database instance; keep a single one.
	db.SetMaxOpenConns(1)
	return &DuckDBReader{db: db}, nil
}

// jsonExtension is the DuckDB extension providing read_json_auto.
const jsonExtension = "json"

// loadExtension installs and loads a DuckDB extension. The library build
// does not bundle json, so it is fetched on first use.
func (d *DuckDBReader) loadExtension(ctx context.Context, name string) error {
	for _, stmt := range []string{"INSTALL " + name, "LOAD " + name} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return pmerrors.Wrapf(err, pmerrors.CodeInvalidFormat,
				"duckdb %s extension unavailable", name).
				WithContext("extension", name)
		}
	}
	return nil
}

// Close releases the database.
func (d *DuckDBReader) Close() error {
	return d.db.Close()
}

// Read loads path in the given format. Every required column is cast to
// VARCHAR so values reach the validator as text; NULL becomes "".
func (d *DuckDBReader) Read(ctx context.Context, path string, format Format) (*model.RecordSet, error) {
	src, err := tableFunction(path, format)
	if err != nil {
		return nil, err
	}

	if format == FormatJSON || format == FormatJSONL {
		if err := d.loadExtension(ctx, jsonExtension); err != nil {
			return nil, err
		}
	}

	header, err := d.columns(ctx, src)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "failed to describe source").
			WithContext("path", path)
	}
	rs := &model.RecordSet{Columns: header}

	idx := indexColumns(header)
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		castColumn(idx.caseID, model.ColumnCaseID),
		castColumn(idx.activity, model.ColumnActivity),
		castColumn(idx.timestamp, model.ColumnTimestamp),
		src,
	)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "duckdb query failed").
			WithContext("path", path)
	}
	defer rows.Close()

	for rows.Next() {
		var caseID, activity, ts sql.NullString
		if err := rows.Scan(&caseID, &activity, &ts); err != nil {
			return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "duckdb scan failed")
		}
		rs.Records = append(rs.Records, model.RawRecord{
			Row:       len(rs.Records) + 1,
			CaseID:    caseID.String,
			Activity:  activity.String,
			Timestamp: ts.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "duckdb read failed")
	}
	return rs, nil
}

// columns returns the source header without reading any rows.
func (d *DuckDBReader) columns(ctx context.Context, src string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT * FROM "+src+" LIMIT 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

func tableFunction(path string, format Format) (string, error) {
	p := escapeLiteral(path)
	switch format {
	case FormatJSON:
		return fmt.Sprintf("read_json_auto('%s', format='auto')", p), nil
	case FormatJSONL:
		return fmt.Sprintf("read_json_auto('%s', format='newline_delimited')", p), nil
	case FormatCSV:
		return fmt.Sprintf("read_csv_auto('%s', header=true, all_varchar=true)", p), nil
	case FormatTSV:
		return fmt.Sprintf("read_csv_auto('%s', header=true, delim='\\t', all_varchar=true)", p), nil
	default:
		return "", pmerrors.UnsupportedFormat(string(format)).WithContext("engine", EngineDuckDB)
	}
}

// castColumn selects column i as text, or NULL when the column is absent.
func castColumn(i int, name string) string {
	if i < 0 {
		return "NULL"
	}
	return fmt.Sprintf("CAST(%s AS VARCHAR)", quoteIdent(name))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
