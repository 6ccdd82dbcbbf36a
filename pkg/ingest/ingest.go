// Package ingest reads tabular event-log sources into record sets.
//
// Sources are local paths or s3://bucket/key URIs. The format follows the
// file extension: CSV and TSV go through the built-in scanner (or DuckDB
// when selected), XLSX through excelize, Parquet through Arrow, and
// JSON/NDJSON through DuckDB.
package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

// Format identifies a source encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
)

// Engines for delimited text.
const (
	EngineNative = "native"
	EngineDuckDB = "duckdb"
)

var extFormats = map[string]Format{
	".csv":     FormatCSV,
	".tsv":     FormatTSV,
	".xlsx":    FormatXLSX,
	".parquet": FormatParquet,
	".json":    FormatJSON,
	".jsonl":   FormatJSONL,
	".ndjson":  FormatJSONL,
}

// DetectFormat maps a file name onto a format by extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", pmerrors.UnsupportedFormat(name)
}

// ProgressFunc wraps a reader of known size to report read progress.
type ProgressFunc func(r io.Reader, size int64, label string) io.Reader

// Options configures a Loader.
type Options struct {
	// Engine selects the CSV/TSV reader: native (default) or duckdb.
	Engine string

	S3 S3Config

	// Progress, when set, wraps local delimited-file reads.
	Progress ProgressFunc

	Logger zerolog.Logger
}

// Loader resolves sources and reads them into record sets.
type Loader struct {
	opts   Options
	logger zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts Options) *Loader {
	if opts.Engine == "" {
		opts.Engine = EngineNative
	}
	return &Loader{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "ingest").Logger(),
	}
}

// Load reads the source named by uri.
func (l *Loader) Load(ctx context.Context, uri string) (*model.RecordSet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingest.Load")
	defer span.End()
	span.SetAttributes(attribute.String("source", uri))

	start := time.Now()
	rs, err := l.load(ctx, uri)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", rs.Len()))
	l.logger.Debug().
		Str("source", uri).
		Int("records", rs.Len()).
		Int("columns", len(rs.Columns)).
		Dur("elapsed", time.Since(start)).
		Msg("source loaded")
	return rs, nil
}

const tracerName = "github.com/logflow/pmdash/pkg/ingest"

func (l *Loader) load(ctx context.Context, uri string) (*model.RecordSet, error) {
	if !IsS3URI(uri) {
		return l.loadFile(ctx, uri)
	}

	// Validate the extension before paying for the download
	if _, err := DetectFormat(uri); err != nil {
		return nil, err
	}
	tmp, err := downloadS3(ctx, l.opts.S3, uri)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)
	return l.loadFile(ctx, tmp)
}

func (l *Loader) loadFile(ctx context.Context, path string) (*model.RecordSet, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pmerrors.FileNotFound(path)
		}
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "stat source").WithContext("path", path)
	}

	if format == FormatJSON || format == FormatJSONL || l.useDuckDB(format) {
		return l.readDuckDB(ctx, path, format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "open source").WithContext("path", path)
	}
	defer f.Close()

	switch format {
	case FormatParquet:
		return ReadParquet(ctx, f)
	case FormatXLSX:
		return ReadXLSX(ctx, f)
	default:
		var r io.Reader = f
		if l.opts.Progress != nil {
			r = l.opts.Progress(f, info.Size(), filepath.Base(path))
		}
		return ReadCSV(ctx, r, delimiterFor(format))
	}
}

// Read reads an in-memory upload whose format follows name.
func (l *Loader) Read(ctx context.Context, r io.Reader, name string) (*model.RecordSet, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	switch {
	case format == FormatXLSX:
		return ReadXLSX(ctx, r)
	case format == FormatParquet:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, pmerrors.Wrap(err, pmerrors.CodeParseFailed, "read upload")
		}
		return ReadParquet(ctx, bytes.NewReader(data))
	case format == FormatJSON || format == FormatJSONL || l.useDuckDB(format):
		// DuckDB reads from files only
		tmp, err := spool(r, filepath.Ext(name))
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		return l.readDuckDB(ctx, tmp, format)
	default:
		return ReadCSV(ctx, r, delimiterFor(format))
	}
}

func (l *Loader) useDuckDB(format Format) bool {
	return l.opts.Engine == EngineDuckDB && (format == FormatCSV || format == FormatTSV)
}

func (l *Loader) readDuckDB(ctx context.Context, path string, format Format) (*model.RecordSet, error) {
	db, err := NewDuckDBReader()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Read(ctx, path, format)
}

func delimiterFor(format Format) byte {
	if format == FormatTSV {
		return '\t'
	}
	return ','
}

func spool(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "pmdash-upload-*"+ext)
	if err != nil {
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "spool upload")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "spool upload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "spool upload")
	}
	return tmp.Name(), nil
}
