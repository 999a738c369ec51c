package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/samber/lo"
)

// Sink persists a parsed upload for a project.
type Sink interface {
	IngestColumns(ctx context.Context, projectID int64, columns []string, rows []domain.DataRow) (domain.Project, error)
}

type Result struct {
	Project domain.Project `json:"project"`
	Format  Format         `json:"format"`
	Columns int            `json:"columns"`
	Rows    int            `json:"rows"`
}

type Pipeline struct {
	logger  *slog.Logger
	parsers map[Format]Parser
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger,
		parsers: map[Format]Parser{
			FormatCSV:  CSVParser{},
			FormatXLSX: XLSXParser{},
		},
	}
}

// Parse detects the format of filename and parses data. Every failure comes
// back as a MalformedUpload error.
func (p *Pipeline) Parse(filename string, data []byte) (Format, []string, []domain.DataRow, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return "", nil, nil, internal.NewMalformedUploadError("unsupported file format; upload a .csv or .xlsx file", err)
	}
	if len(data) == 0 {
		return "", nil, nil, internal.NewMalformedUploadError("uploaded file is empty", ErrEmptyDocument)
	}

	columns, records, err := p.parsers[format].Parse(data)
	if err != nil {
		if errors.Is(err, ErrEmptyDocument) {
			return "", nil, nil, internal.NewMalformedUploadError("uploaded file has no data rows", err)
		}
		return "", nil, nil, internal.NewMalformedUploadError("uploaded file could not be parsed", err)
	}

	rows := lo.Map(records, func(r map[string]interface{}, _ int) domain.DataRow {
		return domain.DataRow{Payload: r}
	})
	return format, columns, rows, nil
}

// Ingest parses data and replaces the project's columns and rows with it.
func (p *Pipeline) Ingest(ctx context.Context, sink Sink, projectID int64, filename string, data []byte) (*Result, error) {
	format, columns, rows, err := p.Parse(filename, data)
	if err != nil {
		p.logger.Warn("upload rejected", "project_id", projectID, "file", filename, "error", err)
		return nil, err
	}

	project, err := sink.IngestColumns(ctx, projectID, columns, rows)
	if err != nil {
		p.logger.Error("failed to ingest upload",
			"project_id", projectID,
			"file", filename,
			"columns", len(columns),
			"rows", len(rows),
			"error", err)
		return nil, err
	}

	p.logger.Info("upload ingested",
		"project_id", projectID,
		"format", format,
		"columns", len(columns),
		"rows", len(rows))
	return &Result{Project: project, Format: format, Columns: len(columns), Rows: len(rows)}, nil
}
