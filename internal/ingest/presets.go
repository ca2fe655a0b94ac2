package ingest

import (
	"context"

	"svload/internal/config"
)

// IngestTSVWithHeader loads a UTF-8 tab-separated file, skipping its header
// row, with quotes enforced and 200000 rows per batch.
func (s *Service) IngestTSVWithHeader(ctx context.Context, table, path string) (Result, error) {
	return s.Ingest(ctx, config.TSVWithHeader(table, path))
}

// IngestTSVWithoutHeader is IngestTSVWithHeader for files without a header.
func (s *Service) IngestTSVWithoutHeader(ctx context.Context, table, path string) (Result, error) {
	return s.Ingest(ctx, config.TSVWithoutHeader(table, path))
}

// IngestCSVWithHeader loads a UTF-8 comma-separated file, skipping its
// header row, with quotes enforced and 200000 rows per batch.
func (s *Service) IngestCSVWithHeader(ctx context.Context, table, path string) (Result, error) {
	return s.Ingest(ctx, config.CSVWithHeader(table, path))
}

// IngestCSVWithoutHeader is IngestCSVWithHeader for files without a header.
func (s *Service) IngestCSVWithoutHeader(ctx context.Context, table, path string) (Result, error) {
	return s.Ingest(ctx, config.CSVWithoutHeader(table, path))
}
