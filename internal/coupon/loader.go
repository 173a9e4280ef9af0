package coupon

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped batch files.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based batch loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "discount-loader").Logger(),
	}
}

// Load reads a gzipped batch file from the local file system.
func (l *fileLoader) Load(ctx context.Context, filePath string) (Batch, error) {
	l.logger.Info().Str("file", filePath).Msg("loading discount batch")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open discount batch")
		return nil, fmt.Errorf("failed to open discount batch %s: %w", filePath, err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to create gzip reader")
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", filePath, err)
	}
	defer gzipReader.Close()

	return readBatch(ctx, gzipReader, filePath, l.logger)
}
