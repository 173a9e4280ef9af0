package coupon

import (
	"context"
	"fmt"
	"sync"

	"kart-ledger/internal/repository"

	"github.com/rs/zerolog"
)

// ImportSummary reports what an import run stored.
type ImportSummary struct {
	Files int `json:"files"`
	Codes int `json:"codes"`
}

// Importer loads batch files and upserts their definitions. Usage counters
// of existing codes are kept.
type Importer struct {
	loader    Loader
	discounts repository.DiscountRepository
	logger    zerolog.Logger
}

// NewImporter creates a new batch importer.
func NewImporter(loader Loader, discounts repository.DiscountRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:    loader,
		discounts: discounts,
		logger:    logger.With().Str("component", "discount-importer").Logger(),
	}
}

// Import loads every file concurrently and stores the merged result. When a
// code appears in several files the one listed last wins. Nothing is stored
// if any file fails to load.
func (i *Importer) Import(ctx context.Context, filePaths []string) (ImportSummary, error) {
	type loadResult struct {
		index int
		batch Batch
		err   error
	}

	resultChan := make(chan loadResult, len(filePaths))
	var wg sync.WaitGroup

	for idx, filePath := range filePaths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			batch, err := i.loader.Load(ctx, path)
			resultChan <- loadResult{index: index, batch: batch, err: err}
		}(idx, filePath)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(filePaths))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := NewBatch(0)
	for idx, result := range results {
		if result.err != nil {
			i.logger.Error().
				Err(result.err).
				Str("file", filePaths[idx]).
				Msg("failed to load discount batch")
			return ImportSummary{}, fmt.Errorf("failed to load discount batch %s: %w", filePaths[idx], result.err)
		}
		for _, d := range result.batch.Codes() {
			merged.Add(d)
		}
	}

	for _, d := range merged.Codes() {
		if err := i.discounts.Upsert(ctx, &d); err != nil {
			return ImportSummary{}, fmt.Errorf("failed to store discount code %s: %w", d.Code, err)
		}
	}

	summary := ImportSummary{Files: len(filePaths), Codes: merged.Size()}
	i.logger.Info().
		Int("files", summary.Files).
		Int("codes", summary.Codes).
		Msg("discount batches imported")

	return summary, nil
}
