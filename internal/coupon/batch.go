package coupon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kart-ledger/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MapBatch implements Batch using a map for O(1) lookups.
type MapBatch struct {
	codes map[string]model.DiscountCode
	order []string
}

// NewBatch creates an empty batch.
func NewBatch(capacity int) *MapBatch {
	return &MapBatch{
		codes: make(map[string]model.DiscountCode, capacity),
		order: make([]string, 0, capacity),
	}
}

func (b *MapBatch) Get(code string) (model.DiscountCode, bool) {
	d, ok := b.codes[normalise(code)]
	return d, ok
}

func (b *MapBatch) Codes() []model.DiscountCode {
	out := make([]model.DiscountCode, 0, len(b.order))
	for _, code := range b.order {
		out = append(out, b.codes[code])
	}
	return out
}

func (b *MapBatch) Size() int {
	return len(b.codes)
}

// Add stores d, replacing an earlier definition of the same code.
func (b *MapBatch) Add(d model.DiscountCode) {
	d.Code = normalise(d.Code)
	if _, exists := b.codes[d.Code]; !exists {
		b.order = append(b.order, d.Code)
	}
	b.codes[d.Code] = d
}

func normalise(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseLine reads one batch line of the form
// code,type,value[,oneTimeUse[,maxGlobalUses]]. Fixed values are in cents.
func ParseLine(line string) (model.DiscountCode, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 3 || len(fields) > 5 {
		return model.DiscountCode{}, fmt.Errorf("expected 3 to 5 fields, got %d", len(fields))
	}

	d := model.DiscountCode{Code: normalise(fields[0]), Active: true}
	if d.Code == "" {
		return d, fmt.Errorf("empty code")
	}

	switch model.DiscountType(strings.ToLower(fields[1])) {
	case model.DiscountTypePercent:
		d.Type = model.DiscountTypePercent
	case model.DiscountTypeFixed:
		d.Type = model.DiscountTypeFixed
	default:
		return d, fmt.Errorf("unknown discount type %q", fields[1])
	}

	value, err := decimal.NewFromString(fields[2])
	if err != nil {
		return d, fmt.Errorf("invalid value %q: %w", fields[2], err)
	}
	if value.IsNegative() {
		return d, fmt.Errorf("negative value %s", value)
	}
	if d.Type == model.DiscountTypePercent && value.GreaterThan(decimal.NewFromInt(100)) {
		return d, fmt.Errorf("percent value %s above 100", value)
	}
	d.Value = value.InexactFloat64()

	if len(fields) > 3 && fields[3] != "" {
		if d.OneTimeUse, err = strconv.ParseBool(fields[3]); err != nil {
			return d, fmt.Errorf("invalid oneTimeUse %q: %w", fields[3], err)
		}
	}
	if len(fields) > 4 && fields[4] != "" {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return d, fmt.Errorf("invalid maxGlobalUses %q", fields[4])
		}
		d.MaxGlobalUses = &n
	}
	return d, nil
}

// readBatch parses a decompressed batch stream. Blank lines, comment lines
// and a leading header row are skipped; malformed lines are logged and
// skipped so one bad row does not reject a whole file.
func readBatch(ctx context.Context, r io.Reader, source string, logger zerolog.Logger) (Batch, error) {
	batch := NewBatch(1024)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			select {
			case <-ctx.Done():
				logger.Warn().Str("source", source).Msg("batch loading cancelled")
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if lineNo == 1 && strings.HasPrefix(strings.ToLower(line), "code,") {
			continue
		}

		d, err := ParseLine(line)
		if err != nil {
			skipped++
			logger.Warn().Err(err).Str("source", source).Int("line", lineNo).Msg("skipping malformed discount line")
			continue
		}
		batch.Add(d)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading discount batch %s: %w", source, err)
	}

	logger.Info().
		Str("source", source).
		Int("codes_loaded", batch.Size()).
		Int("skipped", skipped).
		Msg("discount batch loaded")

	return batch, nil
}
