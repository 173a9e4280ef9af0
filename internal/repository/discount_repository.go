package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type discountRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(pool *pgxpool.Pool, logger zerolog.Logger) DiscountRepository {
	return &discountRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "discount").Logger(),
	}
}

// GetByCode looks a code up case-insensitively.
func (r *discountRepository) GetByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	query := `
		SELECT id, code, type, value, starts_at, ends_at, active, one_time_use,
			max_global_uses, global_uses, created_at
		FROM discount_codes
		WHERE code = $1
	`

	var (
		d       model.DiscountCode
		kind    string
		maxUses *int32
	)
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&d.ID, &d.Code, &kind, &d.Value, &d.StartsAt, &d.EndsAt, &d.Active, &d.OneTimeUse,
		&maxUses, &d.GlobalUses, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("code", code).Msg("discount code not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query discount code")
		return nil, fmt.Errorf("failed to query discount code: %w", err)
	}

	d.Type = model.DiscountType(kind)
	if maxUses != nil {
		n := int(*maxUses)
		d.MaxGlobalUses = &n
	}
	return &d, nil
}

// IncrementGlobalUses adds one use unless the cap is reached.
func (r *discountRepository) IncrementGlobalUses(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE discount_codes
		SET global_uses = global_uses + 1
		WHERE id = $1 AND (max_global_uses IS NULL OR global_uses < max_global_uses)
	`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("discount_id", id.String()).Msg("failed to increment discount uses")
		return false, fmt.Errorf("failed to increment discount uses: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementGlobalUses undoes one IncrementGlobalUses.
func (r *discountRepository) DecrementGlobalUses(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE discount_codes
		SET global_uses = GREATEST(global_uses - 1, 0)
		WHERE id = $1
	`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("discount_id", id.String()).Msg("failed to decrement discount uses")
		return fmt.Errorf("failed to decrement discount uses: %w", err)
	}
	return nil
}

// Upsert creates a code or replaces its definition, keeping the usage counter.
func (r *discountRepository) Upsert(ctx context.Context, code *model.DiscountCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))

	var maxUses *int32
	if code.MaxGlobalUses != nil {
		n := int32(*code.MaxGlobalUses)
		maxUses = &n
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO discount_codes
			(id, code, type, value, starts_at, ends_at, active, one_time_use, max_global_uses, global_uses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			active = EXCLUDED.active,
			one_time_use = EXCLUDED.one_time_use,
			max_global_uses = EXCLUDED.max_global_uses
		RETURNING id, global_uses, created_at
	`, code.ID, code.Code, string(code.Type), code.Value, code.StartsAt, code.EndsAt,
		code.Active, code.OneTimeUse, maxUses, code.CreatedAt,
	).Scan(&code.ID, &code.GlobalUses, &code.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code.Code).Msg("failed to upsert discount code")
		return fmt.Errorf("failed to upsert discount code: %w", err)
	}
	return nil
}
