package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type returnRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewReturnRepository creates a new PostgreSQL-backed return repository.
func NewReturnRepository(pool *pgxpool.Pool, logger zerolog.Logger) ReturnRepository {
	return &returnRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "return").Logger(),
	}
}

const returnColumns = `id, order_id, order_number, user_id, items, status, notes, created_at, updated_at`

func scanReturn(row pgx.Row) (*model.ReturnRequest, error) {
	var (
		ret    model.ReturnRequest
		items  []byte
		status string
	)
	err := row.Scan(&ret.ID, &ret.OrderID, &ret.OrderNumber, &ret.UserID, &items, &status,
		&ret.Notes, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ret.Status = model.ReturnStatus(status)
	if err := json.Unmarshal(items, &ret.Items); err != nil {
		return nil, fmt.Errorf("failed to decode return items: %w", err)
	}
	return &ret, nil
}

func (r *returnRepository) Create(ctx context.Context, ret *model.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("failed to encode return items: %w", err)
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO return_requests (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ret.ID, ret.OrderID, ret.OrderNumber, ret.UserID, items, string(ret.Status),
		ret.Notes, ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", ret.OrderID.String()).Msg("failed to create return request")
		return fmt.Errorf("failed to create return request: %w", err)
	}
	return nil
}

func (r *returnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to query return request")
		return nil, fmt.Errorf("failed to query return request: %w", err)
	}
	return ret, nil
}

func (r *returnRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query return requests")
		return nil, fmt.Errorf("failed to query return requests: %w", err)
	}
	defer rows.Close()

	returns := []model.ReturnRequest{}
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan return request: %w", err)
		}
		returns = append(returns, *ret)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return requests: %w", err)
	}
	return returns, nil
}

func (r *returnRepository) Update(ctx context.Context, ret *model.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("failed to encode return items: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE return_requests SET items = $2, status = $3, notes = $4, updated_at = $5 WHERE id = $1
	`, ret.ID, items, string(ret.Status), ret.Notes, ret.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("return_id", ret.ID.String()).Msg("failed to update return request")
		return fmt.Errorf("failed to update return request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrReturnNotFound
	}
	return nil
}
