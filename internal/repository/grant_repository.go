package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kart-ledger/internal/database"
	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type grantRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewGrantRepository creates a new PostgreSQL-backed grant repository.
func NewGrantRepository(pool *pgxpool.Pool, logger zerolog.Logger) GrantRepository {
	return &grantRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "grant").Logger(),
	}
}

const grantColumns = `id, user_id, source, source_ref, reason, points_awarded, credited, scheduled_at, credited_at, created_at`

func scanGrant(row pgx.Row) (*model.Grant, error) {
	var (
		g      model.Grant
		source string
	)
	err := row.Scan(&g.ID, &g.UserID, &source, &g.SourceRef, &g.Reason, &g.PointsAwarded,
		&g.Credited, &g.ScheduledAt, &g.CreditedAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Source = model.GrantSource(source)
	return &g, nil
}

func (r *grantRepository) Create(ctx context.Context, grant *model.Grant) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO point_grants (`+grantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		grant.ID, grant.UserID, string(grant.Source), grant.SourceRef, grant.Reason,
		grant.PointsAwarded, grant.Credited, grant.ScheduledAt, grant.CreditedAt, grant.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "point_grants_source_key") {
			return ErrDuplicateGrant
		}
		r.logger.Error().Err(err).
			Str("source", string(grant.Source)).
			Str("source_ref", grant.SourceRef).
			Msg("failed to create grant")
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

func (r *grantRepository) one(ctx context.Context, where string, args ...any) (*model.Grant, error) {
	g, err := scanGrant(r.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM point_grants WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query grant")
		return nil, fmt.Errorf("failed to query grant: %w", err)
	}
	return g, nil
}

func (r *grantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Grant, error) {
	return r.one(ctx, `id = $1`, id)
}

func (r *grantRepository) FindBySource(ctx context.Context, source model.GrantSource, sourceRef string) (*model.Grant, error) {
	return r.one(ctx, `source = $1 AND source_ref = $2`, string(source), sourceRef)
}

func (r *grantRepository) many(ctx context.Context, query string, args ...any) ([]model.Grant, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query grants")
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	grants := []model.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}
	return grants, nil
}

func (r *grantRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Grant, error) {
	return r.many(ctx, `SELECT `+grantColumns+` FROM point_grants WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *grantRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Grant, error) {
	return r.many(ctx, `
		SELECT `+grantColumns+`
		FROM point_grants
		WHERE NOT credited AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
}

// Credit claims the grant and raises the balance in one transaction. The
// claim is a conditional update, so a concurrent run sees zero rows.
func (r *grantRepository) Credit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	credited := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			userID uuid.UUID
			points int64
		)
		err := tx.QueryRow(ctx, `
			UPDATE point_grants
			SET credited = TRUE, credited_at = $2
			WHERE id = $1 AND NOT credited
			RETURNING user_id, points_awarded
		`, id, now).Scan(&userID, &points)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to claim grant: %w", err)
		}

		if points > 0 {
			_, err = tx.Exec(ctx, `UPDATE users SET bonus_points = bonus_points + $2 WHERE id = $1`, userID, points)
			if err != nil {
				return fmt.Errorf("failed to add points: %w", err)
			}
		}
		credited = true
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("grant_id", id.String()).Msg("failed to credit grant")
		return false, err
	}
	return credited, nil
}

func (r *grantRepository) updateUncredited(ctx context.Context, set string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE point_grants SET `+set+` WHERE id = $1 AND NOT credited`, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to update grant")
		return false, fmt.Errorf("failed to update grant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *grantRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.updateUncredited(ctx, `points_awarded = 0, credited = TRUE, credited_at = $2`, id, now)
}

func (r *grantRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error) {
	return r.updateUncredited(ctx, `scheduled_at = $2`, id, scheduledAt)
}

func (r *grantRepository) SetPoints(ctx context.Context, id uuid.UUID, points int64) (bool, error) {
	return r.updateUncredited(ctx, `points_awarded = $2`, id, points)
}
