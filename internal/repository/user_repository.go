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

type userRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool, logger zerolog.Logger) UserRepository {
	return &userRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

func (r *userRepository) get(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, bonus_points, created_at FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.BonusPoints, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query user")
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// GetByID returns nil when the user is unknown.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.get(ctx, `id = $1`, id)
}

// GetByEmail matches the address case-insensitively.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

// Upsert records the user without touching the points balance.
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, bonus_points, created_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
		RETURNING bonus_points, created_at
	`, user.ID, strings.TrimSpace(user.Email), user.Name, user.CreatedAt,
	).Scan(&user.BonusPoints, &user.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to upsert user")
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// DebitPoints subtracts points when the balance covers them.
func (r *userRepository) DebitPoints(ctx context.Context, id uuid.UUID, points int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET bonus_points = bonus_points - $2
		WHERE id = $1 AND bonus_points >= $2
		RETURNING bonus_points
	`, id, points).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			u, lookupErr := r.GetByID(ctx, id)
			if lookupErr != nil {
				return 0, lookupErr
			}
			if u == nil {
				return 0, model.ErrUserNotFound
			}
			r.logger.Warn().
				Str("user_id", id.String()).
				Int64("requested", points).
				Int64("balance", u.BonusPoints).
				Msg("insufficient points")
			return 0, model.ErrInsufficientPoints
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to debit points")
		return 0, fmt.Errorf("failed to debit points: %w", err)
	}
	return balance, nil
}

// RefundPoints gives back points taken by DebitPoints.
func (r *userRepository) RefundPoints(ctx context.Context, id uuid.UUID, points int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET bonus_points = bonus_points + $2 WHERE id = $1 RETURNING bonus_points
	`, id, points).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrUserNotFound
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to refund points")
		return 0, fmt.Errorf("failed to refund points: %w", err)
	}
	return balance, nil
}
