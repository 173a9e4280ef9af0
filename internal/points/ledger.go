package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultGrantDelay is how long every grant waits before it is credited.
	DefaultGrantDelay = 14 * 24 * time.Hour

	// DefaultReviewPoints is the award for an approved review.
	DefaultReviewPoints = 50

	defaultBatchSize = 500
)

// Config tunes the ledger.
type Config struct {
	GrantDelay   time.Duration
	ReviewPoints int64
	BatchSize    int
}

// Redemption is the outcome of applying points at checkout. A zero value
// means nothing was redeemed.
type Redemption struct {
	Points int64 `json:"points"`
	Cents  int64 `json:"cents"`
}

// Ledger moves points between grants and user balances. Balances only grow
// through Credit and only shrink through Debit.
type Ledger struct {
	users  repository.UserRepository
	grants repository.GrantRepository
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewLedger creates a new points ledger. Zero config values fall back to
// the defaults.
func NewLedger(users repository.UserRepository, grants repository.GrantRepository, cfg Config, logger zerolog.Logger) *Ledger {
	if cfg.GrantDelay <= 0 {
		cfg.GrantDelay = DefaultGrantDelay
	}
	if cfg.ReviewPoints <= 0 {
		cfg.ReviewPoints = DefaultReviewPoints
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Ledger{
		users:  users,
		grants: grants,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "points").Logger(),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// GrantDelay returns the configured maturation delay.
func (l *Ledger) GrantDelay() time.Duration {
	return l.cfg.GrantDelay
}

// AccrueOnOrder returns the points order earns.
func (l *Ledger) AccrueOnOrder(order *model.Order) int64 {
	return Accrue(order.SubtotalCents, !order.IsGuest())
}

// ScheduleGrant creates a grant that becomes creditable after the configured
// delay. Scheduling the same source twice returns the existing grant.
func (l *Ledger) ScheduleGrant(ctx context.Context, userID uuid.UUID, source model.GrantSource, sourceRef, reason string, points int64) (*model.Grant, error) {
	return l.ScheduleGrantAt(ctx, userID, source, sourceRef, reason, points, l.now().Add(l.cfg.GrantDelay))
}

// ScheduleGrantAt is ScheduleGrant with an explicit eligibility time.
func (l *Ledger) ScheduleGrantAt(ctx context.Context, userID uuid.UUID, source model.GrantSource, sourceRef, reason string, points int64, at time.Time) (*model.Grant, error) {
	now := l.now()
	grant := &model.Grant{
		ID:            uuid.New(),
		UserID:        userID,
		Source:        source,
		SourceRef:     sourceRef,
		Reason:        reason,
		PointsAwarded: points,
		ScheduledAt:   at,
		CreatedAt:     now,
	}

	err := l.grants.Create(ctx, grant)
	if errors.Is(err, repository.ErrDuplicateGrant) {
		existing, findErr := l.grants.FindBySource(ctx, source, sourceRef)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load existing grant: %w", findErr)
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create grant: %w", err)
	}

	l.logger.Info().
		Str("grant_id", grant.ID.String()).
		Str("user_id", userID.String()).
		Str("source", string(source)).
		Str("source_ref", sourceRef).
		Int64("points", points).
		Time("scheduled_at", grant.ScheduledAt).
		Msg("points grant scheduled")

	return grant, nil
}

// CreditEligible credits every uncredited grant scheduled at or before now.
// A grant claimed by a concurrent run counts as skipped, so overlapping
// invocations never pay twice.
func (l *Ledger) CreditEligible(ctx context.Context) (model.CreditSummary, error) {
	now := l.now()
	var summary model.CreditSummary

	for {
		due, err := l.grants.ListDue(ctx, now, l.cfg.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("failed to list due grants: %w", err)
		}

		progressed := false
		for _, grant := range due {
			ok, err := l.grants.Credit(ctx, grant.ID, now)
			if err != nil {
				l.logger.Error().
					Err(err).
					Str("grant_id", grant.ID.String()).
					Str("user_id", grant.UserID.String()).
					Msg("failed to credit grant")
				summary.Skipped++
				continue
			}
			if !ok {
				summary.Skipped++
				continue
			}
			progressed = true
			summary.Credited++
			summary.Points += grant.PointsAwarded
		}

		if len(due) < l.cfg.BatchSize || !progressed {
			break
		}
	}

	l.logger.Info().
		Int("credited", summary.Credited).
		Int64("points", summary.Points).
		Int("skipped", summary.Skipped).
		Msg("points crediting run finished")

	return summary, nil
}

// Quote works out what redeeming requested points against payableCents
// would yield without touching the balance.
func (l *Ledger) Quote(ctx context.Context, userID *uuid.UUID, requested, payableCents int64) (Redemption, error) {
	if requested <= 0 {
		return Redemption{}, nil
	}
	if userID == nil {
		return Redemption{}, model.ErrGuestRedemption
	}

	user, err := l.users.GetByID(ctx, *userID)
	if err != nil {
		return Redemption{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return Redemption{}, model.ErrUserNotFound
	}
	if user.BonusPoints < requested {
		return Redemption{}, model.ErrInsufficientPoints.WithMessage(
			fmt.Sprintf("balance of %d points does not cover %d", user.BonusPoints, requested))
	}

	tier, ok := SelectTier(requested, payableCents)
	if !ok {
		return Redemption{}, nil
	}
	return Redemption{Points: tier.Points, Cents: tier.Cents}, nil
}

// Debit takes redeemed points from the balance.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, r Redemption) error {
	if r.Points == 0 {
		return nil
	}
	balance, err := l.users.DebitPoints(ctx, userID, r.Points)
	if err != nil {
		return err
	}
	l.logger.Info().
		Str("user_id", userID.String()).
		Int64("points", r.Points).
		Int64("balance", balance).
		Msg("points redeemed")
	return nil
}

// Refund returns points taken by Debit.
func (l *Ledger) Refund(ctx context.Context, userID uuid.UUID, r Redemption) error {
	if r.Points == 0 {
		return nil
	}
	if _, err := l.users.RefundPoints(ctx, userID, r.Points); err != nil {
		return fmt.Errorf("failed to refund points: %w", err)
	}
	return nil
}

// Redeem quotes and debits in one step.
func (l *Ledger) Redeem(ctx context.Context, userID *uuid.UUID, requested, payableCents int64) (Redemption, error) {
	r, err := l.Quote(ctx, userID, requested, payableCents)
	if err != nil || r.Points == 0 {
		return r, err
	}
	if err := l.Debit(ctx, *userID, r); err != nil {
		return Redemption{}, err
	}
	return r, nil
}

func (l *Ledger) uncredited(ctx context.Context, id uuid.UUID) (*model.Grant, error) {
	grant, err := l.grants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load grant: %w", err)
	}
	if grant == nil {
		return nil, model.ErrGrantNotFound
	}
	if grant.Credited {
		return nil, model.ErrGrantCredited
	}
	return grant, nil
}

// CancelGrant zeroes a grant and closes it without paying out.
func (l *Ledger) CancelGrant(ctx context.Context, id uuid.UUID) error {
	if _, err := l.uncredited(ctx, id); err != nil {
		return err
	}
	ok, err := l.grants.Cancel(ctx, id, l.now())
	if err != nil {
		return fmt.Errorf("failed to cancel grant: %w", err)
	}
	if !ok {
		return model.ErrGrantCredited
	}
	l.logger.Info().Str("grant_id", id.String()).Msg("points grant cancelled")
	return nil
}

// ExtendGrant pushes a grant's eligibility days further out.
func (l *Ledger) ExtendGrant(ctx context.Context, id uuid.UUID, days int) (*model.Grant, error) {
	if days <= 0 {
		return nil, model.NewValidationError("days must be positive")
	}
	grant, err := l.uncredited(ctx, id)
	if err != nil {
		return nil, err
	}

	grant.ScheduledAt = grant.ScheduledAt.AddDate(0, 0, days)
	ok, err := l.grants.Reschedule(ctx, id, grant.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule grant: %w", err)
	}
	if !ok {
		return nil, model.ErrGrantCredited
	}

	l.logger.Info().
		Str("grant_id", id.String()).
		Int("days", days).
		Time("scheduled_at", grant.ScheduledAt).
		Msg("points grant extended")
	return grant, nil
}

// ReduceGrant lowers the award of an uncredited grant. It reports false
// when the grant was already credited, in which case nothing changes.
func (l *Ledger) ReduceGrant(ctx context.Context, id uuid.UUID, points int64) (bool, error) {
	grant, err := l.uncredited(ctx, id)
	if errors.Is(err, model.ErrGrantCredited) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if points >= grant.PointsAwarded {
		return true, nil
	}
	return l.grants.SetPoints(ctx, id, max(points, 0))
}

// ReduceOrderGrant lowers the uncredited grant earned by an order. It
// reports false when there is no grant or it was already credited.
func (l *Ledger) ReduceOrderGrant(ctx context.Context, orderID uuid.UUID, points int64) (bool, error) {
	grant, err := l.grants.FindBySource(ctx, model.GrantSourceOrder, orderID.String())
	if err != nil {
		return false, fmt.Errorf("failed to load order grant: %w", err)
	}
	if grant == nil || grant.Credited {
		return false, nil
	}
	return l.ReduceGrant(ctx, grant.ID, points)
}

// CancelOrderGrant closes the uncredited grant earned by an order, if any.
func (l *Ledger) CancelOrderGrant(ctx context.Context, orderID uuid.UUID) (bool, error) {
	grant, err := l.grants.FindBySource(ctx, model.GrantSourceOrder, orderID.String())
	if err != nil {
		return false, fmt.Errorf("failed to load order grant: %w", err)
	}
	if grant == nil || grant.Credited {
		return false, nil
	}
	return l.grants.Cancel(ctx, grant.ID, l.now())
}

// GrantForReview schedules the fixed review award. Each review pays once.
func (l *Ledger) GrantForReview(ctx context.Context, userID uuid.UUID, reviewID string) (*model.Grant, error) {
	if err := l.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return l.ScheduleGrant(ctx, userID, model.GrantSourceReview, reviewID, "product review", l.cfg.ReviewPoints)
}

// GrantForAdmin schedules a manual award.
func (l *Ledger) GrantForAdmin(ctx context.Context, userID uuid.UUID, points int64, reason string) (*model.Grant, error) {
	if points <= 0 {
		return nil, model.NewValidationError("points must be positive")
	}
	if err := l.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return l.ScheduleGrant(ctx, userID, model.GrantSourceAdmin, uuid.NewString(), reason, points)
}

// Overview returns the user's balance and grant history, each grant tagged
// with its state at the time of the call.
func (l *Ledger) Overview(ctx context.Context, userID uuid.UUID) (*model.PointsOverview, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	overview := &model.PointsOverview{Grants: []model.Grant{}}
	if user != nil {
		overview.Balance = user.BonusPoints
	}

	grants, err := l.grants.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	now := l.now()
	for i := range grants {
		grants[i].State = grants[i].StateAt(now)
	}
	if grants != nil {
		overview.Grants = grants
	}
	return overview, nil
}

func (l *Ledger) requireUser(ctx context.Context, userID uuid.UUID) error {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return model.ErrUserNotFound
	}
	return nil
}
