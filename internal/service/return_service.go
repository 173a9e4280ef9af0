package service

import (
	"context"
	"fmt"
	"time"

	"kart-ledger/internal/model"
	"kart-ledger/internal/notify"
	"kart-ledger/internal/points"
	"kart-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReturnWindow is how long after shipping a return may be requested.
const ReturnWindow = 30 * 24 * time.Hour

// returnService implements ReturnService. Returns never restock products.
type returnService struct {
	returnRepo repository.ReturnRepository
	orderRepo  repository.OrderRepository
	userRepo   repository.UserRepository
	points     *points.Ledger
	notifier   *notify.Notifier
	now        func() time.Time
	logger     zerolog.Logger
}

// NewReturnService creates a new return service.
func NewReturnService(
	returnRepo repository.ReturnRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	pointsLedger *points.Ledger,
	notifier *notify.Notifier,
	logger zerolog.Logger,
) ReturnService {
	return &returnService{
		returnRepo: returnRepo,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		points:     pointsLedger,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "return").Logger(),
	}
}

// RequestReturn opens a return against a shipped order within the return
// window. Requested quantities are capped at what is still returnable per
// line signature; lines with nothing left are dropped.
func (s *returnService) RequestReturn(ctx context.Context, caller *model.Identity, orderID uuid.UUID, req *model.ReturnRequestInput) (*model.ReturnRequest, error) {
	if req == nil {
		return nil, model.NewValidationError("return request is required")
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanView(order) {
		return nil, model.ErrOrderNotFound
	}
	if order.Status != model.OrderStatusShipped {
		return nil, model.ErrNotReturnable
	}

	now := s.now()
	since := order.CreatedAt
	if order.ShippedAt != nil {
		since = *order.ShippedAt
	}
	if now.After(since.Add(ReturnWindow)) {
		s.logger.Info().Str("order_id", orderID.String()).Time("since", since).Msg("return window closed")
		return nil, model.ErrReturnWindowClosed
	}

	existing, err := s.returnRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	available := Returnable(order, existing)

	originals := make(map[string]model.OrderItem, len(order.Items))
	for _, item := range order.Items {
		sig := model.LineSignature(item.ProductID, item.Variations)
		if _, ok := originals[sig]; !ok {
			originals[sig] = item
		}
	}

	var items []model.ReturnItem
	for _, in := range req.Items {
		sig := model.LineSignature(in.ProductID, in.Variations)
		qty := min(in.Quantity, available[sig])
		if qty <= 0 {
			continue
		}
		available[sig] -= qty

		orig := originals[sig]
		items = append(items, model.ReturnItem{
			ProductID:      orig.ProductID,
			Name:           orig.Name,
			UnitPriceCents: orig.UnitPriceCents,
			Quantity:       qty,
			Variations:     orig.Variations,
		})
	}
	if len(items) == 0 {
		return nil, model.ErrNothingToReturn
	}

	ret := &model.ReturnRequest{
		ID:          uuid.New(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       items,
		Status:      model.ReturnStatusReceived,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.returnRepo.Create(ctx, ret); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to create return")
		return nil, fmt.Errorf("failed to create return: %w", err)
	}

	order.Status = model.OrderStatusReturnRequested
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to flag order for return")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info().
		Str("return_id", ret.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("items", len(items)).
		Msg("return requested")

	s.notifier.ReturnReceived(ctx, s.contactEmail(ctx, order), ret)
	return ret, nil
}

// Returnable maps each line signature of order to the quantity that can
// still be returned: ordered, minus accepted items of completed returns,
// minus everything in open returns.
func Returnable(order *model.Order, returns []model.ReturnRequest) map[string]int {
	available := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		available[model.LineSignature(item.ProductID, item.Variations)] += item.Quantity
	}
	for _, ret := range returns {
		for _, item := range ret.Items {
			sig := item.Signature()
			switch {
			case ret.Status.Open():
				available[sig] -= item.Quantity
			case ret.Status == model.ReturnStatusCompleted && item.Accepted:
				available[sig] -= item.Quantity
			}
		}
	}
	for sig, qty := range available {
		if qty < 0 {
			available[sig] = 0
		}
	}
	return available
}

// ListReturns returns the order's returns, oldest first.
func (s *returnService) ListReturns(ctx context.Context, caller *model.Identity, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanView(order) {
		return nil, model.ErrOrderNotFound
	}

	returns, err := s.returnRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	if returns == nil {
		returns = []model.ReturnRequest{}
	}
	return returns, nil
}

// SetReturnStatus moves a return to processing or rejects it. Rejecting the
// last open return puts the order back to shipped.
func (s *returnService) SetReturnStatus(ctx context.Context, id uuid.UUID, status model.ReturnStatus) (*model.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case status == model.ReturnStatusProcessing && ret.Status == model.ReturnStatusReceived:
	case status == model.ReturnStatusRejected && ret.Status.Open():
	default:
		return nil, model.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot move return from %s to %s", ret.Status, status))
	}

	now := s.now()
	ret.Status = status
	ret.UpdatedAt = now
	if err := s.returnRepo.Update(ctx, ret); err != nil {
		s.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to update return")
		return nil, fmt.Errorf("failed to update return: %w", err)
	}

	if status == model.ReturnStatusRejected {
		if err := s.restoreShipped(ctx, ret.OrderID, now); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("return_id", id.String()).
		Str("status", string(status)).
		Msg("return status changed")

	return ret, nil
}

func (s *returnService) restoreShipped(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	returns, err := s.returnRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to list returns: %w", err)
	}
	for _, r := range returns {
		if r.Status.Open() {
			return nil
		}
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusReturnRequested {
		return nil
	}
	order.Status = model.OrderStatusShipped
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// CompleteReturn marks the listed items accepted, closes the return and
// issues its credit note. The order's uncredited points grant shrinks to what
// the kept items earn; points already credited stay with the customer.
func (s *returnService) CompleteReturn(ctx context.Context, id uuid.UUID, acceptedItems []int) (*model.CreditNote, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ret.Status.Open() {
		return nil, model.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot complete a %s return", ret.Status))
	}

	for _, idx := range acceptedItems {
		if idx < 0 || idx >= len(ret.Items) {
			return nil, model.NewValidationError(fmt.Sprintf("item index %d out of range", idx))
		}
	}

	order, err := s.loadOrder(ctx, ret.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range ret.Items {
		ret.Items[i].Accepted = false
	}
	for _, idx := range acceptedItems {
		ret.Items[idx].Accepted = true
	}
	ret.Status = model.ReturnStatusCompleted
	ret.UpdatedAt = now
	if err := s.returnRepo.Update(ctx, ret); err != nil {
		s.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to complete return")
		return nil, fmt.Errorf("failed to update return: %w", err)
	}

	if order.Status.CanTransition(model.OrderStatusReturnCompleted) {
		order.Status = model.OrderStatusReturnCompleted
		order.UpdatedAt = now
		if err := s.orderRepo.Update(ctx, order); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to close order return")
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
	}

	note := ComputeCreditNote(order, ret, now)
	s.adjustOrderGrant(ctx, order)

	s.logger.Info().
		Str("return_id", id.String()).
		Str("order_number", order.OrderNumber).
		Int("accepted", len(note.Lines)).
		Int64("refund_cents", note.TotalRefundCents).
		Msg("return completed")

	s.notifier.CreditNoteIssued(ctx, s.contactEmail(ctx, order), note)
	return note, nil
}

// adjustOrderGrant recomputes the order's earned points on the subtotal that
// was kept after every completed return.
func (s *returnService) adjustOrderGrant(ctx context.Context, order *model.Order) {
	if order.UserID == nil || order.BonusPointsEarned <= 0 {
		return
	}
	returns, err := s.returnRepo.ListByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to list returns for grant adjustment")
		return
	}

	kept := order.SubtotalCents
	for _, r := range returns {
		if r.Status != model.ReturnStatusCompleted {
			continue
		}
		for _, item := range r.Items {
			if item.Accepted {
				kept -= item.UnitPriceCents * int64(item.Quantity)
			}
		}
	}

	earned := points.Accrue(max(kept, 0), true)
	reduced, err := s.points.ReduceOrderGrant(ctx, order.ID, earned)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to reduce order grant")
		return
	}
	if reduced {
		s.logger.Info().
			Str("order_id", order.ID.String()).
			Int64("points", earned).
			Msg("order grant reduced after return")
	}
}

func (s *returnService) loadOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func (s *returnService) loadReturn(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to get return")
		return nil, fmt.Errorf("failed to get return: %w", err)
	}
	if ret == nil {
		return nil, model.ErrReturnNotFound
	}
	return ret, nil
}

func (s *returnService) contactEmail(ctx context.Context, order *model.Order) string {
	if order.UserID == nil {
		return order.GuestEmail
	}
	user, err := s.userRepo.GetByID(ctx, *order.UserID)
	if err != nil || user == nil {
		return ""
	}
	return order.ContactEmail(user.Email)
}
