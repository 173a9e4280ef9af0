package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kart-ledger/internal/coupon"
	"kart-ledger/internal/model"
	"kart-ledger/internal/notify"
	"kart-ledger/internal/points"
	"kart-ledger/internal/repository"
	"kart-ledger/internal/stock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ShippingFeeCents is charged on carts below FreeShippingThresholdCents.
	ShippingFeeCents           = 495
	FreeShippingThresholdCents = 8000
)

// ShippingFor returns the shipping cost for subtotalCents.
func ShippingFor(subtotalCents int64) int64 {
	if subtotalCents < FreeShippingThresholdCents {
		return ShippingFeeCents
	}
	return 0
}

// orderService implements OrderService.
type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	stock       *stock.Ledger
	discounts   *coupon.Validator
	points      *points.Ledger
	numbers     *OrderNumbers
	notifier    *notify.Notifier
	now         func() time.Time
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	stockLedger *stock.Ledger,
	discounts *coupon.Validator,
	pointsLedger *points.Ledger,
	numbers *OrderNumbers,
	notifier *notify.Notifier,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		stock:       stockLedger,
		discounts:   discounts,
		points:      pointsLedger,
		numbers:     numbers,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// cartLine is a validated request line with the product snapshot it was
// priced from.
type cartLine struct {
	product   *model.Product
	selection stock.Selection
	item      model.OrderItem
}

// CreateOrder validates the whole checkout first, then mutates in a fixed
// order: reserve stock, debit points, consume the discount, insert the order.
// Any failure before the insert undoes the earlier steps in reverse.
func (s *orderService) CreateOrder(ctx context.Context, caller *model.Identity, req *model.OrderRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.NewValidationError("order request is required")
	}
	if err := ValidateRequest(req); err != nil {
		s.logger.Debug().Err(err).Msg("order request rejected")
		return nil, err
	}

	var userID *uuid.UUID
	guestEmail := strings.TrimSpace(req.GuestEmail)
	if caller != nil {
		if err := s.ensureUser(ctx, caller); err != nil {
			return nil, err
		}
		id := caller.UserID
		userID = &id
		guestEmail = ""
	} else {
		if guestEmail == "" {
			return nil, model.NewValidationError("guestEmail is required for guest checkout")
		}
		existing, err := s.userRepo.GetByEmail(ctx, guestEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to look up guest email: %w", err)
		}
		if existing != nil {
			s.logger.Info().Msg("guest checkout with registered email rejected")
			return nil, model.ErrGuestEmailRegistered
		}
	}

	lines, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	items := make([]model.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = line.item
		subtotal += line.item.LineTotalCents()
	}
	shipping := ShippingFor(subtotal)

	var discount *model.DiscountResult
	if strings.TrimSpace(req.DiscountCode) != "" {
		discount, err = s.discounts.Validate(ctx, req.DiscountCode, coupon.Customer{UserID: userID, GuestEmail: guestEmail}, subtotal)
		if err != nil {
			s.logger.Info().Err(err).Str("discount_code", req.DiscountCode).Msg("discount code rejected")
			return nil, err
		}
	}

	var discountCents int64
	if discount != nil {
		discountCents = discount.DiscountCents
	}

	redemption, err := s.points.Quote(ctx, userID, req.RedeemPoints, subtotal+shipping-discountCents)
	if err != nil {
		s.logger.Info().Err(err).Int64("requested_points", req.RedeemPoints).Msg("points redemption rejected")
		return nil, err
	}

	now := s.now()
	order := &model.Order{
		ID:                  uuid.New(),
		UserID:              userID,
		Items:               items,
		ShippingAddress:     req.Shipping,
		BillingAddress:      req.Billing,
		PaymentMethod:       req.PaymentMethod,
		SubtotalCents:       subtotal,
		ShippingCents:       shipping,
		DiscountCents:       discountCents,
		PointsDiscountCents: redemption.Cents,
		TotalCents:          max(0, subtotal+shipping-discountCents-redemption.Cents),
		BonusPointsRedeemed: redemption.Points,
		Status:              model.OrderStatusPending,
		TrackingInfo:        []model.TrackingInfo{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if userID == nil {
		order.GuestEmail = guestEmail
		order.GuestName = strings.TrimSpace(req.GuestName)
	}
	if discount != nil {
		order.DiscountID = &discount.DiscountID
		order.DiscountCode = discount.Code
	}
	order.BonusPointsEarned = s.points.AccrueOnOrder(order)
	if order.BonusPointsEarned > 0 {
		at := now.Add(s.points.GrantDelay())
		order.BonusPointsScheduledAt = &at
	}

	undo := &compensations{logger: s.logger}

	for _, line := range lines {
		res, err := s.stock.Reserve(ctx, line.product, line.selection, line.item.Quantity)
		if err != nil {
			s.logger.Info().Err(err).Str("product_id", line.product.ID).Msg("stock reservation failed")
			undo.rollback(ctx)
			return nil, err
		}
		undo.add("release stock "+line.product.ID, func(ctx context.Context) error {
			s.stock.Release(ctx, res)
			return nil
		})
	}

	if redemption.Points > 0 {
		if err := s.points.Debit(ctx, *userID, redemption); err != nil {
			s.logger.Info().Err(err).Str("user_id", userID.String()).Msg("points debit failed")
			undo.rollback(ctx)
			return nil, err
		}
		undo.add("refund points", func(ctx context.Context) error {
			return s.points.Refund(ctx, *userID, redemption)
		})
	}

	if discount != nil {
		if err := s.discounts.Consume(ctx, discount.DiscountID); err != nil {
			s.logger.Info().Err(err).Str("discount_code", discount.Code).Msg("discount consumption failed")
			undo.rollback(ctx)
			return nil, err
		}
		undo.add("release discount use", func(ctx context.Context) error {
			s.discounts.Release(ctx, discount.DiscountID)
			return nil
		})
	}

	if err := s.insert(ctx, order); err != nil {
		undo.rollback(ctx)
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int64("total_cents", order.TotalCents).
		Int("item_count", len(order.Items)).
		Msg("order created")

	if order.BonusPointsScheduledAt != nil {
		if _, err := s.points.ScheduleGrantAt(ctx, *userID, model.GrantSourceOrder, order.ID.String(),
			"order "+order.OrderNumber, order.BonusPointsEarned, *order.BonusPointsScheduledAt); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to schedule order grant")
		}
	}

	contact := order.GuestEmail
	if caller != nil {
		contact = caller.Email
	}
	s.notifier.OrderConfirmed(ctx, contact, order)

	return order, nil
}

// insert stores order under a fresh number, retrying when a concurrent
// checkout claimed the same number first.
func (s *orderService) insert(ctx context.Context, order *model.Order) error {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to allocate order number")
			return err
		}
		order.OrderNumber = number

		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
			return fmt.Errorf("failed to create order: %w", err)
		}
		s.logger.Warn().Str("order_number", number).Int("attempt", attempt+1).Msg("order number collision")
	}
	return model.ErrOrderNumberTaken
}

// priceCart loads every product once and turns request lines into order
// items priced from the current catalogue, checking stock on the snapshot.
func (s *orderService) priceCart(ctx context.Context, reqItems []model.OrderItemRequest) ([]cartLine, error) {
	ids := make([]string, 0, len(reqItems))
	seen := make(map[string]bool, len(reqItems))
	for _, item := range reqItems {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("product_count", len(ids)).Msg("failed to load products")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]cartLine, 0, len(reqItems))
	for _, item := range reqItems {
		product, ok := byID[item.ProductID]
		if !ok {
			s.logger.Info().Str("product_id", item.ProductID).Msg("product not found")
			return nil, model.ErrProductNotFound.WithMessage(fmt.Sprintf("product %s not found", item.ProductID))
		}

		selection := stock.Selection(item.Variations)
		if err := stock.Check(product, selection, item.Quantity); err != nil {
			return nil, err
		}

		unit := product.PriceCents
		var variations map[string]string
		if product.HasVariations() {
			variations = make(map[string]string, len(selection))
			for group, value := range selection {
				unit += product.Option(group, value).PriceAdjustmentCents
				variations[group] = value
			}
		}

		lines = append(lines, cartLine{
			product:   product,
			selection: selection,
			item: model.OrderItem{
				ProductID:      product.ID,
				Name:           product.Name,
				UnitPriceCents: unit,
				Quantity:       item.Quantity,
				Variations:     variations,
				Image:          product.Image,
			},
		})
	}
	return lines, nil
}

// ensureUser records the identity provider's view of the caller so grants and
// balances have a row to attach to.
func (s *orderService) ensureUser(ctx context.Context, caller *model.Identity) error {
	user := &model.User{ID: caller.UserID, Email: caller.Email, Name: caller.Name}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", caller.UserID.String()).Msg("failed to sync user")
		return fmt.Errorf("failed to sync user: %w", err)
	}
	return nil
}

// GetByID returns the order when the caller owns it or is an admin.
func (s *orderService) GetByID(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanView(order) {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not visible to caller")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) load(ctx context.Context, id uuid.UUID) (*model.Order, error) {
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

// CheckDiscount previews a code. It never consumes a use. Anonymous previews
// without an email skip the per-customer check; CreateOrder still enforces it.
func (s *orderService) CheckDiscount(ctx context.Context, caller *model.Identity, req *model.DiscountCheckRequest) (*model.DiscountResult, error) {
	if req == nil {
		return nil, model.NewValidationError("discount request is required")
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	customer := coupon.Customer{GuestEmail: req.GuestEmail}
	if caller != nil {
		id := caller.UserID
		customer = coupon.Customer{UserID: &id}
	}
	return s.discounts.Validate(ctx, req.Code, customer, req.SubtotalCents)
}

// UpdateStatus applies an admin status change. Return states are owned by
// the return flow and cannot be set here.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown order status %q", status))
	}
	if status == model.OrderStatusReturnRequested || status == model.OrderStatusReturnCompleted {
		return nil, model.ErrInvalidTransition.WithMessage("return states are set by the return process")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(status) {
		return nil, model.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
	}

	now := s.now()
	previous := order.Status
	order.Status = status
	order.UpdatedAt = now

	switch status {
	case model.OrderStatusShipped:
		order.ShippedAt = &now
	case model.OrderStatusDelivered:
		order.DeliveredAt = &now
		s.ensureOrderGrant(ctx, order)
	case model.OrderStatusCancelled:
		if _, err := s.points.CancelOrderGrant(ctx, order.ID); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel order grant")
		}
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("order status changed")

	return order, nil
}

// ensureOrderGrant schedules the order's earned points unless a grant
// already exists. Failures are logged; delivery is not blocked by them.
func (s *orderService) ensureOrderGrant(ctx context.Context, order *model.Order) {
	if order.UserID == nil || order.BonusPointsEarned <= 0 {
		return
	}
	at := s.now().Add(s.points.GrantDelay())
	if order.BonusPointsScheduledAt != nil {
		at = *order.BonusPointsScheduledAt
	}

	grant, err := s.points.ScheduleGrantAt(ctx, *order.UserID, model.GrantSourceOrder, order.ID.String(),
		"order "+order.OrderNumber, order.BonusPointsEarned, at)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to schedule order grant")
		return
	}
	order.BonusPointsScheduledAt = &grant.ScheduledAt
}

// AddTracking appends a tracking entry and tells the customer.
func (s *orderService) AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.NewValidationError("tracking request is required")
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusCancelled || order.Status == model.OrderStatusPending {
		return nil, model.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot add tracking to a %s order", order.Status))
	}

	now := s.now()
	entry := model.TrackingInfo{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		URL:            req.URL,
		AddedAt:        now,
	}
	order.TrackingInfo = append(order.TrackingInfo, entry)
	order.UpdatedAt = now

	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to add tracking")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("carrier", entry.Carrier).
		Msg("tracking added")

	s.notifier.TrackingAdded(ctx, s.contactEmail(ctx, order), order, entry)
	return order, nil
}

func (s *orderService) contactEmail(ctx context.Context, order *model.Order) string {
	if order.UserID == nil {
		return order.GuestEmail
	}
	user, err := s.userRepo.GetByID(ctx, *order.UserID)
	if err != nil || user == nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("no contact email for order")
		return ""
	}
	return order.ContactEmail(user.Email)
}

// AnonymizeGuest removes guest personal data. Totals and items stay intact.
func (s *orderService) AnonymizeGuest(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsGuest() {
		return nil, model.NewValidationError("only guest orders can be anonymised")
	}

	order.GuestEmailHash = model.HashEmail(order.GuestEmail)
	order.GuestEmail = ""
	order.GuestName = ""
	order.ShippingAddress = model.Address{Country: order.ShippingAddress.Country}
	order.BillingAddress = nil
	order.UpdatedAt = s.now()

	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to anonymise order")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info().Str("order_id", order.ID.String()).Msg("guest order anonymised")
	return order, nil
}

// LinkGuestOrders moves guest orders placed with the caller's verified email
// to their account and schedules the points those orders earn.
func (s *orderService) LinkGuestOrders(ctx context.Context, caller *model.Identity) (int, error) {
	if caller == nil || !caller.EmailVerified {
		return 0, model.ErrForbidden.WithMessage("a verified email is required to link orders")
	}
	if err := s.ensureUser(ctx, caller); err != nil {
		return 0, err
	}

	orders, err := s.orderRepo.ListGuestByEmail(ctx, caller.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to list guest orders: %w", err)
	}

	linked := 0
	for i := range orders {
		order := &orders[i]
		userID := caller.UserID
		order.UserID = &userID
		order.GuestEmail = ""
		order.GuestName = ""
		order.UpdatedAt = s.now()

		if order.Status != model.OrderStatusCancelled {
			order.BonusPointsEarned = s.points.AccrueOnOrder(order)
			s.ensureOrderGrant(ctx, order)
		}

		if err := s.orderRepo.Update(ctx, order); err != nil {
			return linked, fmt.Errorf("failed to link order %s: %w", order.OrderNumber, err)
		}
		linked++
	}

	s.logger.Info().
		Str("user_id", caller.UserID.String()).
		Int("linked", linked).
		Msg("guest orders linked")

	return linked, nil
}
