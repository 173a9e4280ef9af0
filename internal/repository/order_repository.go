package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"kart-ledger/internal/database"
	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
// Line items, addresses and tracking entries are stored as JSONB documents.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

const orderColumns = `
	id, order_number, user_id, guest_email, guest_name, items, shipping_address,
	billing_address, payment_method, subtotal_cents, shipping_cents, discount_cents,
	discount_id, discount_code, points_discount_cents, total_cents, bonus_points_earned,
	bonus_points_redeemed, bonus_points_scheduled_at, status, tracking_info, shipped_at,
	delivered_at, created_at, updated_at, guest_email_hash`

// orderDocs holds the JSON-encoded parts of an order row.
type orderDocs struct {
	items    []byte
	shipping []byte
	billing  []byte
	tracking []byte
}

func encodeOrderDocs(o *model.Order) (orderDocs, error) {
	var docs orderDocs
	var err error

	items := o.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	if docs.items, err = json.Marshal(items); err != nil {
		return docs, fmt.Errorf("failed to encode items: %w", err)
	}
	if docs.shipping, err = json.Marshal(o.ShippingAddress); err != nil {
		return docs, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	if o.BillingAddress != nil {
		if docs.billing, err = json.Marshal(o.BillingAddress); err != nil {
			return docs, fmt.Errorf("failed to encode billing address: %w", err)
		}
	}
	tracking := o.TrackingInfo
	if tracking == nil {
		tracking = []model.TrackingInfo{}
	}
	if docs.tracking, err = json.Marshal(tracking); err != nil {
		return docs, fmt.Errorf("failed to encode tracking: %w", err)
	}
	return docs, nil
}

// Create inserts a new order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	docs, err := encodeOrderDocs(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	_, err = r.pool.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.GuestEmail, order.GuestName,
		docs.items, docs.shipping, docs.billing, string(order.PaymentMethod),
		order.SubtotalCents, order.ShippingCents, order.DiscountCents, order.DiscountID,
		order.DiscountCode, order.PointsDiscountCents, order.TotalCents, order.BonusPointsEarned,
		order.BonusPointsRedeemed, order.BonusPointsScheduledAt, string(order.Status), docs.tracking,
		order.ShippedAt, order.DeliveredAt, order.CreatedAt, order.UpdatedAt, order.GuestEmailHash,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "orders_order_number_key") {
			r.logger.Warn().Str("order_number", order.OrderNumber).Msg("order number collision")
			return ErrDuplicateOrderNumber
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

// ExistsByNumber reports whether an order number is already taken.
func (r *orderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, orderNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order number: %w", err)
	}
	return exists, nil
}

// HasUsedDiscount reports whether the customer has an order referencing the code.
func (r *orderRepository) HasUsedDiscount(ctx context.Context, discountID uuid.UUID, userID *uuid.UUID, guestEmail string) (bool, error) {
	var (
		exists bool
		err    error
	)
	if userID != nil {
		err = r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE discount_id = $1 AND user_id = $2)`,
			discountID, *userID,
		).Scan(&exists)
	} else {
		email := strings.TrimSpace(guestEmail)
		if email == "" {
			return false, nil
		}
		err = r.pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM orders
				WHERE discount_id = $1 AND user_id IS NULL
					AND (LOWER(guest_email) = LOWER($2) OR guest_email_hash = $3)
			)`,
			discountID, email, model.HashEmail(email),
		).Scan(&exists)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("discount_id", discountID.String()).Msg("failed to check discount usage")
		return false, fmt.Errorf("failed to check discount usage: %w", err)
	}
	return exists, nil
}

// Update persists the mutable part of an order.
func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	docs, err := encodeOrderDocs(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders SET
			user_id = $2,
			guest_email = $3,
			guest_name = $4,
			shipping_address = $5,
			billing_address = $6,
			bonus_points_earned = $7,
			bonus_points_scheduled_at = $8,
			status = $9,
			tracking_info = $10,
			shipped_at = $11,
			delivered_at = $12,
			updated_at = $13,
			guest_email_hash = $14
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		order.ID, order.UserID, order.GuestEmail, order.GuestName, docs.shipping, docs.billing,
		order.BonusPointsEarned, order.BonusPointsScheduledAt, string(order.Status), docs.tracking,
		order.ShippedAt, order.DeliveredAt, order.UpdatedAt, order.GuestEmailHash,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// ListGuestByEmail returns guest orders placed with email, newest first.
func (r *orderRepository) ListGuestByEmail(ctx context.Context, email string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id IS NULL AND LOWER(guest_email) = LOWER($1)
		ORDER BY created_at DESC
	`, strings.TrimSpace(email))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query guest orders")
		return nil, fmt.Errorf("failed to query guest orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                     model.Order
		docs                  orderDocs
		paymentMethod, status string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.GuestEmail, &o.GuestName, &docs.items,
		&docs.shipping, &docs.billing, &paymentMethod, &o.SubtotalCents, &o.ShippingCents,
		&o.DiscountCents, &o.DiscountID, &o.DiscountCode, &o.PointsDiscountCents, &o.TotalCents,
		&o.BonusPointsEarned, &o.BonusPointsRedeemed, &o.BonusPointsScheduledAt, &status,
		&docs.tracking, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt, &o.GuestEmailHash,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.Status = model.OrderStatus(status)

	if err := json.Unmarshal(docs.items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if err := json.Unmarshal(docs.shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if len(docs.billing) > 0 {
		o.BillingAddress = &model.Address{}
		if err := json.Unmarshal(docs.billing, o.BillingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode billing address: %w", err)
		}
	}
	if err := json.Unmarshal(docs.tracking, &o.TrackingInfo); err != nil {
		return nil, fmt.Errorf("failed to decode tracking: %w", err)
	}
	return &o, nil
}
