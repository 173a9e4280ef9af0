package repository

import (
	"context"
	"testing"
	"time"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserRepository(pool, zerolog.Nop())
	discounts := NewDiscountRepository(pool, zerolog.Nop())
	orders := NewOrderRepository(pool, zerolog.Nop())

	userID := uuid.New()
	require.NoError(t, users.Upsert(ctx, &model.User{ID: userID, Email: "kim@example.com", Name: "Kim"}))

	code := &model.DiscountCode{Code: "fixed500", Type: model.DiscountTypeFixed, Value: 500, Active: true, OneTimeUse: true}
	require.NoError(t, discounts.Upsert(ctx, code))

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := &model.Order{
		ID:          uuid.New(),
		OrderNumber: "3DS-26001-4821",
		UserID:      &userID,
		Items: []model.OrderItem{
			{ProductID: "P001", Name: "Shirt", UnitPriceCents: 2500, Quantity: 2, Variations: map[string]string{"Size": "M"}},
		},
		ShippingAddress: model.Address{Name: "Kim", Street: "Main 1", PostalCode: "1010", City: "Vienna", Country: "AT"},
		PaymentMethod:   model.PaymentMethodCard,
		SubtotalCents:   5000,
		ShippingCents:   495,
		DiscountCents:   500,
		DiscountID:      &code.ID,
		DiscountCode:    code.Code,
		TotalCents:      4995,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, order))

	got, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.Equal(t, order.Items, got.Items)
	assert.Equal(t, "Vienna", got.ShippingAddress.City)
	assert.Nil(t, got.BillingAddress)
	assert.Empty(t, got.TrackingInfo)

	duplicate := *order
	duplicate.ID = uuid.New()
	assert.ErrorIs(t, orders.Create(ctx, &duplicate), ErrDuplicateOrderNumber)

	used, err := orders.HasUsedDiscount(ctx, code.ID, &userID, "")
	require.NoError(t, err)
	assert.True(t, used)

	missing, err := orders.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_UpdateAndGuestLookup(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	orders := NewOrderRepository(pool, zerolog.Nop())

	now := time.Now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		OrderNumber:     "3DS-26002-1111",
		GuestEmail:      "Guest@Example.com",
		GuestName:       "Guest",
		Items:           []model.OrderItem{{ProductID: "P001", Name: "Mug", UnitPriceCents: 1500, Quantity: 1}},
		ShippingAddress: model.Address{Name: "Guest", Street: "Side 2", PostalCode: "2000", City: "Graz", Country: "AT"},
		PaymentMethod:   model.PaymentMethodInvoice,
		SubtotalCents:   1500,
		ShippingCents:   495,
		TotalCents:      1995,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, order))

	guestOrders, err := orders.ListGuestByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	require.Len(t, guestOrders, 1)

	shipped := now.Add(time.Hour)
	order.Status = model.OrderStatusShipped
	order.ShippedAt = &shipped
	order.TrackingInfo = []model.TrackingInfo{{Carrier: "DHL", TrackingNumber: "123", AddedAt: shipped}}
	require.NoError(t, orders.Update(ctx, order))

	got, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, got.Status)
	require.Len(t, got.TrackingInfo, 1)
	assert.Equal(t, "DHL", got.TrackingInfo[0].Carrier)

	unknown := *order
	unknown.ID = uuid.New()
	assert.ErrorIs(t, orders.Update(ctx, &unknown), model.ErrOrderNotFound)
}

func TestOrderRepository_HasUsedDiscount_Guest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	orders := NewOrderRepository(pool, zerolog.Nop())
	discounts := NewDiscountRepository(pool, zerolog.Nop())

	code := &model.DiscountCode{Code: "once", Type: model.DiscountTypeFixed, Value: 500, Active: true, OneTimeUse: true}
	require.NoError(t, discounts.Upsert(ctx, code))

	now := time.Now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		OrderNumber:     "3DS-26003-2222",
		GuestEmail:      "guest@example.com",
		Items:           []model.OrderItem{{ProductID: "P001", Name: "Mug", UnitPriceCents: 1500, Quantity: 1}},
		ShippingAddress: model.Address{Name: "Guest", Street: "Side 2", PostalCode: "2000", City: "Graz", Country: "AT"},
		PaymentMethod:   model.PaymentMethodInvoice,
		SubtotalCents:   1500,
		ShippingCents:   495,
		DiscountCents:   500,
		DiscountID:      &code.ID,
		DiscountCode:    code.Code,
		TotalCents:      1495,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, order))

	order.GuestEmailHash = model.HashEmail(order.GuestEmail)
	order.GuestEmail = ""
	require.NoError(t, orders.Update(ctx, order))

	got, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.GuestEmail)
	assert.Equal(t, model.HashEmail("guest@example.com"), got.GuestEmailHash)

	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{name: "anonymised guest", email: " Guest@Example.com ", want: true},
		{name: "other guest", email: "other@example.com", want: false},
		{name: "no email", email: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, err := orders.HasUsedDiscount(ctx, code.ID, nil, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, used)
		})
	}
}

func TestDiscountRepository_UpsertKeepsUses(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	discounts := NewDiscountRepository(pool, zerolog.Nop())
	limit := 2

	code := &model.DiscountCode{Code: "summer", Type: model.DiscountTypePercent, Value: 10, Active: true, MaxGlobalUses: &limit}
	require.NoError(t, discounts.Upsert(ctx, code))

	for _, expected := range []bool{true, true, false} {
		ok, err := discounts.IncrementGlobalUses(ctx, code.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, ok)
	}

	redefined := &model.DiscountCode{Code: "SUMMER", Type: model.DiscountTypePercent, Value: 15, Active: true, MaxGlobalUses: &limit}
	require.NoError(t, discounts.Upsert(ctx, redefined))
	assert.Equal(t, code.ID, redefined.ID)
	assert.Equal(t, 2, redefined.GlobalUses)

	got, err := discounts.GetByCode(ctx, " summer ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 15.0, got.Value)
	require.NotNil(t, got.MaxGlobalUses)
	assert.Equal(t, 2, *got.MaxGlobalUses)
}

func TestUserRepository_Points(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserRepository(pool, zerolog.Nop())

	userID := uuid.New()
	require.NoError(t, users.Upsert(ctx, &model.User{ID: userID, Email: "Ana@Example.com", Name: "Ana"}))

	_, err := users.DebitPoints(ctx, userID, 1)
	assert.ErrorIs(t, err, model.ErrInsufficientPoints)

	balance, err := users.RefundPoints(ctx, userID, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)

	balance, err = users.DebitPoints(ctx, userID, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	require.NoError(t, users.Upsert(ctx, &model.User{ID: userID, Email: "ana@example.com", Name: "Ana B"}))
	u, err := users.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(1000), u.BonusPoints)

	_, err = users.DebitPoints(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestGrantRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserRepository(pool, zerolog.Nop())
	grants := NewGrantRepository(pool, zerolog.Nop())

	userID := uuid.New()
	require.NoError(t, users.Upsert(ctx, &model.User{ID: userID, Email: "lee@example.com"}))

	now := time.Now().UTC()
	newGrant := func(source model.GrantSource, ref string, points int64, at time.Time) *model.Grant {
		return &model.Grant{
			ID:            uuid.New(),
			UserID:        userID,
			Source:        source,
			SourceRef:     ref,
			PointsAwarded: points,
			ScheduledAt:   at,
			CreatedAt:     now,
		}
	}
	due := newGrant(model.GrantSourceOrder, "order-1", 262, now.Add(-time.Hour))
	later := newGrant(model.GrantSourceReview, "review-1", 50, now.Add(24*time.Hour))
	require.NoError(t, grants.Create(ctx, due))
	require.NoError(t, grants.Create(ctx, later))
	assert.ErrorIs(t, grants.Create(ctx, newGrant(model.GrantSourceOrder, "order-1", 10, now)), ErrDuplicateGrant)

	list, err := grants.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	ok, err := grants.Credit(ctx, due.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = grants.Credit(ctx, due.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(262), u.BonusPoints)

	ok, err = grants.SetPoints(ctx, due.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "credited grants are frozen")

	ok, err = grants.Reschedule(ctx, later.ID, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = grants.Cancel(ctx, later.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := grants.FindBySource(ctx, model.GrantSourceReview, "review-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Credited)
	assert.Zero(t, found.PointsAwarded)
}

func TestReturnRepository_CreateAndUpdate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	orders := NewOrderRepository(pool, zerolog.Nop())
	returns := NewReturnRepository(pool, zerolog.Nop())

	now := time.Now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		OrderNumber:     "3DS-26003-2222",
		GuestEmail:      "g@example.com",
		Items:           []model.OrderItem{{ProductID: "P001", Name: "Mug", UnitPriceCents: 1500, Quantity: 2}},
		ShippingAddress: model.Address{Name: "G", Street: "S", PostalCode: "1", City: "C", Country: "AT"},
		PaymentMethod:   model.PaymentMethodCard,
		SubtotalCents:   3000,
		ShippingCents:   495,
		TotalCents:      3495,
		Status:          model.OrderStatusShipped,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, order))

	ret := &model.ReturnRequest{
		ID:          uuid.New(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Items:       []model.ReturnItem{{ProductID: "P001", Name: "Mug", UnitPriceCents: 1500, Quantity: 1}},
		Status:      model.ReturnStatusReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, returns.Create(ctx, ret))

	ret.Status = model.ReturnStatusCompleted
	ret.Items[0].Accepted = true
	require.NoError(t, returns.Update(ctx, ret))

	list, err := returns.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ReturnStatusCompleted, list[0].Status)
	assert.True(t, list[0].Items[0].Accepted)
}

func TestSequencer_Next(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seq := NewSequencer(pool, zerolog.Nop())

	first, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	second, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	other, err := seq.Next(ctx, 2027)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), other)
}
