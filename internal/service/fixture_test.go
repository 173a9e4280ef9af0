package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"kart-ledger/internal/coupon"
	"kart-ledger/internal/model"
	"kart-ledger/internal/notify"
	"kart-ledger/internal/points"
	"kart-ledger/internal/repository"
	"kart-ledger/internal/repository/memory"
	"kart-ledger/internal/stock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSender keeps every message instead of sending it.
type recordingSender struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg *notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *recordingSender) sent() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

// exhaustedDiscounts loses every race for the last global use.
type exhaustedDiscounts struct {
	repository.DiscountRepository
}

func (exhaustedDiscounts) IncrementGlobalUses(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

// collidingOrders reports a duplicate order number for the first collisions
// inserts.
type collidingOrders struct {
	repository.OrderRepository
	collisions int
	calls      int
}

func (c *collidingOrders) Create(ctx context.Context, order *model.Order) error {
	c.calls++
	if c.calls <= c.collisions {
		return repository.ErrDuplicateOrderNumber
	}
	return c.OrderRepository.Create(ctx, order)
}

type fixtureOptions struct {
	discounts func(repository.DiscountRepository) repository.DiscountRepository
	orders    func(repository.OrderRepository) repository.OrderRepository
}

type fixture struct {
	store   *memory.Store
	clock   *testClock
	sender  *recordingSender
	points  *points.Ledger
	orders  *orderService
	returns *returnService
}

func newFixture(t *testing.T, opts ...fixtureOptions) *fixture {
	t.Helper()

	var opt fixtureOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	logger := zerolog.Nop()
	store := memory.New()
	clock := &testClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}

	var discountRepo repository.DiscountRepository = store.Discounts()
	if opt.discounts != nil {
		discountRepo = opt.discounts(discountRepo)
	}
	var orderRepo repository.OrderRepository = store.Orders()
	if opt.orders != nil {
		orderRepo = opt.orders(orderRepo)
	}

	validator := coupon.NewValidator(discountRepo, orderRepo, logger).WithClock(clock.Now)
	pointsLedger := points.NewLedger(store.Users(), store.Grants(), points.Config{}, logger).WithClock(clock.Now)
	numbers := NewOrderNumbers(store.Sequencer(), orderRepo)
	numbers.now = clock.Now
	notifier := notify.NewNotifier(sender, logger)

	orders := NewOrderService(orderRepo, store.Products(), store.Users(), stock.NewLedger(store.Products(), logger),
		validator, pointsLedger, numbers, notifier, logger).(*orderService)
	orders.now = clock.Now

	returns := NewReturnService(store.Returns(), orderRepo, store.Users(), pointsLedger, notifier, logger).(*returnService)
	returns.now = clock.Now

	f := &fixture{
		store:   store,
		clock:   clock,
		sender:  sender,
		points:  pointsLedger,
		orders:  orders,
		returns: returns,
	}
	f.seedCatalogue(t)
	return f
}

func (f *fixture) seedCatalogue(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	products := []model.Product{
		{ID: "mug", Name: "Mug", PriceCents: 1500, StockQuantity: 10},
		{ID: "poster", Name: "Poster", PriceCents: 7500, StockQuantity: 5},
		{
			ID:            "tee",
			Name:          "Logo Tee",
			PriceCents:    2500,
			StockQuantity: 99,
			Variations: []model.VariationGroup{
				{
					Name: "Size",
					Options: []model.VariationOption{
						{Value: "S", StockQuantity: 0},
						{Value: "M", StockQuantity: 5},
						{Value: "L", PriceAdjustmentCents: 200, StockQuantity: 3},
					},
				},
				{
					Name: "Colour",
					Options: []model.VariationOption{
						{Value: "Black", StockQuantity: 10},
						{Value: "White", StockQuantity: 1},
					},
				},
			},
		},
	}
	for i := range products {
		require.NoError(t, f.store.Products().Save(ctx, &products[i]))
	}
}

func (f *fixture) addDiscount(t *testing.T, d model.DiscountCode) model.DiscountCode {
	t.Helper()
	require.NoError(t, f.store.Discounts().Upsert(context.Background(), &d))
	return d
}

func (f *fixture) customer(t *testing.T, balance int64) *model.Identity {
	t.Helper()

	id := uuid.New()
	caller := &model.Identity{
		UserID:        id,
		Email:         id.String()[:8] + "@example.com",
		Name:          "Test Customer",
		EmailVerified: true,
	}
	require.NoError(t, f.store.Users().Upsert(context.Background(), &model.User{ID: id, Email: caller.Email}))
	f.store.SetBalance(id, balance)
	return caller
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	user, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.BonusPoints
}

func (f *fixture) stockOf(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.StockQuantity
}

func (f *fixture) optionStock(t *testing.T, productID, group, value string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	opt := p.Option(group, value)
	require.NotNil(t, opt)
	return opt.StockQuantity
}

var testAddress = model.Address{
	Name:       "Ada Lovelace",
	Street:     "1 Analytical Way",
	PostalCode: "10115",
	City:       "Berlin",
	Country:    "DE",
}

func orderRequest(items ...model.OrderItemRequest) *model.OrderRequest {
	return &model.OrderRequest{
		Items:         items,
		Shipping:      testAddress,
		PaymentMethod: model.PaymentMethodCard,
	}
}

func line(productID string, quantity int, variations ...string) model.OrderItemRequest {
	item := model.OrderItemRequest{ProductID: productID, Quantity: quantity}
	if len(variations) > 0 {
		item.Variations = map[string]string{}
		for i := 0; i+1 < len(variations); i += 2 {
			item.Variations[variations[i]] = variations[i+1]
		}
	}
	return item
}

var admin = &model.Identity{UserID: uuid.New(), Email: "admin@example.com", Role: model.RoleAdmin}
