// Package memory holds an in-process implementation of every repository
// interface. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"kart-ledger/internal/model"
	"kart-ledger/internal/repository"

	"github.com/google/uuid"
)

// Store keeps all collections behind one lock. Values are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	products  map[string]model.Product
	orders    map[uuid.UUID]model.Order
	discounts map[string]model.DiscountCode
	users     map[uuid.UUID]model.User
	grants    map[uuid.UUID]model.Grant
	returns   map[uuid.UUID]model.ReturnRequest
	sequences map[int]int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products:  map[string]model.Product{},
		orders:    map[uuid.UUID]model.Order{},
		discounts: map[string]model.DiscountCode{},
		users:     map[uuid.UUID]model.User{},
		grants:    map[uuid.UUID]model.Grant{},
		returns:   map[uuid.UUID]model.ReturnRequest{},
		sequences: map[int]int64{},
	}
}

func (s *Store) Products() repository.ProductRepository   { return productStore{s} }
func (s *Store) Orders() repository.OrderRepository       { return orderStore{s} }
func (s *Store) Discounts() repository.DiscountRepository { return discountStore{s} }
func (s *Store) Users() repository.UserRepository         { return userStore{s} }
func (s *Store) Grants() repository.GrantRepository       { return grantStore{s} }
func (s *Store) Returns() repository.ReturnRepository     { return returnStore{s} }
func (s *Store) Sequencer() repository.Sequencer          { return sequenceStore{s} }

func cloneProduct(p model.Product) model.Product {
	groups := make([]model.VariationGroup, len(p.Variations))
	for i, g := range p.Variations {
		groups[i] = model.VariationGroup{Name: g.Name, Options: slices.Clone(g.Options)}
	}
	if len(groups) == 0 {
		groups = nil
	}
	p.Variations = groups
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneOrder(o model.Order) model.Order {
	items := make([]model.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Variations = maps.Clone(it.Variations)
		items[i] = it
	}
	o.Items = items
	o.TrackingInfo = slices.Clone(o.TrackingInfo)
	if o.BillingAddress != nil {
		b := *o.BillingAddress
		o.BillingAddress = &b
	}
	o.UserID = cloneUUID(o.UserID)
	o.DiscountID = cloneUUID(o.DiscountID)
	o.BonusPointsScheduledAt = cloneTime(o.BonusPointsScheduledAt)
	o.ShippedAt = cloneTime(o.ShippedAt)
	o.DeliveredAt = cloneTime(o.DeliveredAt)
	return o
}

func cloneDiscount(d model.DiscountCode) model.DiscountCode {
	d.StartsAt = cloneTime(d.StartsAt)
	d.EndsAt = cloneTime(d.EndsAt)
	if d.MaxGlobalUses != nil {
		n := *d.MaxGlobalUses
		d.MaxGlobalUses = &n
	}
	return d
}

func cloneGrant(g model.Grant) model.Grant {
	g.CreditedAt = cloneTime(g.CreditedAt)
	return g
}

func cloneReturn(r model.ReturnRequest) model.ReturnRequest {
	items := make([]model.ReturnItem, len(r.Items))
	for i, it := range r.Items {
		it.Variations = maps.Clone(it.Variations)
		items[i] = it
	}
	r.Items = items
	r.UserID = cloneUUID(r.UserID)
	return r
}

type productStore struct{ s *Store }

func (p productStore) GetAll(_ context.Context, limit, offset int) ([]model.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	all := make([]model.Product, 0, len(p.s.products))
	for _, prod := range p.s.products {
		all = append(all, cloneProduct(prod))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if offset >= len(all) {
		return []model.Product{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (p productStore) GetByID(_ context.Context, id string) (*model.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	prod, ok := p.s.products[id]
	if !ok {
		return nil, nil
	}
	c := cloneProduct(prod)
	return &c, nil
}

func (p productStore) GetByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := []model.Product{}
	for _, id := range ids {
		if prod, ok := p.s.products[id]; ok {
			out = append(out, cloneProduct(prod))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p productStore) Save(_ context.Context, product *model.Product) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	c := cloneProduct(*product)
	c.InStock = c.StockQuantity > 0
	for gi := range c.Variations {
		for oi := range c.Variations[gi].Options {
			opt := &c.Variations[gi].Options[oi]
			opt.InStock = opt.StockQuantity > 0
		}
	}
	p.s.products[c.ID] = c
	return nil
}

func (p productStore) DecrementStock(_ context.Context, productID string, quantity int) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	prod, ok := p.s.products[productID]
	if !ok {
		return 0, model.ErrProductNotFound
	}
	if prod.StockQuantity < quantity {
		return 0, model.ErrInsufficientStock
	}
	prod.StockQuantity -= quantity
	prod.InStock = prod.StockQuantity > 0
	p.s.products[productID] = prod
	return prod.StockQuantity, nil
}

func (p productStore) IncrementStock(_ context.Context, productID string, quantity int) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	prod, ok := p.s.products[productID]
	if !ok {
		return 0, model.ErrProductNotFound
	}
	prod.StockQuantity += quantity
	prod.InStock = prod.StockQuantity > 0
	p.s.products[productID] = prod
	return prod.StockQuantity, nil
}

func (p productStore) adjustOption(productID, group, value string, delta int) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	prod, ok := p.s.products[productID]
	if !ok {
		return 0, model.ErrProductNotFound
	}
	prod = cloneProduct(prod)
	opt := prod.Option(group, value)
	if opt == nil {
		return 0, model.ErrProductNotFound
	}
	if opt.StockQuantity+delta < 0 {
		return 0, model.ErrInsufficientStock
	}
	opt.StockQuantity += delta
	opt.InStock = opt.StockQuantity > 0
	remaining := opt.StockQuantity
	p.s.products[productID] = prod
	return remaining, nil
}

func (p productStore) DecrementOptionStock(_ context.Context, productID, group, value string, quantity int) (int, error) {
	return p.adjustOption(productID, group, value, -quantity)
}

func (p productStore) IncrementOptionStock(_ context.Context, productID, group, value string, quantity int) (int, error) {
	return p.adjustOption(productID, group, value, quantity)
}

type orderStore struct{ s *Store }

func (o orderStore) Create(_ context.Context, order *model.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	for _, existing := range o.s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	o.s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (o orderStore) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	order, ok := o.s.orders[id]
	if !ok {
		return nil, nil
	}
	c := cloneOrder(order)
	return &c, nil
}

func (o orderStore) ExistsByNumber(_ context.Context, orderNumber string) (bool, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	for _, existing := range o.s.orders {
		if existing.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (o orderStore) HasUsedDiscount(_ context.Context, discountID uuid.UUID, userID *uuid.UUID, guestEmail string) (bool, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	for _, existing := range o.s.orders {
		if existing.DiscountID == nil || *existing.DiscountID != discountID {
			continue
		}
		if userID != nil && existing.OwnedBy(*userID) {
			return true, nil
		}
		if userID == nil && existing.IsGuest() && usedByGuest(existing, guestEmail) {
			return true, nil
		}
	}
	return false, nil
}

// usedByGuest matches live guest orders by email and anonymised ones by hash.
func usedByGuest(order model.Order, guestEmail string) bool {
	email := strings.TrimSpace(guestEmail)
	if email == "" {
		return false
	}
	if order.GuestEmail != "" {
		return strings.EqualFold(order.GuestEmail, email)
	}
	return order.GuestEmailHash != "" && order.GuestEmailHash == model.HashEmail(email)
}

func (o orderStore) Update(_ context.Context, order *model.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	existing, ok := o.s.orders[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	next := cloneOrder(*order)
	existing.UserID = next.UserID
	existing.GuestEmail = next.GuestEmail
	existing.GuestName = next.GuestName
	existing.GuestEmailHash = next.GuestEmailHash
	existing.ShippingAddress = next.ShippingAddress
	existing.BillingAddress = next.BillingAddress
	existing.BonusPointsEarned = next.BonusPointsEarned
	existing.BonusPointsScheduledAt = next.BonusPointsScheduledAt
	existing.Status = next.Status
	existing.TrackingInfo = next.TrackingInfo
	existing.ShippedAt = next.ShippedAt
	existing.DeliveredAt = next.DeliveredAt
	existing.UpdatedAt = next.UpdatedAt
	o.s.orders[order.ID] = existing
	return nil
}

func (o orderStore) ListGuestByEmail(_ context.Context, email string) ([]model.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	out := []model.Order{}
	for _, existing := range o.s.orders {
		if existing.IsGuest() && strings.EqualFold(existing.GuestEmail, strings.TrimSpace(email)) {
			out = append(out, cloneOrder(existing))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type discountStore struct{ s *Store }

func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (d discountStore) GetByCode(_ context.Context, code string) (*model.DiscountCode, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	dc, ok := d.s.discounts[normaliseCode(code)]
	if !ok {
		return nil, nil
	}
	c := cloneDiscount(dc)
	return &c, nil
}

func (d discountStore) byID(id uuid.UUID) (string, bool) {
	for code, dc := range d.s.discounts {
		if dc.ID == id {
			return code, true
		}
	}
	return "", false
}

func (d discountStore) IncrementGlobalUses(_ context.Context, id uuid.UUID) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	code, ok := d.byID(id)
	if !ok {
		return false, nil
	}
	dc := d.s.discounts[code]
	if dc.MaxGlobalUses != nil && dc.GlobalUses >= *dc.MaxGlobalUses {
		return false, nil
	}
	dc.GlobalUses++
	d.s.discounts[code] = dc
	return true, nil
}

func (d discountStore) DecrementGlobalUses(_ context.Context, id uuid.UUID) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if code, ok := d.byID(id); ok {
		dc := d.s.discounts[code]
		dc.GlobalUses = max(dc.GlobalUses-1, 0)
		d.s.discounts[code] = dc
	}
	return nil
}

func (d discountStore) Upsert(_ context.Context, code *model.DiscountCode) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	code.Code = normaliseCode(code.Code)
	if existing, ok := d.s.discounts[code.Code]; ok {
		code.ID = existing.ID
		code.GlobalUses = existing.GlobalUses
		code.CreatedAt = existing.CreatedAt
	} else {
		if code.ID == uuid.Nil {
			code.ID = uuid.New()
		}
		code.GlobalUses = 0
		if code.CreatedAt.IsZero() {
			code.CreatedAt = time.Now().UTC()
		}
	}
	d.s.discounts[code.Code] = cloneDiscount(*code)
	return nil
}

type userStore struct{ s *Store }

func (u userStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, user := range u.s.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return &user, nil
		}
	}
	return nil, nil
}

func (u userStore) Upsert(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if existing, ok := u.s.users[user.ID]; ok {
		user.BonusPoints = existing.BonusPoints
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u.s.users[user.ID] = *user
	return nil
}

// SetBalance overwrites a user's points balance. Only seeding and tests use it.
func (s *Store) SetBalance(id uuid.UUID, points int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[id]
	user.ID = id
	user.BonusPoints = points
	s.users[id] = user
}

func (u userStore) DebitPoints(_ context.Context, id uuid.UUID, points int64) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	if user.BonusPoints < points {
		return 0, model.ErrInsufficientPoints
	}
	user.BonusPoints -= points
	u.s.users[id] = user
	return user.BonusPoints, nil
}

func (u userStore) RefundPoints(_ context.Context, id uuid.UUID, points int64) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	user.BonusPoints += points
	u.s.users[id] = user
	return user.BonusPoints, nil
}

type grantStore struct{ s *Store }

func (g grantStore) Create(_ context.Context, grant *model.Grant) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	for _, existing := range g.s.grants {
		if existing.Source == grant.Source && existing.SourceRef == grant.SourceRef {
			return repository.ErrDuplicateGrant
		}
	}
	g.s.grants[grant.ID] = cloneGrant(*grant)
	return nil
}

func (g grantStore) GetByID(_ context.Context, id uuid.UUID) (*model.Grant, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	grant, ok := g.s.grants[id]
	if !ok {
		return nil, nil
	}
	c := cloneGrant(grant)
	return &c, nil
}

func (g grantStore) FindBySource(_ context.Context, source model.GrantSource, sourceRef string) (*model.Grant, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	for _, grant := range g.s.grants {
		if grant.Source == source && grant.SourceRef == sourceRef {
			c := cloneGrant(grant)
			return &c, nil
		}
	}
	return nil, nil
}

func (g grantStore) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Grant, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	out := []model.Grant{}
	for _, grant := range g.s.grants {
		if grant.UserID == userID {
			out = append(out, cloneGrant(grant))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (g grantStore) ListDue(_ context.Context, now time.Time, limit int) ([]model.Grant, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	out := []model.Grant{}
	for _, grant := range g.s.grants {
		if !grant.Credited && !grant.ScheduledAt.After(now) {
			out = append(out, cloneGrant(grant))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g grantStore) Credit(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	grant, ok := g.s.grants[id]
	if !ok || grant.Credited {
		return false, nil
	}
	user, ok := g.s.users[grant.UserID]
	if !ok {
		return false, model.ErrUserNotFound
	}

	grant.Credited = true
	grant.CreditedAt = &now
	g.s.grants[id] = grant

	user.BonusPoints += grant.PointsAwarded
	g.s.users[user.ID] = user
	return true, nil
}

func (g grantStore) update(id uuid.UUID, apply func(*model.Grant)) (bool, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	grant, ok := g.s.grants[id]
	if !ok || grant.Credited {
		return false, nil
	}
	apply(&grant)
	g.s.grants[id] = grant
	return true, nil
}

func (g grantStore) Cancel(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return g.update(id, func(grant *model.Grant) {
		grant.PointsAwarded = 0
		grant.Credited = true
		grant.CreditedAt = &now
	})
}

func (g grantStore) Reschedule(_ context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error) {
	return g.update(id, func(grant *model.Grant) { grant.ScheduledAt = scheduledAt })
}

func (g grantStore) SetPoints(_ context.Context, id uuid.UUID, points int64) (bool, error) {
	return g.update(id, func(grant *model.Grant) { grant.PointsAwarded = points })
}

type returnStore struct{ s *Store }

func (r returnStore) Create(_ context.Context, ret *model.ReturnRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.returns[ret.ID] = cloneReturn(*ret)
	return nil
}

func (r returnStore) GetByID(_ context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ret, ok := r.s.returns[id]
	if !ok {
		return nil, nil
	}
	c := cloneReturn(ret)
	return &c, nil
}

func (r returnStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []model.ReturnRequest{}
	for _, ret := range r.s.returns {
		if ret.OrderID == orderID {
			out = append(out, cloneReturn(ret))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r returnStore) Update(_ context.Context, ret *model.ReturnRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.returns[ret.ID]
	if !ok {
		return model.ErrReturnNotFound
	}
	next := cloneReturn(*ret)
	existing.Items = next.Items
	existing.Status = next.Status
	existing.Notes = next.Notes
	existing.UpdatedAt = next.UpdatedAt
	r.s.returns[ret.ID] = existing
	return nil
}

type sequenceStore struct{ s *Store }

func (q sequenceStore) Next(_ context.Context, year int) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()

	q.s.sequences[year]++
	return q.s.sequences[year], nil
}
