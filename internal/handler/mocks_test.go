package handler

import (
	"context"

	"kart-ledger/internal/coupon"
	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) Save(ctx context.Context, product *model.Product) (*model.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, caller *model.Identity, req *model.OrderRequest) (*model.Order, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) CheckDiscount(ctx context.Context, caller *model.Identity, req *model.DiscountCheckRequest) (*model.DiscountResult, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountResult), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) AddTracking(ctx context.Context, id uuid.UUID, req *model.TrackingRequest) (*model.Order, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) AnonymizeGuest(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) LinkGuestOrders(ctx context.Context, caller *model.Identity) (int, error) {
	args := m.Called(ctx, caller)
	return args.Int(0), args.Error(1)
}

// MockReturnService is a mock implementation of ReturnService.
type MockReturnService struct {
	mock.Mock
}

func (m *MockReturnService) RequestReturn(ctx context.Context, caller *model.Identity, orderID uuid.UUID, req *model.ReturnRequestInput) (*model.ReturnRequest, error) {
	args := m.Called(ctx, caller, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnRequest), args.Error(1)
}

func (m *MockReturnService) ListReturns(ctx context.Context, caller *model.Identity, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	args := m.Called(ctx, caller, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReturnRequest), args.Error(1)
}

func (m *MockReturnService) SetReturnStatus(ctx context.Context, id uuid.UUID, status model.ReturnStatus) (*model.ReturnRequest, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnRequest), args.Error(1)
}

func (m *MockReturnService) CompleteReturn(ctx context.Context, id uuid.UUID, acceptedItems []int) (*model.CreditNote, error) {
	args := m.Called(ctx, id, acceptedItems)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditNote), args.Error(1)
}

// MockPointsService is a mock implementation of PointsService.
type MockPointsService struct {
	mock.Mock
}

func (m *MockPointsService) CreditEligible(ctx context.Context) (model.CreditSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CreditSummary), args.Error(1)
}

func (m *MockPointsService) Overview(ctx context.Context, userID uuid.UUID) (*model.PointsOverview, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PointsOverview), args.Error(1)
}

func (m *MockPointsService) GrantForReview(ctx context.Context, userID uuid.UUID, reviewID string) (*model.Grant, error) {
	args := m.Called(ctx, userID, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Grant), args.Error(1)
}

func (m *MockPointsService) GrantForAdmin(ctx context.Context, userID uuid.UUID, points int64, reason string) (*model.Grant, error) {
	args := m.Called(ctx, userID, points, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Grant), args.Error(1)
}

func (m *MockPointsService) CancelGrant(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPointsService) ExtendGrant(ctx context.Context, id uuid.UUID, days int) (*model.Grant, error) {
	args := m.Called(ctx, id, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Grant), args.Error(1)
}

// MockImporter is a mock implementation of DiscountImporter.
type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, paths []string) (coupon.ImportSummary, error) {
	args := m.Called(ctx, paths)
	return args.Get(0).(coupon.ImportSummary), args.Error(1)
}
