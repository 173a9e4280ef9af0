package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReturnHandler_Request(t *testing.T) {
	caller := &model.Identity{UserID: uuid.New()}
	orderID := uuid.New()

	tests := []struct {
		name           string
		body           string
		mockReturn     *model.ReturnRequest
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Created",
			body:           `{"items":[{"productId":"mug","quantity":1}]}`,
			mockReturn:     &model.ReturnRequest{ID: uuid.New(), OrderID: orderID, Status: model.ReturnStatusReceived},
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Window closed",
			body:           `{"items":[{"productId":"mug","quantity":1}]}`,
			mockError:      model.ErrReturnWindowClosed,
			expectedStatus: http.StatusConflict,
			expectService:  true,
		},
		{
			name:           "Nothing to return",
			body:           `{"items":[{"productId":"lamp","quantity":1}]}`,
			mockError:      model.ErrNothingToReturn,
			expectedStatus: http.StatusBadRequest,
			expectService:  true,
		},
		{
			name:           "Invalid JSON",
			body:           `{"items":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockReturnService)
			handler := NewReturnHandler(mockService, zerolog.Nop())

			if tt.expectService {
				mockService.On("RequestReturn", mock.Anything, caller, orderID, mock.AnythingOfType("*model.ReturnRequestInput")).
					Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/returns", bytes.NewBufferString(tt.body))
			req.SetPathValue("id", orderID.String())
			req = withCaller(req, caller)
			w := httptest.NewRecorder()

			handler.Request(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				mockService.AssertExpectations(t)
			} else {
				mockService.AssertNotCalled(t, "RequestReturn")
			}
		})
	}
}

func TestReturnHandler_List(t *testing.T) {
	mockService := new(MockReturnService)
	handler := NewReturnHandler(mockService, zerolog.Nop())
	caller := &model.Identity{UserID: uuid.New()}
	orderID := uuid.New()

	mockService.On("ListReturns", mock.Anything, caller, orderID).
		Return([]model.ReturnRequest{{ID: uuid.New(), OrderID: orderID}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String()+"/returns", nil)
	req.SetPathValue("id", orderID.String())
	req = withCaller(req, caller)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var returns []model.ReturnRequest
	require.NoError(t, json.NewDecoder(w.Body).Decode(&returns))
	assert.Len(t, returns, 1)
	mockService.AssertExpectations(t)
}

func TestReturnHandler_SetStatus(t *testing.T) {
	mockService := new(MockReturnService)
	handler := NewReturnHandler(mockService, zerolog.Nop())
	returnID := uuid.New()

	mockService.On("SetReturnStatus", mock.Anything, returnID, model.ReturnStatusRejected).
		Return(&model.ReturnRequest{ID: returnID, Status: model.ReturnStatusRejected}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/returns/"+returnID.String()+"/status",
		bytes.NewBufferString(`{"status":"rejected"}`))
	req.SetPathValue("id", returnID.String())
	w := httptest.NewRecorder()

	handler.SetStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestReturnHandler_Complete(t *testing.T) {
	returnID := uuid.New()

	tests := []struct {
		name           string
		mockReturn     *model.CreditNote
		mockError      error
		expectedStatus int
	}{
		{
			name: "Credit note issued",
			mockReturn: &model.CreditNote{
				ReturnID:         returnID,
				Lines:            []model.CreditNoteLine{{ProductID: "mug", Quantity: 2, RefundPerUnitCents: 1500, LineRefundCents: 3000}},
				TotalRefundCents: 3000,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Already completed",
			mockError:      model.ErrInvalidTransition,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockReturnService)
			handler := NewReturnHandler(mockService, zerolog.Nop())
			mockService.On("CompleteReturn", mock.Anything, returnID, []int{0, 2}).Return(tt.mockReturn, tt.mockError)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/returns/"+returnID.String()+"/complete",
				bytes.NewBufferString(`{"acceptedItems":[0,2]}`))
			req.SetPathValue("id", returnID.String())
			w := httptest.NewRecorder()

			handler.Complete(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.mockError == nil {
				var note model.CreditNote
				require.NoError(t, json.NewDecoder(w.Body).Decode(&note))
				assert.Equal(t, int64(3000), note.TotalRefundCents)
			}
			mockService.AssertExpectations(t)
		})
	}
}
