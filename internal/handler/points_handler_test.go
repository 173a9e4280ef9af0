package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kart-ledger/internal/coupon"
	"kart-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPointsHandler_Me(t *testing.T) {
	caller := &model.Identity{UserID: uuid.New()}

	t.Run("Overview", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())
		mockService.On("Overview", mock.Anything, caller.UserID).
			Return(&model.PointsOverview{Balance: 1200, Grants: []model.Grant{}}, nil)

		req := withCaller(httptest.NewRequest(http.MethodGet, "/api/me/points", nil), caller)
		w := httptest.NewRecorder()

		handler.Me(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"balance":1200,"grants":[]}`, w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("Anonymous", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())

		w := httptest.NewRecorder()
		handler.Me(w, httptest.NewRequest(http.MethodGet, "/api/me/points", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "Overview")
	})
}

func TestPointsHandler_GrantAdmin(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		body           string
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Granted",
			body:           `{"userId":"` + userID.String() + `","points":250,"reason":"goodwill"}`,
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Unknown user",
			body:           `{"userId":"` + userID.String() + `","points":250,"reason":"goodwill"}`,
			mockError:      model.ErrUserNotFound,
			expectedStatus: http.StatusNotFound,
			expectService:  true,
		},
		{
			name:           "Missing reason",
			body:           `{"userId":"` + userID.String() + `","points":250}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Zero points",
			body:           `{"userId":"` + userID.String() + `","points":0,"reason":"goodwill"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPointsService)
			handler := NewPointsHandler(mockService, zerolog.Nop())

			if tt.expectService {
				var grant *model.Grant
				if tt.mockError == nil {
					grant = &model.Grant{ID: uuid.New(), UserID: userID, Source: model.GrantSourceAdmin, PointsAwarded: 250}
				}
				mockService.On("GrantForAdmin", mock.Anything, userID, int64(250), "goodwill").Return(grant, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/admin/points/grants", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			handler.GrantAdmin(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				mockService.AssertExpectations(t)
			} else {
				mockService.AssertNotCalled(t, "GrantForAdmin")
			}
		})
	}
}

func TestPointsHandler_GrantReview(t *testing.T) {
	mockService := new(MockPointsService)
	handler := NewPointsHandler(mockService, zerolog.Nop())
	userID := uuid.New()

	mockService.On("GrantForReview", mock.Anything, userID, "review-42").
		Return(&model.Grant{ID: uuid.New(), Source: model.GrantSourceReview, PointsAwarded: 50}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/points/reviews",
		bytes.NewBufferString(`{"userId":"`+userID.String()+`","reviewId":"review-42"}`))
	w := httptest.NewRecorder()

	handler.GrantReview(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestPointsHandler_CancelAndExtend(t *testing.T) {
	grantID := uuid.New()

	t.Run("Cancel", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())
		mockService.On("CancelGrant", mock.Anything, grantID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/admin/points/grants/"+grantID.String(), nil)
		req.SetPathValue("id", grantID.String())
		w := httptest.NewRecorder()

		handler.Cancel(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Cancel credited grant", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())
		mockService.On("CancelGrant", mock.Anything, grantID).Return(model.ErrGrantCredited)

		req := httptest.NewRequest(http.MethodDelete, "/api/admin/points/grants/"+grantID.String(), nil)
		req.SetPathValue("id", grantID.String())
		w := httptest.NewRecorder()

		handler.Cancel(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Extend", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())
		mockService.On("ExtendGrant", mock.Anything, grantID, 7).Return(&model.Grant{ID: grantID}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/points/grants/"+grantID.String()+"/extend",
			bytes.NewBufferString(`{"days":7}`))
		req.SetPathValue("id", grantID.String())
		w := httptest.NewRecorder()

		handler.Extend(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Extend by zero days", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewPointsHandler(mockService, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/admin/points/grants/"+grantID.String()+"/extend",
			bytes.NewBufferString(`{"days":0}`))
		req.SetPathValue("id", grantID.String())
		w := httptest.NewRecorder()

		handler.Extend(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "ExtendGrant")
	})
}

func TestCronHandler_CreditPoints(t *testing.T) {
	t.Run("Summary", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewCronHandler(mockService, zerolog.Nop())
		mockService.On("CreditEligible", mock.Anything).
			Return(model.CreditSummary{Credited: 3, Points: 612, Skipped: 1}, nil)

		w := httptest.NewRecorder()
		handler.CreditPoints(w, httptest.NewRequest(http.MethodPost, "/api/cron/credit-points", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"credited":3,"points":612,"skipped":1}`, w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("Store failure", func(t *testing.T) {
		mockService := new(MockPointsService)
		handler := NewCronHandler(mockService, zerolog.Nop())
		mockService.On("CreditEligible", mock.Anything).Return(model.CreditSummary{}, errors.New("timeout"))

		w := httptest.NewRecorder()
		handler.CreditPoints(w, httptest.NewRequest(http.MethodPost, "/api/cron/credit-points", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDiscountHandler_Import(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockReturn     coupon.ImportSummary
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Imported",
			body:           `{"files":["spring.csv.gz","vip.csv.gz"]}`,
			mockReturn:     coupon.ImportSummary{Files: 2, Codes: 40},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Load failure",
			body:           `{"files":["missing.csv.gz"]}`,
			mockError:      errors.New("no such file"),
			expectedStatus: http.StatusInternalServerError,
			expectService:  true,
		},
		{
			name:           "No files",
			body:           `{"files":[]}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := new(MockImporter)
			handler := NewDiscountHandler(importer, zerolog.Nop())

			var req ImportRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			if tt.expectService {
				importer.On("Import", mock.Anything, req.Files).Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			handler.Import(w, httptest.NewRequest(http.MethodPost, "/api/admin/discounts/import", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				importer.AssertExpectations(t)
			} else {
				importer.AssertNotCalled(t, "Import")
			}
		})
	}
}
