package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cadak-tickets/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSellerHandler_CreateEvent(t *testing.T) {
	logger := zerolog.Nop()
	minPrice := int64(150000)

	tests := []struct {
		name         string
		body         string
		setupMock    func(*MockSellerService)
		expectedCode int
	}{
		{
			name: "created",
			body: `{"title":"Abuja Comedy Night","status":"published","startAt":"2026-04-10T19:00:00Z","ticketTypes":[{"name":"Floor","priceMinor":150000,"quantityTotal":50}]}`,
			setupMock: func(m *MockSellerService) {
				m.On("CreateEvent", mock.Anything, "seller_1", mock.MatchedBy(func(req *model.EventRequest) bool {
					return req.Title == "Abuja Comedy Night" &&
						req.StartAt.Equal(time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC)) &&
						len(req.TicketTypes) == 1 && req.TicketTypes[0].QuantityTotal == 50
				})).Return(&model.Event{ID: "evt_new", SellerID: "seller_1", MinPriceMinor: &minPrice}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "malformed body",
			body:         `{"title":`,
			setupMock:    func(m *MockSellerService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "invalid ticket type",
			body: `{"title":"x","startAt":"2026-04-10T19:00:00Z","ticketTypes":[]}`,
			setupMock: func(m *MockSellerService) {
				m.On("CreateEvent", mock.Anything, "seller_1", mock.Anything).Return(nil, model.ErrInvalidTicketType)
			},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockSellerService)
			tt.setupMock(mockService)
			handler := NewSellerHandler(mockService, logger)

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/seller/events", bytes.NewBufferString(tt.body)), "seller_1")
			w := httptest.NewRecorder()
			handler.CreateEvent(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedCode == http.StatusCreated {
				assert.Contains(t, w.Body.String(), `"minPriceMinor":150000`)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestSellerHandler_UpdateEvent(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("patched", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)
		mockService.On("UpdateEvent", mock.Anything, "seller_1", "evt_1", mock.MatchedBy(func(p *model.EventPatch) bool {
			return p.Title != nil && *p.Title == "Encore" && p.Venue == nil
		})).Return(&model.Event{ID: "evt_1", Title: "Encore"}, nil)

		req := asUser(httptest.NewRequest(http.MethodPatch, "/api/seller/events/evt_1", bytes.NewBufferString(`{"title":"Encore"}`)), "seller_1")
		req.SetPathValue("id", "evt_1")
		w := httptest.NewRecorder()
		handler.UpdateEvent(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"Encore"`)
		mockService.AssertExpectations(t)
	})

	t.Run("not the owner", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)
		mockService.On("UpdateEvent", mock.Anything, "seller_2", "evt_1", mock.Anything).Return(nil, model.ErrNotEventOwner)

		req := asUser(httptest.NewRequest(http.MethodPatch, "/api/seller/events/evt_1", bytes.NewBufferString(`{}`)), "seller_2")
		req.SetPathValue("id", "evt_1")
		w := httptest.NewRecorder()
		handler.UpdateEvent(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSellerHandler_DeleteEvent(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "deleted", err: nil, expectedCode: http.StatusNoContent},
		{name: "has sales", err: model.ErrEventHasSales, expectedCode: http.StatusConflict},
		{name: "missing", err: model.ErrEventNotFound, expectedCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockSellerService)
			mockService.On("DeleteEvent", mock.Anything, "seller_1", "evt_1").Return(tt.err)
			handler := NewSellerHandler(mockService, logger)

			req := asUser(httptest.NewRequest(http.MethodDelete, "/api/seller/events/evt_1", nil), "seller_1")
			req.SetPathValue("id", "evt_1")
			w := httptest.NewRecorder()
			handler.DeleteEvent(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestSellerHandler_Lists(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("events with paging", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)
		mockService.On("ListEvents", mock.Anything, "seller_1", 5, 10).Return([]model.Event{{ID: "evt_1"}}, nil)

		w := httptest.NewRecorder()
		handler.ListEvents(w, asUser(httptest.NewRequest(http.MethodGet, "/api/seller/events?limit=5&offset=10", nil), "seller_1"))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("orders", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)
		mockService.On("ListOrders", mock.Anything, "seller_1", 10, 0).
			Return([]model.SellerOrder{{ID: "ord_1", Reference: "ref_1", TotalMinor: 900000}}, nil)

		w := httptest.NewRecorder()
		handler.ListOrders(w, asUser(httptest.NewRequest(http.MethodGet, "/api/seller/orders", nil), "seller_1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"reference":"ref_1"`)
		mockService.AssertExpectations(t)
	})

	t.Run("bad paging", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)

		w := httptest.NewRecorder()
		handler.ListOrders(w, asUser(httptest.NewRequest(http.MethodGet, "/api/seller/orders?limit=abc", nil), "seller_1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("anonymous", func(t *testing.T) {
		mockService := new(MockSellerService)
		handler := NewSellerHandler(mockService, logger)

		w := httptest.NewRecorder()
		handler.CreateEvent(w, httptest.NewRequest(http.MethodPost, "/api/seller/events", bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
	})
}
