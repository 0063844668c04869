package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"claimease/internal/domain"
	"claimease/internal/handler"
	"claimease/mocks"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError("patient_name", "must not be empty"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("wrapped: %w", domain.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{fmt.Errorf("%w: expired", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrJobTerminal, http.StatusConflict, "JOB_FINISHED"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code, _ := handler.MapDomainError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	store := new(mocks.MockKVStore)
	store.On("Ping", mock.Anything).Return(nil).Once()
	store.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()

	r := gin.New()
	h := handler.NewHealthHandler(store)
	r.GET("/readyz", h.Readiness)
	r.GET("/healthz", h.Liveness)

	for _, want := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
