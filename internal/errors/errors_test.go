package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "VALIDATION_FAILED", "k must be at least 1")
	assert.Equal(t, "k must be at least 1", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestMissingColumns(t *testing.T) {
	err := MissingColumns("Date", "Total")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "Required columns missing: Date, Total", err.Message)
	assert.Equal(t, []string{"Date", "Total"}, err.Details)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		empty      bool
		validation bool
		modelFit   bool
	}{
		{"empty result", EmptyResultError(), true, false, false},
		{"validation", ValidationError("bad k"), false, true, false},
		{"model fit", ModelFitError("need at least 2 distinct dates"), false, false, true},
		{"plain error", errors.New("boom"), false, false, false},
		{"internal", ErrInternalServer, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, IsEmptyResult(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.modelFit, IsModelFit(tt.err))
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "typed validation error keeps status",
			err:        ValidationError("periods must be at least 1"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "periods must be at least 1",
		},
		{
			name:       "empty result is a 400, not a fault",
			err:        EmptyResultError(),
			wantStatus: http.StatusBadRequest,
			wantBody:   "EMPTY_RESULT",
		},
		{
			name:       "untyped error becomes generic 500",
			err:        errors.New("csv parse blew up"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewErrorHandler(nil)
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/generate-insights", nil)

			handler.HandleError(w, r, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Contains(t, w.Body.String(), `"success":false`)
			// internal causes never leak to the body
			assert.NotContains(t, w.Body.String(), "csv parse blew up")
		})
	}
}
