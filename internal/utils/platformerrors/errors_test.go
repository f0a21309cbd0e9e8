package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeToHTTPStatus(t *testing.T) {
	cases := map[ErrorType]int{
		ErrorTypeValidation:         http.StatusBadRequest,
		ErrorTypeNotFound:           http.StatusNotFound,
		ErrorTypeForbidden:          http.StatusForbidden,
		ErrorTypeConflict:           http.StatusConflict,
		ErrorTypeRateLimited:        http.StatusTooManyRequests,
		ErrorTypeServiceUnavailable: http.StatusServiceUnavailable,
		ErrorTypeInternal:           http.StatusInternalServerError,
		ErrorType("SOMETHING_ELSE"): http.StatusInternalServerError,
	}
	for errType, want := range cases {
		assert.Equal(t, want, ErrorTypeToHTTPStatus(errType), errType)
	}
}

func TestAsErrorKeepsTypeAndCode(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	original := NewValidationError(ctx, LayerDomain, "details", "too short", "code-1")

	wrapped := AsError(ctx, LayerHandler, fmt.Errorf("escalate: %w", original), "escalation rejected")
	require.NotNil(t, wrapped)

	assert.Equal(t, ErrorTypeValidation, wrapped.Type)
	assert.Equal(t, "code-1", wrapped.UUID)
	assert.Equal(t, "details", wrapped.Field())
	assert.Equal(t, "req-1", wrapped.RequestID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeValidation))
}

func TestAsErrorClassifiesPlainErrors(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, AsError(ctx, LayerDomain, nil, "noop"))
	assert.Equal(t, ErrorTypeInternal, AsError(ctx, LayerDomain, errors.New("boom"), "x").Type)
	assert.Equal(t, ErrorTypeTimeout, AsError(ctx, LayerDomain, context.DeadlineExceeded, "x").Type)
}

func TestIsErrorTypeIgnoresForeignErrors(t *testing.T) {
	assert.False(t, IsErrorType(nil, ErrorTypeNotFound))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeNotFound))
}
