package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_IsMapsStatuses(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrInvalidInput},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &APIError{Status: tt.status})
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.False(t, errors.Is(&APIError{Status: http.StatusInternalServerError}, ErrUnauthorized))
}

func TestIsAuthRejection(t *testing.T) {
	assert.True(t, IsAuthRejection(&APIError{Status: http.StatusUnauthorized}))
	assert.True(t, IsAuthRejection(Wrap(ErrSessionExpired, "refresh")))
	assert.False(t, IsAuthRejection(&APIError{Status: http.StatusInternalServerError}))
	assert.False(t, IsAuthRejection(errors.New("dial tcp: connection refused")))
}

func TestMessageOrDefault(t *testing.T) {
	assert.Equal(t, "role name taken", MessageOrDefault(&APIError{Status: 409, Message: "role name taken"}, "failed"))
	assert.Equal(t, "failed", MessageOrDefault(&APIError{Status: 500}, "failed"))
	assert.Equal(t, "failed", MessageOrDefault(errors.New("boom"), "failed"))
	assert.Equal(t, 409, StatusOf(Wrap(&APIError{Status: 409}, "create")))
	assert.Equal(t, 0, StatusOf(errors.New("boom")))
}
