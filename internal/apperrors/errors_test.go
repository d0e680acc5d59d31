package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidInput:       http.StatusBadRequest,
		KindInvalidOperation:   http.StatusBadRequest,
		KindUnauthorized:       http.StatusUnauthorized,
		KindForbidden:          http.StatusForbidden,
		KindNotFound:           http.StatusNotFound,
		KindConflict:           http.StatusConflict,
		KindServiceUnavailable: http.StatusServiceUnavailable,
		KindInternal:           http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusOf(kind), kind)
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("load post: %w", Internal("failed to load post", cause))

	assert.True(t, errors.Is(err, Internal("", nil)))
	assert.False(t, errors.Is(err, NotFound("")))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "load post: failed to load post: connection reset", err.Error())

	assert.Equal(t, KindNotFound, KindOf(NotFound("post not found")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
