package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{400, KindBadRequest},
		{401, KindAuth},
		{403, KindForbidden},
		{404, KindBadRequest},
		{429, KindRateLimited},
		{500, KindServerError},
		{503, KindServerError},
		{418, KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatus(tt.code))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnexpected, KindOf(stderrors.New("boom")))
	assert.Equal(t, KindRateLimited, KindOf(New(KindRateLimited, "slow down")))

	wrapped := fmt.Errorf("fetch page: %w", New(KindForbidden, "nope"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindForbidden))
	assert.False(t, Is(nil, KindForbidden))
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(KindUnexpected, cause, "request failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "unexpected_error")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsRetryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindRateLimited: true,
		KindServerError: true,
		KindUnexpected:  true,
		KindBadRequest:  false,
		KindForbidden:   false,
		KindAuth:        false,
	}
	for _, kind := range Kinds() {
		assert.Equal(t, retryable[kind], IsRetryable(kind), string(kind))
	}
}
