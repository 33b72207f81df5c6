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
		want ErrorType
	}{
		{401, ErrorTypeAuthExpired},
		{403, ErrorTypeAuthExpired},
		{440, ErrorTypeAuthExpired},
		{429, ErrorTypeRateLimit},
		{404, ErrorTypeNotFound},
		{410, ErrorTypeNotFound},
		{504, ErrorTypeTimeout},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "https://example.test/a.pdf")
			assert.Equal(t, tt.want, TypeOf(err))
		})
	}

	assert.NoError(t, FromStatus(200, "x"))
}

func TestSentinelsMatchWrappedErrors(t *testing.T) {
	err := fmt.Errorf("fetch page 4: %w", FromStatus(401, "listing"))

	assert.True(t, stderrors.Is(err, ErrAuthExpired))
	assert.False(t, stderrors.Is(err, ErrChallenge))
	assert.True(t, IsAuthExpired(err))
	assert.True(t, IsSessionSignal(err))

	ch := Wrap(ErrorTypeChallenge, "verification page", stderrors.New("marker found"))
	assert.True(t, IsChallenge(ch))
	assert.Contains(t, ch.Error(), "marker found")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrorTypeStorage, "write", nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(FromStatus(502, "x")))
	assert.True(t, IsRetryableError(stderrors.New("connection reset")))
	assert.False(t, IsRetryableError(FromStatus(401, "x")))
	assert.False(t, IsRetryableError(New(ErrorTypeIntegrity, "bad pdf")))
	assert.False(t, IsRetryableError(nil))
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(403))
	assert.False(t, IsRetryableStatusCode(200))
}
