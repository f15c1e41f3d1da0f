package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := New(KindQuota, "quota exhausted")

	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindQuota, KindOf(base))
	assert.Equal(t, KindQuota, KindOf(fmt.Errorf("attempt 2: %w", base)))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(cause, KindDownloadFailed, "fetch failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "download-failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsRotatable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindQuota, true},
		{KindInvalidCredential, true},
		{KindTimeout, false},
		{KindProviderError, false},
		{KindTooLarge, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, IsRotatable(New(tc.kind, "x")))
		})
	}
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(New(KindTooLarge, "video is 2h10m long"))
	assert.Equal(t, "video is 2h10m long: file too large, reduce resolution or use a different source", msg)

	assert.Equal(t, "unexpected error", UserMessage(stderrors.New("pq: boom")))
	assert.Equal(t, "session not found", UserMessage(New(KindNotFound, "session not found")))
	assert.Empty(t, UserMessage(nil))
}
