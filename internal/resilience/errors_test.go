package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("orcid: search: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"connection reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET), true},
		{"string pattern", errors.New("dial tcp: lookup pub.orcid.org: no such host"), true},
		{"regular", errors.New("invalid orcid"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("openalex", 503, []byte("unavailable"))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "503")

	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 503, te.StatusCode)

	err = StatusError("orcid", 404, []byte("not found"))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "orcid: unexpected status 404")
}

func TestStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	err := StatusError("orcid", 400, body)
	assert.Less(t, len(err.Error()), 400)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "transient", Classify(NewTransientError(errors.New("x"), 429)))
	assert.Equal(t, "permanent", Classify(errors.New("bad payload")))
}
