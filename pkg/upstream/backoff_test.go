package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Max: 3 * time.Second, MaxRetries: 5}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt uses base delay", attempt: 0, want: 500 * time.Millisecond},
		{name: "second attempt doubles", attempt: 1, want: time.Second},
		{name: "third attempt doubles again", attempt: 2, want: 2 * time.Second},
		{name: "growth is capped at max", attempt: 3, want: 3 * time.Second},
		{name: "stays at max afterwards", attempt: 10, want: 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Delay(tt.attempt))
		})
	}
}
