package scheduler

import (
	"testing"
	"time"
)

func TestBatchDeadline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		urls int
		want time.Duration
	}{
		{name: "small batch gets the floor", urls: 1, want: 5 * time.Minute},
		{name: "floor applies up to 30 urls", urls: 30, want: 5 * time.Minute},
		{name: "larger batch scales per url", urls: 50, want: 500 * time.Second},
		{name: "full batch", urls: 100, want: 1000 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := batchDeadline(tt.urls); got != tt.want {
				t.Errorf("batchDeadline(%d) = %v, want %v", tt.urls, got, tt.want)
			}
		})
	}
}
