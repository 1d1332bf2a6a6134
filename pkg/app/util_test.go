package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelay(t *testing.T) {
	var tests = []struct {
		name     string
		now      time.Time
		interval time.Duration
		expected time.Duration
	}{
		{
			name:     "next quarter",
			now:      time.Date(2024, 1, 1, 10, 7, 30, 0, time.UTC),
			interval: 15 * time.Minute,
			expected: 7*time.Minute + 30*time.Second,
		},
		{
			name:     "on the boundary waits a full interval",
			now:      time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			expected: 15 * time.Minute,
		},
		{
			name:     "seconds",
			now:      time.Date(2024, 1, 1, 10, 0, 3, 500000000, time.UTC),
			interval: 5 * time.Second,
			expected: 1500 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextDelay(tt.now, tt.interval))
		})
	}
}

func TestWriteHealthFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health")
	require.NoError(t, writeHealthFile(path, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T10:00:00Z\n", string(b))

	assert.NoError(t, writeHealthFile("", time.Now()))
}
