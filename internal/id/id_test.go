package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocal(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1736035200000", NewLocal(now))
	assert.NotEqual(t, NewLocal(now), NewLocal(now.Add(time.Millisecond)))
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestFormatDayKey(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC), "20250105"},
		{time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "20251231"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDayKey(tt.in))
	}
}

func TestParseDayKey(t *testing.T) {
	tests := []struct {
		key  string
		want time.Time
	}{
		{"20250105", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"2025-09-20", time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)},
		{" 20251231 ", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDayKey(tt.key)
		require.NoError(t, err, "ParseDayKey(%q)", tt.key)
		assert.True(t, tt.want.Equal(got), "ParseDayKey(%q) = %v", tt.key, got)
	}
}

func TestParseDayKey_Invalid(t *testing.T) {
	keys := []string{
		"", "2025015", "abcd0105", "20251305", "20250100", "2025-01",
		"20250231", "20230229", "2025-04-31", "20250132",
		"2025-0-105", "202501-05", "2025/01/05", "+2025010", "2025-01-5 ",
	}
	for _, key := range keys {
		_, err := ParseDayKey(key)
		assert.Error(t, err, "ParseDayKey(%q)", key)
	}
}

func TestRoundTrip(t *testing.T) {
	day := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got, err := ParseDayKey(FormatDayKey(day))
	require.NoError(t, err)
	assert.True(t, day.Equal(got))
}

func TestParseDayKey_LeapDay(t *testing.T) {
	got, err := ParseDayKey("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "20240229", FormatDayKey(got))
}
