package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate_FallbackChain(t *testing.T) {
	want := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	inputs := []any{
		"2024-05-31",
		"31/05/2024",
		"31-05-2024",
		45443,
		45443.75,
		"45443",
		"2024-05-31T17:45:00Z",
		"2024-05-31 17:45:00",
		"31/05/2024 10:30",
		"31/05/2024 10:30:15",
		"31/5/2024 9:05",
		"31-05-2024 10:30",
		"31-05-2024 23:59:59",
		time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC),
	}
	for _, in := range inputs {
		got, ok := ParseDate(in)
		require.True(t, ok, "%v", in)
		assert.True(t, want.Equal(got), "%v -> %v", in, got)
	}
}

func TestParseDate_SerialEpoch(t *testing.T) {
	got, ok := ParseDate(int64(1))
	require.True(t, ok)
	assert.Equal(t, "1899-12-31", FormatDate(got))

	got, ok = ParseDate(45292.0)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", FormatDate(got))
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []any{nil, "", "pending", "31/31/2024", 0, -5, 99999999.0, time.Time{}} {
		_, ok := ParseDate(in)
		assert.False(t, ok, "%v", in)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, DaysBetween(a, b), "leap day counted, time of day ignored")
	assert.Equal(t, -4, DaysBetween(b, a))
}
