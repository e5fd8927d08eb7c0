package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCDateStringFormat(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	assert.Equal(t, "2024-01-02T03:04:05.678Z", UTCDateString(ts))
}

func TestUTCDateStringNormalizesZone(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	ts := time.Date(2024, 1, 1, 16, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-02T00:00:00.000Z", UTCDateString(ts))
}

func TestParseUTCDateRoundTrip(t *testing.T) {
	s := "2024-06-30T23:59:59.999Z"
	ts, err := ParseUTCDate(s)
	require.NoError(t, err)
	assert.Equal(t, s, UTCDateString(ts))
}

func TestParseUTCDateRejectsNonCanonical(t *testing.T) {
	for _, s := range []string{"", "2024-01-02", "2024-01-02T03:04:05Z", "not a date"} {
		_, err := ParseUTCDate(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestEpochMillisDateString(t *testing.T) {
	ms := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2024-01-02T00:00:00.000Z", EpochMillisDateString(ms))
}

// The string encoding must order the same way the instants do, since
// repository predicates compare the string form.
func TestUTCDateStringIsMonotone(t *testing.T) {
	base := time.Date(2023, 12, 31, 23, 59, 59, 999_000_000, time.UTC)
	prev := UTCDateString(base)
	for i := 1; i <= 1000; i++ {
		cur := UTCDateString(base.Add(time.Duration(i) * 37 * time.Millisecond))
		require.True(t, prev < cur, "ordering broke at step %d: %s >= %s", i, prev, cur)
		prev = cur
	}
}
