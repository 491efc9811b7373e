package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestNextAt(t *testing.T) {
	loc := tokyo(t)

	t.Run("later today", func(t *testing.T) {
		now := time.Date(2025, 11, 1, 20, 0, 0, 0, loc)
		got := NextAt(now, 21, 30, loc)
		assert.Equal(t, time.Date(2025, 11, 1, 21, 30, 0, 0, loc), got)
	})

	t.Run("already passed", func(t *testing.T) {
		now := time.Date(2025, 11, 1, 22, 0, 0, 0, loc)
		got := NextAt(now, 21, 30, loc)
		assert.Equal(t, time.Date(2025, 11, 2, 21, 30, 0, 0, loc), got)
	})

	t.Run("exactly now rolls to tomorrow", func(t *testing.T) {
		now := time.Date(2025, 11, 1, 21, 30, 0, 0, loc)
		got := NextAt(now, 21, 30, loc)
		assert.Equal(t, time.Date(2025, 11, 2, 21, 30, 0, 0, loc), got)
	})
}

func TestToday_UsesCivilZone(t *testing.T) {
	loc := tokyo(t)
	// 15:30 UTC is 00:30 the next day in Tokyo.
	c := NewFixed(time.Date(2025, 11, 1, 15, 30, 0, 0, time.UTC).In(loc))
	assert.Equal(t, "2025-11-02", Today(c))

	c.Set(time.Date(2025, 11, 1, 23, 59, 59, 0, loc))
	assert.Equal(t, "2025-11-01", Today(c))
	c.Advance(time.Second)
	assert.Equal(t, "2025-11-02", Today(c))
}

func TestParseHHMM(t *testing.T) {
	hh, mm, err := ParseHHMM("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7, hh)
	assert.Equal(t, 45, mm)

	_, _, err = ParseHHMM("7:45pm")
	assert.Error(t, err)
}
