package timeparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

var testNow = time.Date(2025, 3, 26, 15, 45, 12, 0, time.Local)

func TestResolveFullISO(t *testing.T) {
	t.Parallel()

	got, err := Resolve("2025-03-26T13:30:51", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 26, 13, 30, 51, 0, time.Local), got)
}

func TestResolveDateOnly(t *testing.T) {
	t.Parallel()

	got, err := Resolve("2025-03-26", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 26, 0, 0, 0, 0, time.Local), got)
}

func TestResolveHourMinute(t *testing.T) {
	t.Parallel()

	got, err := Resolve("13:30", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 26, 13, 30, 0, 0, time.Local), got)
}

func TestResolveHourOnly(t *testing.T) {
	t.Parallel()

	got, err := Resolve("13", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 26, 13, 0, 0, 0, time.Local), got)

	got, err = Resolve("0", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 26, 0, 0, 0, 0, time.Local), got)
}

func TestResolveRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "25:99", "24", "13:70", "not-a-time", "2025-13-01", "2025-02-40"} {
		_, err := Resolve(input, testNow)
		require.Error(t, err, "input %q", input)
		require.True(t, errors.Is(err, cctv.ErrInvalidTimestamp), "input %q", input)
	}
}

func TestResolveRejectsNonexistentCalendarDates(t *testing.T) {
	t.Parallel()

	// Days that pass the 1-31 range check but do not exist for their
	// month must not normalize into the following month.
	for _, input := range []string{"2025-02-30", "2025-02-29", "2025-04-31", "2025-11-31"} {
		_, err := Resolve(input, testNow)
		require.Error(t, err, "input %q", input)
		require.True(t, errors.Is(err, cctv.ErrInvalidTimestamp), "input %q", input)
	}

	// Leap day in a leap year stays valid.
	got, err := Resolve("2024-02-29", testNow)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local), got)
}

func TestResolveUsesSuppliedClockForToday(t *testing.T) {
	t.Parallel()

	other := time.Date(2024, 12, 31, 23, 0, 0, 0, time.Local)
	got, err := Resolve("7:05", other)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 12, 31, 7, 5, 0, 0, time.Local), got)
}
