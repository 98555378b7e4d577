package storagekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveFormat(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 26, 13, 30, 51, 0, time.Local)
	require.Equal(t, "DUKE_DUKE-3_20250326_133051", Derive("DUKE", "DUKE-3", ts))
	require.Equal(t, "DUKE_DUKE-3_20250326_133051.jpg", Filename("DUKE", "DUKE-3", ts))
}

func TestDeriveDeterministic(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	first := Derive("LDP", "LDP-1", ts)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Derive("LDP", "LDP-1", ts))
	}
}

func TestDeriveInjectiveAtSecondResolution(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	seen := map[string]struct{}{}
	for _, cam := range []string{"LDP-1", "LDP-2", "KSS-1"} {
		for sec := 0; sec < 5; sec++ {
			key := Derive("LDP", cam, base.Add(time.Duration(sec)*time.Second))
			_, dup := seen[key]
			require.False(t, dup, "key %s derived twice", key)
			seen[key] = struct{}{}
		}
	}

	// Sub-second differences collapse onto the same key by design.
	require.Equal(t,
		Derive("LDP", "LDP-1", base),
		Derive("LDP", "LDP-1", base.Add(300*time.Millisecond)),
	)
}

func TestDeriveAliasesNKV(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 26, 8, 0, 0, 0, time.Local)
	require.Equal(t, "NKVE_NKV-1_20250326_080000", Derive("NKV", "NKV-1", ts))
}
