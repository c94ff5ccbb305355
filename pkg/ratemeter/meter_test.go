package ratemeter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledMeterAlwaysReturnsZero(t *testing.T) {
	mt := New(0, 0)
	require.True(t, mt.Disabled())
	require.Equal(t, uint64(0), mt.Track("conn-1", 1000))
}

func TestTrackAccumulatesWithinWindow(t *testing.T) {
	mt := New(time.Minute, 10)
	base := time.Now()
	mt.now = func() time.Time { return base }

	require.Equal(t, uint64(3), mt.Track("conn-1", 3))
	require.Equal(t, uint64(5), mt.Track("conn-1", 2))
}

func TestExceededReflectsLimit(t *testing.T) {
	mt := New(time.Minute, 5)
	base := time.Now()
	mt.now = func() time.Time { return base }

	rate := mt.Track("conn-1", 4)
	require.False(t, mt.Exceeded(rate))
	rate = mt.Track("conn-1", 2)
	require.True(t, mt.Exceeded(rate))
}

func TestWindowRollsOverAfterT(t *testing.T) {
	mt := New(time.Minute, 100)
	cur := time.Now()
	mt.now = func() time.Time { return cur }

	rate := mt.Track("conn-1", 10)
	require.Equal(t, uint64(10), rate)

	cur = cur.Add(2 * time.Minute)
	rate = mt.Track("conn-1", 1)
	// previous window's count (10) rolled into `previous`, so the smoothed
	// rate still reflects it even though the new window has only 1 event.
	require.Equal(t, uint64(11), rate)
}

func TestDifferentKeysAreIndependent(t *testing.T) {
	mt := New(time.Minute, 5)
	base := time.Now()
	mt.now = func() time.Time { return base }

	require.Equal(t, uint64(5), mt.Track("conn-1", 5))
	require.Equal(t, uint64(1), mt.Track("conn-2", 1))
}

func TestResetClearsKeyState(t *testing.T) {
	mt := New(time.Minute, 5)
	base := time.Now()
	mt.now = func() time.Time { return base }

	mt.Track("conn-1", 5)
	mt.Reset("conn-1")
	require.Equal(t, uint64(1), mt.Track("conn-1", 1))
}
