package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterAddAndLoad(t *testing.T) {
	c := &Counter{name: "test_counter"}
	require.Equal(t, "test_counter", c.Name())
	require.Equal(t, int64(3), c.Add(3))
	require.Equal(t, int64(5), c.Add(2))
	require.Equal(t, int64(5), c.Load())
}

func TestGlobalCountersAreIndependent(t *testing.T) {
	before := FramesParsed.Load()
	otherBefore := FramesRejected.Load()
	FramesParsed.Add(1)
	require.Equal(t, before+1, FramesParsed.Load())
	require.Equal(t, otherBefore, FramesRejected.Load())
}
