package binding

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayGuard_Check(t *testing.T) {
	g := NewReplayGuard(time.Minute)
	require.Equal(t, time.Minute, g.Window())

	assert.True(t, g.Check("first"))
	assert.False(t, g.Check("first"))
	assert.True(t, g.Check("second"))
}

func TestReplayGuard_ForgetsAfterWindow(t *testing.T) {
	g := NewReplayGuard(50 * time.Millisecond)

	require.True(t, g.Check("key"))
	require.False(t, g.Check("key"))

	require.Eventually(t, func() bool {
		return g.Check("key")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReplayGuard_Concurrent(t *testing.T) {
	g := NewReplayGuard(time.Minute)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Check("same key") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted.Load())
}
