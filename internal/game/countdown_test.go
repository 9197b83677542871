package game_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/system-design/color-duel/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCountdown_StopsWhenTickReturnsFalse 測試回呼回傳 false 後結束
func TestCountdown_StopsWhenTickReturnsFalse(t *testing.T) {
	var ticks atomic.Int32

	c := game.StartCountdown(time.Millisecond, func() bool {
		return ticks.Add(1) < 5
	})

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("倒數沒有結束")
	}
	assert.Equal(t, int32(5), ticks.Load())
}

// TestCountdown_Stop 測試外部取消
func TestCountdown_Stop(t *testing.T) {
	var ticks atomic.Int32

	c := game.StartCountdown(time.Millisecond, func() bool {
		ticks.Add(1)
		return true
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, time.Millisecond)

	c.Stop()
	c.Stop() // 重複呼叫不應 panic

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 後 goroutine 未結束")
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "Stop 後不應再觸發")
}

// TestCountdown_StopInsideTick 測試在回呼內呼叫 Stop 不會死鎖
func TestCountdown_StopInsideTick(t *testing.T) {
	var c *game.Countdown
	ready := make(chan struct{})

	c = game.StartCountdown(time.Millisecond, func() bool {
		<-ready
		c.Stop()
		return true
	})
	close(ready)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("回呼內 Stop 後 goroutine 未結束")
	}
}
