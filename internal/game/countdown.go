package game

import (
	"sync"
	"time"
)

// Countdown 房間倒數計時器
//
// 每個 interval 呼叫一次 onTick，onTick 回傳 false 或 Stop 被呼叫時結束。
// 生命週期屬於 Session：離開 Active 時一律呼叫 Stop。
type Countdown struct {
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartCountdown 啟動倒數 goroutine
func StartCountdown(interval time.Duration, onTick func() bool) *Countdown {
	c := &Countdown{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.run(interval, onTick)
	return c
}

func (c *Countdown) run(interval time.Duration, onTick func() bool) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !onTick() {
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop 取消倒數。可重複呼叫，不等待 goroutine 結束，
// 因此可以在 onTick 內（持有 Session 鎖時）安全呼叫。
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Done goroutine 結束後關閉
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
