// Package limiter 提供單一連線的訊息限流。
//
// 每條 WebSocket 連線各自持有一個令牌桶，避免單一客戶端洗訊息拖慢房間。
package limiter

import (
	"sync"
	"time"
)

// TokenBucket 令牌桶
//
// 演算法原理：
//  1. 固定容量的桶，以固定速率填充令牌
//  2. 每則訊息取出一個令牌
//  3. 沒有令牌就拒絕
//
// 容量決定可容忍的突發量（玩家連點），填充速率決定長期平均速率。
type TokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate int64 // 每秒填充數
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket 建立令牌桶，初始為滿
//
// 範例：
//
//	limiter := NewTokenBucket(20, 10) // 最多連發 20 則，平均每秒 10 則
//	limiter.Allow()
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow 嘗試取出一個令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens 目前令牌數（用於監控）
func (tb *TokenBucket) Tokens() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// refill 依經過時間補充令牌（需持有鎖）
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int64(elapsed.Seconds() * float64(tb.refillRate))

	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}
