package game

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

// TestSession_FullScenario 完整流程：建立、加入、開始、出手、倒數 120 次後結束
func TestSession_FullScenario(t *testing.T) {
	log := &eventLog{}
	// 計時器間隔設為一小時，改由測試手動 tick
	s := NewSession("room_001", "P1", NewTaskGenerator(rand.NewPCG(3, 4)), log, Options{TickInterval: time.Hour})

	_, err := s.Join("P2")
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, "P1", snap.Player1.ID)
	assert.Equal(t, "P2", snap.Player2.ID)

	snap, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Player1.Score)
	assert.Equal(t, 0, snap.Player2.Score)
	assert.Equal(t, 120, snap.SecondsRemaining)

	// P2 命中
	p1Task := *snap.Player1.Task
	res, err := s.Move("P2", snap.Player2.Task.Label)
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, 1, res.Player2.Score)
	assert.Equal(t, p1Task, *res.Player1.Task)

	// P1 失誤，分數從 -2 被拉回 0
	res, err = s.Move("P1", p1Task.Background)
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, 0, res.Player1.Score)

	for i := 119; i >= 1; i-- {
		require.True(t, s.tick())
		assert.Equal(t, i, s.Snapshot().SecondsRemaining)
		assert.Equal(t, PhaseActive, s.Phase())
	}
	assert.False(t, s.tick(), "倒數到 0 應停止")
	assert.Equal(t, PhaseOver, s.Phase())

	over := log.last()
	require.Equal(t, EventGameOver, over.Type)
	payload := over.Data.(GameOverPayload)
	assert.Equal(t, 0, payload.Player1Score)
	assert.Equal(t, 1, payload.Player2Score)
	assert.Equal(t, "player2", payload.Winner)
	assert.Equal(t, ReasonTimeUp, payload.Reason)

	result := s.Result()
	assert.False(t, result.Tie)
	assert.Equal(t, Player2, result.Winner)

	// 結束後多餘的 tick 不改變狀態
	assert.False(t, s.tick())
	assert.Equal(t, 0, s.Snapshot().SecondsRemaining)

	// 倒數 goroutine 必須已經結束
	select {
	case <-s.countdownDone():
	case <-time.After(2 * time.Second):
		t.Fatal("倒數 goroutine 沒有結束")
	}
}

// TestSession_CloseCancelsCountdown 測試中途結束時倒數被取消
func TestSession_CloseCancelsCountdown(t *testing.T) {
	s := NewSession("room_001", "P1", nil, nil, Options{TickInterval: time.Millisecond})
	_, err := s.Join("P2")
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	done := s.countdownDone()
	require.NotNil(t, done)

	s.Close(ReasonPlayerLeft)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close 後倒數 goroutine 仍在執行")
	}

	remaining := s.Snapshot().SecondsRemaining
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, remaining, s.Snapshot().SecondsRemaining)
}

// TestSession_Expired 測試清理條件
func TestSession_Expired(t *testing.T) {
	now := time.Now()

	waiting := NewSession("room_001", "P1", nil, nil, Options{})
	assert.False(t, waiting.expired(now, time.Minute, time.Minute))
	assert.True(t, waiting.expired(now.Add(2*time.Minute), time.Minute, time.Minute))
	assert.False(t, waiting.expired(now.Add(time.Hour), 0, time.Minute), "idle 為 0 不清理")

	active := NewSession("room_002", "P1", nil, nil, Options{TickInterval: time.Hour})
	_, _ = active.Join("P2")
	_, _ = active.Start()
	assert.False(t, active.expired(now.Add(time.Hour), time.Minute, time.Minute), "進行中的房間由倒數結束")

	active.Close(ReasonExpired)
	assert.False(t, active.expired(time.Now(), time.Minute, time.Minute))
	assert.True(t, active.expired(time.Now().Add(2*time.Minute), time.Minute, time.Minute))
}
