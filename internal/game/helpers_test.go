package game_test

import (
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/koopa0/system-design/color-duel/internal/game"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// recorder 收集 Session 送出的事件
type recorder struct {
	mu     sync.Mutex
	events []game.Event
}

func (r *recorder) Notify(e game.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []game.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]game.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(typ game.EventType) []game.Event {
	var out []game.Event
	for _, e := range r.all() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// 不會自動觸發的倒數，測試只驗證狀態機本身
var noTicks = game.Options{TickInterval: time.Hour}

func newGenerator() *game.TaskGenerator {
	return game.NewTaskGenerator(rand.NewPCG(1, 2))
}

// newReadySession 建立已有兩位玩家的房間
func newReadySession(rec *recorder, opts game.Options) *game.Session {
	s := game.NewSession("room_001", "P1", newGenerator(), rec, opts)
	if _, err := s.Join("P2"); err != nil {
		panic(err)
	}
	return s
}

// newActiveSession 建立已開始的房間
func newActiveSession(rec *recorder, opts game.Options) *game.Session {
	s := newReadySession(rec, opts)
	if _, err := s.Start(); err != nil {
		panic(err)
	}
	return s
}

// otherColor 回傳一個不是 label 的顏色
func otherColor(label game.Color) game.Color {
	for _, c := range game.Palette() {
		if c != label {
			return c
		}
	}
	return label
}
