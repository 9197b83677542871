package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryOptions 房間管理參數
type RegistryOptions struct {
	Session Options

	// MaxRooms 同時存在的房間上限，0 表示不限
	MaxRooms int
	// IdleTimeout 開局前閒置多久關閉房間，0 表示不清理
	IdleTimeout time.Duration
	// FinishedRetention 結束後保留多久（供查詢終局狀態），0 使用 DefaultFinishedRetention
	FinishedRetention time.Duration
	// CleanupInterval 清理掃描間隔，0 使用 DefaultCleanupInterval
	CleanupInterval time.Duration
}

const (
	DefaultIdleTimeout       = 10 * time.Minute
	DefaultFinishedRetention = time.Minute
	DefaultCleanupInterval   = 30 * time.Second
)

// Registry 房間註冊表
type Registry struct {
	sessions map[string]*Session // roomID -> Session
	connRoom map[string]string   // connID -> roomID
	mu       sync.RWMutex

	gen      *TaskGenerator
	notifier Notifier
	logger   *slog.Logger
	opts     RegistryOptions

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry 建立註冊表並啟動清理 goroutine
func NewRegistry(logger *slog.Logger, notifier Notifier, opts RegistryOptions) *Registry {
	if opts.FinishedRetention <= 0 {
		opts.FinishedRetention = DefaultFinishedRetention
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	r := &Registry{
		sessions: make(map[string]*Session),
		connRoom: make(map[string]string),
		gen:      NewTaskGenerator(nil),
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Create 建立房間，建立者佔用 player1
func (r *Registry) Create(connID string) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("產生房間 ID 失敗: %w", err)
	}
	roomID := id.String()

	r.mu.Lock()
	if r.opts.MaxRooms > 0 && len(r.sessions) >= r.opts.MaxRooms {
		r.mu.Unlock()
		return nil, ErrTooManyRooms
	}
	if err := r.checkSeatLocked(connID); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	session := NewSession(roomID, connID, r.gen.Fork(), r.notifier, r.opts.Session)
	r.sessions[roomID] = session
	r.connRoom[connID] = roomID
	r.mu.Unlock()

	r.logger.Info("房間已創建",
		"room_id", roomID,
		"player_id", connID)

	return session, nil
}

// Get 取得房間
func (r *Registry) Get(roomID string) (*Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[roomID]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return session, nil
}

// Join 加入房間
//
// 房間本身的狀態（已滿、已結束）優先於座位檢查回報。
// 同一連線的請求由傳輸層依序處理，因此檢查座位與寫入索引之間不需要持鎖。
func (r *Registry) Join(roomID, connID string) (Snapshot, error) {
	session, err := r.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := session.joinable(connID); err != nil {
		return Snapshot{}, err
	}

	r.mu.RLock()
	err = r.checkSeatLocked(connID)
	r.mu.RUnlock()
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := session.Join(connID)
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	r.connRoom[connID] = roomID
	r.mu.Unlock()

	r.logger.Info("玩家加入房間",
		"room_id", roomID,
		"player_id", connID)

	return snap, nil
}

// Start 開始遊戲
func (r *Registry) Start(roomID string) (Snapshot, error) {
	session, err := r.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := session.Start()
	if err != nil {
		return Snapshot{}, err
	}

	r.logger.Info("遊戲開始",
		"room_id", roomID,
		"seconds", snap.SecondsRemaining)

	return snap, nil
}

// Move 玩家出手
func (r *Registry) Move(roomID, connID string, color Color) (MoveResult, error) {
	session, err := r.Get(roomID)
	if err != nil {
		return MoveResult{}, err
	}
	return session.Move(connID, color)
}

// Leave 連線中斷：所在房間直接結束
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	roomID, exists := r.connRoom[connID]
	if exists {
		delete(r.connRoom, connID)
	}
	session := r.sessions[roomID]
	r.mu.Unlock()

	if !exists || session == nil {
		return
	}

	if session.Phase() != PhaseOver {
		session.Close(ReasonPlayerLeft)
		r.logger.Info("玩家離線，房間結束",
			"room_id", roomID,
			"player_id", connID)
	}
}

// RoomOf 連線目前所在房間
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, exists := r.connRoom[connID]
	return roomID, exists
}

// Remove 關閉並移除房間
func (r *Registry) Remove(roomID string) {
	session, err := r.Get(roomID)
	if err != nil {
		return
	}
	session.Close(ReasonExpired)
	r.removeRoom(roomID)
}

// checkSeatLocked 一條連線同時只能待在一個未結束的房間
func (r *Registry) checkSeatLocked(connID string) error {
	roomID, exists := r.connRoom[connID]
	if !exists {
		return nil
	}
	if session, ok := r.sessions[roomID]; ok && session.Phase() != PhaseOver {
		return fmt.Errorf("%w: 連線已在房間 %s 中", ErrConnectionRegistrationFailed, roomID)
	}
	return nil
}

// cleanupLoop 定期清理過期房間
func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// Cleanup 執行一次清理（公開供測試使用）
func (r *Registry) Cleanup(now time.Time) int {
	return r.cleanup(now)
}

func (r *Registry) cleanup(now time.Time) int {
	r.mu.RLock()
	var toRemove []*Session
	for _, session := range r.sessions {
		if session.expired(now, r.opts.IdleTimeout, r.opts.FinishedRetention) {
			toRemove = append(toRemove, session)
		}
	}
	r.mu.RUnlock()

	for _, session := range toRemove {
		session.Close(ReasonExpired)
		r.removeRoom(session.ID)
		r.logger.Info("房間已過期清理", "room_id", session.ID)
	}
	return len(toRemove)
}

func (r *Registry) removeRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[roomID]; !exists {
		return
	}
	for connID, id := range r.connRoom {
		if id == roomID {
			delete(r.connRoom, connID)
		}
	}
	delete(r.sessions, roomID)
}

// Stop 停止清理並結束所有房間
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	for _, session := range sessions {
		session.Close(ReasonShutdown)
	}

	r.logger.Info("房間註冊表已停止", "rooms", len(sessions))
}

// Stats 統計資訊
type Stats struct {
	TotalRooms   int           `json:"total_rooms"`
	TotalPlayers int           `json:"total_players"`
	ByPhase      map[Phase]int `json:"by_phase"`
}

// Stats 取得統計資訊
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalRooms: len(r.sessions),
		ByPhase:    make(map[Phase]int),
	}
	for _, session := range r.sessions {
		stats.ByPhase[session.Phase()]++
		stats.TotalPlayers += session.PlayerCount()
	}
	return stats
}
