package game

import (
	"fmt"
	"sync"
	"time"
)

// 系統設計問題：
//   兩名玩家在同一房間內互相搶分，倒數計時與出手同時改動房間狀態，如何保證一致？
//
// 設計方案：
//   ✅ 有限狀態機 - 狀態只往前走
//   ✅ 每個房間一把鎖 - 房間之間互不等待
//   ✅ 持鎖發送事件 - 同房間事件順序與狀態變更順序一致
//   ✅ 倒數計時器隸屬房間 - 離開 Active 時一定取消

// Phase 房間階段
//
//	awaiting_players → ready → active → over
//
// 任何階段都可以因玩家離線或逾時直接進入 over。
type Phase string

const (
	PhaseAwaitingPlayers Phase = "awaiting_players"
	PhaseReady           Phase = "ready"
	PhaseActive          Phase = "active"
	PhaseOver            Phase = "over"
)

const (
	DefaultDurationSeconds = 120
	DefaultTickInterval    = time.Second
)

// Options 單一房間的遊戲參數
type Options struct {
	DurationSeconds int
	TickInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.DurationSeconds <= 0 {
		o.DurationSeconds = DefaultDurationSeconds
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	return o
}

// PlayerState 玩家分數與當前題目
type PlayerState struct {
	ID    string `json:"player_id,omitempty"`
	Score int    `json:"score"`
	Task  *Task  `json:"task,omitempty"`
}

// Snapshot 房間狀態快照
type Snapshot struct {
	RoomID           string      `json:"room_id"`
	Phase            Phase       `json:"phase"`
	Player1          PlayerState `json:"player1"`
	Player2          PlayerState `json:"player2"`
	SecondsRemaining int         `json:"seconds_remaining"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// MoveResult 一次出手的結果
type MoveResult struct {
	Snapshot
	PlayerID string `json:"player_id"`
	Match    bool   `json:"match"`
}

// Session 單一房間的狀態機
type Session struct {
	ID string

	mu        sync.RWMutex
	slots     [2]string
	tasks     [2]*Task
	ledger    ScoreLedger
	remaining int
	phase     Phase
	countdown *Countdown
	endReason string

	gen      *TaskGenerator
	notifier Notifier
	opts     Options

	createdAt time.Time
	updatedAt time.Time
	endedAt   time.Time
}

// NewSession 建立房間，建立者佔用 player1
func NewSession(id, creatorID string, gen *TaskGenerator, notifier Notifier, opts Options) *Session {
	if gen == nil {
		gen = NewTaskGenerator(nil)
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}
	now := time.Now()
	s := &Session{
		ID:        id,
		phase:     PhaseAwaitingPlayers,
		gen:       gen,
		notifier:  notifier,
		opts:      opts.withDefaults(),
		createdAt: now,
		updatedAt: now,
	}
	s.slots[Player1] = creatorID
	return s
}

// Join 第二位玩家加入，房間轉為 ready
func (s *Session) Join(connID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.joinableLocked(connID); err != nil {
		return Snapshot{}, err
	}

	s.slots[Player2] = connID
	s.phase = PhaseReady
	s.touch()

	// 通知房內其他人（不含加入者），再回覆加入者
	s.emit(EventPlayerJoined, s.roomPayload(), s.slots[Player1])
	s.emit(EventGameJoined, s.roomPayload(), connID)

	return s.snapshotLocked(), nil
}

// joinable 不改變狀態，回報 Join 會失敗的原因
func (s *Session) joinable(connID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinableLocked(connID)
}

func (s *Session) joinableLocked(connID string) error {
	switch s.phase {
	case PhaseOver:
		return ErrGameAlreadyOver
	case PhaseReady, PhaseActive:
		return ErrRoomFull
	}
	if connID == s.slots[Player1] {
		return fmt.Errorf("%w: 玩家已在房間內", ErrRoomFull)
	}
	return nil
}

// Start 發題、分數歸零、啟動倒數
func (s *Session) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseOver:
		return Snapshot{}, ErrGameAlreadyOver
	case PhaseActive:
		return Snapshot{}, ErrGameAlreadyStarted
	case PhaseAwaitingPlayers:
		return Snapshot{}, ErrNotEnoughPlayers
	}
	if s.slots[Player1] == "" || s.slots[Player2] == "" {
		return Snapshot{}, ErrNotEnoughPlayers
	}

	for _, slot := range []Slot{Player1, Player2} {
		task := s.gen.Next()
		s.tasks[slot] = &task
	}
	s.ledger.Reset()
	s.remaining = s.opts.DurationSeconds
	s.phase = PhaseActive
	s.countdown = StartCountdown(s.opts.TickInterval, s.tick)
	s.touch()

	for _, slot := range []Slot{Player1, Player2} {
		s.emitTask(slot)
	}
	s.emit(EventNewScore, s.scorePayload(nil, ""), s.occupied()...)

	return s.snapshotLocked(), nil
}

// Move 玩家出手
//
// 命中：+1 並只替出手者換新題目；失誤：-2（最低 0），題目不變。
func (s *Session) Move(connID string, color Color) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseOver {
		return MoveResult{}, ErrGameAlreadyOver
	}
	slot, ok := s.slotOf(connID)
	if !ok {
		return MoveResult{}, ErrNotInRoom
	}
	if s.phase != PhaseActive || s.tasks[slot] == nil {
		return MoveResult{}, ErrIllegalMoveBeforeStart
	}
	if !color.Valid() {
		return MoveResult{}, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}

	matched := s.tasks[slot].Matches(color)
	s.ledger.Apply(slot, matched)
	if matched {
		task := s.gen.Next()
		s.tasks[slot] = &task
	}
	s.touch()

	if matched {
		s.emitTask(slot)
	}
	s.emit(EventNewScore, s.scorePayload(&matched, connID), s.occupied()...)

	return MoveResult{
		Snapshot: s.snapshotLocked(),
		PlayerID: connID,
		Match:    matched,
	}, nil
}

// Close 非正常結束（玩家離線、逾時、關機）
//
// 已結束的房間再次呼叫不做任何事。
func (s *Session) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseOver {
		return
	}
	s.finishLocked(reason)
}

// tick 倒數計時器回呼，回傳 false 表示停止
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return false
	}

	s.remaining--
	s.emit(EventTimeCounterUpdate, TimePayload{SecondsRemaining: s.remaining}, s.occupied()...)

	if s.remaining <= 0 {
		s.finishLocked(ReasonTimeUp)
		return false
	}
	return true
}

// finishLocked 進入 over：取消倒數並廣播終局比分
func (s *Session) finishLocked(reason string) {
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.phase = PhaseOver
	s.endReason = reason
	s.endedAt = time.Now()
	s.touch()

	result := s.resultLocked()
	s.emit(EventGameOver, GameOverPayload{
		Player1ID:    s.slots[Player1],
		Player2ID:    s.slots[Player2],
		Player1Score: result.Player1Score,
		Player2Score: result.Player2Score,
		Winner:       result.WinnerLabel(),
		Reason:       reason,
	}, s.occupied()...)
}

// Phase 目前階段
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Snapshot 目前狀態快照
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Result 以目前分數判定勝負
func (s *Session) Result() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultLocked()
}

// EndReason 結束原因，未結束時為空字串
func (s *Session) EndReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endReason
}

// HasPlayer 連線是否佔用此房間的位置
func (s *Session) HasPlayer(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slotOf(connID)
	return ok
}

// PlayerCount 已佔用的位置數
func (s *Session) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.occupied())
}

// countdownDone 倒數 goroutine 結束時關閉；尚未開始則回傳 nil
func (s *Session) countdownDone() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.countdown == nil {
		return nil
	}
	return s.countdown.Done()
}

// expired 是否可被清理：結束超過 retention，或開局前閒置超過 idle
func (s *Session) expired(now time.Time, idle, retention time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.phase {
	case PhaseOver:
		return now.Sub(s.endedAt) >= retention
	case PhaseActive:
		return false
	default:
		return idle > 0 && now.Sub(s.updatedAt) >= idle
	}
}

func (s *Session) slotOf(connID string) (Slot, bool) {
	if connID == "" {
		return 0, false
	}
	for _, slot := range []Slot{Player1, Player2} {
		if s.slots[slot] == connID {
			return slot, true
		}
	}
	return 0, false
}

func (s *Session) occupied() []string {
	ids := make([]string, 0, 2)
	for _, id := range s.slots {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func (s *Session) emit(typ EventType, data any, recipients ...string) {
	if len(recipients) == 0 {
		return
	}
	s.notifier.Notify(Event{
		Type:       typ,
		RoomID:     s.ID,
		Data:       data,
		Recipients: recipients,
	})
}

func (s *Session) emitTask(slot Slot) {
	s.emit(EventNewTask, TaskPayload{
		PlayerID: s.slots[slot],
		Task:     *s.tasks[slot],
	}, s.slots[slot])
}

func (s *Session) roomPayload() RoomPayload {
	return RoomPayload{
		RoomID:    s.ID,
		Player1ID: s.slots[Player1],
		Player2ID: s.slots[Player2],
	}
}

func (s *Session) scorePayload(match *bool, playerID string) ScorePayload {
	return ScorePayload{
		Player1Score: s.ledger.Score(Player1),
		Player2Score: s.ledger.Score(Player2),
		PlayerID:     playerID,
		Match:        match,
	}
}

func (s *Session) resultLocked() Result {
	return Decide(s.ledger.Score(Player1), s.ledger.Score(Player2))
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		RoomID:           s.ID,
		Phase:            s.phase,
		SecondsRemaining: s.remaining,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
	for _, slot := range []Slot{Player1, Player2} {
		ps := PlayerState{
			ID:    s.slots[slot],
			Score: s.ledger.Score(slot),
		}
		if t := s.tasks[slot]; t != nil {
			task := *t
			ps.Task = &task
		}
		if slot == Player1 {
			snap.Player1 = ps
		} else {
			snap.Player2 = ps
		}
	}
	return snap
}
