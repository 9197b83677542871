package game

// EventType 送往客戶端的事件名稱
type EventType string

const (
	EventConnected         EventType = "connected"
	EventGameCreated       EventType = "game-created"
	EventPlayerJoined      EventType = "player-joined"
	EventGameJoined        EventType = "game-joined"
	EventNewTask           EventType = "new-task"
	EventNewScore          EventType = "new-score"
	EventTimeCounterUpdate EventType = "time-counter-update"
	EventGameOver          EventType = "game-over"
	EventPong              EventType = "pong"

	EventErrorCreating EventType = "error-creating"
	EventErrorJoining  EventType = "error-joining"
	EventErrorStarting EventType = "error-starting"
	EventErrorMoving   EventType = "error-moving"
	EventErrorRequest  EventType = "error-request"
)

// 結束原因
const (
	ReasonTimeUp     = "time_up"
	ReasonPlayerLeft = "player_left"
	ReasonExpired    = "expired"
	ReasonShutdown   = "server_shutdown"
)

// Event 房間事件
//
// Recipients 為接收者的連線 ID，不序列化；由傳輸層負責投遞。
type Event struct {
	Type       EventType `json:"event"`
	RoomID     string    `json:"room_id,omitempty"`
	Data       any       `json:"data"`
	Recipients []string  `json:"-"`
}

// Notifier 接收 Session 產生的事件
//
// Session 在持有自身鎖時呼叫 Notify（保證同房間事件順序），
// 實作必須不阻塞，也不可回頭呼叫 Session 或 Registry。
type Notifier interface {
	Notify(Event)
}

// NotifierFunc 讓一般函式滿足 Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type multiNotifier []Notifier

func (m multiNotifier) Notify(e Event) {
	for _, n := range m {
		n.Notify(e)
	}
}

// MultiNotifier 依序轉送給多個 Notifier，忽略 nil
func MultiNotifier(ns ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// RoomPayload game-created / player-joined / game-joined
type RoomPayload struct {
	RoomID    string `json:"room_id"`
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id,omitempty"`
}

// TaskPayload new-task，只送給題目的主人
type TaskPayload struct {
	PlayerID string `json:"player_id"`
	Task     Task   `json:"task"`
}

// ScorePayload new-score
type ScorePayload struct {
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	PlayerID     string `json:"player_id,omitempty"`
	Match        *bool  `json:"match,omitempty"`
}

// TimePayload time-counter-update
type TimePayload struct {
	SecondsRemaining int `json:"seconds_remaining"`
}

// GameOverPayload game-over
type GameOverPayload struct {
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id,omitempty"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Winner       string `json:"winner"`
	Reason       string `json:"reason"`
}

// ErrorPayload error-* 事件
type ErrorPayload struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}
