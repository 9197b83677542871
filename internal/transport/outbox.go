package transport

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/koopa0/system-design/color-duel/internal/game"
)

// Outbox 連線表，負責把事件投遞到各連線的發送緩衝
//
// Outbox 實作 game.Notifier：Session 持鎖呼叫 Notify，
// 這裡只做序列化與非阻塞寫入 channel，不會回頭呼叫 Session 或 Registry。
//
// 鎖順序：Registry.mu → Session.mu → Outbox.mu
type Outbox struct {
	conns  map[string]*Connection // connID -> Connection
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewOutbox 建立連線表
func NewOutbox(logger *slog.Logger) *Outbox {
	return &Outbox{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Notify 投遞房間事件給 Recipients
func (o *Outbox) Notify(e game.Event) {
	message, err := json.Marshal(e)
	if err != nil {
		o.logger.Error("序列化事件失敗", "error", err, "event", e.Type)
		return
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, id := range e.Recipients {
		o.deliverLocked(id, message)
	}
}

// Send 直接回覆單一連線
func (o *Outbox) Send(connID string, e game.Event) {
	e.Recipients = []string{connID}
	o.Notify(e)
}

// Count 目前連線數
func (o *Outbox) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.conns)
}

// deliverLocked 非阻塞寫入（需持有讀鎖）
//
// 緩衝區滿代表客戶端太慢，丟棄訊息而不拖累同房間的其他連線。
func (o *Outbox) deliverLocked(connID string, message []byte) {
	conn, exists := o.conns[connID]
	if !exists {
		return
	}

	select {
	case conn.send <- message:
	default:
		o.logger.Warn("連接緩衝區滿，丟棄訊息", "player_id", connID)
	}
}

// register 註冊連接
func (o *Outbox) register(conn *Connection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conns[conn.ID] = conn
}

// unregister 取消註冊並關閉發送 channel
//
// 關閉 channel 與 deliverLocked 使用同一把鎖，因此不會寫入已關閉的 channel。
func (o *Outbox) unregister(conn *Connection) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if actual, exists := o.conns[conn.ID]; exists && actual == conn {
		delete(o.conns, conn.ID)
	}
	conn.closeSend()
}

// closeAll 關閉所有發送 channel，writePump 送完緩衝後送出關閉訊息
func (o *Outbox) closeAll() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.conns)
	for id, conn := range o.conns {
		conn.closeSend()
		delete(o.conns, id)
	}
	return n
}
