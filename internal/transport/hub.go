// Package transport 負責 WebSocket 連線與 HTTP 查詢介面。
package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/color-duel/internal/game"
	"github.com/koopa0/system-design/color-duel/internal/limiter"
)

// 系統設計問題：
//   兩位玩家的出手與倒數事件必須即時、依序送達，且任一方斷線要立刻結束對局。
//
// 設計方案：
//   ✅ 每條連線一組 readPump / writePump
//   ✅ 讀取端依序處理同一連線的請求（不需要額外排序）
//   ✅ Ping/Pong 心跳 - 偵測死連接（54s/60s）
//   ✅ 每條連線一個令牌桶 - 擋掉洗訊息的客戶端

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // 必須小於 pongWait
	maxMessageSize = 4096
	sendBufferSize = 256
)

// HubOptions 連線參數
type HubOptions struct {
	// RateCapacity 每條連線可突發的訊息數
	RateCapacity int64
	// RateRefill 每秒補充的訊息數
	RateRefill int64
}

const (
	DefaultRateCapacity = 20
	DefaultRateRefill   = 10
)

// Hub WebSocket 連接中心
type Hub struct {
	registry *game.Registry
	outbox   *Outbox
	logger   *slog.Logger
	upgrader websocket.Upgrader
	opts     HubOptions
	stopped  atomic.Bool
}

// Connection 單一 WebSocket 連線，ID 即玩家 ID
type Connection struct {
	ID        string
	ws        *websocket.Conn
	send      chan []byte
	hub       *Hub
	limiter   *limiter.TokenBucket
	closeOnce sync.Once
}

// NewHub 建立 Hub
//
// outbox 必須是 registry 的 Notifier（或其中之一），房間事件才會送到連線。
func NewHub(registry *game.Registry, outbox *Outbox, logger *slog.Logger, opts HubOptions) *Hub {
	if opts.RateCapacity <= 0 {
		opts.RateCapacity = DefaultRateCapacity
	}
	if opts.RateRefill <= 0 {
		opts.RateRefill = DefaultRateRefill
	}

	return &Hub{
		registry: registry,
		outbox:   outbox,
		logger:   logger,
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS 升級連線並分配玩家 ID
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if hub.stopped.Load() {
		http.Error(w, "服務器關閉中", http.StatusServiceUnavailable)
		return
	}

	id, err := uuid.NewRandom()
	if err != nil {
		http.Error(w, "產生連線 ID 失敗", http.StatusInternalServerError)
		return
	}

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	conn := &Connection{
		ID:      id.String(),
		ws:      ws,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
		limiter: limiter.NewTokenBucket(hub.opts.RateCapacity, hub.opts.RateRefill),
	}

	hub.outbox.register(conn)

	// 第一則訊息告訴客戶端自己的玩家 ID
	hub.outbox.Send(conn.ID, game.Event{
		Type: game.EventConnected,
		Data: map[string]string{"player_id": conn.ID},
	})

	go conn.writePump()
	go conn.readPump()

	hub.logger.Info("WebSocket 連接建立", "player_id", conn.ID)
}

// ConnectionCount 目前連線數
func (hub *Hub) ConnectionCount() int {
	return hub.outbox.Count()
}

// Stop 拒絕新連線並關閉所有連線
func (hub *Hub) Stop() {
	hub.stopped.Store(true)
	n := hub.outbox.closeAll()
	hub.logger.Info("WebSocket Hub 已停止", "connections", n)
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump 依序讀取並處理客戶端訊息
//
// 60 秒內沒有任何訊息（包括 Pong）就視為斷線。
// 離開時註銷連線並讓所在房間結束。
func (c *Connection) readPump() {
	defer func() {
		c.hub.outbox.unregister(c)
		c.hub.registry.Leave(c.ID)
		c.ws.Close()
		c.hub.logger.Info("WebSocket 連接關閉", "player_id", c.ID)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.ws.SetPongHandler(func(string) error {
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		return nil
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"player_id", c.ID)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.hub.dispatch(c, message)
		}
	}
}

// writePump 把發送緩衝寫到客戶端，並定期送出 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 發送 channel 已關閉，嘗試送出關閉訊息（連接可能已關閉，忽略錯誤）
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 一併送出佇列中已有的訊息，順序不變
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					return
				}
				if err := c.ws.WriteMessage(websocket.TextMessage, next); err != nil {
					c.hub.logger.Error("發送消息失敗", "error", err, "player_id", c.ID)
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
