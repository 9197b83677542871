// Package publish 將結束的對局結果發佈到 NATS，供排行榜或統計服務訂閱。
//
// 發佈在背景 goroutine 進行：Notify 由 Session 持鎖呼叫，不能等待網路。
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/koopa0/system-design/color-duel/internal/game"
)

// DefaultSubject 對局結果的主題
const DefaultSubject = "color-duel.match.finished"

const defaultBuffer = 256

// MatchRecord 一場對局的結果
type MatchRecord struct {
	RoomID       string    `json:"room_id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id,omitempty"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	Winner       string    `json:"winner"`
	Reason       string    `json:"reason"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Conn 發佈所需的最小介面，*nats.Conn 滿足此介面
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher 以 game.Notifier 身分接收 game-over 事件並發佈
type Publisher struct {
	conn    Conn
	nc      *nats.Conn // 由 Connect 建立時持有，Close 時 Drain
	subject string
	logger  *slog.Logger

	queue  chan MatchRecord
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Connect 連線到 NATS 並啟動發佈 goroutine
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("color-duel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	p := New(nc, subject, logger)
	p.nc = nc
	return p, nil
}

// New 以既有連線建立 Publisher
func New(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	p := &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
		queue:   make(chan MatchRecord, defaultBuffer),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Notify 只處理 game-over，其餘事件忽略
func (p *Publisher) Notify(e game.Event) {
	if e.Type != game.EventGameOver {
		return
	}
	payload, ok := e.Data.(game.GameOverPayload)
	if !ok {
		return
	}

	record := MatchRecord{
		RoomID:       e.RoomID,
		Player1ID:    payload.Player1ID,
		Player2ID:    payload.Player2ID,
		Player1Score: payload.Player1Score,
		Player2Score: payload.Player2Score,
		Winner:       payload.Winner,
		Reason:       payload.Reason,
		FinishedAt:   time.Now().UTC(),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- record:
	default:
		p.logger.Warn("對局結果佇列已滿，丟棄", "room_id", e.RoomID)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for record := range p.queue {
		data, err := json.Marshal(record)
		if err != nil {
			p.logger.Error("序列化對局結果失敗", "error", err, "room_id", record.RoomID)
			continue
		}
		if err := p.conn.Publish(p.subject, data); err != nil {
			p.logger.Error("發佈對局結果失敗", "error", err, "room_id", record.RoomID)
			continue
		}
		p.logger.Debug("對局結果已發佈", "room_id", record.RoomID, "subject", p.subject)
	}
}

// Close 送完佇列中的結果後關閉連線
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()

	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			return fmt.Errorf("關閉 NATS 連線失敗: %w", err)
		}
	}
	return nil
}
