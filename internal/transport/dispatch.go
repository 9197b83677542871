package transport

import (
	"encoding/json"
	"fmt"

	"github.com/koopa0/system-design/color-duel/internal/game"
)

// 客戶端訊息類型
const (
	MsgCreateGame = "create-game"
	MsgJoinGame   = "join-game"
	MsgStartGame  = "start-game"
	MsgPlayerMove = "player-move"
	MsgPing       = "ping"
)

// 傳輸層錯誤碼
const (
	CodeBadRequest  game.Code = "BAD_REQUEST"
	CodeRateLimited game.Code = "RATE_LIMITED"
	CodeUnknownType game.Code = "UNKNOWN_TYPE"
)

// inboundMessage 客戶端送來的訊息
type inboundMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Color    string `json:"color,omitempty"`
}

// dispatch 處理單則客戶端訊息
//
// 同一連線的訊息在 readPump 中依序處理；錯誤只回覆給請求者，不影響房間。
func (hub *Hub) dispatch(c *Connection, raw []byte) {
	if !c.limiter.Allow() {
		hub.replyError(c, game.EventErrorRequest, "", CodeRateLimited, "請求過於頻繁")
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		hub.logger.Debug("解析客戶端消息失敗", "error", err, "player_id", c.ID)
		hub.replyError(c, game.EventErrorRequest, "", CodeBadRequest, "無效的訊息格式")
		return
	}

	switch msg.Type {
	case MsgCreateGame:
		hub.createGame(c)
	case MsgJoinGame:
		hub.joinGame(c, msg)
	case MsgStartGame:
		hub.startGame(c, msg)
	case MsgPlayerMove:
		hub.playerMove(c, msg)
	case MsgPing:
		hub.outbox.Send(c.ID, game.Event{Type: game.EventPong, Data: map[string]any{}})
	default:
		hub.logger.Debug("收到未知消息類型", "type", msg.Type, "player_id", c.ID)
		hub.replyError(c, game.EventErrorRequest, "", CodeUnknownType,
			fmt.Sprintf("未知的訊息類型: %q", msg.Type))
	}
}

func (hub *Hub) createGame(c *Connection) {
	session, err := hub.registry.Create(c.ID)
	if err != nil {
		hub.replyDomainError(c, game.EventErrorCreating, "", err)
		return
	}

	hub.outbox.Send(c.ID, game.Event{
		Type:   game.EventGameCreated,
		RoomID: session.ID,
		Data: game.RoomPayload{
			RoomID:    session.ID,
			Player1ID: c.ID,
		},
	})
}

// joinGame 成功時 player-joined / game-joined 由 Session 發出
func (hub *Hub) joinGame(c *Connection, msg inboundMessage) {
	if msg.RoomID == "" {
		hub.replyError(c, game.EventErrorJoining, "", CodeBadRequest, "缺少房間 ID")
		return
	}

	if _, err := hub.registry.Join(msg.RoomID, c.ID); err != nil {
		hub.replyDomainError(c, game.EventErrorJoining, msg.RoomID, err)
	}
}

// startGame 只有房內玩家可以開始
func (hub *Hub) startGame(c *Connection, msg inboundMessage) {
	if msg.RoomID == "" {
		hub.replyError(c, game.EventErrorStarting, "", CodeBadRequest, "缺少房間 ID")
		return
	}

	session, err := hub.registry.Get(msg.RoomID)
	if err != nil {
		hub.replyDomainError(c, game.EventErrorStarting, msg.RoomID, err)
		return
	}
	if !session.HasPlayer(c.ID) {
		hub.replyDomainError(c, game.EventErrorStarting, msg.RoomID, game.ErrNotInRoom)
		return
	}

	if _, err := hub.registry.Start(msg.RoomID); err != nil {
		hub.replyDomainError(c, game.EventErrorStarting, msg.RoomID, err)
	}
}

// playerMove 玩家只能替自己出手
func (hub *Hub) playerMove(c *Connection, msg inboundMessage) {
	if msg.RoomID == "" {
		hub.replyError(c, game.EventErrorMoving, "", CodeBadRequest, "缺少房間 ID")
		return
	}
	if msg.PlayerID != "" && msg.PlayerID != c.ID {
		hub.replyError(c, game.EventErrorMoving, msg.RoomID, CodeBadRequest, "玩家 ID 與連線不符")
		return
	}

	if _, err := hub.registry.Move(msg.RoomID, c.ID, game.Color(msg.Color)); err != nil {
		hub.replyDomainError(c, game.EventErrorMoving, msg.RoomID, err)
	}
}

func (hub *Hub) replyDomainError(c *Connection, typ game.EventType, roomID string, err error) {
	hub.logger.Debug("請求失敗",
		"event", typ,
		"room_id", roomID,
		"player_id", c.ID,
		"error", err)
	hub.replyError(c, typ, roomID, game.CodeOf(err), err.Error())
}

func (hub *Hub) replyError(c *Connection, typ game.EventType, roomID string, code game.Code, message string) {
	hub.outbox.Send(c.ID, game.Event{
		Type:   typ,
		RoomID: roomID,
		Data: game.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}
