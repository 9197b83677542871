package game

import (
	"errors"
	"fmt"
)

// 請求層錯誤：全部可在請求邊界恢復，不會破壞房間狀態。
var (
	ErrRoomNotFound                 = errors.New("房間不存在")
	ErrRoomFull                     = errors.New("房間已滿")
	ErrNotEnoughPlayers             = errors.New("玩家人數不足")
	ErrGameAlreadyStarted           = errors.New("遊戲已開始")
	ErrGameAlreadyOver              = errors.New("遊戲已結束")
	ErrIllegalMoveBeforeStart       = errors.New("遊戲尚未開始")
	ErrConnectionRegistrationFailed = errors.New("連線註冊失敗")
	ErrInvalidColor                 = errors.New("無效的顏色")
	ErrTooManyRooms                 = errors.New("房間數量已達上限")

	// ErrNotInRoom 屬於 ErrRoomNotFound 類別（errors.Is 兩者皆成立）
	ErrNotInRoom = fmt.Errorf("%w: 連線不屬於此房間", ErrRoomNotFound)
)

// Code 機器可讀的錯誤碼，隨錯誤事件送回客戶端
type Code string

const (
	CodeUnknown                      Code = "UNKNOWN"
	CodeRoomNotFound                 Code = "ROOM_NOT_FOUND"
	CodeNotInRoom                    Code = "NOT_IN_ROOM"
	CodeRoomFull                     Code = "ROOM_FULL"
	CodeNotEnoughPlayers             Code = "NOT_ENOUGH_PLAYERS"
	CodeGameAlreadyStarted           Code = "GAME_ALREADY_STARTED"
	CodeGameAlreadyOver              Code = "GAME_ALREADY_OVER"
	CodeIllegalMoveBeforeStart       Code = "ILLEGAL_MOVE_BEFORE_START"
	CodeConnectionRegistrationFailed Code = "CONNECTION_REGISTRATION_FAILED"
	CodeInvalidColor                 Code = "INVALID_COLOR"
	CodeTooManyRooms                 Code = "TOO_MANY_ROOMS"
)

// 順序有意義：ErrNotInRoom 必須先於 ErrRoomNotFound 比對
var errorCodes = []struct {
	err  error
	code Code
}{
	{ErrNotInRoom, CodeNotInRoom},
	{ErrRoomNotFound, CodeRoomNotFound},
	{ErrRoomFull, CodeRoomFull},
	{ErrNotEnoughPlayers, CodeNotEnoughPlayers},
	{ErrGameAlreadyStarted, CodeGameAlreadyStarted},
	{ErrGameAlreadyOver, CodeGameAlreadyOver},
	{ErrIllegalMoveBeforeStart, CodeIllegalMoveBeforeStart},
	{ErrConnectionRegistrationFailed, CodeConnectionRegistrationFailed},
	{ErrInvalidColor, CodeInvalidColor},
	{ErrTooManyRooms, CodeTooManyRooms},
}

// CodeOf 取出錯誤對應的錯誤碼，非領域錯誤回傳 CodeUnknown
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}
