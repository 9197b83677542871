// Package game 實作雙人配色對戰的房間生命週期與計分狀態機。
//
// 組成（由底層到上層）：
//   - TaskGenerator：隨機產生「點選此顏色」題目，標籤與背景色必不相同
//   - ScoreLedger：雙人計分，命中 +1、失誤 -2，最低 0 分
//   - Countdown：每秒觸發一次的倒數計時器，由房間持有並負責取消
//   - Session：單一房間狀態機 awaiting_players → ready → active → over
//   - Registry：以房間 ID 路由請求，並定期清理結束或閒置的房間
//
// 事件透過 Notifier 送出，Session 持鎖呼叫，因此同一房間的事件順序
// 與狀態變更順序一致；不同房間之間沒有任何共用鎖。
//
// 使用範例：
//
//	registry := game.NewRegistry(logger, notifier, game.RegistryOptions{})
//	defer registry.Stop()
//
//	room, _ := registry.Create("conn-1")
//	registry.Join(room.ID, "conn-2")
//	registry.Start(room.ID)
//	registry.Move(room.ID, "conn-2", game.Red)
package game
