// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/bobboi/session"
)

// PayloadFunc 按观察者生成载荷。对局快照因"看不到自己的牌"
// 而因人而异，不能一份字节发全房间。
type PayloadFunc func(viewerPlayerID string) ([]byte, error)

// Broadcaster 房间广播接口。引擎的拒绝只回给请求方，
// 走这里的都是已接受的状态变更。
type Broadcaster interface {
	BroadcastToGame(gameID string, msgID uint16, data []byte) error
	BroadcastToGameViews(gameID string, msgID uint16, build PayloadFunc) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// GameBroadcaster 基于会话绑定做房间扇出
type GameBroadcaster struct {
	sessionManager *session.Manager
}

func NewGameBroadcaster(sessionManager *session.Manager) *GameBroadcaster {
	return &GameBroadcaster{sessionManager: sessionManager}
}

func (b *GameBroadcaster) BroadcastToGame(gameID string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByGameID(gameID) {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接由读循环负责清理，这里继续发给其他人
			continue
		}
	}
	return nil
}

// BroadcastToGameViews 为房间里每条连接单独构造载荷后发送
func (b *GameBroadcaster) BroadcastToGameViews(gameID string, msgID uint16, build PayloadFunc) error {
	for _, s := range b.sessionManager.GetByGameID(gameID) {
		_, playerID := s.Binding()
		data, err := build(playerID)
		if err != nil {
			return err
		}
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

func (b *GameBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
