// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/ps1net/backend/room"
	"github.com/ps1net/backend/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// Registry 能按ID找到房间的注册表（由matchmaker实现）
type Registry interface {
	GetRoom(roomID string) (*room.Room, bool)
}

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// RoomBroadcaster 基于房间注册表的广播器。发送是尽力而为，
// 单个连接出错不会中断对其他玩家的广播。
type RoomBroadcaster struct {
	registry       Registry
	sessionManager *session.Manager
}

func NewRoomBroadcaster(registry Registry, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		registry:       registry,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	rm, exists := b.registry.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range rm.Sessions() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接会由读循环的断线处理收拾
			continue
		}
	}

	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
