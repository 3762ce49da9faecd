package room

import "time"

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// RecordSaver 对局结束时写入对局记录。实现在 services 包。
type RecordSaver interface {
	SaveFinished(roomID, winnerID string, positions map[string]int, startedAt time.Time) error
}
