// services/record_service.go
package services

import (
	"context"
	"time"

	"github.com/ps1net/backend/models"
	"github.com/ps1net/backend/persistence"
)

const saveTimeout = 5 * time.Second

// GameRecordService 对局结束后写入对局记录
type GameRecordService struct {
	store persistence.RecordStore
}

func NewGameRecordService(store persistence.RecordStore) *GameRecordService {
	return &GameRecordService{store: store}
}

// SaveFinished 保存一局的结果。实现 room.RecordSaver。
func (s *GameRecordService) SaveFinished(roomID, winnerID string, positions map[string]int, startedAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	return s.store.SaveGameRecord(ctx, models.GameRecord{
		RoomID:    roomID,
		WinnerID:  winnerID,
		Positions: positions,
		Duration:  int(time.Since(startedAt).Seconds()),
	})
}
