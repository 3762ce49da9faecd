// matchmaker/matchmaker.go
package matchmaker

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ps1net/backend/config"
	"github.com/ps1net/backend/game"
	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/monitor"
	"github.com/ps1net/backend/persistence"
	"github.com/ps1net/backend/room"
	"github.com/ps1net/backend/session"
	"github.com/ps1net/backend/timer"
)

// Matchmaker 匹配系统：按到达顺序排队，每凑满两人开一个房间。
// 它也是活跃房间注册表的唯一拥有者，注册/注销只通过这里进行。
type Matchmaker struct {
	mutex sync.Mutex
	queue []*session.Session
	rooms map[string]*room.Room

	broadcaster room.Broadcaster
	questions   persistence.QuestionStore
	records     room.RecordSaver
	timers      *timer.Manager
	monitor     *monitor.Monitor
	gameConfig  config.GameConfig
	boardFn     func() *game.Board

	roomSeq int
}

func New(gameConfig config.GameConfig, questions persistence.QuestionStore, records room.RecordSaver,
	timers *timer.Manager, mon *monitor.Monitor, boardFn func() *game.Board) *Matchmaker {
	if boardFn == nil {
		boardFn = game.DefaultBoard
	}
	return &Matchmaker{
		queue:      make([]*session.Session, 0),
		rooms:      make(map[string]*room.Room),
		questions:  questions,
		records:    records,
		timers:     timers,
		monitor:    mon,
		gameConfig: gameConfig,
		boardFn:    boardFn,
	}
}

// SetBroadcaster 广播器建立在注册表之上，所以在构造之后注入
func (m *Matchmaker) SetBroadcaster(b room.Broadcaster) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.broadcaster = b
}

// Enqueue 新连接进入匹配队列，凑满两人立即开房。
// 单独排队的连接会一直等下去（没有超时策略，队列长度暴露给监控）。
func (m *Matchmaker) Enqueue(sess *session.Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, queued := range m.queue {
		if queued.ID == sess.ID {
			return
		}
	}

	m.queue = append(m.queue, sess)
	logger.Log.Infof("player %s queued for matching (%d waiting)", sess.ID, len(m.queue))

	for len(m.queue) >= 2 {
		first, second := m.queue[0], m.queue[1]
		m.queue = m.queue[2:]
		m.createRoom(first, second)
	}
	m.monitor.SetWaitingPlayers(len(m.queue))
}

// createRoom 调用方必须持有锁
func (m *Matchmaker) createRoom(first, second *session.Session) {
	m.roomSeq++
	id := uuid.New().String()
	name := fmt.Sprintf("ROOM_%d", m.roomSeq)

	rm := room.New(id, name, m.boardFn(), []*session.Session{first, second}, room.Deps{
		Broadcaster: m.broadcaster,
		Questions:   m.questions,
		Records:     m.records,
		Timers:      m.timers,
		Monitor:     m.monitor,
		Game:        m.gameConfig,
		OnClose:     m.unregister,
	})

	m.rooms[id] = rm
	m.monitor.SetActiveRooms(len(m.rooms))

	rm.Start()
}

// unregister 房间关闭时的回调，注册表里移除
func (m *Matchmaker) unregister(roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.rooms, roomID)
	m.monitor.SetActiveRooms(len(m.rooms))
	logger.Log.Infof("room %s retired (%d active)", roomID, len(m.rooms))
}

// GetRoom 按ID查找房间
func (m *Matchmaker) GetRoom(roomID string) (*room.Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rm, exists := m.rooms[roomID]
	return rm, exists
}

// HandleDisconnect 断线入口：还在排队就出队，在房间里就交给房间处理
func (m *Matchmaker) HandleDisconnect(sess *session.Session) {
	if roomID := sess.RoomID(); roomID != "" {
		if rm, exists := m.GetRoom(roomID); exists {
			rm.Post(room.Event{Kind: room.EventDisconnect, Sess: sess})
			return
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i, queued := range m.queue {
		if queued.ID == sess.ID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			logger.Log.Infof("player %s left the matching queue", sess.ID)
			break
		}
	}
	m.monitor.SetWaitingPlayers(len(m.queue))
}

// QueueLength 当前排队人数
func (m *Matchmaker) QueueLength() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.queue)
}

// RoomCount 活跃房间数
func (m *Matchmaker) RoomCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.rooms)
}

// Shutdown 关闭所有房间
func (m *Matchmaker) Shutdown() {
	m.mutex.Lock()
	rooms := make([]*room.Room, 0, len(m.rooms))
	for _, rm := range m.rooms {
		rooms = append(rooms, rm)
	}
	m.mutex.Unlock()

	for _, rm := range rooms {
		rm.Shutdown()
	}
}
