// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/ps1net/backend/network"
)

// Session 一个已连接的玩家。连接归属是独占的：一个连接只对应一个玩家，
// 一个玩家最多属于一个房间。可变字段由房间goroutine和连接的读循环
// 两边访问，都走锁。
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	mutex      sync.RWMutex
	roomID     string
	lastActive time.Time
	name       string
	color      string
	lang       string
	ready      bool
	position   int
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// SetRoomID 绑定/解绑所属房间
func (s *Session) SetRoomID(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
}

func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

// Touch 刷新最后活跃时间（心跳或任何出站消息）
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// SetProfile 登录成功后写入玩家资料
func (s *Session) SetProfile(name, lang string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.name = name
	s.lang = lang
}

func (s *Session) Name() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.name
}

func (s *Session) Lang() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lang
}

func (s *Session) SetColor(color string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.color = color
}

func (s *Session) Color() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.color
}

func (s *Session) SetReady(ready bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ready = ready
}

func (s *Session) IsReady() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ready
}

// Position 当前在棋盘上的位置
func (s *Session) Position() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.position
}

func (s *Session) SetPosition(position int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.position = position
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
