// room/queue.go
package room

import (
	"errors"

	"github.com/ps1net/backend/session"
)

// ErrEmptyQueue is returned when the turn queue has no players left.
var ErrEmptyQueue = errors.New("turn queue is empty")

// TurnQueue 回合队列：带环形游标的有序玩家序列。只暴露
// Current/Next/Add/Remove，游标永远指向一个存在的玩家。
// 只在房间自己的goroutine里访问。
type TurnQueue struct {
	players []*session.Session
	cursor  int
}

func NewTurnQueue(players ...*session.Session) *TurnQueue {
	q := &TurnQueue{}
	q.players = append(q.players, players...)
	return q
}

// Current 返回当前回合的玩家
func (q *TurnQueue) Current() (*session.Session, error) {
	if len(q.players) == 0 {
		return nil, ErrEmptyQueue
	}
	return q.players[q.cursor], nil
}

// Next 环形前进一位并返回新的当前玩家。N个玩家调用N次后
// 游标回到起点。
func (q *TurnQueue) Next() (*session.Session, error) {
	if len(q.players) == 0 {
		return nil, ErrEmptyQueue
	}
	q.cursor = (q.cursor + 1) % len(q.players)
	return q.players[q.cursor], nil
}

// Add 追加一个玩家到队尾
func (q *TurnQueue) Add(s *session.Session) {
	q.players = append(q.players, s)
}

// Remove 按ID移除玩家，游标收缩到仍然有效的位置。
// 玩家不存在时返回 false。
func (q *TurnQueue) Remove(id string) bool {
	for i, p := range q.players {
		if p.ID != id {
			continue
		}

		q.players = append(q.players[:i], q.players[i+1:]...)
		if len(q.players) == 0 {
			q.cursor = 0
			return true
		}
		if i < q.cursor {
			q.cursor--
		}
		if q.cursor >= len(q.players) {
			q.cursor = 0
		}
		return true
	}
	return false
}

func (q *TurnQueue) Size() int {
	return len(q.players)
}

// Each 按座位顺序遍历玩家
func (q *TurnQueue) Each(fn func(*session.Session)) {
	for _, p := range q.players {
		fn(p)
	}
}
