package state

import (
	"errors"
	"sync"
)

// Phase 房间生命周期的各个阶段
type Phase int

const (
	PhaseAwaitingLogin Phase = iota
	PhaseAwaitingReady
	PhaseAwaitingRoll
	PhaseAwaitingQuestion
	PhaseGameOver
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingLogin:
		return "awaiting_login"
	case PhaseAwaitingReady:
		return "awaiting_ready"
	case PhaseAwaitingRoll:
		return "awaiting_roll"
	case PhaseAwaitingQuestion:
		return "awaiting_question"
	case PhaseGameOver:
		return "game_over"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// ErrTransitionNotAllowed is returned when a phase transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine 基于转换表的状态机。房间的所有事件都在同一个goroutine里
// 处理，这里的锁只是为了让外部(监控/RPC)能安全读取当前阶段。
type Machine struct {
	mutex       sync.RWMutex
	current     Phase
	transitions map[Phase]map[Phase]bool
}

func NewMachine(initial Phase, transitions map[Phase][]Phase) *Machine {
	table := make(map[Phase]map[Phase]bool, len(transitions))
	for from, targets := range transitions {
		table[from] = make(map[Phase]bool, len(targets))
		for _, to := range targets {
			table[from][to] = true
		}
	}
	return &Machine{
		current:     initial,
		transitions: table,
	}
}

func (m *Machine) Current() Phase {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

func (m *Machine) Is(p Phase) bool {
	return m.Current() == p
}

// Transition 切换到目标阶段，转换表不允许时返回 ErrTransitionNotAllowed
func (m *Machine) Transition(to Phase) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.transitions[m.current][to] {
		return ErrTransitionNotAllowed
	}
	m.current = to
	return nil
}

// RoomTransitions 房间状态机的转换表。Closed 从任何阶段都可达，
// 因为断线和致命错误随时可能发生。
func RoomTransitions() map[Phase][]Phase {
	return map[Phase][]Phase{
		PhaseAwaitingLogin:    {PhaseAwaitingReady, PhaseClosed},
		PhaseAwaitingReady:    {PhaseAwaitingRoll, PhaseClosed},
		PhaseAwaitingRoll:     {PhaseAwaitingQuestion, PhaseGameOver, PhaseClosed},
		PhaseAwaitingQuestion: {PhaseAwaitingRoll, PhaseGameOver, PhaseClosed},
		PhaseGameOver:         {PhaseClosed},
	}
}
