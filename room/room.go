// room/room.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ps1net/backend/challenge"
	"github.com/ps1net/backend/config"
	"github.com/ps1net/backend/game"
	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/monitor"
	"github.com/ps1net/backend/network"
	"github.com/ps1net/backend/persistence"
	"github.com/ps1net/backend/session"
	"github.com/ps1net/backend/state"
	"github.com/ps1net/backend/timer"
)

// EventKind 房间事件类型
type EventKind int

const (
	EventLogin EventKind = iota
	EventRoll
	EventSetDifficulty
	EventAnswer
	EventDisconnect
	EventShutdown
	eventChallengeTimeout
	eventLoginPrompt
)

// Event 投递给房间的一个事件。房间的goroutine按到达顺序逐个处理，
// 这保证了任何时刻只有一个回合操作在进行。
type Event struct {
	Kind    EventKind
	Sess    *session.Session
	Payload []byte
	epoch   uint64
}

// Deps 房间的外部依赖
type Deps struct {
	Broadcaster Broadcaster
	Questions   persistence.QuestionStore
	Records     RecordSaver
	Timers      *timer.Manager
	Monitor     *monitor.Monitor
	Game        config.GameConfig
	// OnClose 房间关闭时回调，注册表用它来移除房间
	OnClose func(roomID string)
}

// pendingChallenge 已发出、等待回答或超时的问题
type pendingChallenge struct {
	ch      *challenge.Challenge
	timerID int64
	epoch   uint64
}

// Room 一局双人游戏。拥有自己的棋盘和回合队列，所有游戏逻辑都在
// loop 的goroutine里串行执行；断线是唯一随时可能到达的事件，
// 处理必须幂等。
type Room struct {
	ID   string
	Name string

	board    *game.Board
	queue    *TurnQueue
	machine  *state.Machine
	selector *challenge.Selector
	deps     Deps

	inbox     chan Event
	done      chan struct{}
	closeOnce sync.Once

	startedAt time.Time

	// epoch 区分先后两次问题挑战，过期的超时事件靠它识别
	epoch   uint64
	pending *pendingChallenge
}

// New 创建房间并把玩家绑定进来。调用方负责之后调用 Start。
func New(id, name string, board *game.Board, players []*session.Session, deps Deps) *Room {
	r := &Room{
		ID:        id,
		Name:      name,
		board:     board,
		queue:     NewTurnQueue(players...),
		machine:   state.NewMachine(state.PhaseAwaitingLogin, state.RoomTransitions()),
		selector:  challenge.NewSelector(deps.Questions, time.Now().UnixNano()),
		deps:      deps,
		inbox:     make(chan Event, 64),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}

	for _, p := range players {
		p.SetRoomID(id)
	}
	return r
}

// Start 启动房间的事件循环并向所有玩家发出登录请求。
// 登录请求经由事件循环发出，调用方（matchmaker）可能还持有注册表锁。
func (r *Room) Start() {
	logger.Log.Infof("new room %s (%s)", r.Name, r.ID)
	go r.loop()
	r.Post(Event{Kind: eventLoginPrompt})
}

// Post 投递一个事件。房间已关闭时事件被丢弃。
func (r *Room) Post(ev Event) {
	select {
	case <-r.done:
	case r.inbox <- ev:
	}
}

// Shutdown 请求关闭房间（强制断开所有玩家并从注册表移除）
func (r *Room) Shutdown() {
	r.Post(Event{Kind: EventShutdown})
}

// Phase 当前所处阶段
func (r *Room) Phase() state.Phase {
	return r.machine.Current()
}

// Sessions 返回房间内的玩家。只能从房间goroutine或Start之前调用。
func (r *Room) Sessions() []*session.Session {
	sessions := make([]*session.Session, 0, r.queue.Size())
	r.queue.Each(func(s *session.Session) {
		sessions = append(sessions, s)
	})
	return sessions
}

func (r *Room) loop() {
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.inbox:
			r.handle(ev)
		}
	}
}

func (r *Room) handle(ev Event) {
	switch ev.Kind {
	case EventLogin:
		r.handleLogin(ev.Sess, ev.Payload)
	case EventRoll:
		r.handleRoll(ev.Sess)
	case EventSetDifficulty:
		r.handleSetDifficulty(ev.Sess, ev.Payload)
	case EventAnswer:
		r.handleAnswer(ev.Sess, ev.Payload)
	case eventChallengeTimeout:
		r.handleChallengeTimeout(ev)
	case EventDisconnect:
		r.handleDisconnect(ev.Sess)
	case EventShutdown:
		r.close()
	case eventLoginPrompt:
		r.broadcast(network.MsgTypeLogin, nil)
	default:
		logger.Log.Warnf("room %s: unknown event kind %d", r.ID, ev.Kind)
	}
}

// --- 登录与准备 ---

func (r *Room) handleLogin(sess *session.Session, payload []byte) {
	phase := r.machine.Current()
	if phase != state.PhaseAwaitingLogin && phase != state.PhaseAwaitingReady {
		return
	}

	var login network.LoginPayload
	if err := json.Unmarshal(payload, &login); err != nil {
		logger.Log.Warnf("room %s: malformed login from %s: %v", r.ID, sess.ID, err)
		return
	}

	// 非法输入直接拒绝，不改任何状态，也不断开客户端
	if !game.IsColorValid(login.Color) || !game.IsCategoryValid(login.Category) ||
		!game.IsNameValid(login.Name) || !game.IsLanguageValid(login.Lang) {
		logger.Log.Warnf("room %s: rejected login from %s (invalid color, category, name or language)", r.ID, sess.ID)
		return
	}

	sess.SetProfile(login.Name, login.Lang)
	// 类别是房间级的，最后登录的玩家生效
	r.board.SetCategory(login.Category)

	colors, _ := json.Marshal(r.board.AvailableColors())
	if !r.board.AssignColor(login.Color, sess.ID) {
		// 颜色已被占用，只告诉这个玩家还剩哪些可选
		sess.Send(network.MsgTypeAvailableColors, colors)
		return
	}

	sess.SetColor(login.Color)
	colors, _ = json.Marshal(r.board.AvailableColors())
	r.broadcast(network.MsgTypeAvailableColors, colors)

	sess.SetReady(true)
	if r.machine.Is(state.PhaseAwaitingLogin) {
		r.machine.Transition(state.PhaseAwaitingReady)
	}
	r.checkReady()
}

// checkReady 所有玩家都准备好后开始游戏：广播棋盘并开启第一回合
func (r *Room) checkReady() {
	allReady := true
	r.queue.Each(func(s *session.Session) {
		if !s.IsReady() {
			allReady = false
		}
	})
	if !allReady || r.queue.Size() == 0 {
		return
	}

	if err := r.machine.Transition(state.PhaseAwaitingRoll); err != nil {
		return
	}

	fields, _ := json.Marshal(r.board.Fields())
	r.broadcast(network.MsgTypeMap, fields)

	logger.Log.Infof("game start (%s)", r.Name)
	r.startedAt = time.Now()
	r.gameRound()
}

// --- 回合循环 ---

// gameRound 只通知当前玩家掷骰子
func (r *Room) gameRound() {
	cur, err := r.queue.Current()
	if err != nil {
		logger.Log.Infof("room %s: no players left, closing", r.ID)
		r.close()
		return
	}
	cur.Send(network.MsgTypeRollPrompt, nil)
}

func (r *Room) handleRoll(sess *session.Session) {
	if !r.machine.Is(state.PhaseAwaitingRoll) {
		return
	}

	cur, err := r.queue.Current()
	if err != nil {
		r.close()
		return
	}
	// 不是当前回合玩家的骰子事件必须忽略
	if cur.ID != sess.ID {
		logger.Log.Debugf("room %s: ignoring roll from non-current player %s", r.ID, sess.ID)
		return
	}

	dice := game.RollDice(r.deps.Game.DiceSides)
	result, _ := json.Marshal(network.DiceResultPayload{Value: dice})
	cur.Send(network.MsgTypeDiceResult, result)

	r.process(dice)
}

// process 移动当前玩家并结算落点格子
func (r *Room) process(delta int) {
	cur, err := r.queue.Current()
	if err != nil {
		r.close()
		return
	}

	target := cur.Position() + delta

	// 到达或越过终点格即获胜
	if target >= r.board.LastIndex() {
		r.gameOver(cur)
		return
	}
	if target < 0 {
		target = 0
	}

	field, ok := r.board.Field(target)
	if !ok {
		r.fatal("board field out of range", nil)
		return
	}

	switch field.Type {
	case game.FieldDefault:
		cur.SetPosition(target)
		r.resolveTurn()
	case game.FieldJump:
		cur.SetPosition(field.JumpTarget)
		r.resolveTurn()
	case game.FieldQuestion:
		cur.SetPosition(target)
		if err := r.machine.Transition(state.PhaseAwaitingQuestion); err != nil {
			r.fatal("question tile in unexpected phase", err)
			return
		}
		cur.Send(network.MsgTypeChooseDifficulty, nil)
	default:
		r.fatal("unknown field type", nil)
	}
}

// resolveTurn 回合收尾：广播所有玩家的位置，轮到下一个玩家
func (r *Room) resolveTurn() {
	positions := make(map[string]int, r.queue.Size())
	r.queue.Each(func(s *session.Session) {
		positions[s.ID] = s.Position()
	})

	data, _ := json.Marshal(positions)
	r.broadcast(network.MsgTypePlayerPosition, data)

	if _, err := r.queue.Next(); err != nil {
		r.close()
		return
	}
	r.gameRound()
}

// --- 问题挑战 ---

func (r *Room) handleSetDifficulty(sess *session.Session, payload []byte) {
	if !r.machine.Is(state.PhaseAwaitingQuestion) || r.pending != nil {
		return
	}

	cur, err := r.queue.Current()
	if err != nil {
		r.close()
		return
	}
	if cur.ID != sess.ID {
		return
	}

	var req network.DifficultyPayload
	if err := json.Unmarshal(payload, &req); err != nil || !r.deps.Game.ValidDifficulty(req.Difficulty) {
		logger.Log.Warnf("room %s: invalid difficulty value from %s", r.ID, sess.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := r.selector.Pick(ctx, r.board.Category(), req.Difficulty, cur.Lang())
	if err != nil {
		if errors.Is(err, challenge.ErrQuestionsExhausted) {
			r.fatal("no appropriate questions left", err)
		} else {
			r.fatal("question lookup failed", err)
		}
		return
	}

	options := make([]network.AnswerOption, len(ch.Answers))
	for i, a := range ch.Answers {
		options[i] = network.AnswerOption{ID: a.ID, Content: a.Content}
	}
	data, _ := json.Marshal(network.QuestionPayload{
		Question: ch.Text,
		Answers:  options,
		Image:    ch.Image,
	})
	cur.Send(network.MsgTypeQuestion, data)

	// 启动回答与超时的竞赛：先到者生效，另一方必须作废。
	// 回答会取消定时器；已经投递进信箱的过期超时事件靠epoch识别。
	r.epoch++
	armedEpoch := r.epoch
	timerID := r.deps.Timers.AddTimer(r.deps.Game.QuestionTimeout(), 0, func() {
		r.Post(Event{Kind: eventChallengeTimeout, epoch: armedEpoch})
	})

	r.pending = &pendingChallenge{ch: ch, timerID: timerID, epoch: armedEpoch}
	r.deps.Monitor.IncQuestionsServed()
}

func (r *Room) handleAnswer(sess *session.Session, payload []byte) {
	if !r.machine.Is(state.PhaseAwaitingQuestion) || r.pending == nil {
		return
	}

	cur, err := r.queue.Current()
	if err != nil {
		r.close()
		return
	}
	if cur.ID != sess.ID {
		return
	}

	var answer network.AnswerPayload
	if err := json.Unmarshal(payload, &answer); err != nil {
		// 畸形回答不结算，超时继续生效
		logger.Log.Warnf("room %s: malformed answer from %s: %v", r.ID, sess.ID, err)
		return
	}

	pending := r.pending
	r.pending = nil
	r.deps.Timers.RemoveTimer(pending.timerID)

	if answer.AnswerID == pending.ch.CorrectAnswer {
		r.applyDelta(cur, pending.ch.Delta)
	} else {
		r.applyDelta(cur, -pending.ch.Delta)
	}

	r.machine.Transition(state.PhaseAwaitingRoll)
	r.resolveTurn()
}

// handleChallengeTimeout 没有回答按答错处理。迟到的超时事件
// （回答已经结算过，或者属于上一次挑战）是无操作。
func (r *Room) handleChallengeTimeout(ev Event) {
	if r.pending == nil || ev.epoch != r.pending.epoch {
		return
	}

	cur, err := r.queue.Current()
	if err != nil {
		r.close()
		return
	}

	delta := r.pending.ch.Delta
	r.pending = nil
	r.deps.Monitor.IncChallengeTimeouts()

	r.applyDelta(cur, -delta)
	r.machine.Transition(state.PhaseAwaitingRoll)
	r.resolveTurn()
}

// applyDelta 挑战结果只在棋盘范围内移动，不会直接触发终点判定
func (r *Room) applyDelta(s *session.Session, delta int) {
	pos := s.Position() + delta
	if pos < 0 {
		pos = 0
	}
	if pos > r.board.LastIndex() {
		pos = r.board.LastIndex()
	}
	s.SetPosition(pos)
}

// --- 结束与清理 ---

func (r *Room) gameOver(winner *session.Session) {
	data, _ := json.Marshal(network.GameOverPayload{WinnerID: winner.ID})
	r.broadcast(network.MsgTypeGameOver, data)

	r.machine.Transition(state.PhaseGameOver)
	r.deps.Monitor.IncGamesCompleted()
	logger.Log.Infof("game over (%s), winner %s", r.Name, winner.ID)

	if r.deps.Records != nil {
		positions := make(map[string]int, r.queue.Size())
		r.queue.Each(func(s *session.Session) {
			positions[s.ID] = s.Position()
		})
		if err := r.deps.Records.SaveFinished(r.ID, winner.ID, positions, r.startedAt); err != nil {
			logger.Log.Errorf("room %s: failed to save game record: %v", r.ID, err)
		}
	}

	r.close()
}

func (r *Room) handleDisconnect(sess *session.Session) {
	cur, curErr := r.queue.Current()

	if !r.queue.Remove(sess.ID) {
		// 同一个玩家的断线事件可能到达多次
		return
	}

	r.board.ReleaseColor(sess.ID)
	sess.SetRoomID("")
	logger.Log.Infof("room %s: player %s left (%d remaining)", r.ID, sess.ID, r.queue.Size())

	if r.queue.Size() == 0 {
		logger.Log.Infof("room %s closed", r.Name)
		r.close()
		return
	}

	// 等准备阶段掉人后重新评估准备门，剩下的玩家已经准备好时
	// 立刻开始，不让对方无限等待
	if r.machine.Is(state.PhaseAwaitingReady) {
		r.checkReady()
		return
	}

	wasCurrent := curErr == nil && cur.ID == sess.ID
	if !wasCurrent {
		return
	}

	// 断的是当前回合玩家：取消未决的挑战，把回合交给剩下的玩家
	if r.machine.Is(state.PhaseAwaitingQuestion) {
		if r.pending != nil {
			r.deps.Timers.RemoveTimer(r.pending.timerID)
			r.pending = nil
		}
		r.machine.Transition(state.PhaseAwaitingRoll)
	}
	if r.machine.Is(state.PhaseAwaitingRoll) {
		r.gameRound()
	}
}

// fatal 房间级致命错误：通知玩家并关闭房间，进程继续运行
func (r *Room) fatal(msg string, err error) {
	logger.Log.Errorf("room %s: %s: %v", r.ID, msg, err)

	data, _ := json.Marshal(network.RoomErrorPayload{Message: msg})
	r.broadcast(network.MsgTypeRoomError, data)

	r.close()
}

// close 断开剩余玩家并从注册表移除房间。幂等。
func (r *Room) close() {
	r.closeOnce.Do(func() {
		r.machine.Transition(state.PhaseClosed)

		if r.pending != nil {
			r.deps.Timers.RemoveTimer(r.pending.timerID)
			r.pending = nil
		}

		close(r.done)

		r.queue.Each(func(s *session.Session) {
			s.SetRoomID("")
			s.Close()
		})

		if r.deps.OnClose != nil {
			r.deps.OnClose(r.ID)
		}
	})
}

func (r *Room) broadcast(msgID uint16, data []byte) {
	if r.deps.Broadcaster == nil {
		return
	}
	if err := r.deps.Broadcaster.BroadcastToRoom(r.ID, msgID, data); err != nil {
		logger.Log.Warnf("room %s: broadcast %d failed: %v", r.ID, msgID, err)
	}
}
