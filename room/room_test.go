package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ps1net/backend/config"
	"github.com/ps1net/backend/game"
	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/models"
	"github.com/ps1net/backend/network"
	"github.com/ps1net/backend/persistence"
	"github.com/ps1net/backend/session"
	"github.com/ps1net/backend/state"
	"github.com/ps1net/backend/timer"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

type sentMessage struct {
	MsgID uint16
	Data  []byte
}

// MockConnection is a test double for the network.Connection interface.
// It records every message sent to the client.
type MockConnection struct {
	sent   []sentMessage
	closed bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, sentMessage{MsgID: msgID, Data: data})
	return nil
}
func (m *MockConnection) Close() error                         { m.closed = true; return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) received(msgID uint16) int {
	count := 0
	for _, msg := range m.sent {
		if msg.MsgID == msgID {
			count++
		}
	}
	return count
}

func (m *MockConnection) last(msgID uint16) ([]byte, bool) {
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].MsgID == msgID {
			return m.sent[i].Data, true
		}
	}
	return nil, false
}

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	msgs []sentMessage
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.msgs = append(m.msgs, sentMessage{MsgID: msgID, Data: data})
	return nil
}

func (m *MockBroadcaster) count(msgID uint16) int {
	count := 0
	for _, msg := range m.msgs {
		if msg.MsgID == msgID {
			count++
		}
	}
	return count
}

func (m *MockBroadcaster) last(msgID uint16) ([]byte, bool) {
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].MsgID == msgID {
			return m.msgs[i].Data, true
		}
	}
	return nil, false
}

// fakeQuestionStore serves questions from a fixed list, cycling through it.
// 题目ID为n时，答案ID为 n*10+1..n*10+4，正确答案是 n*10+2。
type fakeQuestionStore struct {
	questions []models.Question
	calls     int
}

func questionFixture(id int64) models.Question {
	return models.Question{
		ID:            id,
		Category:      "general",
		Difficulty:    3,
		CorrectAnswer: id*10 + 2,
	}
}

func (f *fakeQuestionStore) RandomQuestion(ctx context.Context, category string, difficulty int) (models.Question, error) {
	if len(f.questions) == 0 {
		return models.Question{}, persistence.ErrRecordNotFound
	}
	q := f.questions[f.calls%len(f.questions)]
	f.calls++
	return q, nil
}

func (f *fakeQuestionStore) TranslatedQuestion(ctx context.Context, questionID int64, lang string) (string, error) {
	return fmt.Sprintf("question %d (%s)", questionID, lang), nil
}

func (f *fakeQuestionStore) TranslatedAnswers(ctx context.Context, questionID int64, lang string) ([]models.Answer, error) {
	answers := make([]models.Answer, 4)
	for i := range answers {
		id := questionID*10 + int64(i) + 1
		answers[i] = models.Answer{ID: id, Content: fmt.Sprintf("answer %d", id)}
	}
	return answers, nil
}

func newTestSession(id string) *session.Session {
	return session.NewSession(id, &MockConnection{})
}

// flatFields builds a board layout of n default fields.
func flatFields(n int) []game.Field {
	fields := make([]game.Field, n)
	for i := range fields {
		fields[i] = game.Field{Index: i, Type: game.FieldDefault}
	}
	return fields
}

func mustBoard(t *testing.T, fields []game.Field) *game.Board {
	t.Helper()
	board, err := game.NewBoard(fields)
	if err != nil {
		t.Fatalf("invalid test board: %v", err)
	}
	return board
}

type roomFixture struct {
	room   *Room
	p1, p2 *session.Session
	c1, c2 *MockConnection
	bc     *MockBroadcaster
	store  *fakeQuestionStore
	closed []string
}

// newTestRoom builds a room with two players without starting the event
// loop. Tests drive it by calling handle directly, which mirrors the
// serialized processing of the real loop.
func newTestRoom(t *testing.T, board *game.Board) *roomFixture {
	t.Helper()

	f := &roomFixture{
		c1: &MockConnection{},
		c2: &MockConnection{},
		bc: &MockBroadcaster{},
		store: &fakeQuestionStore{
			questions: []models.Question{questionFixture(1), questionFixture(2), questionFixture(3)},
		},
	}
	f.p1 = session.NewSession("p1", f.c1)
	f.p2 = session.NewSession("p2", f.c2)

	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	f.room = New("room-1", "ROOM_1", board, []*session.Session{f.p1, f.p2}, Deps{
		Broadcaster: f.bc,
		Questions:   f.store,
		Timers:      timers,
		Game:        config.Default(),
		OnClose:     func(roomID string) { f.closed = append(f.closed, roomID) },
	})
	return f
}

func (f *roomFixture) login(t *testing.T, sess *session.Session, color string) {
	t.Helper()
	payload, err := json.Marshal(network.LoginPayload{
		Color:    color,
		Category: "general",
		Name:     sess.ID,
		Lang:     "English",
	})
	if err != nil {
		t.Fatalf("marshal login: %v", err)
	}
	f.room.handle(Event{Kind: EventLogin, Sess: sess, Payload: payload})
}

// startGame logs in both players so the room reaches the rolling phase.
func (f *roomFixture) startGame(t *testing.T) {
	t.Helper()
	f.login(t, f.p1, "red")
	f.login(t, f.p2, "blue")
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Fatalf("setup failed: expected phase awaiting_roll, got %s", f.room.Phase())
	}
}

// enterChallenge moves p1 onto a question tile and requests a question.
func (f *roomFixture) enterChallenge(t *testing.T, steps, difficulty int) {
	t.Helper()
	f.room.process(steps)
	if !f.room.machine.Is(state.PhaseAwaitingQuestion) {
		t.Fatalf("setup failed: expected phase awaiting_question, got %s", f.room.Phase())
	}
	payload, _ := json.Marshal(network.DifficultyPayload{Difficulty: difficulty})
	f.room.handle(Event{Kind: EventSetDifficulty, Sess: f.p1, Payload: payload})
	if f.room.pending == nil {
		t.Fatal("setup failed: no pending challenge after difficulty choice")
	}
}

func TestRoom_LoginFlow(t *testing.T) {
	f := newTestRoom(t, game.DefaultBoard())

	f.login(t, f.p1, "red")

	if !f.room.machine.Is(state.PhaseAwaitingReady) {
		t.Errorf("Expected phase awaiting_ready after first login, got %s", f.room.Phase())
	}
	if !f.p1.IsReady() {
		t.Error("p1 should be ready after a valid login")
	}
	if f.p1.Color() != "red" {
		t.Errorf("Expected p1 color red, got %q", f.p1.Color())
	}

	f.login(t, f.p2, "blue")

	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected phase awaiting_roll after both logins, got %s", f.room.Phase())
	}
	if f.bc.count(network.MsgTypeMap) != 1 {
		t.Errorf("Expected exactly one map broadcast, got %d", f.bc.count(network.MsgTypeMap))
	}
	if f.c1.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("First player should have received the roll prompt")
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 0 {
		t.Error("Second player should not have received a roll prompt yet")
	}
}

func TestRoom_LoginRejectsInvalidInput(t *testing.T) {
	f := newTestRoom(t, game.DefaultBoard())

	cases := []network.LoginPayload{
		{Color: "pink", Category: "general", Name: "p1", Lang: "English"},
		{Color: "red", Category: "cooking", Name: "p1", Lang: "English"},
		{Color: "red", Category: "general", Name: "", Lang: "English"},
		{Color: "red", Category: "general", Name: "p1", Lang: "Klingon"},
	}
	for _, login := range cases {
		payload, _ := json.Marshal(login)
		f.room.handle(Event{Kind: EventLogin, Sess: f.p1, Payload: payload})
	}

	if !f.room.machine.Is(state.PhaseAwaitingLogin) {
		t.Errorf("Invalid logins must not change the phase, got %s", f.room.Phase())
	}
	if f.p1.IsReady() {
		t.Error("Invalid login must not mark the player ready")
	}
	if f.p1.Color() != "" {
		t.Errorf("Invalid login must not assign a color, got %q", f.p1.Color())
	}
}

func TestRoom_LoginMalformedPayload(t *testing.T) {
	f := newTestRoom(t, game.DefaultBoard())

	f.room.handle(Event{Kind: EventLogin, Sess: f.p1, Payload: []byte("{not json")})

	if !f.room.machine.Is(state.PhaseAwaitingLogin) {
		t.Errorf("Malformed login must not change the phase, got %s", f.room.Phase())
	}
	if f.p1.IsReady() {
		t.Error("Malformed login must not mark the player ready")
	}
}

func TestRoom_LoginDuplicateColor(t *testing.T) {
	f := newTestRoom(t, game.DefaultBoard())

	f.login(t, f.p1, "red")
	f.login(t, f.p2, "red")

	if f.p2.IsReady() {
		t.Error("Player must not become ready with a taken color")
	}
	if f.c2.received(network.MsgTypeAvailableColors) != 1 {
		t.Error("Rejected player should receive the remaining colors directly")
	}

	// 换一个颜色重试即可开始游戏
	f.login(t, f.p2, "blue")
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected game to start after retry, got %s", f.room.Phase())
	}
}

func TestRoom_ForeignRollIgnored(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))
	f.startGame(t)

	f.room.handle(Event{Kind: EventRoll, Sess: f.p2})

	if f.c2.received(network.MsgTypeDiceResult) != 0 {
		t.Error("Non-current player must not receive a dice result")
	}
	if f.p1.Position() != 0 || f.p2.Position() != 0 {
		t.Errorf("Foreign roll must not move anyone, positions %d/%d", f.p1.Position(), f.p2.Position())
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Foreign roll must not change the phase, got %s", f.room.Phase())
	}
}

func TestRoom_RollMovesCurrentPlayer(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))
	f.startGame(t)

	f.room.handle(Event{Kind: EventRoll, Sess: f.p1})

	data, ok := f.c1.last(network.MsgTypeDiceResult)
	if !ok {
		t.Fatal("Current player should receive the dice result")
	}
	var result network.DiceResultPayload
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Malformed dice result payload: %v", err)
	}
	if result.Value < 1 || result.Value > 6 {
		t.Errorf("Dice value out of range: %d", result.Value)
	}
	if f.p1.Position() != result.Value {
		t.Errorf("Expected p1 at %d, got %d", result.Value, f.p1.Position())
	}

	if f.bc.count(network.MsgTypePlayerPosition) != 1 {
		t.Errorf("Expected one position broadcast, got %d", f.bc.count(network.MsgTypePlayerPosition))
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Turn should have passed to the second player")
	}
}

func TestRoom_GameOverAtBoundary(t *testing.T) {
	for _, steps := range []int{1, 3} {
		f := newTestRoom(t, mustBoard(t, flatFields(10)))
		f.startGame(t)
		f.p1.SetPosition(8)

		// 8 + steps 到达或越过终点格9
		f.room.process(steps)

		if f.bc.count(network.MsgTypeGameOver) != 1 {
			t.Fatalf("steps=%d: expected exactly one game over broadcast, got %d",
				steps, f.bc.count(network.MsgTypeGameOver))
		}
		data, _ := f.bc.last(network.MsgTypeGameOver)
		var over network.GameOverPayload
		if err := json.Unmarshal(data, &over); err != nil {
			t.Fatalf("steps=%d: malformed game over payload: %v", steps, err)
		}
		if over.WinnerID != "p1" {
			t.Errorf("steps=%d: expected winner p1, got %s", steps, over.WinnerID)
		}
		if !f.room.machine.Is(state.PhaseClosed) {
			t.Errorf("steps=%d: expected phase closed, got %s", steps, f.room.Phase())
		}
		if len(f.closed) != 1 {
			t.Errorf("steps=%d: expected one OnClose callback, got %d", steps, len(f.closed))
		}
	}
}

func TestRoom_JumpTileOverridesPosition(t *testing.T) {
	fields := flatFields(30)
	fields[4] = game.Field{Index: 4, Type: game.FieldJump, JumpTarget: 7}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.room.process(4)

	if f.p1.Position() != 7 {
		t.Errorf("Expected p1 at jump target 7, got %d", f.p1.Position())
	}
	if f.bc.count(network.MsgTypePlayerPosition) != 1 {
		t.Error("Jump should still end the turn with a position broadcast")
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Turn should have passed to the second player")
	}
}

func TestRoom_ChallengeCorrectAnswer(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)

	if f.c1.received(network.MsgTypeChooseDifficulty) != 1 {
		t.Error("Current player should be asked for a difficulty")
	}
	data, ok := f.c1.last(network.MsgTypeQuestion)
	if !ok {
		t.Fatal("Current player should receive the question")
	}
	var question network.QuestionPayload
	if err := json.Unmarshal(data, &question); err != nil {
		t.Fatalf("Malformed question payload: %v", err)
	}
	if len(question.Answers) != 4 {
		t.Fatalf("Expected 4 answer options, got %d", len(question.Answers))
	}

	correct := f.room.pending.ch.CorrectAnswer
	payload, _ := json.Marshal(network.AnswerPayload{AnswerID: correct})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 6 {
		t.Errorf("Correct answer should move p1 from 3 to 6, got %d", f.p1.Position())
	}
	if f.room.pending != nil {
		t.Error("Pending challenge should be cleared after the answer")
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected phase awaiting_roll, got %s", f.room.Phase())
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Turn should have passed to the second player")
	}
}

func TestRoom_ChallengeWrongAnswer(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)

	wrong := f.room.pending.ch.CorrectAnswer + 1
	payload, _ := json.Marshal(network.AnswerPayload{AnswerID: wrong})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 0 {
		t.Errorf("Wrong answer should move p1 from 3 back to 0, got %d", f.p1.Position())
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected phase awaiting_roll, got %s", f.room.Phase())
	}
}

func TestRoom_ChallengeTimeout(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)

	f.room.handle(Event{Kind: eventChallengeTimeout, epoch: f.room.pending.epoch})

	if f.p1.Position() != 0 {
		t.Errorf("Timeout counts as a wrong answer, expected position 0, got %d", f.p1.Position())
	}
	if f.room.pending != nil {
		t.Error("Pending challenge should be cleared after timeout")
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected phase awaiting_roll, got %s", f.room.Phase())
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Turn should have passed to the second player")
	}
}

func TestRoom_AnswerBeatsStaleTimeout(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)
	staleEpoch := f.room.pending.epoch
	correct := f.room.pending.ch.CorrectAnswer

	payload, _ := json.Marshal(network.AnswerPayload{AnswerID: correct})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 6 {
		t.Fatalf("Expected p1 at 6 after correct answer, got %d", f.p1.Position())
	}
	broadcasts := f.bc.count(network.MsgTypePlayerPosition)

	// 已经在信箱里的超时事件此刻才被处理：必须是无操作
	f.room.handle(Event{Kind: eventChallengeTimeout, epoch: staleEpoch})

	if f.p1.Position() != 6 {
		t.Errorf("Stale timeout must not move the player, got %d", f.p1.Position())
	}
	if f.bc.count(network.MsgTypePlayerPosition) != broadcasts {
		t.Error("Stale timeout must not broadcast positions again")
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Stale timeout must not advance the turn a second time")
	}
}

func TestRoom_TimeoutBeatsLateAnswer(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)
	correct := f.room.pending.ch.CorrectAnswer

	f.room.handle(Event{Kind: eventChallengeTimeout, epoch: f.room.pending.epoch})
	if f.p1.Position() != 0 {
		t.Fatalf("Expected p1 back at 0 after timeout, got %d", f.p1.Position())
	}

	// 玩家的回答在超时之后才到达：不再结算
	payload, _ := json.Marshal(network.AnswerPayload{AnswerID: correct})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 0 {
		t.Errorf("Late answer must not move the player, got %d", f.p1.Position())
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Late answer must not advance the turn a second time")
	}
}

func TestRoom_ChallengeDeltaClampedToBoard(t *testing.T) {
	// 答错扣到负数时停在0
	fields := flatFields(10)
	fields[1] = game.Field{Index: 1, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 1, 5)
	wrong := f.room.pending.ch.CorrectAnswer + 1
	payload, _ := json.Marshal(network.AnswerPayload{AnswerID: wrong})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 0 {
		t.Errorf("Expected position clamped to 0, got %d", f.p1.Position())
	}

	// 答对超出终点时停在终点格，不触发胜利
	fields = flatFields(10)
	fields[8] = game.Field{Index: 8, Type: game.FieldQuestion}
	f = newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 8, 5)
	correct := f.room.pending.ch.CorrectAnswer
	payload, _ = json.Marshal(network.AnswerPayload{AnswerID: correct})
	f.room.handle(Event{Kind: EventAnswer, Sess: f.p1, Payload: payload})

	if f.p1.Position() != 9 {
		t.Errorf("Expected position clamped to last field 9, got %d", f.p1.Position())
	}
	if f.bc.count(network.MsgTypeGameOver) != 0 {
		t.Error("Challenge movement must not end the game")
	}
}

func TestRoom_DisconnectNonCurrentPlayer(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))
	f.startGame(t)

	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p2})

	if f.room.queue.Size() != 1 {
		t.Fatalf("Expected one player left, got %d", f.room.queue.Size())
	}
	if f.p2.RoomID() != "" {
		t.Error("Disconnected player should no longer belong to the room")
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Room should keep running with one player, phase %s", f.room.Phase())
	}

	// 同一个玩家的重复断线事件是无操作
	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p2})
	if f.room.queue.Size() != 1 {
		t.Errorf("Duplicate disconnect must not change the queue, size %d", f.room.queue.Size())
	}
}

func TestRoom_DisconnectLastPlayerClosesRoom(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))
	f.startGame(t)

	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p2})
	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p1})

	if !f.room.machine.Is(state.PhaseClosed) {
		t.Errorf("Expected phase closed, got %s", f.room.Phase())
	}
	if len(f.closed) != 1 {
		t.Errorf("Expected one OnClose callback, got %d", len(f.closed))
	}
}

func TestRoom_DisconnectCurrentDuringChallenge(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.enterChallenge(t, 3, 3)

	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p1})

	if f.room.pending != nil {
		t.Error("Pending challenge should be cancelled when the player leaves")
	}
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Expected phase awaiting_roll, got %s", f.room.Phase())
	}
	cur, err := f.room.queue.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if cur.ID != "p2" {
		t.Errorf("Turn should belong to the remaining player, got %s", cur.ID)
	}
	if f.c2.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Remaining player should be prompted to roll")
	}
}

func TestRoom_QuestionLookupFailureClosesRoom(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.store.questions = nil // 数据库里没有匹配的题目
	f.startGame(t)

	f.room.process(3)
	payload, _ := json.Marshal(network.DifficultyPayload{Difficulty: 3})
	f.room.handle(Event{Kind: EventSetDifficulty, Sess: f.p1, Payload: payload})

	if f.bc.count(network.MsgTypeRoomError) != 1 {
		t.Error("Players should be told about the room error")
	}
	if !f.room.machine.Is(state.PhaseClosed) {
		t.Errorf("Expected phase closed, got %s", f.room.Phase())
	}
	if len(f.closed) != 1 {
		t.Errorf("Expected one OnClose callback, got %d", len(f.closed))
	}
}

func TestRoom_InvalidDifficultyIgnored(t *testing.T) {
	fields := flatFields(30)
	fields[3] = game.Field{Index: 3, Type: game.FieldQuestion}
	f := newTestRoom(t, mustBoard(t, fields))
	f.startGame(t)

	f.room.process(3)

	payload, _ := json.Marshal(network.DifficultyPayload{Difficulty: 2})
	f.room.handle(Event{Kind: EventSetDifficulty, Sess: f.p1, Payload: payload})

	if f.room.pending != nil {
		t.Error("Invalid difficulty must not start a challenge")
	}
	if !f.room.machine.Is(state.PhaseAwaitingQuestion) {
		t.Errorf("Room should still wait for a valid difficulty, phase %s", f.room.Phase())
	}
}

func TestRoom_RecordSavedOnGameOver(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(10)))

	var saved []models.GameRecord
	f.room.deps.Records = recordSaverFunc(func(roomID, winnerID string, positions map[string]int, startedAt time.Time) error {
		saved = append(saved, models.GameRecord{RoomID: roomID, WinnerID: winnerID, Positions: positions})
		return nil
	})

	f.startGame(t)
	f.p1.SetPosition(8)
	f.room.process(5)

	if len(saved) != 1 {
		t.Fatalf("Expected one saved record, got %d", len(saved))
	}
	if saved[0].WinnerID != "p1" || saved[0].RoomID != "room-1" {
		t.Errorf("Unexpected record %+v", saved[0])
	}
	if len(saved[0].Positions) != 2 {
		t.Errorf("Record should contain both player positions, got %d", len(saved[0].Positions))
	}
}

type recordSaverFunc func(roomID, winnerID string, positions map[string]int, startedAt time.Time) error

func (f recordSaverFunc) SaveFinished(roomID, winnerID string, positions map[string]int, startedAt time.Time) error {
	return f(roomID, winnerID, positions, startedAt)
}

func TestRoom_ReadyGateRechecksOnDisconnect(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))

	// p1准备好了，p2还没登录就断线
	f.login(t, f.p1, "red")
	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p2})

	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Fatalf("Remaining ready player should start the game, phase %s", f.room.Phase())
	}
	if f.bc.count(network.MsgTypeMap) != 1 {
		t.Errorf("Expected one map broadcast, got %d", f.bc.count(network.MsgTypeMap))
	}
	if f.c1.received(network.MsgTypeRollPrompt) != 1 {
		t.Error("Remaining player should be prompted to roll")
	}
}

func TestRoom_ReadyGateStaysWhenRemainingNotReady(t *testing.T) {
	f := newTestRoom(t, mustBoard(t, flatFields(30)))

	// p1准备好了然后断线，p2还没登录：房间继续等p2
	f.login(t, f.p1, "red")
	f.room.handle(Event{Kind: EventDisconnect, Sess: f.p1})

	if !f.room.machine.Is(state.PhaseAwaitingReady) {
		t.Fatalf("Room should keep waiting for the remaining player, phase %s", f.room.Phase())
	}

	f.login(t, f.p2, "blue")
	if !f.room.machine.Is(state.PhaseAwaitingRoll) {
		t.Errorf("Late login should start the game, phase %s", f.room.Phase())
	}
}

// 房间goroutine关房清理RoomID的同时，另一个玩家的读循环可能正在查
// 自己属于哪个房间。竞态检测器下必须干净。
func TestRoom_RoomIDSafeDuringClose(t *testing.T) {
	p1 := session.NewSession("p1", &MockConnection{})
	p2 := session.NewSession("p2", &MockConnection{})

	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	closed := make(chan string, 1)
	r := New("room-1", "ROOM_1", game.DefaultBoard(), []*session.Session{p1, p2}, Deps{
		Questions: &fakeQuestionStore{},
		Timers:    timers,
		Game:      config.Default(),
		OnClose:   func(roomID string) { closed <- roomID },
	})
	r.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			_ = p2.RoomID()
		}
	}()

	r.Shutdown()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("room did not close in time")
	}
	<-done

	if p2.RoomID() != "" {
		t.Error("Closed room should clear the player's room binding")
	}
}
