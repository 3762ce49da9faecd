package network

// 客户端与服务端之间的消息ID。1xx 为客户端上行，2xx 为服务端下行。
const (
	MsgTypeHeartbeat = 1

	MsgTypeLogin         = 101
	MsgTypeRollDice      = 102
	MsgTypeSetDifficulty = 103
	MsgTypeAnswer        = 104

	MsgTypeAvailableColors  = 201
	MsgTypeMap              = 202
	MsgTypeRollPrompt       = 203
	MsgTypeDiceResult       = 204
	MsgTypePlayerPosition   = 205
	MsgTypeQuestion         = 206
	MsgTypeGameOver         = 207
	MsgTypeRoomError        = 208
	MsgTypeChooseDifficulty = 209
)

// LoginPayload 登录请求，字段名与前端保持一致
type LoginPayload struct {
	Color    string `json:"color"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Lang     string `json:"lang"`
}

type DifficultyPayload struct {
	Difficulty int `json:"difficulty"`
}

type AnswerPayload struct {
	AnswerID int64 `json:"answerId"`
}

type AnswerOption struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// QuestionPayload 发给当前玩家的题目，答案顺序已经打乱
type QuestionPayload struct {
	Question string         `json:"question"`
	Answers  []AnswerOption `json:"answers"`
	Image    string         `json:"questionImage"`
}

type DiceResultPayload struct {
	Value int `json:"value"`
}

type GameOverPayload struct {
	WinnerID string `json:"winnerId"`
}

type RoomErrorPayload struct {
	Message string `json:"message"`
}
