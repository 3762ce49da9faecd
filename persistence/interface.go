// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/ps1net/backend/models"
)

// QuestionStore 题目存储接口。翻译按题目ID+语言查询，空的翻译内容会被过滤掉。
type QuestionStore interface {
	// RandomQuestion 按类别和难度随机取一题
	RandomQuestion(ctx context.Context, category string, difficulty int) (models.Question, error)
	// TranslatedQuestion 取题目在指定语言下的文本
	TranslatedQuestion(ctx context.Context, questionID int64, lang string) (string, error)
	// TranslatedAnswers 取题目的全部答案选项（翻译后，不含空内容）
	TranslatedAnswers(ctx context.Context, questionID int64, lang string) ([]models.Answer, error)
}

// RecordStore 对局记录存储接口
type RecordStore interface {
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
}

// Store 完整的数据库接口
type Store interface {
	QuestionStore
	RecordStore
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
