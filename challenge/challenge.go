// challenge/challenge.go
package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/ps1net/backend/models"
	"github.com/ps1net/backend/persistence"
)

// ErrQuestionsExhausted 本局该类别/难度下已经没有未用过的题目
var ErrQuestionsExhausted = errors.New("no unused questions left for this category and difficulty")

// maxPickAttempts 随机选题撞上已用题目时的重试上限
const maxPickAttempts = 50

// Challenge 一次准备好发给玩家的问题挑战。Delta 既是难度档位也是
// 答对/答错的移动步数。
type Challenge struct {
	QuestionID    int64
	Text          string
	Answers       []models.Answer
	CorrectAnswer int64
	Image         string
	Delta         int
}

// CorrectIndex 正确答案在打乱后的选项里的下标，找不到时返回 -1
func (c *Challenge) CorrectIndex() int {
	for i, a := range c.Answers {
		if a.ID == c.CorrectAnswer {
			return i
		}
	}
	return -1
}

// Selector 为一个房间选题。used 集合在房间生命周期内只增不减，
// 保证同一题在一局里最多出现一次。只在房间自己的goroutine里使用，
// 不需要加锁。
type Selector struct {
	store persistence.QuestionStore
	used  map[int64]struct{}
	rng   *rand.Rand
}

func NewSelector(store persistence.QuestionStore, seed int64) *Selector {
	return &Selector{
		store: store,
		used:  make(map[int64]struct{}),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// UsedCount 已经出过的题目数量
func (s *Selector) UsedCount() int {
	return len(s.used)
}

// Pick 选一道未用过的题并准备好翻译后的文本和打乱的选项。
// 数据库返回已用过的题目时最多重试 maxPickAttempts 次，之后返回
// ErrQuestionsExhausted。
func (s *Selector) Pick(ctx context.Context, category string, difficulty int, lang string) (*Challenge, error) {
	var question models.Question

	found := false
	for attempts := 0; attempts <= maxPickAttempts; attempts++ {
		q, err := s.store.RandomQuestion(ctx, category, difficulty)
		if err != nil {
			if errors.Is(err, persistence.ErrRecordNotFound) {
				return nil, ErrQuestionsExhausted
			}
			return nil, fmt.Errorf("random question: %w", err)
		}

		if _, taken := s.used[q.ID]; !taken {
			question = q
			found = true
			break
		}
	}
	if !found {
		return nil, ErrQuestionsExhausted
	}

	text, err := s.store.TranslatedQuestion(ctx, question.ID, lang)
	if err != nil {
		return nil, fmt.Errorf("translate question %d: %w", question.ID, err)
	}

	answers, err := s.store.TranslatedAnswers(ctx, question.ID, lang)
	if err != nil {
		return nil, fmt.Errorf("translate answers for question %d: %w", question.ID, err)
	}

	// 打乱选项顺序，防止靠记住选项位置作弊。正确答案通过ID比对，
	// 不依赖位置。
	s.rng.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	s.used[question.ID] = struct{}{}

	return &Challenge{
		QuestionID:    question.ID,
		Text:          text,
		Answers:       answers,
		CorrectAnswer: question.CorrectAnswer,
		Image:         question.Image,
		Delta:         difficulty,
	}, nil
}
