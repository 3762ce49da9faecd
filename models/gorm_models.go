// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormQuestion 题目表
type GormQuestion struct {
	ID            int64  `gorm:"primaryKey"`
	Category      string `gorm:"index;not null"`
	Difficulty    int    `gorm:"index;not null"`
	CorrectAnswer int64  `gorm:"not null"`
	Image         string `gorm:"column:img"`
}

func (GormQuestion) TableName() string { return "question" }

// GormAnswer 答案表，内容存放在 translation 表
type GormAnswer struct {
	ID         int64 `gorm:"primaryKey"`
	QuestionID int64 `gorm:"index;not null"`
}

func (GormAnswer) TableName() string { return "answer" }

// GormTranslation 翻译表，type 为 "question" 或 "answer"，parent 指向对应ID
type GormTranslation struct {
	ID      int64  `gorm:"primaryKey"`
	Type    string `gorm:"index;not null"`
	Parent  int64  `gorm:"index;not null"`
	Lang    string `gorm:"index;not null"`
	Content string
}

func (GormTranslation) TableName() string { return "translation" }

// GormGameRecord 对局记录表
type GormGameRecord struct {
	gorm.Model
	RoomID    string                 `gorm:"index;not null"`
	WinnerID  string                 `gorm:"not null"`
	Positions map[string]interface{} `gorm:"serializer:json;type:jsonb"`
	Duration  int                    `gorm:"default:0"` // 对局时长(秒)
}

func (GormGameRecord) TableName() string { return "game_records" }
