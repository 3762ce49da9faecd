// models/models.go
package models

import (
	"time"
)

// Question 题目数据模型，CorrectAnswer 指向正确答案的ID
type Question struct {
	ID            int64  `json:"id"`
	Category      string `json:"category"`
	Difficulty    int    `json:"difficulty"`
	CorrectAnswer int64  `json:"correct_answer"`
	Image         string `json:"img"`
}

// Answer 单个答案选项（内容为玩家语言的翻译）
type Answer struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// GameRecord 一局结束后的对局记录
type GameRecord struct {
	RoomID    string         `json:"room_id"`
	WinnerID  string         `json:"winner_id"`
	Positions map[string]int `json:"positions"`
	Duration  int            `json:"duration"` // 对局时长(秒)
	CreatedAt time.Time      `json:"created_at"`
}
