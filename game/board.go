// game/board.go
package game

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	FieldDefault  FieldType = "default"
	FieldQuestion FieldType = "question"
	FieldJump     FieldType = "jump"
)

// Field 棋盘上的一格
type Field struct {
	Index      int       `yaml:"index" json:"index"`
	Type       FieldType `yaml:"type" json:"type"`
	JumpTarget int       `yaml:"jump_target" json:"jumpTarget,omitempty"`
}

// Board 一局游戏的棋盘：静态的格子序列加上可变的类别和颜色分配。
// 每个房间持有独立的 Board 实例。
type Board struct {
	fields []Field

	mutex    sync.RWMutex
	category string
	colors   map[string]string // color -> player session ID
}

func NewBoard(fields []Field) (*Board, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	return &Board{
		fields: fields,
		colors: make(map[string]string),
	}, nil
}

// DefaultBoard 内置的30格布局
func DefaultBoard() *Board {
	fields := make([]Field, 30)
	for i := range fields {
		fields[i] = Field{Index: i, Type: FieldDefault}
	}
	for _, i := range []int{3, 7, 11, 14, 18, 22, 26} {
		fields[i].Type = FieldQuestion
	}
	fields[4] = Field{Index: 4, Type: FieldJump, JumpTarget: 7}
	fields[12] = Field{Index: 12, Type: FieldJump, JumpTarget: 8}
	fields[20] = Field{Index: 20, Type: FieldJump, JumpTarget: 25}

	board, err := NewBoard(fields)
	if err != nil {
		// 内置布局不可能非法
		panic("game: default board is invalid: " + err.Error())
	}
	return board
}

// LoadFields 从yaml文件读取棋盘布局
func LoadFields(path string) ([]Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var layout struct {
		Fields []Field `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse board file %s: %w", path, err)
	}

	if err := validateFields(layout.Fields); err != nil {
		return nil, fmt.Errorf("board file %s: %w", path, err)
	}
	return layout.Fields, nil
}

func validateFields(fields []Field) error {
	if len(fields) < 2 {
		return fmt.Errorf("board needs at least 2 fields, got %d", len(fields))
	}
	for i, f := range fields {
		if f.Index != i {
			return fmt.Errorf("field %d has index %d", i, f.Index)
		}
		switch f.Type {
		case FieldDefault, FieldQuestion:
		case FieldJump:
			if f.JumpTarget < 0 || f.JumpTarget >= len(fields) {
				return fmt.Errorf("field %d jumps out of range (%d)", i, f.JumpTarget)
			}
		default:
			return fmt.Errorf("field %d has unknown type %q", i, f.Type)
		}
	}
	return nil
}

func (b *Board) Fields() []Field {
	return b.fields
}

// Field returns the field at the given index.
func (b *Board) Field(index int) (Field, bool) {
	if index < 0 || index >= len(b.fields) {
		return Field{}, false
	}
	return b.fields[index], true
}

// LastIndex 终点格的下标
func (b *Board) LastIndex() int {
	return len(b.fields) - 1
}

// SetCategory 设置本局的题目类别。任何玩家登录都会覆盖之前的值
// （最后写入生效），与原始产品行为一致。
func (b *Board) SetCategory(category string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.category = category
}

func (b *Board) Category() string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.category
}

// AssignColor 尝试把颜色分配给玩家，颜色已被占用时返回 false
func (b *Board) AssignColor(color, playerID string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, taken := b.colors[color]; taken {
		return false
	}
	b.colors[color] = playerID
	return true
}

// ReleaseColor 释放玩家占用的颜色（断线时调用）
func (b *Board) ReleaseColor(playerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for color, owner := range b.colors {
		if owner == playerID {
			delete(b.colors, color)
		}
	}
}

// AvailableColors 返回尚未被占用的颜色
func (b *Board) AvailableColors() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	available := make([]string, 0, len(Colors))
	for _, color := range Colors {
		if _, taken := b.colors[color]; !taken {
			available = append(available, color)
		}
	}
	return available
}
