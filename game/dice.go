package game

import "math/rand"

// RollDice 掷骰子，返回 [1, sides] 内的随机值
func RollDice(sides int) int {
	if sides < 1 {
		sides = 6
	}
	return rand.Intn(sides) + 1
}
