// game/validator.go
package game

import "strings"

// 客户端可选的取值集合。登录数据必须落在这些集合内。
var (
	Colors     = []string{"red", "green", "blue", "yellow", "purple", "orange"}
	Categories = []string{"general", "sports", "music", "movies", "science", "history"}
	Languages  = []string{"German", "Czech", "English"}
)

const maxNameLength = 24

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func IsColorValid(color string) bool {
	return contains(Colors, color)
}

func IsCategoryValid(category string) bool {
	return contains(Categories, category)
}

func IsLanguageValid(lang string) bool {
	return contains(Languages, lang)
}

// IsNameValid 名字非空且不超过24个字符
func IsNameValid(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= maxNameLength
}
