package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	MonitorAddress string   `mapstructure:"monitor_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver 选择问题库的实现: "postgres" 使用 database/sql, "gorm" 使用 GORM
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig 游戏规则相关配置
type GameConfig struct {
	// QuestionTimeoutSeconds 回答问题的时间限制（秒）
	QuestionTimeoutSeconds int `mapstructure:"question_timeout_seconds"`
	// DifficultySteps 允许的难度档位，同时也是答对/答错的移动步数
	DifficultySteps []int `mapstructure:"difficulty_steps"`
	DiceSides       int   `mapstructure:"dice_sides"`
	// BoardFile 可选的棋盘布局文件（yaml），为空时使用内置布局
	BoardFile string `mapstructure:"board_file"`
}

// QuestionTimeout 返回答题超时时长
func (g GameConfig) QuestionTimeout() time.Duration {
	return time.Duration(g.QuestionTimeoutSeconds) * time.Second
}

// ValidDifficulty 检查难度档位是否在配置的集合内
func (g GameConfig) ValidDifficulty(value int) bool {
	for _, step := range g.DifficultySteps {
		if step == value {
			return true
		}
	}
	return false
}

// Default returns the game settings used when no config file overrides them.
func Default() GameConfig {
	return GameConfig{
		QuestionTimeoutSeconds: 20,
		DifficultySteps:        []int{1, 3, 5},
		DiceSides:              6,
	}
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":5000")
	viper.SetDefault("server.rpc_address", ":5001")
	viper.SetDefault("server.monitor_address", ":5002")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("game.question_timeout_seconds", 20)
	viper.SetDefault("game.difficulty_steps", []int{1, 3, 5})
	viper.SetDefault("game.dice_sides", 6)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
