// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ps1net/backend/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormQuestion{},
		&models.GormAnswer{},
		&models.GormTranslation{},
		&models.GormGameRecord{},
	)
}

// RandomQuestion 按类别和难度随机取一题
func (p *GormPostgreSQL) RandomQuestion(ctx context.Context, category string, difficulty int) (models.Question, error) {
	var q models.GormQuestion
	err := p.db.WithContext(ctx).
		Where("category = ? AND difficulty = ?", category, difficulty).
		Order("RANDOM()").
		First(&q).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.Question{}, ErrRecordNotFound
		}
		return models.Question{}, err
	}

	return models.Question{
		ID:            q.ID,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		CorrectAnswer: q.CorrectAnswer,
		Image:         q.Image,
	}, nil
}

// TranslatedQuestion 取题目在指定语言下的文本
func (p *GormPostgreSQL) TranslatedQuestion(ctx context.Context, questionID int64, lang string) (string, error) {
	var t models.GormTranslation
	err := p.db.WithContext(ctx).
		Where("type = ? AND parent = ? AND lang = ?", "question", questionID, lang).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrRecordNotFound
		}
		return "", err
	}

	return t.Content, nil
}

// TranslatedAnswers 取题目的全部答案选项（不含空内容）
func (p *GormPostgreSQL) TranslatedAnswers(ctx context.Context, questionID int64, lang string) ([]models.Answer, error) {
	var answers []models.Answer
	err := p.db.WithContext(ctx).
		Table("translation").
		Select("answer.id, translation.content").
		Joins("INNER JOIN answer ON translation.parent = answer.id").
		Where("translation.type = ? AND answer.question_id = ? AND translation.lang = ? AND translation.content <> ''",
			"answer", questionID, lang).
		Scan(&answers).Error
	if err != nil {
		return nil, err
	}

	return answers, nil
}

// SaveGameRecord 在事务里保存对局记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	positions := make(map[string]interface{}, len(record.Positions))
	for id, pos := range record.Positions {
		positions[id] = pos
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models.GormGameRecord{
			RoomID:    record.RoomID,
			WinnerID:  record.WinnerID,
			Positions: positions,
			Duration:  record.Duration,
		}).Error
	})
}

// Transaction 暴露事务支持给上层服务
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
