// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/ps1net/backend/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	// 题目表
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS question (
            id SERIAL PRIMARY KEY,
            category VARCHAR(100) NOT NULL,
            difficulty INT NOT NULL,
            correct_answer BIGINT NOT NULL,
            img VARCHAR(255) DEFAULT ''
        )
    `)
	if err != nil {
		return err
	}

	// 答案表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS answer (
            id SERIAL PRIMARY KEY,
            question_id BIGINT NOT NULL REFERENCES question(id)
        )
    `)
	if err != nil {
		return err
	}

	// 翻译表，type 为 question 或 answer，parent 指向对应ID
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS translation (
            id SERIAL PRIMARY KEY,
            type VARCHAR(20) NOT NULL,
            parent BIGINT NOT NULL,
            lang VARCHAR(20) NOT NULL,
            content TEXT NOT NULL DEFAULT ''
        )
    `)
	if err != nil {
		return err
	}

	// 对局记录表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            winner_id VARCHAR(255) NOT NULL,
            positions JSONB NOT NULL,
            duration INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_question_category_difficulty ON question(category, difficulty);
        CREATE INDEX IF NOT EXISTS idx_answer_question_id ON answer(question_id);
        CREATE INDEX IF NOT EXISTS idx_translation_parent ON translation(type, parent, lang);
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
    `)

	return err
}

// RandomQuestion 按类别和难度随机取一题
func (p *PostgreSQL) RandomQuestion(ctx context.Context, category string, difficulty int) (models.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        SELECT id, category, difficulty, correct_answer, img FROM question
        WHERE category = $1 AND difficulty = $2
        ORDER BY RANDOM() LIMIT 1
    `

	var q models.Question
	err := p.db.QueryRowContext(ctx, query, category, difficulty).Scan(
		&q.ID, &q.Category, &q.Difficulty, &q.CorrectAnswer, &q.Image)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Question{}, ErrRecordNotFound
		}
		return models.Question{}, err
	}

	return q, nil
}

// TranslatedQuestion 取题目在指定语言下的文本
func (p *PostgreSQL) TranslatedQuestion(ctx context.Context, questionID int64, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        SELECT content FROM translation
        WHERE type = 'question' AND parent = $1 AND lang = $2
    `

	var content string
	err := p.db.QueryRowContext(ctx, query, questionID, lang).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrRecordNotFound
		}
		return "", err
	}

	return content, nil
}

// TranslatedAnswers 取题目的全部答案选项，空的翻译内容直接丢弃
func (p *PostgreSQL) TranslatedAnswers(ctx context.Context, questionID int64, lang string) ([]models.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        SELECT answer.id, translation.content FROM translation
        INNER JOIN answer ON translation.parent = answer.id
        WHERE translation.type = 'answer'
        AND answer.question_id = $1
        AND translation.lang = $2
        AND translation.content <> ''
    `

	rows, err := p.db.QueryContext(ctx, query, questionID, lang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.Content); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return answers, nil
}

// SaveGameRecord 保存对局记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	positions, err := json.Marshal(record.Positions)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO game_records (room_id, winner_id, positions, duration)
        VALUES ($1, $2, $3, $4)
    `

	_, err = p.db.ExecContext(ctx, query, record.RoomID, record.WinnerID, positions, record.Duration)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
