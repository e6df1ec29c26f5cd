// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

// PostgreSQL 不经ORM的 database/sql 实现，部署侧二选一
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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(16) NOT NULL,
            round INT NOT NULL,
            is_win BOOLEAN NOT NULL,
            players JSONB NOT NULL,
            result JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_game_id ON game_records (game_id)
    `)
	return err
}

// SaveGameRecord 保存一局存档
func (p *PostgreSQL) SaveGameRecord(record *GameRecord) error {
	players, err := json.Marshal(record.PlayerNames)
	if err != nil {
		return err
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO game_records (game_id, round, is_win, players, result)
        VALUES ($1, $2, $3, $4, $5)`,
		record.GameID, record.Round, record.IsWin, players, result,
	)
	return err
}

// PlayerStats 按玩家名统计胜负
func (p *PostgreSQL) PlayerStats(playerName string) (*PlayerStats, error) {
	needle, err := json.Marshal([]string{playerName})
	if err != nil {
		return nil, err
	}

	var totalGames, wins int
	err = p.db.QueryRow(`
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN is_win THEN 1 ELSE 0 END), 0)
        FROM game_records
        WHERE players @> $1::jsonb`,
		needle,
	).Scan(&totalGames, &wins)
	if err != nil {
		return nil, err
	}

	return &PlayerStats{
		TotalGames: totalGames,
		Wins:       wins,
		Losses:     totalGames - wins,
	}, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
