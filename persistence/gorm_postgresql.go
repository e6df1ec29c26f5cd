// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// GameRecordModel 存档表结构
type GameRecordModel struct {
	ID        uint            `gorm:"primaryKey"`
	GameID    string          `gorm:"index;not null"`
	Round     int             `gorm:"not null"`
	IsWin     bool            `gorm:"not null"`
	Players   json.RawMessage `gorm:"type:jsonb;not null"`
	Result    json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

func (GameRecordModel) TableName() string {
	return "game_records"
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&GameRecordModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存一局存档
func (p *GormPostgreSQL) SaveGameRecord(record *GameRecord) error {
	players, err := json.Marshal(record.PlayerNames)
	if err != nil {
		return err
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return err
	}

	row := GameRecordModel{
		GameID:  record.GameID,
		Round:   record.Round,
		IsWin:   record.IsWin,
		Players: players,
		Result:  result,
	}
	return p.db.Create(&row).Error
}

// PlayerStats 按玩家名统计胜负。players 列是名字数组，用 jsonb 包含查询
func (p *GormPostgreSQL) PlayerStats(playerName string) (*PlayerStats, error) {
	needle, err := json.Marshal([]string{playerName})
	if err != nil {
		return nil, err
	}

	var row struct {
		TotalGames int
		Wins       int
	}
	err = p.db.Raw(
		`
        SELECT
            COUNT(*) AS total_games,
            COALESCE(SUM(CASE WHEN is_win THEN 1 ELSE 0 END), 0) AS wins
        FROM game_records
        WHERE players @> ?::jsonb`,
		string(needle),
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &PlayerStats{
		TotalGames: row.TotalGames,
		Wins:       row.Wins,
		Losses:     row.TotalGames - row.Wins,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
