// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/bobboi/models"
)

// GameRecord 一局打完后的存档。引擎本身只活在内存里，
// 进程重启丢失会话是可接受的；存档发生在网关层、结算之后。
type GameRecord struct {
	GameID      string
	Round       int
	IsWin       bool
	PlayerNames []string
	Result      *models.GameResult
}

// PlayerStats 按玩家名聚合的战绩
type PlayerStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
}

// Database 数据库接口
type Database interface {
	SaveGameRecord(record *GameRecord) error
	PlayerStats(playerName string) (*PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
