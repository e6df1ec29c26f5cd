// services/stats_service.go
package services

import (
	"fmt"

	"github.com/wfunc/bobboi/models"
	"github.com/wfunc/bobboi/persistence"
)

// StatsService 结算存档与战绩查询。db 为 nil 表示未启用数据库，
// 所有操作退化为显式的 not-enabled 错误。
type StatsService struct {
	db persistence.Database
}

var ErrStatsDisabled = fmt.Errorf("stats database not enabled")

func NewStatsService(db persistence.Database) *StatsService {
	return &StatsService{db: db}
}

// Enabled reports whether a database backend is configured.
func (s *StatsService) Enabled() bool {
	return s.db != nil
}

// ArchiveGame 把一局已结算的对局写入存档。入参应当是结算后的快照。
func (s *StatsService) ArchiveGame(g *models.Game) error {
	if s.db == nil {
		return ErrStatsDisabled
	}
	if g.GameResult == nil {
		return fmt.Errorf("game %s has no result to archive", g.ID)
	}

	names := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		names = append(names, p.Name)
	}

	return s.db.SaveGameRecord(&persistence.GameRecord{
		GameID:      g.ID,
		Round:       g.Round,
		IsWin:       g.GameResult.IsWin,
		PlayerNames: names,
		Result:      g.GameResult,
	})
}

// PlayerStats 查询某个玩家名的历史胜负
func (s *StatsService) PlayerStats(playerName string) (*persistence.PlayerStats, error) {
	if s.db == nil {
		return nil, ErrStatsDisabled
	}
	if playerName == "" {
		return nil, fmt.Errorf("player name required")
	}
	return s.db.PlayerStats(playerName)
}
