// models/snapshot.go
package models

import (
	"slices"
)

// Snapshot 为指定观察者生成可下发的对局副本。
// 规则：每个人能看到别人的牌，看不到自己的；自己完成第三轮猜测
// 或整局结束后自己的牌才可见。viewerID 不在局内（或为空）时
// 没有需要隐藏的手牌，得到完整视图。
func (g *Game) Snapshot(viewerID string) *Game {
	g.mu.Lock()
	defer g.mu.Unlock()

	players := make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		if p.Card != nil {
			card := *p.Card
			cp.Card = &card
		}
		if p.ID == viewerID && !g.ownCardRevealed(viewerID) {
			cp.Card = nil
		}
		players[i] = &cp
	}

	snap := &Game{
		ID:                  g.ID,
		Players:             players,
		Round:               g.Round,
		Turn:                g.Turn,
		GameState:           g.GameState,
		RoundPhase:          g.RoundPhase,
		CurrentTurnPlayerID: g.CurrentTurnPlayerID,
		Round1Declarations:  slices.Clone(g.Round1Declarations),
		Round2Rankings:      slices.Clone(g.Round2Rankings),
		Round3Guesses:       slices.Clone(g.Round3Guesses),
		ActionLog:           slices.Clone(g.ActionLog),
	}
	if g.GameResult != nil {
		result := GameResult{
			IsWin:         g.GameResult.IsWin,
			PlayerResults: slices.Clone(g.GameResult.PlayerResults),
		}
		snap.GameResult = &result
	}
	return snap
}

// ownCardRevealed 自己的牌在猜过之后、或整局结束后才揭示
func (g *Game) ownCardRevealed(playerID string) bool {
	if g.RoundPhase == PhaseComplete {
		return true
	}
	for i := range g.Round3Guesses {
		if g.Round3Guesses[i].PlayerID == playerID {
			return true
		}
	}
	return false
}
