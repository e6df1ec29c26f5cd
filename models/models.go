// models/models.go
package models

import (
	"sync"
)

// GameState 会话粗粒度生命周期状态
type GameState string

const (
	StateAwaitingPlayers GameState = "awaiting_players"
	StatePlaying         GameState = "playing"
)

// RoundPhase 回合细粒度阶段，区别于重开计数器 Game.Round
type RoundPhase string

const (
	PhaseRound1   RoundPhase = "round1"
	PhaseRound2   RoundPhase = "round2"
	PhaseRound3   RoundPhase = "round3"
	PhaseComplete RoundPhase = "complete"
)

// Card 扑克牌，发出后不可变
type Card struct {
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"` // 2..14, A high
}

// Player 玩家。Card 在发牌前为 nil
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Card *Card  `json:"card"`
}

// Round1Declaration 第一轮声明："我看到一对"
type Round1Declaration struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	SeesPair   bool   `json:"seesPair"`
	Timestamp  int64  `json:"timestamp"`
}

// Round2Ranking 第二轮声明："我是第N大的牌"
type Round2Ranking struct {
	PlayerID      string `json:"playerId"`
	PlayerName    string `json:"playerName"`
	PerceivedRank int    `json:"perceivedRank"` // 1 = highest
	Timestamp     int64  `json:"timestamp"`
}

// Round3Guess 第三轮猜牌
type Round3Guess struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	GuessedRank string `json:"guessedRank"`
	ActualRank  string `json:"actualRank"`
	IsCorrect   bool   `json:"isCorrect"`
	Timestamp   int64  `json:"timestamp"`
}

// GameAction 行动日志条目，用于回放和界面展示
type GameAction struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Type       string `json:"type"` // round1_declaration | round2_ranking | round3_guess
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Round      int    `json:"round"`
}

// PlayerResult 单个玩家的结算结果
type PlayerResult struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	ActualCard  Card   `json:"actualCard"`
	GuessedRank string `json:"guessedRank"`
	IsCorrect   bool   `json:"isCorrect"`
}

// GameResult 整局结算。IsWin 要求所有玩家都猜对
type GameResult struct {
	IsWin         bool           `json:"isWin"`
	PlayerResults []PlayerResult `json:"playerResults"`
}

// Game 游戏会话聚合根。所有字段只在持有锁时读写（见 Lock/Unlock）
type Game struct {
	ID                  string              `json:"id"`
	Players             []*Player           `json:"players"` // join order == turn rotation order
	Deck                []Card              `json:"-"`       // undealt remainder, never sent to clients
	Round               int                 `json:"round"`   // restart counter, starts at 1
	Turn                int                 `json:"turn"`    // fixed starting player index for this playthrough
	GameState           GameState           `json:"gameState"`
	RoundPhase          RoundPhase          `json:"roundPhase"`
	CurrentTurnPlayerID string              `json:"currentTurnPlayerId,omitempty"`
	Round1Declarations  []Round1Declaration `json:"round1Declarations"`
	Round2Rankings      []Round2Ranking     `json:"round2Rankings"`
	Round3Guesses       []Round3Guess       `json:"round3Guesses"`
	ActionLog           []GameAction        `json:"actionLog"`
	GameResult          *GameResult         `json:"gameResult,omitempty"`

	mu sync.Mutex
}

// Lock 独占这局游戏。任何"读取-校验-修改"序列必须整体持锁，
// 不同 Game 之间互不阻塞。
func (g *Game) Lock() {
	g.mu.Lock()
}

func (g *Game) Unlock() {
	g.mu.Unlock()
}

// PlayerIndex returns the rotation index of the player, or -1.
func (g *Game) PlayerIndex(playerID string) int {
	for i, p := range g.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// PlayerByID returns the player with the given id, or nil.
func (g *Game) PlayerByID(playerID string) *Player {
	if i := g.PlayerIndex(playerID); i >= 0 {
		return g.Players[i]
	}
	return nil
}

// HasPlayerName reports whether a player with this display name already joined.
func (g *Game) HasPlayerName(name string) bool {
	for _, p := range g.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}
