// engine/engine.go
//
// 对局生命周期：创建、开始、重开、玩家离开后的回合修复。
// 回合状态机本身见 rounds.go。
package engine

import (
	"fmt"
	"strings"

	"github.com/wfunc/bobboi/deck"
	"github.com/wfunc/bobboi/models"
)

// MinPlayersToDeal 少于两人不发牌，对局停在等待状态
const MinPlayersToDeal = 2

// NewGame 按加入顺序创建对局。名单非空且不含空白名字，
// 玩家 id 为 player-1..N。两人及以上立即发牌进入 round1。
func NewGame(id string, playerNames []string) (*models.Game, error) {
	if len(playerNames) == 0 {
		return nil, fmt.Errorf("%w: empty player name list", ErrInvalidInput)
	}

	players := make([]*models.Player, 0, len(playerNames))
	for i, name := range playerNames {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: blank player name at position %d", ErrInvalidInput, i)
		}
		players = append(players, &models.Player{
			ID:   fmt.Sprintf("player-%d", i+1),
			Name: name,
		})
	}

	g := &models.Game{
		ID:                 id,
		Players:            players,
		Deck:               deck.Shuffle(deck.New()),
		Round:              1,
		Turn:               0,
		GameState:          models.StateAwaitingPlayers,
		Round1Declarations: []models.Round1Declaration{},
		Round2Rankings:     []models.Round2Ranking{},
		Round3Guesses:      []models.Round3Guess{},
		ActionLog:          []models.GameAction{},
	}

	if len(players) >= MinPlayersToDeal {
		if err := beginPlay(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Start 把等待中的对局转入 playing：重新洗牌发牌，清空三轮记录、
// 日志和结果，回合阶段置 round1，当前行动者为固定起始玩家。
func Start(g *models.Game) error {
	g.Lock()
	defer g.Unlock()

	if len(g.Players) < MinPlayersToDeal {
		return ErrNotEnoughPlayers
	}
	return beginPlay(g)
}

// Restart 同一批玩家重开一局：round 计数加一，起始玩家顺延一位。
func Restart(g *models.Game) error {
	g.Lock()
	defer g.Unlock()

	if len(g.Players) < MinPlayersToDeal {
		return ErrNotEnoughPlayers
	}

	g.Round++
	g.Turn = (g.Turn + 1) % len(g.Players)
	return beginPlay(g)
}

// beginPlay resets the per-playthrough state and deals. Lock must be held
// (or the game not yet published to the registry).
func beginPlay(g *models.Game) error {
	g.Deck = deck.Shuffle(deck.New())
	for _, p := range g.Players {
		p.Card = nil
	}
	if err := dealOneEach(g); err != nil {
		return err
	}

	g.GameState = models.StatePlaying
	g.RoundPhase = models.PhaseRound1
	g.CurrentTurnPlayerID = g.Players[g.Turn].ID
	g.Round1Declarations = []models.Round1Declaration{}
	g.Round2Rankings = []models.Round2Ranking{}
	g.Round3Guesses = []models.Round3Guess{}
	g.ActionLog = []models.GameAction{}
	g.GameResult = nil
	return nil
}

// dealOneEach 从牌堆顶给每名玩家发一张
func dealOneEach(g *models.Game) error {
	for _, p := range g.Players {
		if len(g.Deck) == 0 {
			return &InvariantError{GameID: g.ID, Reason: "deck exhausted while dealing"}
		}
		card := g.Deck[0]
		g.Deck = g.Deck[1:]
		p.Card = &card
	}
	return nil
}

// RemovePlayer 把玩家移出对局并修复回合状态。返回被移除的玩家
// 和对局是否因此清空（清空的对局由注册表销毁，不保留）。
func RemovePlayer(g *models.Game, playerID string) (*models.Player, bool, error) {
	g.Lock()
	defer g.Unlock()

	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return nil, false, ErrPlayerNotFound
	}
	removed := g.Players[idx]
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)

	if len(g.Players) == 0 {
		return removed, true, nil
	}

	reconcileDeparture(g, removed, idx)
	return removed, false, nil
}

// reconcileDeparture 对照当前名单重推回合状态：起始位修正、
// 行动权移交，以及"全员已表态"按剩余玩家重新判定。
func reconcileDeparture(g *models.Game, removed *models.Player, removedIdx int) {
	if removedIdx < g.Turn {
		g.Turn--
	}
	if g.Turn >= len(g.Players) {
		g.Turn = 0
	}

	if g.GameState != models.StatePlaying || g.RoundPhase == models.PhaseComplete {
		return
	}

	// 轮到的玩家走了：行动权交给轮换顺序上的下一位
	if g.CurrentTurnPlayerID == removed.ID {
		g.CurrentTurnPlayerID = g.Players[removedIdx%len(g.Players)].ID
	}

	switch g.RoundPhase {
	case models.PhaseRound1:
		if countRound1ByCurrentPlayers(g) >= len(g.Players) {
			advanceToRound2(g)
		}
	case models.PhaseRound2:
		if countRound2ByCurrentPlayers(g) >= len(g.Players) {
			advanceToRound3(g)
		}
	case models.PhaseRound3:
		if countRound3ByCurrentPlayers(g) >= len(g.Players) {
			if err := completeGame(g); err != nil {
				// 此时不存在可中止的请求，只能保持 round3 并留证
				logInvariant(err)
			}
		}
	}
}

func countRound1ByCurrentPlayers(g *models.Game) int {
	n := 0
	for _, p := range g.Players {
		if hasRound1Entry(g, p.ID) {
			n++
		}
	}
	return n
}

func countRound2ByCurrentPlayers(g *models.Game) int {
	n := 0
	for _, p := range g.Players {
		if hasRound2Entry(g, p.ID) {
			n++
		}
	}
	return n
}

func countRound3ByCurrentPlayers(g *models.Game) int {
	n := 0
	for _, p := range g.Players {
		if hasRound3Entry(g, p.ID) {
			n++
		}
	}
	return n
}
