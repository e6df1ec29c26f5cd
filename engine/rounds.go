// engine/rounds.go
//
// 回合状态机：round1 -> round2 -> round3 -> complete，只进不退，
// 每一步只接受当前行动者的、与当前阶段匹配的动作。
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/bobboi/logger"
	"github.com/wfunc/bobboi/models"
)

// 每轮一种带标签的动作载荷，由网关按消息类型解码后传入
type Round1Action struct {
	SeesPair bool `json:"seesPair"`
}

type Round2Action struct {
	PerceivedRank int `json:"perceivedRank"` // 1 = highest
}

type Round3Action struct {
	GuessedRank string `json:"guessedRank"`
}

// SubmitRound1 第一轮声明"是否看到一对"。
// 接受后追加记录、写日志并移交行动权；第 N 个声明触发进入 round2。
func SubmitRound1(g *models.Game, playerID string, action Round1Action) (*models.Round1Declaration, error) {
	g.Lock()
	defer g.Unlock()

	player, err := acceptAction(g, playerID, models.PhaseRound1)
	if err != nil {
		return nil, err
	}
	if hasRound1Entry(g, playerID) {
		return nil, ErrAlreadySubmitted
	}

	decl := models.Round1Declaration{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		SeesPair:   action.SeesPair,
		Timestamp:  time.Now().UnixMilli(),
	}
	g.Round1Declarations = append(g.Round1Declarations, decl)

	content := "I don't see a pair"
	if action.SeesPair {
		content = "I see a pair"
	}
	appendLog(g, player, "round1_declaration", content)

	if len(g.Round1Declarations) >= len(g.Players) {
		advanceToRound2(g)
	} else {
		passTurn(g, playerID)
	}
	return &decl, nil
}

// SubmitRound2 第二轮声明"我是第 N 大的牌"，N 必须在 1..玩家数 之内。
func SubmitRound2(g *models.Game, playerID string, action Round2Action) (*models.Round2Ranking, error) {
	g.Lock()
	defer g.Unlock()

	player, err := acceptAction(g, playerID, models.PhaseRound2)
	if err != nil {
		return nil, err
	}
	if hasRound2Entry(g, playerID) {
		return nil, ErrAlreadySubmitted
	}
	if action.PerceivedRank < 1 || action.PerceivedRank > len(g.Players) {
		return nil, ErrRankOutOfRange
	}

	ranking := models.Round2Ranking{
		PlayerID:      player.ID,
		PlayerName:    player.Name,
		PerceivedRank: action.PerceivedRank,
		Timestamp:     time.Now().UnixMilli(),
	}
	g.Round2Rankings = append(g.Round2Rankings, ranking)
	appendLog(g, player, "round2_ranking",
		fmt.Sprintf("I think I am %s highest", ordinal(action.PerceivedRank)))

	if len(g.Round2Rankings) >= len(g.Players) {
		advanceToRound3(g)
	} else {
		passTurn(g, playerID)
	}
	return &ranking, nil
}

// SubmitRound3 最后一轮猜自己的牌面。猜测按字符串与实际 rank 比对，
// 引擎不做合法 rank 白名单校验。第 N 个猜测结算整局。
func SubmitRound3(g *models.Game, playerID string, action Round3Action) (*models.Round3Guess, error) {
	g.Lock()
	defer g.Unlock()

	player, err := acceptAction(g, playerID, models.PhaseRound3)
	if err != nil {
		return nil, err
	}
	if hasRound3Entry(g, playerID) {
		return nil, ErrAlreadySubmitted
	}
	if player.Card == nil {
		err := &InvariantError{GameID: g.ID, Reason: "player " + playerID + " has no card at guess time"}
		logInvariant(err)
		return nil, err
	}

	guess := models.Round3Guess{
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		GuessedRank: action.GuessedRank,
		ActualRank:  player.Card.Rank,
		IsCorrect:   action.GuessedRank == player.Card.Rank,
		Timestamp:   time.Now().UnixMilli(),
	}

	if len(g.Round3Guesses)+1 >= len(g.Players) {
		// 结算先于落账：结果算不出来则整个动作不生效
		result, rErr := computeResult(g, &guess)
		if rErr != nil {
			logInvariant(rErr)
			return nil, rErr
		}
		g.Round3Guesses = append(g.Round3Guesses, guess)
		appendLog(g, player, "round3_guess", guessContent(&guess))
		g.RoundPhase = models.PhaseComplete
		g.CurrentTurnPlayerID = ""
		g.GameResult = result
		return &guess, nil
	}

	g.Round3Guesses = append(g.Round3Guesses, guess)
	appendLog(g, player, "round3_guess", guessContent(&guess))
	passTurn(g, playerID)
	return &guess, nil
}

// acceptAction 公共接受谓词：对局进行中、阶段匹配、严格轮到此人。
// 重复提交与载荷约束由各轮自行检查。
func acceptAction(g *models.Game, playerID string, phase models.RoundPhase) (*models.Player, error) {
	player := g.PlayerByID(playerID)
	if player == nil {
		return nil, ErrPlayerNotFound
	}
	if g.GameState != models.StatePlaying {
		return nil, ErrGameNotPlaying
	}
	if g.RoundPhase != phase {
		return nil, ErrWrongPhase
	}
	if g.CurrentTurnPlayerID != playerID {
		return nil, ErrNotYourTurn
	}
	return player, nil
}

// passTurn 行动权移交给轮换顺序上的下一位
func passTurn(g *models.Game, playerID string) {
	idx := g.PlayerIndex(playerID)
	g.CurrentTurnPlayerID = g.Players[(idx+1)%len(g.Players)].ID
}

// advanceToRound2 进入第二轮，发言顺序从固定起始玩家重新开始
func advanceToRound2(g *models.Game) {
	g.RoundPhase = models.PhaseRound2
	g.CurrentTurnPlayerID = g.Players[g.Turn].ID
}

func advanceToRound3(g *models.Game) {
	g.RoundPhase = models.PhaseRound3
	g.CurrentTurnPlayerID = g.Players[g.Turn].ID
}

// completeGame 在所有猜测已落账的前提下结算（玩家中途离开触发）
func completeGame(g *models.Game) error {
	result, err := computeResult(g, nil)
	if err != nil {
		return err
	}
	g.RoundPhase = models.PhaseComplete
	g.CurrentTurnPlayerID = ""
	g.GameResult = result
	return nil
}

// computeResult 汇总每名玩家的猜测与实际牌面。pending 为本次请求
// 尚未落账的猜测，可为 nil。缺猜测或缺牌面属于内部一致性错误。
func computeResult(g *models.Game, pending *models.Round3Guess) (*models.GameResult, error) {
	results := make([]models.PlayerResult, 0, len(g.Players))
	isWin := true

	for _, p := range g.Players {
		guess := findGuess(g, pending, p.ID)
		if guess == nil {
			return nil, &InvariantError{GameID: g.ID, Reason: "missing round 3 guess for " + p.ID}
		}
		if p.Card == nil {
			return nil, &InvariantError{GameID: g.ID, Reason: "missing card for " + p.ID}
		}
		correct := guess.GuessedRank == p.Card.Rank
		isWin = isWin && correct
		results = append(results, models.PlayerResult{
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			ActualCard:  *p.Card,
			GuessedRank: guess.GuessedRank,
			IsCorrect:   correct,
		})
	}
	return &models.GameResult{IsWin: isWin, PlayerResults: results}, nil
}

func findGuess(g *models.Game, pending *models.Round3Guess, playerID string) *models.Round3Guess {
	if pending != nil && pending.PlayerID == playerID {
		return pending
	}
	for i := range g.Round3Guesses {
		if g.Round3Guesses[i].PlayerID == playerID {
			return &g.Round3Guesses[i]
		}
	}
	return nil
}

func hasRound1Entry(g *models.Game, playerID string) bool {
	for i := range g.Round1Declarations {
		if g.Round1Declarations[i].PlayerID == playerID {
			return true
		}
	}
	return false
}

func hasRound2Entry(g *models.Game, playerID string) bool {
	for i := range g.Round2Rankings {
		if g.Round2Rankings[i].PlayerID == playerID {
			return true
		}
	}
	return false
}

func hasRound3Entry(g *models.Game, playerID string) bool {
	for i := range g.Round3Guesses {
		if g.Round3Guesses[i].PlayerID == playerID {
			return true
		}
	}
	return false
}

func appendLog(g *models.Game, player *models.Player, actionType, content string) {
	g.ActionLog = append(g.ActionLog, models.GameAction{
		ID:         uuid.New().String(),
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Type:       actionType,
		Content:    content,
		Timestamp:  time.Now().UnixMilli(),
		Round:      g.Round,
	})
}

func guessContent(guess *models.Round3Guess) string {
	verdict := "WRONG"
	if guess.IsCorrect {
		verdict = "CORRECT"
	}
	return fmt.Sprintf("I think my card is %s (actual: %s) - %s",
		guess.GuessedRank, guess.ActualRank, verdict)
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}

func logInvariant(err error) {
	if logger.Log != nil {
		logger.Log.Errorf("INVARIANT VIOLATION: %v", err)
	}
}
