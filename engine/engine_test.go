package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/wfunc/bobboi/models"
)

func newTestGame(t *testing.T, names ...string) *models.Game {
	t.Helper()
	g, err := NewGame("TEST-GAME", names)
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return g
}

// setCards overrides the dealt cards so outcomes are deterministic.
func setCards(g *models.Game, cards ...models.Card) {
	for i := range cards {
		card := cards[i]
		g.Players[i].Card = &card
	}
}

func card(rank string, value int) models.Card {
	return models.Card{Suit: "hearts", Rank: rank, Value: value}
}

func TestNewGame_DealsImmediately(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")

	if g.GameState != models.StatePlaying {
		t.Errorf("Expected state playing, got %s", g.GameState)
	}
	if g.RoundPhase != models.PhaseRound1 {
		t.Errorf("Expected phase round1, got %s", g.RoundPhase)
	}
	if g.Round != 1 {
		t.Errorf("Expected round counter 1, got %d", g.Round)
	}
	if g.CurrentTurnPlayerID != "player-1" {
		t.Errorf("Expected player-1 to act first, got %s", g.CurrentTurnPlayerID)
	}
	if len(g.Deck) != 52-3 {
		t.Errorf("Expected 49 undealt cards, got %d", len(g.Deck))
	}

	for i, p := range g.Players {
		wantID := []string{"player-1", "player-2", "player-3"}[i]
		if p.ID != wantID {
			t.Errorf("Expected player id %s, got %s", wantID, p.ID)
		}
		if p.Card == nil {
			t.Errorf("Expected %s to hold a card", p.ID)
		}
	}
}

func TestNewGame_Validation(t *testing.T) {
	if _, err := NewGame("TEST-GAME", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an empty roster, got %v", err)
	}
	if _, err := NewGame("TEST-GAME", []string{"Alice", "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for a blank name, got %v", err)
	}
}

func TestNewGame_SinglePlayerWaits(t *testing.T) {
	g := newTestGame(t, "Alice")

	if g.GameState != models.StateAwaitingPlayers {
		t.Errorf("Expected state awaiting_players, got %s", g.GameState)
	}
	if g.Players[0].Card != nil {
		t.Error("Expected no cards dealt while awaiting players")
	}
	if len(g.Deck) != 52 {
		t.Errorf("Expected a full deck while awaiting players, got %d", len(g.Deck))
	}
}

func TestStart_RequiresTwoPlayers(t *testing.T) {
	g := newTestGame(t, "Alice")

	if err := Start(g); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("Expected ErrNotEnoughPlayers, got %v", err)
	}

	g.Players = append(g.Players, &models.Player{ID: "player-2", Name: "Bob"})
	if err := Start(g); err != nil {
		t.Fatalf("Start with two players failed: %v", err)
	}
	if g.GameState != models.StatePlaying || g.RoundPhase != models.PhaseRound1 {
		t.Errorf("Expected playing/round1 after Start, got %s/%s", g.GameState, g.RoundPhase)
	}
}

func TestSubmitRound1_TurnOrderAndAdvance(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")

	// --- Out of turn: rejected, state untouched ---
	if _, err := SubmitRound1(g, "player-2", Round1Action{SeesPair: true}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("Expected ErrNotYourTurn, got %v", err)
	}
	if len(g.Round1Declarations) != 0 || g.CurrentTurnPlayerID != "player-1" {
		t.Fatal("A rejected action must not change the game")
	}

	// --- In turn: accepted, turn passes ---
	decl, err := SubmitRound1(g, "player-1", Round1Action{SeesPair: false})
	if err != nil {
		t.Fatalf("SubmitRound1 failed: %v", err)
	}
	if decl.SeesPair || decl.PlayerName != "Alice" {
		t.Errorf("Unexpected declaration: %+v", decl)
	}
	if g.CurrentTurnPlayerID != "player-2" {
		t.Errorf("Expected turn to pass to player-2, got %s", g.CurrentTurnPlayerID)
	}

	// --- Duplicate from the same player ---
	g.CurrentTurnPlayerID = "player-1"
	if _, err := SubmitRound1(g, "player-1", Round1Action{SeesPair: true}); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("Expected ErrAlreadySubmitted, got %v", err)
	}
	g.CurrentTurnPlayerID = "player-2"

	// --- Remaining players declare, phase advances ---
	if _, err := SubmitRound1(g, "player-2", Round1Action{SeesPair: false}); err != nil {
		t.Fatalf("SubmitRound1 failed: %v", err)
	}
	if _, err := SubmitRound1(g, "player-3", Round1Action{SeesPair: true}); err != nil {
		t.Fatalf("SubmitRound1 failed: %v", err)
	}

	if g.RoundPhase != models.PhaseRound2 {
		t.Errorf("Expected phase round2 after all declarations, got %s", g.RoundPhase)
	}
	if g.CurrentTurnPlayerID != "player-1" {
		t.Errorf("Expected round2 to restart at player-1, got %s", g.CurrentTurnPlayerID)
	}
}

func TestSubmitRound2_RankRange(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob")
	for _, id := range []string{"player-1", "player-2"} {
		if _, err := SubmitRound1(g, id, Round1Action{}); err != nil {
			t.Fatalf("SubmitRound1 failed for %s: %v", id, err)
		}
	}

	if _, err := SubmitRound2(g, "player-1", Round2Action{PerceivedRank: 0}); !errors.Is(err, ErrRankOutOfRange) {
		t.Errorf("Expected ErrRankOutOfRange for rank 0, got %v", err)
	}
	if _, err := SubmitRound2(g, "player-1", Round2Action{PerceivedRank: 3}); !errors.Is(err, ErrRankOutOfRange) {
		t.Errorf("Expected ErrRankOutOfRange for rank 3 with 2 players, got %v", err)
	}
	if _, err := SubmitRound2(g, "player-1", Round2Action{PerceivedRank: 2}); err != nil {
		t.Errorf("Expected rank 2 to be accepted, got %v", err)
	}
}

func TestSubmitRound3_WrongPhase(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob")

	if _, err := SubmitRound3(g, "player-1", Round3Action{GuessedRank: "K"}); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("Expected ErrWrongPhase during round1, got %v", err)
	}
}

// playRounds1And2 walks a 3-player game into round3.
func playRounds1And2(t *testing.T, g *models.Game) {
	t.Helper()
	for _, id := range []string{"player-1", "player-2", "player-3"} {
		if _, err := SubmitRound1(g, id, Round1Action{}); err != nil {
			t.Fatalf("SubmitRound1 failed for %s: %v", id, err)
		}
	}
	for i, id := range []string{"player-1", "player-2", "player-3"} {
		if _, err := SubmitRound2(g, id, Round2Action{PerceivedRank: i + 1}); err != nil {
			t.Fatalf("SubmitRound2 failed for %s: %v", id, err)
		}
	}
	if g.RoundPhase != models.PhaseRound3 {
		t.Fatalf("Expected phase round3, got %s", g.RoundPhase)
	}
}

func TestFullPlaythrough_AllCorrectIsWin(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")
	setCards(g, card("K", 13), card("K", 13), card("7", 7))

	playRounds1And2(t, g)

	for _, step := range []struct {
		playerID string
		guess    string
	}{
		{"player-1", "K"},
		{"player-2", "K"},
		{"player-3", "7"},
	} {
		if _, err := SubmitRound3(g, step.playerID, Round3Action{GuessedRank: step.guess}); err != nil {
			t.Fatalf("SubmitRound3 failed for %s: %v", step.playerID, err)
		}
	}

	if g.RoundPhase != models.PhaseComplete {
		t.Fatalf("Expected phase complete, got %s", g.RoundPhase)
	}
	if g.CurrentTurnPlayerID != "" {
		t.Errorf("Expected no current turn after completion, got %s", g.CurrentTurnPlayerID)
	}
	if g.GameResult == nil {
		t.Fatal("Expected a game result after the final guess")
	}
	if !g.GameResult.IsWin {
		t.Error("Expected a collective win when every guess is correct")
	}
	if len(g.GameResult.PlayerResults) != 3 {
		t.Fatalf("Expected 3 player results, got %d", len(g.GameResult.PlayerResults))
	}
	for _, pr := range g.GameResult.PlayerResults {
		if !pr.IsCorrect {
			t.Errorf("Expected %s to be correct", pr.PlayerID)
		}
	}

	// 行动日志应当包含最后一条猜测的判定
	last := g.ActionLog[len(g.ActionLog)-1]
	if !strings.Contains(last.Content, "CORRECT") {
		t.Errorf("Expected the last log entry to record a correct guess, got %q", last.Content)
	}
}

func TestFullPlaythrough_OneWrongGuessIsLoss(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")
	setCards(g, card("K", 13), card("K", 13), card("7", 7))

	playRounds1And2(t, g)

	if _, err := SubmitRound3(g, "player-1", Round3Action{GuessedRank: "K"}); err != nil {
		t.Fatalf("SubmitRound3 failed: %v", err)
	}
	guess, err := SubmitRound3(g, "player-2", Round3Action{GuessedRank: "Q"})
	if err != nil {
		t.Fatalf("SubmitRound3 failed: %v", err)
	}
	if guess.IsCorrect {
		t.Error("Expected a wrong guess to be marked incorrect")
	}
	if _, err := SubmitRound3(g, "player-3", Round3Action{GuessedRank: "7"}); err != nil {
		t.Fatalf("SubmitRound3 failed: %v", err)
	}

	if g.GameResult == nil {
		t.Fatal("Expected a game result after the final guess")
	}
	if g.GameResult.IsWin {
		t.Error("Expected a collective loss when any guess is wrong")
	}

	wrong := 0
	for _, pr := range g.GameResult.PlayerResults {
		if !pr.IsCorrect {
			wrong++
			if pr.PlayerID != "player-2" {
				t.Errorf("Expected player-2 to be the wrong one, got %s", pr.PlayerID)
			}
		}
	}
	if wrong != 1 {
		t.Errorf("Expected exactly one wrong result, got %d", wrong)
	}
}

func TestRestart_RotatesStartAndClearsState(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")
	setCards(g, card("K", 13), card("K", 13), card("7", 7))
	playRounds1And2(t, g)
	for _, step := range []struct{ id, guess string }{
		{"player-1", "K"}, {"player-2", "K"}, {"player-3", "7"},
	} {
		if _, err := SubmitRound3(g, step.id, Round3Action{GuessedRank: step.guess}); err != nil {
			t.Fatalf("SubmitRound3 failed: %v", err)
		}
	}

	if err := Restart(g); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	if g.Round != 2 {
		t.Errorf("Expected round counter 2, got %d", g.Round)
	}
	if g.Turn != 1 {
		t.Errorf("Expected starting index to rotate to 1, got %d", g.Turn)
	}
	if g.CurrentTurnPlayerID != "player-2" {
		t.Errorf("Expected player-2 to act first after restart, got %s", g.CurrentTurnPlayerID)
	}
	if g.RoundPhase != models.PhaseRound1 || g.GameState != models.StatePlaying {
		t.Errorf("Expected playing/round1, got %s/%s", g.GameState, g.RoundPhase)
	}
	if len(g.Round1Declarations) != 0 || len(g.Round2Rankings) != 0 || len(g.Round3Guesses) != 0 {
		t.Error("Expected all round records cleared after restart")
	}
	if len(g.ActionLog) != 0 {
		t.Error("Expected the action log cleared after restart")
	}
	if g.GameResult != nil {
		t.Error("Expected the previous result cleared after restart")
	}
	for _, p := range g.Players {
		if p.Card == nil {
			t.Errorf("Expected %s to hold a fresh card", p.ID)
		}
	}
}

func TestRestart_RequiresTwoPlayers(t *testing.T) {
	g := newTestGame(t, "Alice")

	if err := Restart(g); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("Expected ErrNotEnoughPlayers, got %v", err)
	}
	if g.Round != 1 {
		t.Errorf("Expected the round counter untouched, got %d", g.Round)
	}
	if g.GameState != models.StateAwaitingPlayers {
		t.Errorf("Expected state awaiting_players, got %s", g.GameState)
	}
}

func TestRestart_DoesNotAffectCompletedSnapshot(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")
	setCards(g, card("K", 13), card("K", 13), card("7", 7))
	playRounds1And2(t, g)
	for _, step := range []struct{ id, guess string }{
		{"player-1", "K"}, {"player-2", "K"}, {"player-3", "7"},
	} {
		if _, err := SubmitRound3(g, step.id, Round3Action{GuessedRank: step.guess}); err != nil {
			t.Fatalf("SubmitRound3 failed: %v", err)
		}
	}

	// 结算后立刻取的快照必须经得起随后的重开
	snap := g.Snapshot("")
	if snap.GameResult == nil {
		t.Fatal("Expected the snapshot to carry the result")
	}

	if err := Restart(g); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if g.GameResult != nil {
		t.Fatal("Expected Restart to clear the live result")
	}
	if snap.GameResult == nil || !snap.GameResult.IsWin {
		t.Error("Expected the captured snapshot to keep the completed result")
	}
	if snap.RoundPhase != models.PhaseComplete {
		t.Errorf("Expected the snapshot to stay complete, got %s", snap.RoundPhase)
	}
}

func TestRemovePlayer_PassesTurn(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")

	// player-1 is about to act and leaves; player-2 inherits the turn
	removed, empty, err := RemovePlayer(g, "player-1")
	if err != nil {
		t.Fatalf("RemovePlayer failed: %v", err)
	}
	if empty {
		t.Fatal("Game should not be empty with two players left")
	}
	if removed.Name != "Alice" {
		t.Errorf("Expected Alice to be removed, got %s", removed.Name)
	}
	if g.CurrentTurnPlayerID != "player-2" {
		t.Errorf("Expected the turn to pass to player-2, got %s", g.CurrentTurnPlayerID)
	}
	if len(g.Players) != 2 {
		t.Fatalf("Expected 2 players left, got %d", len(g.Players))
	}
}

func TestRemovePlayer_CompletesPhase(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob", "Carol")

	if _, err := SubmitRound1(g, "player-1", Round1Action{}); err != nil {
		t.Fatalf("SubmitRound1 failed: %v", err)
	}
	if _, err := SubmitRound1(g, "player-2", Round1Action{}); err != nil {
		t.Fatalf("SubmitRound1 failed: %v", err)
	}

	// The only player yet to declare leaves: everyone remaining has
	// declared, so the phase must advance.
	if _, _, err := RemovePlayer(g, "player-3"); err != nil {
		t.Fatalf("RemovePlayer failed: %v", err)
	}
	if g.RoundPhase != models.PhaseRound2 {
		t.Errorf("Expected phase round2 after departure, got %s", g.RoundPhase)
	}
	if g.CurrentTurnPlayerID != "player-1" {
		t.Errorf("Expected round2 to restart at player-1, got %s", g.CurrentTurnPlayerID)
	}
}

func TestRemovePlayer_LastPlayerEmptiesGame(t *testing.T) {
	g := newTestGame(t, "Alice")

	removed, empty, err := RemovePlayer(g, "player-1")
	if err != nil {
		t.Fatalf("RemovePlayer failed: %v", err)
	}
	if !empty {
		t.Fatal("Expected the game to be reported empty")
	}
	if removed.ID != "player-1" {
		t.Errorf("Expected player-1 removed, got %s", removed.ID)
	}
}

func TestRemovePlayer_NotFound(t *testing.T) {
	g := newTestGame(t, "Alice", "Bob")

	if _, _, err := RemovePlayer(g, "player-9"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("Expected ErrPlayerNotFound, got %v", err)
	}
}
