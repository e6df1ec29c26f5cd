package engine

import (
	"errors"
	"fmt"
)

// 拒绝类错误：对局状态不变，只回给请求方
var (
	ErrGameNotFound     = errors.New("game not found")
	ErrPlayerNotFound   = errors.New("player not found in this game")
	ErrGameNotPlaying   = errors.New("game is not in playing state")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrWrongPhase       = errors.New("action does not match the current round phase")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadySubmitted = errors.New("already submitted for this round")
	ErrRankOutOfRange   = errors.New("perceived rank out of range")
	ErrNotEnoughPlayers = errors.New("at least 2 players required")
	ErrInvalidInput     = errors.New("invalid input")
)

// IsInvalidAction reports whether err is an acceptance-predicate rejection:
// an expected, client-visible no-op rather than a server fault.
func IsInvalidAction(err error) bool {
	return errors.Is(err, ErrGameNotPlaying) ||
		errors.Is(err, ErrGameInProgress) ||
		errors.Is(err, ErrWrongPhase) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrRankOutOfRange)
}

// IsNotFound reports whether err refers to a missing game or player.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrPlayerNotFound)
}

// InvariantError 内部一致性被破坏：状态机或注册表的 bug，
// 不是用户错误。只中止当前请求，原状态保持不变，原文不回给客户端。
type InvariantError struct {
	GameID string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in game %s: %s", e.GameID, e.Reason)
}

// IsInvariantViolation reports whether err is an internal consistency failure.
func IsInvariantViolation(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
