// registry/registry.go
package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/wfunc/bobboi/engine"
	"github.com/wfunc/bobboi/models"
)

// Registry 持有所有进行中的对局以及玩家到对局的反向索引。
// 两张表由同一把读写锁保护，单局内部的修改由对局自身的锁串行化，
// 不同对局之间互不阻塞。
type Registry struct {
	games        map[string]*models.Game
	playerToGame map[string]string // playerKey -> gameID
	mutex        sync.RWMutex
}

// playerKey 玩家 id 只在单局内唯一（player-1 每局都有），
// 反向索引用 (gameID, playerID) 复合键
func playerKey(gameID, playerID string) string {
	return gameID + "/" + playerID
}

func NewRegistry() *Registry {
	return &Registry{
		games:        make(map[string]*models.Game),
		playerToGame: make(map[string]string),
	}
}

// CreateGame 新建对局并登记全部玩家映射。名单校验由引擎负责。
func (r *Registry) CreateGame(playerNames []string) (*models.Game, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, err := r.unusedGameID()
	if err != nil {
		return nil, err
	}

	g, err := engine.NewGame(id, playerNames)
	if err != nil {
		return nil, err
	}

	r.games[g.ID] = g
	for _, p := range g.Players {
		r.playerToGame[playerKey(g.ID, p.ID)] = g.ID
	}
	return g, nil
}

// GetGame 查找对局
func (r *Registry) GetGame(gameID string) (*models.Game, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	g, exists := r.games[gameID]
	return g, exists
}

// GameExists reports whether the game id is live.
func (r *Registry) GameExists(gameID string) bool {
	_, exists := r.GetGame(gameID)
	return exists
}

// AddPlayer 给对局追加一名玩家并分配下一个顺序 id。
// 重名与人数上限属于网关前置检查，注册表只提供只读判断。
// 已开局的对局拒绝加入：中途进来的玩家没有手牌，整局无法结算。
// 整个过程在注册表临界区内完成，与 EndGame 之间不留空档。
func (r *Registry) AddPlayer(gameID, playerName string) (*models.Game, *models.Player, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	g, exists := r.games[gameID]
	if !exists {
		return nil, nil, engine.ErrGameNotFound
	}

	g.Lock()
	if g.GameState == models.StatePlaying {
		g.Unlock()
		return nil, nil, engine.ErrGameInProgress
	}
	player := &models.Player{
		ID:   nextPlayerID(g),
		Name: playerName,
	}
	g.Players = append(g.Players, player)
	g.Unlock()

	r.playerToGame[playerKey(gameID, player.ID)] = gameID
	return g, player, nil
}

// RemovePlayer 把玩家移出其所在对局。最后一人离开时对局整体销毁，
// 此时对局返回 nil 而不是一个空对局。
func (r *Registry) RemovePlayer(gameID, playerID string) (*models.Game, *models.Player, error) {
	g, exists := r.GetGame(gameID)
	if !exists {
		return nil, nil, engine.ErrGameNotFound
	}

	removed, empty, err := engine.RemovePlayer(g, playerID)
	if err != nil {
		return nil, nil, err
	}

	r.mutex.Lock()
	delete(r.playerToGame, playerKey(gameID, playerID))
	if empty {
		delete(r.games, gameID)
	}
	r.mutex.Unlock()

	if empty {
		return nil, removed, nil
	}
	return g, removed, nil
}

// StartGame 等待中的对局正式开局。至少两人的前置条件由调用方保证，
// 引擎仍会兜底拒绝。
func (r *Registry) StartGame(gameID string) (*models.Game, error) {
	g, exists := r.GetGame(gameID)
	if !exists {
		return nil, engine.ErrGameNotFound
	}
	if err := engine.Start(g); err != nil {
		return nil, err
	}
	return g, nil
}

// RestartGame 同一批玩家重开：洗牌重发、清空三轮记录和日志、
// round 加一、起始玩家顺延一位。
func (r *Registry) RestartGame(gameID string) (*models.Game, error) {
	g, exists := r.GetGame(gameID)
	if !exists {
		return nil, engine.ErrGameNotFound
	}
	if err := engine.Restart(g); err != nil {
		return nil, err
	}
	return g, nil
}

// EndGame 销毁对局及其全部玩家映射。对局不存在时返回 false。
func (r *Registry) EndGame(gameID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	g, exists := r.games[gameID]
	if !exists {
		return false
	}

	g.Lock()
	for _, p := range g.Players {
		delete(r.playerToGame, playerKey(gameID, p.ID))
	}
	g.Unlock()

	delete(r.games, gameID)
	return true
}

// PlayerInGame reports whether the player id is registered to this game.
func (r *Registry) PlayerInGame(gameID, playerID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	mapped, exists := r.playerToGame[playerKey(gameID, playerID)]
	return exists && mapped == gameID
}

// GameCount 当前活跃对局数
func (r *Registry) GameCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.games)
}

// GameIDs returns the ids of all live games.
func (r *Registry) GameIDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids
}

// nextPlayerID 分配 player-N：取现有最大序号加一，避免有人离开后
// 新玩家拿到仍在使用的 id。调用方须持有对局锁。
func nextPlayerID(g *models.Game) string {
	max := 0
	for _, p := range g.Players {
		var n int
		if _, err := fmt.Sscanf(p.ID, "player-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("player-%d", max+1)
}

const gameIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateGameID 生成 XXXX-XXXX 形式、方便口头分享的对局码
func generateGameID() (string, error) {
	code := make([]byte, 9)
	for i := range code {
		if i == 4 {
			code[i] = '-'
			continue
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(gameIDCharset))))
		if err != nil {
			return "", err
		}
		code[i] = gameIDCharset[n.Int64()]
	}
	return string(code), nil
}

// unusedGameID retries until the code does not collide with a live game.
// Caller must hold the registry write lock.
func (r *Registry) unusedGameID() (string, error) {
	for {
		id, err := generateGameID()
		if err != nil {
			return "", err
		}
		if _, taken := r.games[id]; !taken {
			return id, nil
		}
	}
}
