package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/bobboi/broadcast"
	"github.com/wfunc/bobboi/config"
	"github.com/wfunc/bobboi/engine"
	"github.com/wfunc/bobboi/logger"
	"github.com/wfunc/bobboi/models"
	"github.com/wfunc/bobboi/monitor"
	"github.com/wfunc/bobboi/network"
	"github.com/wfunc/bobboi/persistence"
	"github.com/wfunc/bobboi/registry"
	adminrpc "github.com/wfunc/bobboi/rpc"
	"github.com/wfunc/bobboi/services"
	"github.com/wfunc/bobboi/session"
	"github.com/wfunc/bobboi/timer"
)

const heartbeatInterval = 30 * time.Second

// GameServer 实时网关：连接升级、请求分发、房间广播。
// 引擎的所有状态变更都从这里进，拒绝只回给请求方。
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	registry       *registry.Registry
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	stats          *services.StatsService
	mon            *monitor.Monitor
	rpcServer      *adminrpc.Server
	timers         *timer.TimerManager
	maxPlayers     int
	sessionTimeout time.Duration
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		registry:       registry.NewRegistry(),
		sessionManager: session.NewManager(),
		stats:          services.NewStatsService(db),
		mon:            mon,
		timers:         timer.NewTimerManager(),
		maxPlayers:     cfg.Game.MaxPlayers,
		sessionTimeout: time.Duration(cfg.Game.SessionTimeoutSeconds) * time.Second,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewGameBroadcaster(s.sessionManager)

	rpcServer, err := adminrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(adminrpc.NewAdminService(s.registry, s.stats))

	// 空闲会话清扫：长时间无心跳的连接直接关闭，
	// 读循环退出后按断线处理
	if s.sessionTimeout > 0 {
		s.timers.AddTimer(s.sessionTimeout, s.sessionTimeout, s.sweepIdleSessions)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// Touch 已刷新活跃时间，原样回包让客户端测 RTT
		sess.Send(network.MsgTypeHeartbeat, packet.Data)
	case network.MsgTypeCreateGame:
		s.handleCreateGame(sess, packet)
	case network.MsgTypeJoinGame:
		s.handleJoinGame(sess, packet)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess, packet)
	case network.MsgTypeLeaveGame:
		s.handleLeaveGame(sess, packet)
	case network.MsgTypeRestartGame:
		s.handleRestartGame(sess, packet)
	case network.MsgTypeEndGame:
		s.handleEndGame(sess, packet)
	case network.MsgTypeReconnectGame:
		s.handleReconnectGame(sess, packet)
	case network.MsgTypeRound1Declaration:
		s.handleRound1(sess, packet)
	case network.MsgTypeRound2Ranking:
		s.handleRound2(sess, packet)
	case network.MsgTypeRound3Guess:
		s.handleRound3(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

// --- 请求/推送载荷 ---

type createGameRequest struct {
	PlayerNames []string `json:"playerNames"`
}

type joinGameRequest struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

type gameRequest struct {
	GameID string `json:"gameId"`
}

type playerRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type round1Request struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	SeesPair bool   `json:"seesPair"`
}

type round2Request struct {
	GameID        string `json:"gameId"`
	PlayerID      string `json:"playerId"`
	PerceivedRank int    `json:"perceivedRank"`
}

type round3Request struct {
	GameID      string `json:"gameId"`
	PlayerID    string `json:"playerId"`
	GuessedRank string `json:"guessedRank"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type gameCreatedPayload struct {
	Game     *models.Game `json:"game"`
	PlayerID string       `json:"playerId"`
}

type playerEventPayload struct {
	Game       *models.Game `json:"game"`
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
}

type gameStatePayload struct {
	Game *models.Game `json:"game"`
}

type gameEndedPayload struct {
	GameID string `json:"gameId"`
}

type round1Payload struct {
	Game        *models.Game              `json:"game"`
	Declaration *models.Round1Declaration `json:"declaration"`
}

type round2Payload struct {
	Game    *models.Game          `json:"game"`
	Ranking *models.Round2Ranking `json:"ranking"`
}

type round3Payload struct {
	Game  *models.Game        `json:"game"`
	Guess *models.Round3Guess `json:"guess"`
}

type gameResultPayload struct {
	Game   *models.Game       `json:"game"`
	Result *models.GameResult `json:"result"`
}

// --- 生命周期请求 ---

func (s *GameServer) handleCreateGame(sess *session.Session, packet *network.Packet) {
	var req createGameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed create_game payload")
		return
	}

	g, err := s.registry.CreateGame(req.PlayerNames)
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	// 发起连接代表名单里的第一名玩家（房主）
	host := g.Players[0]
	sess.Bind(g.ID, host.ID)
	s.mon.SetActiveGames(s.registry.GameCount())

	logger.Log.Infof("Session %s created game %s (%d players)", sess.GetID(), g.ID, len(req.PlayerNames))
	s.sendJSON(sess, network.MsgTypeGameCreated, gameCreatedPayload{
		Game:     g.Snapshot(host.ID),
		PlayerID: host.ID,
	})
}

func (s *GameServer) handleJoinGame(sess *session.Session, packet *network.Packet) {
	var req joinGameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed join_game payload")
		return
	}

	g, exists := s.registry.GetGame(req.GameID)
	if !exists {
		s.sendError(sess, "Game not found")
		return
	}

	// 网关前置检查：人数上限与重名（见注册表约定）
	g.Lock()
	full := len(g.Players) >= s.maxPlayers
	nameTaken := g.HasPlayerName(req.PlayerName)
	g.Unlock()
	if full {
		s.sendError(sess, "Game is full")
		return
	}
	if nameTaken {
		s.sendError(sess, "Name already taken in this game")
		return
	}

	g, player, err := s.registry.AddPlayer(req.GameID, req.PlayerName)
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	sess.Bind(g.ID, player.ID)
	logger.Log.Infof("Player %s joined game %s as %s", req.PlayerName, g.ID, player.ID)

	s.broadcastGameEvent(g, network.MsgTypePlayerJoined, func(view *models.Game) interface{} {
		return playerEventPayload{Game: view, PlayerID: player.ID, PlayerName: player.Name}
	})
}

func (s *GameServer) handleStartGame(sess *session.Session, packet *network.Packet) {
	var req gameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed start_game payload")
		return
	}

	boundGame, _ := sess.Binding()
	if boundGame != req.GameID {
		s.sendError(sess, "You are not in this game")
		return
	}

	g, err := s.registry.StartGame(req.GameID)
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	logger.Log.Infof("Game %s started", g.ID)
	s.broadcastGameEvent(g, network.MsgTypeGameState, func(view *models.Game) interface{} {
		return gameStatePayload{Game: view}
	})
}

func (s *GameServer) handleLeaveGame(sess *session.Session, packet *network.Packet) {
	var req playerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed leave_game payload")
		return
	}

	boundGame, boundPlayer := sess.Binding()
	if boundGame != req.GameID || boundPlayer != req.PlayerID {
		s.sendError(sess, "Session is not bound to this player")
		return
	}

	s.removePlayerAndNotify(sess, req.GameID, req.PlayerID)
}

// handleDisconnect 断线等同离开
func (s *GameServer) handleDisconnect(sess *session.Session) {
	gameID, playerID := sess.Binding()
	if gameID == "" {
		return
	}
	s.removePlayerAndNotify(sess, gameID, playerID)
}

func (s *GameServer) removePlayerAndNotify(sess *session.Session, gameID, playerID string) {
	g, removed, err := s.registry.RemovePlayer(gameID, playerID)
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	sess.Unbind()
	s.mon.SetActiveGames(s.registry.GameCount())

	if g == nil {
		// 最后一人离开，对局已随之销毁
		logger.Log.Infof("Game %s ended because all players left", gameID)
		return
	}

	logger.Log.Infof("Player %s (%s) left game %s", removed.Name, removed.ID, gameID)
	s.broadcastGameEvent(g, network.MsgTypePlayerLeft, func(view *models.Game) interface{} {
		return playerEventPayload{Game: view, PlayerID: removed.ID, PlayerName: removed.Name}
	})
}

func (s *GameServer) handleRestartGame(sess *session.Session, packet *network.Packet) {
	var req gameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed restart_game payload")
		return
	}

	g, err := s.registry.RestartGame(req.GameID)
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	g.Lock()
	round := g.Round
	g.Unlock()
	logger.Log.Infof("Game %s restarted (round %d)", g.ID, round)
	s.broadcastGameEvent(g, network.MsgTypeGameRestarted, func(view *models.Game) interface{} {
		return gameStatePayload{Game: view}
	})
}

func (s *GameServer) handleEndGame(sess *session.Session, packet *network.Packet) {
	var req gameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed end_game payload")
		return
	}

	if !s.registry.GameExists(req.GameID) {
		s.sendError(sess, "Game not found")
		return
	}

	// 先通知房间再销毁，销毁后解除所有会话绑定
	roomSessions := s.sessionManager.GetByGameID(req.GameID)
	data, _ := json.Marshal(gameEndedPayload{GameID: req.GameID})
	s.broadcaster.BroadcastToGame(req.GameID, network.MsgTypeGameEnded, data)

	if !s.registry.EndGame(req.GameID) {
		s.sendError(sess, "Game not found")
		return
	}
	for _, rs := range roomSessions {
		rs.Unbind()
	}

	s.mon.SetActiveGames(s.registry.GameCount())
	logger.Log.Infof("Game %s ended", req.GameID)
}

// handleReconnectGame 重连只重新订阅，不改动任何对局状态
func (s *GameServer) handleReconnectGame(sess *session.Session, packet *network.Packet) {
	var req playerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed reconnect_game payload")
		return
	}

	g, exists := s.registry.GetGame(req.GameID)
	if !exists {
		s.sendError(sess, "Game not found")
		return
	}
	if !s.registry.PlayerInGame(req.GameID, req.PlayerID) {
		s.sendError(sess, "Player not found in this game")
		return
	}

	sess.Bind(req.GameID, req.PlayerID)
	logger.Log.Infof("Player %s reconnected to game %s", req.PlayerID, req.GameID)
	s.sendJSON(sess, network.MsgTypeGameState, gameStatePayload{Game: g.Snapshot(req.PlayerID)})
}

// --- 回合动作 ---

func (s *GameServer) handleRound1(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.mon.IncActionsReceived()

	var req round1Request
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed round1 payload")
		return
	}

	g, ok := s.authorizeAction(sess, req.GameID, req.PlayerID)
	if !ok {
		return
	}

	decl, err := engine.SubmitRound1(g, req.PlayerID, engine.Round1Action{SeesPair: req.SeesPair})
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	s.broadcastGameEvent(g, network.MsgTypeRound1Declared, func(view *models.Game) interface{} {
		return round1Payload{Game: view, Declaration: decl}
	})
	s.mon.ObserveActionLatency(time.Since(start))
}

func (s *GameServer) handleRound2(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.mon.IncActionsReceived()

	var req round2Request
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed round2 payload")
		return
	}

	g, ok := s.authorizeAction(sess, req.GameID, req.PlayerID)
	if !ok {
		return
	}

	ranking, err := engine.SubmitRound2(g, req.PlayerID, engine.Round2Action{PerceivedRank: req.PerceivedRank})
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	s.broadcastGameEvent(g, network.MsgTypeRound2Ranked, func(view *models.Game) interface{} {
		return round2Payload{Game: view, Ranking: ranking}
	})
	s.mon.ObserveActionLatency(time.Since(start))
}

func (s *GameServer) handleRound3(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.mon.IncActionsReceived()

	var req round3Request
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed round3 payload")
		return
	}

	g, ok := s.authorizeAction(sess, req.GameID, req.PlayerID)
	if !ok {
		return
	}

	guess, err := engine.SubmitRound3(g, req.PlayerID, engine.Round3Action{GuessedRank: req.GuessedRank})
	if err != nil {
		s.sendEngineError(sess, err)
		return
	}

	// 结算快照在广播前拿到：重开请求赶在广播中间也清不掉它
	final := g.Snapshot("")

	s.broadcastGameEvent(g, network.MsgTypeRound3Guessed, func(view *models.Game) interface{} {
		return round3Payload{Game: view, Guess: guess}
	})

	// 第 N 个猜测结算整局：追加广播结果并异步存档
	if final.GameResult != nil {
		s.mon.IncGamesCompleted(final.GameResult.IsWin)
		s.broadcastGameEvent(g, network.MsgTypeGameResult, func(view *models.Game) interface{} {
			return gameResultPayload{Game: view, Result: view.GameResult}
		})
		if s.stats.Enabled() {
			go func() {
				if err := s.stats.ArchiveGame(final); err != nil {
					logger.Log.Errorf("Failed to archive game %s: %v", final.ID, err)
				}
			}()
		}
	}
	s.mon.ObserveActionLatency(time.Since(start))
}

// authorizeAction 回合动作只能以本连接绑定的玩家身份提交，
// 这是"不能替别人行动"的传输层保证
func (s *GameServer) authorizeAction(sess *session.Session, gameID, playerID string) (*models.Game, bool) {
	boundGame, boundPlayer := sess.Binding()
	if boundGame != gameID || boundPlayer != playerID {
		s.sendError(sess, "Session is not bound to this player")
		return nil, false
	}

	g, exists := s.registry.GetGame(gameID)
	if !exists {
		s.sendError(sess, "Game not found")
		return nil, false
	}
	return g, true
}

// --- 出站辅助 ---

func (s *GameServer) sendJSON(sess *session.Session, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Failed to marshal payload for msg %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Warnf("Failed to send msg %d to session %s: %v", msgID, sess.GetID(), err)
	}
}

func (s *GameServer) sendError(sess *session.Session, message string) {
	s.sendJSON(sess, network.MsgTypeError, errorResponse{Message: message})
}

// sendEngineError 引擎错误分流：常规拒绝原样回给请求方，
// 内部不变量破坏只留日志，对外一律是 internal error
func (s *GameServer) sendEngineError(sess *session.Session, err error) {
	switch {
	case engine.IsInvariantViolation(err):
		logger.Log.Errorf("Engine invariant violation: %v", err)
		s.sendError(sess, "internal error")
	case engine.IsInvalidAction(err) || engine.IsNotFound(err):
		// 预期内的拒绝，不值得告警
		logger.Log.Debugf("Rejected request from session %s: %v", sess.GetID(), err)
		s.sendError(sess, err.Error())
	default:
		logger.Log.Warnf("Request from session %s failed: %v", sess.GetID(), err)
		s.sendError(sess, err.Error())
	}
}

func (s *GameServer) broadcastGameEvent(g *models.Game, msgID uint16, build func(view *models.Game) interface{}) {
	err := s.broadcaster.BroadcastToGameViews(g.ID, msgID, func(viewerID string) ([]byte, error) {
		return json.Marshal(build(g.Snapshot(viewerID)))
	})
	if err != nil {
		logger.Log.Errorf("Broadcast failed for game %s msg %d: %v", g.ID, msgID, err)
	}
}

// sweepIdleSessions 关闭超时无活动的连接，交给读循环做断线清理
func (s *GameServer) sweepIdleSessions() {
	for _, sess := range s.sessionManager.All() {
		if sess.IdleFor() > s.sessionTimeout {
			logger.Log.Warnf("Closing idle session %s (idle %v)", sess.GetID(), sess.IdleFor())
			sess.Close()
		}
	}
}
