package network

// 消息号约定：1xx 请求对局生命周期，2xx 回合动作，3xx 服务端推送
const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2

	MsgTypeCreateGame    = 101
	MsgTypeJoinGame      = 102
	MsgTypeStartGame     = 103
	MsgTypeLeaveGame     = 104
	MsgTypeRestartGame   = 105
	MsgTypeEndGame       = 106
	MsgTypeReconnectGame = 107

	MsgTypeRound1Declaration = 201
	MsgTypeRound2Ranking     = 202
	MsgTypeRound3Guess       = 203

	MsgTypeGameCreated    = 301
	MsgTypeGameState      = 302
	MsgTypePlayerJoined   = 303
	MsgTypePlayerLeft     = 304
	MsgTypeGameRestarted  = 305
	MsgTypeGameEnded      = 306
	MsgTypeRound1Declared = 307
	MsgTypeRound2Ranked   = 308
	MsgTypeRound3Guessed  = 309
	MsgTypeGameResult     = 310
)
