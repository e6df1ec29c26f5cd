// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/bobboi/network"
)

// Session 一条客户端连接。绑定后它代表某一局里的某个玩家；
// 同一玩家断线重连会产生新的 Session 绑到旧的 (gameID, playerID)。
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	gameID     string
	playerID   string
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Bind 把连接绑定到一局中的一名玩家
func (s *Session) Bind(gameID, playerID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gameID = gameID
	s.playerID = playerID
}

// Unbind clears the game/player binding, e.g. after the game ends.
func (s *Session) Unbind() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gameID = ""
	s.playerID = ""
}

// Binding returns the bound (gameID, playerID), empty strings if unbound.
func (s *Session) Binding() (gameID, playerID string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.gameID, s.playerID
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

// Touch 刷新活跃时间，心跳与任何入站请求都会调用
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

// IdleFor 距离上次活跃过去了多久
func (s *Session) IdleFor() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.lastActive)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager 全部活跃连接
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByGameID 某一局房间里的全部连接
func (m *Manager) GetByGameID(gameID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if boundGame, _ := session.Binding(); boundGame == gameID {
			result = append(result, session)
		}
	}
	return result
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
