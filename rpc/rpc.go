package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/bobboi/logger"
	"github.com/wfunc/bobboi/persistence"
	"github.com/wfunc/bobboi/registry"
	"github.com/wfunc/bobboi/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService 运维侧只读接口：活跃对局与历史战绩
type AdminService struct {
	registry *registry.Registry
	stats    *services.StatsService
}

// NewAdminService creates a new AdminService.
func NewAdminService(reg *registry.Registry, stats *services.StatsService) *AdminService {
	return &AdminService{registry: reg, stats: stats}
}

type ActiveGamesArgs struct{}

type ActiveGamesReply struct {
	Count   int
	GameIDs []string
}

// ActiveGames 当前活跃对局数量和编号
func (as *AdminService) ActiveGames(args *ActiveGamesArgs, reply *ActiveGamesReply) error {
	reply.Count = as.registry.GameCount()
	reply.GameIDs = as.registry.GameIDs()
	return nil
}

type PlayerStatsArgs struct {
	Name string
}

type PlayerStatsReply struct {
	Stats persistence.PlayerStats
}

// PlayerStats 历史胜负查询，未启用数据库时返回错误
func (as *AdminService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := as.stats.PlayerStats(args.Name)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
