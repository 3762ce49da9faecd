package rpc

import (
	"net"
	"net/rpc"

	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/matchmaker"
	"github.com/ps1net/backend/monitor"
	"github.com/ps1net/backend/session"
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
			// Check if the error is due to the listener being closed.
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

// AdminService 暴露运维用的统计信息
type AdminService struct {
	matchmaker *matchmaker.Matchmaker
	sessions   *session.Manager
	monitor    *monitor.Monitor
}

func NewAdminService(mm *matchmaker.Matchmaker, sm *session.Manager, mon *monitor.Monitor) *AdminService {
	return &AdminService{matchmaker: mm, sessions: sm, monitor: mon}
}

type StatsArgs struct{}

type StatsReply struct {
	ActiveRooms    int
	WaitingPlayers int
	OnlineSessions int
	UptimeSeconds  float64
}

// Stats follows the net/rpc signature: exported method, exported
// arguments, second argument is a pointer, return type is error.
func (a *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.ActiveRooms = a.matchmaker.RoomCount()
	reply.WaitingPlayers = a.matchmaker.QueueLength()
	reply.OnlineSessions = a.sessions.Count()
	reply.UptimeSeconds = a.monitor.Uptime().Seconds()
	return nil
}
