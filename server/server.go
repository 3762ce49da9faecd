package server

import (
	"net/http"
	netrpc "net/rpc"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ps1net/backend/broadcast"
	"github.com/ps1net/backend/config"
	"github.com/ps1net/backend/game"
	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/matchmaker"
	"github.com/ps1net/backend/monitor"
	"github.com/ps1net/backend/network"
	"github.com/ps1net/backend/persistence"
	"github.com/ps1net/backend/room"
	"github.com/ps1net/backend/rpc"
	"github.com/ps1net/backend/session"
	"github.com/ps1net/backend/timer"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	matchmaker     *matchmaker.Matchmaker
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	rpcServer      *rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, questions persistence.QuestionStore, records room.RecordSaver,
	timers *timer.Manager, mon *monitor.Monitor, boardFn func() *game.Board) (*GameServer, error) {
	sessionManager := session.NewManager()
	mm := matchmaker.New(cfg.Game, questions, records, timers, mon, boardFn)
	mm.SetBroadcaster(broadcast.NewRoomBroadcaster(mm, sessionManager))

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		matchmaker:     mm,
		sessionManager: sessionManager,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.Server.AllowedOrigins),
		},
	}

	// 初始化RPC服务器
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return nil, err
	}
	s.rpcServer = rpcServer
	netrpc.Register(rpc.NewAdminService(mm, sessionManager, mon))

	return s, nil
}

// originChecker 按配置的域名后缀过滤跨域请求。列表为空或包含 "*"
// 时放行所有来源。
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, pattern := range allowed {
			if pattern == "*" {
				return true
			}
			if strings.HasSuffix(origin, strings.TrimPrefix(pattern, "*")) {
				return true
			}
		}
		return false
	}
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.matchmaker.Shutdown()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

// heartbeatInterval 客户端心跳周期。读超时是两个周期，
// 每收到一次心跳重新计时。
const heartbeatInterval = 30 * time.Second

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("new client %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)

	defer func() {
		logger.Log.Infof("connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)
		s.sessionManager.Remove(sess.ID)
		s.monitor.DecOnlinePlayers()
		s.matchmaker.HandleDisconnect(sess)
		wsConn.Close()
	}()

	// 进入匹配队列，凑满两人由matchmaker开房
	s.matchmaker.Enqueue(sess)

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
	if packet.MsgID == network.MsgTypeHeartbeat {
		sess.Touch()
		sess.Conn.SetHeartbeat(heartbeatInterval)
		return
	}

	var kind room.EventKind
	switch packet.MsgID {
	case network.MsgTypeLogin:
		kind = room.EventLogin
	case network.MsgTypeRollDice:
		kind = room.EventRoll
	case network.MsgTypeSetDifficulty:
		kind = room.EventSetDifficulty
	case network.MsgTypeAnswer:
		kind = room.EventAnswer
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return
	}

	roomID := sess.RoomID()
	if roomID == "" {
		logger.Log.Debugf("session %s sent message %d but is not in a room", sess.ID, packet.MsgID)
		return
	}

	rm, exists := s.matchmaker.GetRoom(roomID)
	if !exists {
		logger.Log.Debugf("room %s not found for session %s", roomID, sess.ID)
		return
	}

	rm.Post(room.Event{Kind: kind, Sess: sess, Payload: packet.Data})
}
