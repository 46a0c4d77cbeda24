package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tenantsync/internal/config"
	"tenantsync/internal/notify"
	syncengine "tenantsync/internal/sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the local gateway hosting views attach to. It exposes the sync
// engine's read model over HTTP, accepts commands, and pushes bus events to
// connected views over WebSocket.
//
// The config is held behind an atomic pointer so a hot-reload (UpdateConfig)
// rotates the auth token for requests already in flight. The listen port is
// bound once at Start.
type Server struct {
	Engine  *syncengine.Engine
	Bus     *notify.Bus
	Conns   *ConnManager
	cfg     atomic.Pointer[config.Config]
	httpSrv *http.Server
	startAt time.Time
}

func NewServer(cfg *config.Config, engine *syncengine.Engine, bus *notify.Bus) *Server {
	s := &Server{
		Engine:  engine,
		Bus:     bus,
		Conns:   NewConnManager(),
		startAt: time.Now(),
	}
	s.cfg.Store(cfg)
	return s
}

// UpdateConfig swaps the gateway's config. Registered as a config hot-reload
// consumer.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg != nil {
		s.cfg.Store(cfg)
	}
}

// Start begins listening for connections and forwarding bus events until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	port := s.cfg.Load().Gateway.Port
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.buildRouter(),
	}

	go s.forwardEvents(ctx)

	slog.Info("gateway starting", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.ginHealth)
	engine.GET("/ws", s.ginWebSocket)
	s.registerAPIRoutes(engine)
	return engine
}

// forwardEvents relays bus notifications to every connected view.
func (s *Server) forwardEvents(ctx context.Context) {
	events, cancel := s.Bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			s.Conns.Broadcast(evt.Type, evt.ChatID, evt)
		}
	}
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
		"views":  s.Conns.Count(),
		"chats":  len(s.Engine.Chats()),
	})
}

func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	connID := fmt.Sprintf("conn_%d", time.Now().UnixNano())
	conn := &Conn{
		ID:          connID,
		WS:          ws,
		ConnectedAt: time.Now(),
	}

	// First message must be a connect request
	frame, err := ReadFrame(ws)
	if err != nil {
		slog.Warn("failed to read connect frame", "error", err)
		return
	}
	if frame.Method != "connect" {
		conn.Send(ResErr(frame.ID, "HANDSHAKE_REQUIRED", "first message must be a connect request"))
		return
	}

	var connectParams ConnectParams
	if err := json.Unmarshal(frame.Params, &connectParams); err != nil {
		conn.Send(ResErr(frame.ID, "INVALID_PARAMS", "invalid connect params"))
		return
	}

	if !s.authenticate(connectParams.Token) {
		conn.Send(ResErr(frame.ID, "AUTH_FAILED", "invalid token"))
		return
	}

	s.Conns.Add(conn)
	defer s.Conns.Remove(connID)

	slog.Info("view connected", "id", connID)

	conn.Send(ResOK(frame.ID, map[string]any{
		"connId":   connID,
		"protocol": 1,
	}))

	// Message loop. Views issue commands over HTTP; the socket carries only
	// the event stream plus a subscribe method to narrow it.
	for {
		frame, err := ReadFrame(ws)
		if err != nil {
			slog.Debug("view disconnected", "id", connID, "error", err)
			return
		}

		if frame.Type != "req" {
			continue
		}

		switch frame.Method {
		case "subscribe":
			var p SubscribeParams
			if err := json.Unmarshal(frame.Params, &p); err != nil {
				conn.Send(ResErr(frame.ID, "INVALID_PARAMS", "invalid subscribe params"))
				continue
			}
			s.Conns.SetFilter(connID, p.ChatID)
			conn.Send(ResOK(frame.ID, map[string]any{"chatId": p.ChatID}))
		default:
			conn.Send(ResErr(frame.ID, "UNKNOWN_METHOD", "use HTTP /api for commands; only subscribe is supported over WebSocket"))
		}
	}
}

func (s *Server) authenticate(token string) bool {
	expected := s.cfg.Load().Gateway.Auth.Token
	if expected == "" {
		return true // no auth configured
	}
	return token == expected
}
