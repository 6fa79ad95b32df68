package server

import (
	"context"
	"net/http"
	"time"

	"cards-chaos/internal/config"
	"cards-chaos/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	rooms    RoomStore
	db       *gorm.DB
	engine   *game.Engine
	catalog  *catalog
	sessions *sessionRegistry
	signals  *mailbox
	video    *videoRoster
	hub      *wsHub
	relay    relay
	limiter  *rateLimiter
	cfg      config.Config
	now      func() time.Time
}

// New wires a server over Postgres, or entirely in memory when conn is nil.
func New(conn *gorm.DB, cfg config.Config) *Server {
	registerValidators()
	var rooms RoomStore
	if conn == nil {
		rooms = newMemoryRoomStore()
	} else {
		rooms = newSQLRoomStore(conn)
	}
	hub := newWSHub()
	s := &Server{
		rooms:    rooms,
		db:       conn,
		engine:   game.NewEngine(cfg.Game(), nil),
		catalog:  newCatalog(conn),
		sessions: newSessionRegistry(conn, rooms),
		signals:  newMailbox(conn),
		video:    newVideoRoster(conn),
		hub:      hub,
		relay:    localRelay{hub: hub},
		limiter:  newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		cfg:      cfg,
		now:      timeNowUTC,
	}
	go hub.run(s.dispatch)
	return s
}

// UseRedis routes broadcasts through Redis pub/sub so every replica serving
// a room's sockets receives them. Call before serving.
func (s *Server) UseRedis(client *redis.Client) {
	s.relay = newRedisRelay(client, s.hub)
}

// RunRelay consumes the Redis subscription until ctx ends. Without Redis it
// just waits.
func (s *Server) RunRelay(ctx context.Context) error {
	if r, ok := s.relay.(*redisRelay); ok {
		return r.Run(ctx)
	}
	<-ctx.Done()
	return nil
}

func (s *Server) SeedCards(ctx context.Context, path string) (int, error) {
	return s.catalog.LoadCSV(ctx, path)
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), s.identify())

	router.GET("/", s.handleHome)
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	api.POST("/auth/anonymous", s.handleAnonymousAuth)
	api.GET("/auth/session", s.handleSession)

	api.POST("/rooms", s.handleCreateRoom)
	rooms := api.Group("/rooms/:code")
	rooms.GET("", s.handleGetRoom)
	rooms.GET("/qr", s.handleRoomQR)
	rooms.POST("/join", s.handleJoinRoom)
	rooms.POST("/leave", s.handleLeaveRoom)
	rooms.PATCH("/settings", s.handleUpdateSettings)
	rooms.POST("/start", s.handleStartGame)
	rooms.POST("/submit", s.handleSubmitCard)
	rooms.POST("/pick-winner", s.handlePickWinner)
	rooms.POST("/timeout", s.handleRoundTimeout)

	video := rooms.Group("/video")
	video.GET("/participants", s.handleVideoParticipants)
	video.POST("/join", s.handleVideoJoin)
	video.POST("/leave", s.handleVideoLeave)
	video.POST("/media", s.handleVideoMedia)
	video.GET("/signals", s.handleDrainSignals)
	video.POST("/signals", s.handleSendSignal)
	video.POST("/cleanup", s.handleVideoCleanup)
	api.GET("/video/ice-servers", s.handleICEServers)

	api.GET("/packs", s.handleListPacks)
	api.POST("/packs", s.handleCreatePack)
	api.GET("/packs/:id", s.handleGetPack)
	api.PATCH("/packs/:id/toggle", s.handleTogglePack)
	api.DELETE("/packs/:id", s.handleDeletePack)
	api.POST("/packs/:id/import", s.handleImportPack)
	api.GET("/cards", s.handleListCards)
	api.POST("/cards", s.handleCreateCard)

	router.GET("/ws/rooms/:code", s.handleRoomWebsocket)
	router.GET("/ws/rooms/:code/video", s.handleVideoWebsocket)
	return router
}
