package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signal-bridge/internal/audit"
	"signal-bridge/internal/events"
	"signal-bridge/internal/executor"
	"signal-bridge/internal/strategy"
	"signal-bridge/pkg/db"
)

// Server wires HTTP endpoints around the execution engine.
type Server struct {
	Router       *gin.Engine
	DB           *db.Database
	Bus          *events.Bus
	Resolver     *strategy.Resolver
	Orchestrator *executor.Orchestrator
	Audit        *audit.Recorder
	KeyManager   KeyManager
	JWTSecret    string
}

// KeyManager encrypts credentials before they reach the store.
type KeyManager interface {
	Encrypt(plaintext string) (string, error)
}

func NewServer(database *db.Database, bus *events.Bus, resolver *strategy.Resolver, orch *executor.Orchestrator, recorder *audit.Recorder, km KeyManager, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(60 * time.Second)) // sequential venue calls need headroom
	r.Use(CORSMiddleware())

	s := &Server{
		Router:       r,
		DB:           database,
		Bus:          bus,
		Resolver:     resolver,
		Orchestrator: orch,
		Audit:        recorder,
		KeyManager:   km,
		JWTSecret:    jwtSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	// The signal entrypoint. Keyed by owner ID; alert senders cannot carry
	// an Authorization header.
	s.Router.POST("/webhook/:ownerId", s.handleWebhook)
	s.Router.GET("/webhook/:ownerId", s.webhookUsage)

	api := s.Router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.listStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.PUT("/strategies/:id", s.updateStrategy)

			protected.GET("/accounts", s.listAccounts)
			protected.POST("/accounts", s.createAccount)
			protected.DELETE("/accounts/:id", s.deactivateAccount)

			protected.GET("/audits", s.listAudits)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "error": message})
}
