package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytebot-ai/bytebot/agent/internal/application/usecase"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/monitoring"
	"github.com/bytebot-ai/bytebot/agent/internal/interfaces/http/handlers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the HTTP surface: task CRUD, lifecycle endpoints, model
// catalogue, health and metrics.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the HTTP server.
type Config struct {
	Host        string
	Port        int
	Mode        string // local, production
	ProxyModels []string
}

// NewServer creates the HTTP server.
func NewServer(cfg Config, uc *usecase.TaskUseCase, processor *service.AgentProcessor, monitor *monitoring.Monitor, logger *zap.Logger) *Server {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	taskHandler := handlers.NewTaskHandler(uc, logger)
	modelHandler := handlers.NewModelHandler(cfg.ProxyModels, logger)

	setupRoutes(router, taskHandler, modelHandler, processor, monitor)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, taskHandler *handlers.TaskHandler, modelHandler *handlers.ModelHandler, processor *service.AgentProcessor, monitor *monitoring.Monitor) {
	router.GET("/health", func(c *gin.Context) {
		snap, processing := processor.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"time":       time.Now().Unix(),
			"processing": processing,
			"state":      snap.State,
		})
	})

	router.GET("/metrics", gin.WrapH(monitor.PrometheusHandler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tasks", taskHandler.CreateTask)
		v1.GET("/tasks/:id", taskHandler.GetTask)
		v1.GET("/tasks/:id/messages", taskHandler.ListMessages)
		v1.POST("/tasks/:id/takeover", taskHandler.Takeover)
		v1.POST("/tasks/:id/resume", taskHandler.Resume)
		v1.POST("/tasks/:id/cancel", taskHandler.Cancel)

		v1.GET("/models", modelHandler.ListModels)
	}
}

// ginLogger is the zap access-log middleware.
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
