package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pushup-cv/server/config"
	"github.com/san-kum/pushup-cv/server/emitter"
	"github.com/san-kum/pushup-cv/server/estimator"
	"github.com/san-kum/pushup-cv/server/handlers"
	"github.com/san-kum/pushup-cv/server/middleware"
	"github.com/san-kum/pushup-cv/server/processor"
	"github.com/san-kum/pushup-cv/server/session"
	"go.uber.org/zap"
)

type Server struct {
	router         *gin.Engine
	logger         *zap.Logger
	frameProcessor *processor.FrameProcessor
	estimator      *estimator.Client
	emitter        *emitter.MQTTEmitter
	rateLimiter    *middleware.RateLimiter
	config         *config.Config
}

func main() {
	cfg := config.LoadConfig()

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := cfg.ApplyThresholdsFile(); err != nil {
		logger.Fatal("Failed to load thresholds file", zap.Error(err))
	}

	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("exercise", cfg.Exercise.Name),
			zap.Any("thresholds", cfg.Exercise.Thresholds))

		var err error
		if cfg.Security.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Security.CertFile, cfg.Security.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	server.Close(ctx)

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	newCounter, err := processor.NewCounterFactory(cfg.Exercise.Name, cfg.Exercise.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to create exercise counter: %w", err)
	}

	server := &Server{
		logger: logger,
		config: cfg,
	}

	var opts processor.Options

	if cfg.Estimator.BaseURL != "" {
		client, err := estimator.NewClient(cfg.Estimator.BaseURL, estimator.ClientConfig{
			Timeout:             cfg.Estimator.Timeout,
			MaxRetries:          cfg.Estimator.MaxRetries,
			RetryDelay:          cfg.Estimator.RetryDelay,
			HealthCheckInterval: cfg.Estimator.HealthCheckInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create estimator client: %w", err)
		}
		server.estimator = client
		opts.Estimator = client
	}

	if cfg.MQTT.Broker != "" {
		mqttEmitter := emitter.NewMQTTEmitter(emitter.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, logger)
		if err := mqttEmitter.Connect(); err != nil {
			logger.Warn("MQTT broker unavailable, events will not be published",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err))
		} else {
			server.emitter = mqttEmitter
			opts.Publisher = mqttEmitter
		}
	}

	store := session.NewStore(cfg.Session.MaxSessions, cfg.Session.TTL, logger)
	server.frameProcessor = processor.NewFrameProcessor(store, newCounter, opts, logger)

	server.rateLimiter = middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))
	router.Use(middleware.JSONBody())
	router.Use(middleware.TimeoutHandler(cfg.Security.RequestTimeout))

	wsHandler := handlers.NewWebSocketHandler(server.frameProcessor, logger)
	streamHandler := handlers.NewStreamHandler(server.frameProcessor, logger)
	if server.emitter != nil {
		streamHandler.SetEventStats(server.emitter)
	}

	setupRoutes(router, wsHandler, streamHandler, server.rateLimiter)
	server.router = router

	return server, nil
}

// Close releases everything NewServer started.
func (s *Server) Close(ctx context.Context) {
	if err := s.frameProcessor.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown frame processor", zap.Error(err))
	}

	s.rateLimiter.Shutdown()

	if s.estimator != nil {
		s.estimator.Close()
	}

	if s.emitter != nil {
		s.emitter.Close()
	}
}

func setupRoutes(router *gin.Engine, wsHandler *handlers.WebSocketHandler, streamHandler *handlers.StreamHandler, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", middleware.HealthCheck())

	router.GET("/ws", rateLimiter.RateLimit(), wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/health", middleware.HealthCheck())

		limited := api.Group("/")
		limited.Use(rateLimiter.RateLimit())
		{
			limited.POST("/sessions", streamHandler.CreateSession)
			limited.GET("/sessions/:id", streamHandler.GetSession)
			limited.POST("/sessions/:id/frames", streamHandler.ProcessFrame)
			limited.POST("/sessions/:id/image", streamHandler.ProcessImage)
			limited.POST("/sessions/:id/reset", streamHandler.ResetSession)
			limited.DELETE("/sessions/:id", streamHandler.EndSession)

			limited.GET("/stats", streamHandler.GetStats)
		}
	}
}
