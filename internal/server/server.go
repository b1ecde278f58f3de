package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/ai"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/content"
	"github.com/draftforge/draftforge/internal/service"
	"github.com/draftforge/draftforge/internal/service/drive"
	"github.com/draftforge/draftforge/internal/service/images"
	"github.com/draftforge/draftforge/internal/service/wordpress"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store        service.Store
	Orchestrator *service.Orchestrator
	Recovery     *service.RecoveryService
	Scheduler    *service.Scheduler

	aiClient ai.Client
}

func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := service.NewStore(db)

	// Widget catalog is loaded once at startup and read-only after.
	catalog, err := content.LoadCatalog(cfg.Pipeline.WidgetCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load widget catalog: %w", err)
	}

	// External adapters
	source, err := drive.NewService(ctx, cfg.Drive, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize source store: %w", err)
	}

	publisher, err := wordpress.NewClient(cfg.WordPress, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publish adapter: %w", err)
	}

	aiClient, err := ai.NewGeminiClient(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}

	var generator service.ImageGenerator
	if cfg.Images.Enabled {
		gen, err := images.NewGenerator(cfg.Images, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image generator: %w", err)
		}
		generator = gen
	}

	// Initialize services
	orchestrator := service.NewOrchestrator(cfg, store, source, publisher, aiClient, generator, catalog, logger)
	recovery := service.NewRecoveryService(store, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, orchestrator, recovery)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:       cfg,
		DB:           db,
		Router:       router,
		Logger:       logger,
		Store:        store,
		Orchestrator: orchestrator,
		Recovery:     recovery,
		Scheduler:    scheduler,
		aiClient:     aiClient,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))
}

// bearerAuth gates the API behind the configured shared secret. With
// no token configured the API stays open.
func (s *Server) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.Config.Server.APIToken
		if token == "" {
			c.Next()
			return
		}

		if c.GetHeader("Authorization") != "Bearer "+token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1", s.bearerAuth())
	{
		pipeline := api.Group("/pipeline")
		{
			pipeline.POST("/run", s.handleRunPipeline)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.POST("/:id/recover", s.handleRecoverJob)
		}
	}
}

// handleRunPipeline performs one discovery+claim+run cycle. One call,
// one cycle; partial degradation (no images, no widgets) still counts
// as success because the draft was published.
func (s *Server) handleRunPipeline(c *gin.Context) {
	result, err := s.Orchestrator.RunCycle(c.Request.Context())
	if err != nil {
		s.Logger.Error("Pipeline cycle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	resp := gin.H{
		"success": result.Failed == 0,
		"message": result.Message(),
	}
	if len(result.JobIDs) > 0 {
		resp["job_id"] = result.JobIDs[0]
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, resp)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.Store.ListJobs(100)
	if err != nil {
		s.Logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.Store.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleRecoverJob(c *gin.Context) {
	job, err := s.Recovery.RecoverJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job, "message": "Job reset, it will re-run on the next cycle"})
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.aiClient != nil {
		if err := s.aiClient.Close(); err != nil {
			s.Logger.Warn("Failed to close AI client", zap.Error(err))
		}
	}

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
