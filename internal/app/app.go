package app

import (
	"context"
	"edu_assessment_backend/internal/config"
	"edu_assessment_backend/internal/controller"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/cache"
	"edu_assessment_backend/pkg/configwatcher"
	"edu_assessment_backend/pkg/database"
	"edu_assessment_backend/pkg/logger"
	"edu_assessment_backend/pkg/monitoring"
	"edu_assessment_backend/pkg/security"
	"edu_assessment_backend/pkg/tracing"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the shared short-lived state: draft answers and the sweep lock.
type Store interface {
	service.DraftBuffer
	service.Locker
	controller.Pinger
}

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	Store  Store

	services   *services
	limiter    *security.RateLimiter
	tracer     *sdktrace.TracerProvider
	stop       context.CancelFunc
	background sync.WaitGroup
}

type repositories struct {
	subject    *repository.SubjectRepository
	test       *repository.TestRepository
	attempt    *repository.AttemptRepository
	enrollment *repository.EnrollmentRepository
}

type services struct {
	storage    *service.StorageService
	supervisor *service.Supervisor
	test       *service.TestService
	attempt    *service.AttemptService
	grading    *service.GradingService
	progress   *service.ProgressService
	sweeper    *service.Sweeper
}

type controllers struct {
	test     *controller.TestController
	attempt  *controller.AttemptController
	grade    *controller.GradeController
	progress *controller.ProgressController
	admin    *controller.AdminController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		subject:    repository.NewSubjectRepository(db),
		test:       repository.NewTestRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(context.Background(), &cfg.Storage)
	s.supervisor = service.NewSupervisor(cfg.Assessment.SubmitTolerance())
	s.test = service.NewTestService(repos.test, repos.attempt, repos.subject)
	s.attempt = service.NewAttemptService(
		repos.test,
		repos.attempt,
		repos.enrollment,
		a.Store,
		s.supervisor,
		cfg.Assessment.DraftTTL(),
	)
	s.grading = service.NewGradingService(repos.test, repos.attempt)
	s.progress = service.NewProgressService(repos.enrollment, repos.subject)
	s.sweeper = service.NewSweeper(
		repos.attempt,
		s.attempt,
		a.Store,
		s.supervisor,
		cfg.Assessment.SweepBatchSize,
		2*cfg.Assessment.SweepInterval(),
	)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		test:     controller.NewTestController(s.test),
		attempt:  controller.NewAttemptController(s.attempt, s.storage),
		grade:    controller.NewGradeController(s.grading),
		progress: controller.NewProgressController(s.progress),
		admin:    controller.NewAdminController(s.progress),
		health:   controller.NewHealthController(a.DB, a.Store),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, window)
		router.Use(a.limiter.Middleware())
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// applyConfig pushes the hot-reloadable knobs of a reloaded config.
func (a *App) applyConfig(cfg *config.Config) {
	logger.SetMode(cfg.Server.Mode)
	a.services.supervisor.SetTolerance(cfg.Assessment.SubmitTolerance())
	logger.Log.Info("Config applied",
		zap.String("mode", cfg.Server.Mode),
		zap.Duration("submitTolerance", cfg.Assessment.SubmitTolerance()))
}

// startBackgroundTasks runs the expired-attempt sweep until ctx is done.
func (a *App) startBackgroundTasks(ctx context.Context) {
	interval := a.Config.Assessment.SweepInterval()
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.services.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Log.Error("attempt sweep error", zap.Error(err))
				}
			}
		}
	}()

	if a.Config.Path != "" {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			if err := configwatcher.WatchConfig(ctx, a.Config.Path, a.applyConfig); err != nil {
				logger.Log.Warn("Config watcher stopped", zap.Error(err))
			}
		}()
	}
}

// Assemble wires an App around an open database and store without starting
// any background work.
func Assemble(cfg *config.Config, db *gorm.DB, store Store) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Store:  store,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg)
	controllers := app.initControllers(app.services)

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}
	return app
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg.Server.Mode)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	var store Store
	if rdb != nil {
		store = cache.NewRedisCache(rdb)
	} else {
		logger.Log.Warn("Redis disabled, drafts and sweep lock are kept in memory")
		store = cache.NewMemoryCache()
	}

	// 监控初始化
	monitoring.Init()

	app := Assemble(cfg, db, store)
	app.Redis = rdb

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("assessment-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	return app, nil
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	cancel()
	a.background.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
