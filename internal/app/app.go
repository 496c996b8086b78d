package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ielts_backend/internal/config"
	"ielts_backend/internal/controller"
	"ielts_backend/internal/repository"
	"ielts_backend/internal/service"
	"ielts_backend/pkg/database"
	"ielts_backend/pkg/logger"
	"ielts_backend/pkg/monitoring"
	"ielts_backend/pkg/security"
	"ielts_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	test     *repository.TestRepository
	question *repository.QuestionRepository
	session  *repository.SessionRepository
	result   *repository.ResultRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	content     *service.ContentService
	grading     *service.GradingService
	review      *service.ReviewService
	session     *service.SessionService
	reviewQueue *service.ReviewQueue
}

type controllers struct {
	auth    *controller.AuthController
	test    *controller.TestController
	session *controller.SessionController
	result  *controller.ResultController
	review  *controller.ReviewController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// OnConfigReload is invoked by the config watcher with a freshly parsed config.
func (a *App) OnConfigReload(raw interface{}) {
	cfg, ok := raw.(*config.Config)
	if !ok {
		return
	}
	logger.Log.Info("configuration reloaded")
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		test:     repository.NewTestRepository(db),
		question: repository.NewQuestionRepository(db),
		session:  repository.NewSessionRepository(db),
		result:   repository.NewResultRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.content = service.NewContentService(repos.test, repos.question, rdb)
	s.reviewQueue = service.NewReviewQueue(rdb)
	s.grading = service.NewGradingService(
		repos.result,
		s.reviewQueue,
		service.NewBandTable(cfg.Scoring.Bands),
		cfg.Scoring.WeakAreaThreshold,
	)
	s.review = service.NewReviewService(repos.result, s.reviewQueue)
	s.session = service.NewSessionService(
		repos.session,
		repos.result,
		s.content,
		s.grading,
		service.NewRealClock(),
		cfg.Session,
	)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		test:    controller.NewTestController(s.content),
		session: controller.NewSessionController(s.session, s.storage),
		result:  controller.NewResultController(repos.result),
		review:  controller.NewReviewController(s.review),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	// 启动时先清理一次重启前超时的会话，之后每分钟巡检
	go func() {
		if err := s.session.ReconcileOverdue(context.Background()); err != nil {
			logger.Log.Error("startup session reconciliation failed", zap.Error(err))
		}
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			if err := s.session.ReconcileOverdue(context.Background()); err != nil {
				logger.Log.Error("session reconciliation failed", zap.Error(err))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ielts-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
