package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"OrgVerify/config"
	"OrgVerify/handlers"
	"OrgVerify/limiter"
	custommiddleware "OrgVerify/middleware"
	"OrgVerify/realtime"
	orgredis "OrgVerify/redis"
	"OrgVerify/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Deps are the external resources the server is built on. Redis may be nil:
// presence and rate limits then stay local to the instance.
type Deps struct {
	DB        *gorm.DB
	Redis     *goredis.Client
	Publisher services.EventPublisher
}

type Server struct {
	Echo          *echo.Echo
	DB            *gorm.DB
	Config        *config.Config
	Hub           *realtime.Hub
	Presence      *orgredis.Presence // nil without redis
	Directory     *services.DirectoryService
	Notifications *services.NotificationService

	ChatWebSocketHandler *handlers.ChatWebSocketHandler
	MessageHandler       *handlers.MessageHandler
	SupportHandler       *handlers.SupportHandler
	NotificationHandler  *handlers.NotificationHandler

	apiLimiter limiter.Limiter
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Publisher == nil {
		deps.Publisher = services.NoopPublisher
	}

	var presence *orgredis.Presence
	var sendLimiter, apiLimiter limiter.Limiter
	if deps.Redis == nil {
		log.Warn().Msg("redis not configured, presence and rate limits are local to this instance")
		sendLimiter = limiter.NewLocalManager(cfg.Chat.RateLimit, cfg.Chat.RateWindow)
		apiLimiter = limiter.NewLocalManager(cfg.Chat.APIRateLimit, cfg.Chat.APIRateWindow)
	} else {
		presence = orgredis.NewPresence(deps.Redis, uuid.NewString(), cfg.Redis.PresenceTTL)

		strategy, err := limiter.NewStrategy(cfg.Chat.RateStrategy)
		if err != nil {
			return nil, err
		}
		sendLimiter = limiter.NewManager(deps.Redis, strategy, "send", cfg.Chat.RateLimit, cfg.Chat.RateWindow)
		apiLimiter = limiter.NewManager(deps.Redis, &limiter.FixedWindowStrategy{}, "api", cfg.Chat.APIRateLimit, cfg.Chat.APIRateWindow)
	}

	var tracker realtime.PresenceTracker
	if presence != nil {
		tracker = presence
	}
	hub := realtime.NewHub(tracker)
	directory := services.NewDirectoryService(deps.DB, &cfg.Auth)
	notifications := services.NewNotificationService(
		services.NewNotificationStore(deps.DB), directory, hub, deps.Publisher, cfg.Kafka.EventsTopic)
	messages := services.NewMessageService(directory, services.NewConversationStore(deps.DB), hub, notifications, services.MessageServiceOptions{
		Publisher:     deps.Publisher,
		Topic:         cfg.Kafka.EventsTopic,
		MaxBodyLength: cfg.Chat.MaxBodyLength,
	})
	balancer := services.NewAdminBalancer(deps.DB)

	// 初始化 Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	s := &Server{
		Echo:          e,
		DB:            deps.DB,
		Config:        cfg,
		Hub:           hub,
		Presence:      presence,
		Directory:     directory,
		Notifications: notifications,

		ChatWebSocketHandler: handlers.NewChatWebSocketHandler(hub, messages, sendLimiter, cfg.Server.AllowedOrigins, cfg.Chat.SendBuffer),
		MessageHandler:       handlers.NewMessageHandler(messages, cfg.Chat.ConversationMax),
		SupportHandler:       handlers.NewSupportHandler(balancer),
		NotificationHandler:  handlers.NewNotificationHandler(notifications),

		apiLimiter: apiLimiter,
	}

	// --- 设置路由 ---
	authMiddleware := custommiddleware.AuthMiddleware(directory, cfg.Server.AuthTimeout)
	s.SetupRoutes(authMiddleware, custommiddleware.AdminAuthMiddleware())
	return s, nil
}

// OpenDatabase opens the configured gorm dialect with a zerolog backed logger.
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then disconnects every live connection
// so presence is cleared before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.Hub.Close()
	return err
}
