package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dananaoo/bazarlink/chat-service/internal/assignment"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/broadcast"
	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	chatgrpc "github.com/dananaoo/bazarlink/chat-service/internal/grpc"
	"github.com/dananaoo/bazarlink/chat-service/internal/handler"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
	"github.com/dananaoo/bazarlink/chat-service/internal/kafka"
	"github.com/dananaoo/bazarlink/chat-service/internal/ratelimit"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/chat-service/internal/revalidate"
	"github.com/dananaoo/bazarlink/chat-service/internal/sequencer"
	"github.com/dananaoo/bazarlink/chat-service/internal/service"
	"github.com/dananaoo/bazarlink/pkg/database"
	"github.com/dananaoo/bazarlink/pkg/jwt"
	pkglog "github.com/dananaoo/bazarlink/pkg/log"
	"github.com/dananaoo/bazarlink/pkg/middleware"
	"github.com/dananaoo/bazarlink/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-service",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	// Database
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	models := []any{&domain.MessageModel{}}
	if cfg.Database.Driver == "sqlite" {
		// links and users are owned by the account service everywhere else
		models = append(models, &domain.UserModel{}, &domain.LinkModel{})
	}
	if err := database.AutoMigrate(db, models...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Credentials and access
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure token verification")
	}
	messages := repository.NewGormMessageRepository(db)
	links := repository.NewGormLinkRepository(db)
	gate := authz.NewGate(tokens, repository.NewGormUserRepository(db), links)

	// Redis: link status events and send rate limiting
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	var statusEvents pubsub.Subscriber
	if cfg.Redis.Enabled {
		client, err := pubsub.NewRedisClient(ctx, cfg.Redis.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without status events and rate limiting")
		} else {
			defer client.Close()
			bus := pubsub.NewRedisPubSub(client)
			defer bus.Close()
			statusEvents = bus

			if cfg.RateLimit.Enabled {
				limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.Prefix, cfg.RateLimit.Limit, cfg.RateLimit.Window)
			}
			logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
		}
	}

	// Kafka
	var producer kafka.MessageProducer = kafka.NopProducer{}
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		producer = p
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}
	defer producer.Close()

	// Chat core
	wsHub := hub.NewHub(cfg.WebSocket)
	arena := sequencer.NewArena(wsHub.Active, cfg.Chat.SequencerIdleGrace, cfg.Chat.SequencerQueueSize)
	chatSvc := service.NewChatService(wsHub, gate, arena, broadcast.NewEngine(wsHub), messages, producer, limiter, cfg.Chat)
	historySvc := service.NewHistoryService(gate, messages, cfg.Chat)
	assignments := assignment.NewManager(links)
	revalidator := revalidate.NewRevalidator(wsHub, gate, links, chatSvc, statusEvents, cfg.Redis.StatusChannel, cfg.Chat.RevalidateInterval)

	// gRPC health
	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	grpcServer, healthServer, err := chatgrpc.StartHealthServer(grpcAddr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start grpc server")
	}

	// HTTP
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket).RegisterRoutes(api)
	handler.NewHTTPHandler(historySvc, assignments).RegisterRoutes(api, middleware.NewAuthMiddleware(gate.Subjects()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", addr).Str("driver", cfg.Database.Driver).Msg("chat service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return wsHub.RunSweeper(gctx)
	})
	g.Go(func() error {
		return revalidator.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down chat service")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server forced to shutdown")
		}
		// Let queued messages land before the sockets go away.
		if err := chatSvc.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("message sequencers did not drain")
		}
		wsHub.Shutdown(websocket.CloseGoingAway, "server shutting down")
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat service stopped with error")
		return
	}
	logger.Info().Msg("chat service stopped")
}
