// Package server wires the application together: config, storage,
// broadcast hub, services, middleware and routes.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"poll-service/internal/config"
	"poll-service/internal/database"
	"poll-service/internal/events"
	"poll-service/internal/identity"
	"poll-service/internal/poll"
	"poll-service/internal/server/middleware"
	"poll-service/internal/services"
	"poll-service/internal/websocket"
)

type App struct {
	router *gin.Engine
	server *http.Server

	mongo *database.MongoDB
	redis *database.RedisClient
	hub   *websocket.Hub
	kafka *events.KafkaPublisher
}

func NewApp(cfg *config.Config) (*App, error) {
	mongoDB, err := database.NewMongoConnection(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}

	store := poll.NewMongoStore(mongoDB.DB)
	if err := store.EnsureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub()
	go hub.Run()

	broadcasters := events.Fanout{hub}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		broadcasters = append(broadcasters, kafkaPublisher)
	}

	guestTokens := identity.NewGuestTokens(cfg.Auth.GuestSecret, cfg.Auth.GuestExpire)
	pollService := poll.NewService(store, broadcasters)
	pollHandler := poll.NewHandler(pollService)
	guestHandler := NewGuestHandler(guestTokens)

	redisService := services.NewRedisService(redisClient)
	rateLimiter := middleware.NewRateLimitMiddleware(redisService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LogAPI())
	router.Use(middleware.CORS())
	router.Use(middleware.Identity(guestTokens))

	SetupRoutes(router, cfg, pollHandler, guestHandler, rateLimiter, hub)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		router: router,
		server: srv,
		mongo:  mongoDB,
		redis:  redisClient,
		hub:    hub,
		kafka:  kafkaPublisher,
	}, nil
}

func (a *App) Run() error {
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, drains in-flight requests and
// releases external resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)

	a.hub.Stop()
	if a.kafka != nil {
		a.kafka.Close()
	}
	a.redis.Close()
	a.mongo.Close(ctx)

	return err
}
