package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "direct_chat_service/cmd/chat_service/docs" // 引入生成的 Swagger 文档
	"direct_chat_service/internal/chat/app"
	chatDomain "direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/internal/chat/router"
	memberApp "direct_chat_service/internal/member/app"
	memberDomain "direct_chat_service/internal/member/domain"
	memberRepo "direct_chat_service/internal/member/repository"
	"direct_chat_service/pkg"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/database"
	errprocess "direct_chat_service/pkg/err"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"
	testtool "direct_chat_service/pkg/test_tool"
	"direct_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

const (
	memberCacheTTL       = 10 * time.Minute
	healthRefreshPeriod  = 15 * time.Second
	defaultRetryInterval = 2
	defaultRetryCount    = 5
)

var eventDrivers = []string{"kafka", "rabbitmq", "none", ""}

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	logger.Log.SetDebugMode(cfg.Debug)
	token.SetSecret(cfg.JWT.Secret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	testtool.StartPprof()

	// 1. Mongo (rooms, messages)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: seconds(orDefault(cfg.MongoSQL.RetryInterval, defaultRetryInterval)),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoSQL.Host),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())

	roomRepo := repository.NewMongoRoomRepository(mongo.Database)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	if err := roomRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure room indexes", zap.Error(err))
	}
	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure message indexes", zap.Error(err))
	}

	// 2. Redis (pub/sub, member cache)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		MasterName:    masterName,
		SentinelAddrs: sentinel,
		DB:            cfg.Redis.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	pubsub := repository.NewRedisPubSub(redisClient)

	// 3. PostgreSQL (member directory)
	pgURI := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: seconds(orDefault(cfg.PostgreSQL.RetryInterval, defaultRetryInterval)),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries",
			zap.String("host", cfg.PostgreSQL.Host),
			zap.Error(err),
		)
	}
	defer pool.Close()

	directoryUC := memberApp.NewDirectoryUseCase(
		memberRepo.NewMemberRepository(pool),
		database.NewRedisRepository[memberDomain.Member](redisClient),
		memberCacheTTL,
	)

	// 4. MinIO (message images)
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.BucketName,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    orDefault(cfg.MinIO.RetryCount, defaultRetryCount),
		RetryInterval: seconds(orDefault(cfg.MinIO.RetryInterval, defaultRetryInterval)),
	})
	if err != nil {
		logger.Log.Fatal("connect minio", zap.String("endpoint", cfg.MinIO.Endpoint), zap.Error(err))
	}
	images := repository.NewMinIOImageStore(minioClient, cfg.MinIO.URLExpiry)

	// 5. Event bus
	events, err := newEventPublisher(cfg.Events)
	if err != nil {
		logger.Log.Fatal("event bus", zap.String("driver", cfg.Events.Driver), zap.Error(err))
	}
	defer events.Close()

	// 6. UseCases
	notifier := app.NewNotifier(pubsub, events)
	gate := app.NewModerationGate(repository.NewHTTPModerationClient(cfg.Moderation))
	reconciler := app.NewSummaryReconciler(roomRepo, msgRepo, notifier)
	store := app.NewMessageStore(roomRepo, msgRepo, gate, reconciler, notifier)
	feed := app.NewMessageFeed(msgRepo, pubsub)
	chatUC := app.NewChatUseCase(roomRepo, partyDirectory(directoryUC), store, gate, feed, images, notifier)

	// 7. gRPC health
	go serveHealth(ctx, cfg.GRPCPort, map[string]database.HealthCheck{
		"mongo": mongo.Ping,
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"pg":    pool.Ping,
	})

	// 8. Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	limiter := middlewares.NewMemberLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	router.RegisterRoutes(r, router.Handlers{
		Websocket: app.NewChatWebsocketHandler(chatUC, pubsub, limiter, cfg.MinIO.MaxImageBytes),
		REST:      app.NewChatRESTHandler(chatUC, cfg.MinIO.MaxImageBytes),
		Directory: memberApp.NewDirectoryHandler(directoryUC),
		Limiter:   limiter,
	})

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		if err := r.Shutdown(); err != nil {
			logger.Log.Errorf("fiber shutdown", err)
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

// partyDirectory chat parties are reachable members
func partyDirectory(directory memberApp.DirectoryUseCase) app.PartyDirectory {
	return app.PartyDirectoryFunc(func(ctx context.Context, partyID string) (*chatDomain.Party, error) {
		m, err := directory.FindMember(ctx, partyID)
		if errors.Is(err, memberDomain.ErrMemberNotFound) {
			return nil, chatDomain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: member directory: %v", chatDomain.ErrStoreUnavailable, err)
		}
		return &chatDomain.Party{
			ID:          m.MemberID,
			Email:       m.Email,
			DisplayName: m.DisplayName,
			AvatarURL:   m.AvatarURL,
		}, nil
	})
}

func newEventPublisher(c config.EventConfig) (repository.EventPublisher, error) {
	if !pkg.Contains(eventDrivers, c.Driver) {
		return nil, errprocess.Set(fmt.Sprintf("unknown event driver %q", c.Driver))
	}
	retryCount := orDefault(c.RetryCount, defaultRetryCount)
	retryInterval := seconds(orDefault(c.RetryInterval, defaultRetryInterval))

	switch c.Driver {
	case "kafka":
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       c.Brokers,
			Topic:         c.Topic,
			RetryCount:    retryCount,
			RetryInterval: retryInterval,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewKafkaEventPublisher(writer), nil

	case "rabbitmq":
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    c.AMQPURL,
			RetryCount:    retryCount,
			RetryInterval: retryInterval,
		})
		if err != nil {
			return nil, err
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, retryCount, retryInterval)
		if err != nil {
			return nil, err
		}
		if err := database.DeclareTopicExchange(ch, c.Exchange); err != nil {
			return nil, err
		}
		return repository.NewRabbitEventPublisher(database.NewRabbitRepository(ch), c.Exchange), nil
	}

	logger.Log.Info("chat events disabled")
	return repository.NewNoopEventPublisher(), nil
}

func serveHealth(ctx context.Context, port string, checks map[string]database.HealthCheck) {
	if port == "" {
		return
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.Log.Errorf("health listen", err, zap.String("port", port))
		return
	}
	hs := database.NewHealthServer("chat_service", checks)
	if err := hs.Serve(ctx, lis, healthRefreshPeriod); err != nil {
		logger.Log.Errorf("health serve", err)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// seconds config retry intervals are whole seconds
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
