package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookworm/annotations-service/internal/app/annotations/config"
	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/handler"
	"bookworm/annotations-service/internal/app/annotations/hub"
	catalog "bookworm/annotations-service/internal/app/annotations/infrastructure/http"
	"bookworm/annotations-service/internal/app/annotations/infrastructure/messaging"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/annotations-service/internal/app/annotations/service"
	"bookworm/annotations-service/internal/app/annotations/worker"
	"bookworm/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init("annotations-service", logLevel)

	logstashAddr := os.Getenv("LOGSTASH_ADDR")
	if logstashAddr != "" {
		if err := logger.InitLogstash(logstashAddr, "annotations-service", logLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", logstashAddr).Msg("Connected to Logstash")
		}
	}

	// === MONGODB: журналы комментариев и таблица оценок ===
	mongoClient, err := connectMongoDB(cfg.MongoDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	logger.Info().
		Str("database", cfg.MongoDB.Database).
		Msg("Connected to MongoDB")

	mongoDB := mongoClient.Database(cfg.MongoDB.Database)

	// === POSTGRESQL: избранное пользователей ===
	db, err := connectPostgres(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	if err := db.AutoMigrate(&entity.FavoriteEntry{}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate favorites schema")
	}
	logger.Info().
		Str("database", cfg.Database.DBName).
		Msg("Connected to PostgreSQL")

	// === REDIS: кеш агрегатов оценок ===
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	}
	logger.Info().Str("addr", cfg.Redis.Address()).Msg("Connected to Redis")

	// === KAFKA: события annotation_events ===
	kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaProducer.Close()
	logger.Info().
		Str("topic", cfg.Kafka.Topic).
		Msg("Initialized Kafka producer")

	// === СБОРКА СЛОЕВ ===
	subscriptionHub := hub.New()

	commentRepo := repository.NewCommentRepository(mongoDB)
	ratingRepo := repository.NewRatingRepository(mongoDB)
	favoriteRepo := repository.NewFavoriteRepository(db)
	aggregateCache := repository.NewAggregateCache(redisClient, cfg.Redis.AggregateTTL)

	catalogClient := catalog.NewCatalogClient(cfg.Catalog.BaseURL)

	commentService := service.NewCommentService(commentRepo, subscriptionHub, kafkaProducer)
	ratingService := service.NewRatingService(ratingRepo, aggregateCache, subscriptionHub, kafkaProducer)
	favoriteService := service.NewFavoriteService(favoriteRepo, catalogClient, kafkaProducer)

	// === ФОНОВАЯ СВЕРКА КЕША АГРЕГАТОВ ===
	reconciler := worker.NewAggregateReconciler(ratingRepo, aggregateCache, subscriptionHub)
	if err := reconciler.Start(context.Background(), cfg.Reconciler.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start aggregate reconciler")
	}
	defer reconciler.Stop()

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	annotationHandler := handler.NewAnnotationHandler(commentService, ratingService, favoriteService)
	liveHandler := handler.NewLiveHandler(commentService, ratingService)
	router := handler.SetupRoutes(annotationHandler, liveHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		// Live-соединения держатся дольше обычного запроса
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Annotations Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Annotations Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Annotations Service stopped gracefully")
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err = mongo.Connect(ctx, clientOptions)
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pingCancel()

			if err = client.Ping(pingCtx, nil); err == nil {
				return client, nil
			}
		}

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}

func connectPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else {
				pingErr := sqlDB.Ping()
				if pingErr != nil {
					err = pingErr
				} else {
					sqlDB.SetMaxOpenConns(25)
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetConnMaxLifetime(5 * time.Minute)
					sqlDB.SetConnMaxIdleTime(1 * time.Minute)
					return db, nil
				}
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to PostgreSQL, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}
