package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит все настройки Annotations Service
// Комментарии и оценки живут в MongoDB, избранное - в PostgreSQL,
// кеш агрегатов - в Redis, события уходят в Kafka
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	JWT        JWTConfig
	Catalog    CatalogConfig
	Reconciler ReconcilerConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8084)
}

// MongoDBConfig - настройки подключения к MongoDB
// Хранит журналы комментариев и таблицу оценок
type MongoDBConfig struct {
	URI      string
	Database string
}

// DatabaseConfig - настройки подключения к PostgreSQL
// Хранит избранное пользователей
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig - настройки Redis для кеша агрегатов оценок
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	AggregateTTL time.Duration // TTL кешированных агрегатов
}

// KafkaConfig - настройки Kafka для событий аннотаций
type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик для COMMENT_CREATED, RATING_SUBMITTED, FAVORITE_SAVED
}

// JWTConfig - настройки для проверки JWT токенов
type JWTConfig struct {
	Secret string // Секретный ключ (должен совпадать с Auth Service)
}

// CatalogConfig - адрес внешнего Catalog Service (OpenLibrary)
type CatalogConfig struct {
	BaseURL string
}

// ReconcilerConfig - расписание фоновой сверки кеша агрегатов
type ReconcilerConfig struct {
	Schedule string // Cron-выражение, например "@every 5m"
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}

	aggregateTTL, err := time.ParseDuration(getEnv("AGGREGATE_CACHE_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGGREGATE_CACHE_TTL value: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8084"),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "annotations_service"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "bookworm"),
			Password: getEnv("DB_PASSWORD", "bookworm"),
			DBName:   getEnv("DB_NAME", "annotations_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			AggregateTTL: aggregateTTL,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "annotation_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		Catalog: CatalogConfig{
			BaseURL: getEnv("CATALOG_BASE_URL", "https://openlibrary.org"),
		},
		Reconciler: ReconcilerConfig{
			Schedule: getEnv("RECONCILER_SCHEDULE", "@every 5m"),
		},
	}, nil
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
