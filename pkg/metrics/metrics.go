package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
// Пример запроса PromQL: rate(http_requests_total{service="annotations"}[5m])
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
// Пример: histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики (MongoDB и PostgreSQL)
// =============================================================================

// DbQueryDuration - время выполнения запросов к хранилищу
var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "collection"},
)

// DbErrors - счётчик ошибок хранилища
var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики (кеш агрегатов оценок)
// =============================================================================

// RedisCacheHits - попадания в кеш агрегатов
var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

// RedisCacheMisses - промахи кеша агрегатов
var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

// RedisOperationDuration - время операций Redis
var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

// RedisErrors - ошибки Redis
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики (события annotation_events)
// =============================================================================

// KafkaMessagesProduced - отправленные сообщения
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaProduceDuration - время отправки сообщения
var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - ошибки Kafka
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Business Метрики (специфичные для BookWorm Annotations)
// =============================================================================

// CommentsPosted - опубликованные комментарии
var CommentsPosted = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "annotations_comments_posted_total",
		Help: "Total number of comments posted",
	},
)

// RatingsSubmitted - распределение выставленных оценок
var RatingsSubmitted = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "annotations_rating_stars",
		Help:    "Distribution of submitted star ratings",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
)

// FavoritesSaved - сохранения в избранное (включая повторные upsert)
var FavoritesSaved = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "annotations_favorites_saved_total",
		Help: "Total number of favorite save operations",
	},
)

// LiveSubscribers - активные live-подписки по аспектам
var LiveSubscribers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "annotations_live_subscribers",
		Help: "Current number of live subscriptions",
	},
	[]string{"aspect"}, // comments, rating_aggregate
)

// HubNotifications - уведомления об изменениях, разосланные хабом
var HubNotifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annotations_hub_notifications_total",
		Help: "Total number of change notifications fanned out by the hub",
	},
	[]string{"aspect"},
)

// SubscriptionDeliveryErrors - неудачные доставки подписчикам
// Каждая такая ошибка означает снятую подписку
var SubscriptionDeliveryErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annotations_subscription_delivery_errors_total",
		Help: "Total number of failed deliveries to live subscribers",
	},
	[]string{"aspect"},
)

// AggregatesReconciled - агрегаты, исправленные фоновой сверкой
var AggregatesReconciled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annotations_aggregates_reconciled_total",
		Help: "Total number of rating aggregates checked by the reconciler",
	},
	[]string{"result"}, // ok, repaired, failed
)
