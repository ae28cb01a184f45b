package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/hub"
	"bookworm/annotations-service/internal/app/annotations/infrastructure"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"
)

// RatingService обрабатывает бизнес-логику оценок и их агрегатов
type RatingService struct {
	ratingRepo    repository.RatingRepository
	cache         repository.AggregateCache
	hub           *hub.Hub
	kafkaProducer infrastructure.MessagePublisher
}

// NewRatingService создает новый сервис оценок с внедрением зависимостей
func NewRatingService(
	ratingRepo repository.RatingRepository,
	cache repository.AggregateCache,
	h *hub.Hub,
	kafkaProducer infrastructure.MessagePublisher,
) *RatingService {
	return &RatingService{
		ratingRepo:    ratingRepo,
		cache:         cache,
		hub:           h,
		kafkaProducer: kafkaProducer,
	}
}

// ComputeAggregate считает агрегат по полному набору оценок книги
// Mean хранится точным float64; округление до одного знака происходит
// только на границе презентации, поэтому ошибка округления не накапливается
func ComputeAggregate(bookID string, ratings []entity.Rating) *entity.RatingAggregate {
	aggregate := &entity.RatingAggregate{
		BookID: bookID,
		Count:  len(ratings),
	}

	if len(ratings) == 0 {
		return aggregate
	}

	sum := 0
	for _, r := range ratings {
		sum += r.Stars
	}
	mean := float64(sum) / float64(len(ratings))
	aggregate.Mean = &mean

	return aggregate
}

// SubmitRating выставляет оценку книге от имени identity
// 1. Валидирует stars (1..5) до обращения к хранилищу
// 2. Атомарный upsert по ключу (book_id, user_id): повторная оценка того же
//    пользователя заменяет прежнюю, count растет максимум на единицу
// 3. Пересчитывает агрегат полным чтением набора оценок и публикует его
// Пользователь пишет только собственную оценку: ключ берется из identity
func (s *RatingService) SubmitRating(ctx context.Context, identity *entity.Identity, bookID string, stars int) (*entity.RatingAggregate, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrUnauthenticated
	}

	if stars < 1 || stars > 5 {
		return nil, ErrInvalidStars
	}

	rating := &entity.Rating{
		BookID:   bookID,
		UserID:   identity.UserID,
		UserName: identity.DisplayName,
		Stars:    stars,
	}

	if err := s.ratingRepo.Upsert(ctx, rating); err != nil {
		return nil, fmt.Errorf("failed to submit rating: %w: %w", ErrStoreUnavailable, err)
	}

	aggregate, err := s.recompute(ctx, bookID)
	if err != nil {
		return nil, err
	}

	s.hub.Notify(bookID, hub.AspectRatingAggregate)
	metrics.RatingsSubmitted.Observe(float64(stars))

	event := entity.AnnotationEvent{
		EventType: entity.EventRatingSubmitted,
		BookID:    bookID,
		UserID:    identity.UserID,
		Stars:     stars,
		Timestamp: time.Now(),
	}

	if err := s.publishEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to publish rating submitted event")
	}

	return aggregate, nil
}

// GetAggregate возвращает текущий агрегат книги
// Отсутствие оценок - не ошибка: count == 0, mean == nil
func (s *RatingService) GetAggregate(ctx context.Context, bookID string) (*entity.RatingAggregate, error) {
	aggregate, err := s.cache.Get(ctx, bookID)
	if err != nil {
		// Кеш недоступен - пересчитываем из авторитетного набора
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Aggregate cache read failed, recomputing")
	}
	if aggregate != nil {
		metrics.RecordCacheHit(serviceName, "aggregate")
		return aggregate, nil
	}

	metrics.RecordCacheMiss(serviceName, "aggregate")
	return s.recompute(ctx, bookID)
}

// Subscribe открывает live-подписку на агрегат оценок книги
func (s *RatingService) Subscribe(ctx context.Context, bookID string, deliver func(*entity.RatingAggregate) error) *hub.Subscription {
	return s.hub.Subscribe(bookID, hub.AspectRatingAggregate, func() error {
		aggregate, err := s.GetAggregate(ctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to load aggregate for delivery: %w", err)
		}
		return deliver(aggregate)
	})
}

// recompute пересчитывает агрегат полным чтением набора оценок книги
// и обновляет кеш. Внутреннего инкремента нет намеренно: конкурентные
// записи сходятся к одному результату независимо от порядка гонки
func (s *RatingService) recompute(ctx context.Context, bookID string) (*entity.RatingAggregate, error) {
	ratings, err := s.ratingRepo.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute aggregate: %w: %w", ErrStoreUnavailable, err)
	}

	aggregate := ComputeAggregate(bookID, ratings)

	if err := s.cache.Set(ctx, aggregate); err != nil {
		// Не даем устаревшему значению пережить неудачную запись
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to cache aggregate, invalidating")
		if delErr := s.cache.Delete(ctx, bookID); delErr != nil {
			logger.Warn().Err(delErr).Str("book_id", bookID).Msg("Failed to invalidate aggregate cache")
		}
	}

	return aggregate, nil
}

func (s *RatingService) publishEvent(ctx context.Context, event entity.AnnotationEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation event: %w", err)
	}

	if err := s.kafkaProducer.PublishMessage(ctx, event.BookID, eventData); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	return nil
}
