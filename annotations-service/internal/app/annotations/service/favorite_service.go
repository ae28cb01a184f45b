package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/infrastructure"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"
)

// FavoriteService обрабатывает бизнес-логику избранного
type FavoriteService struct {
	favoriteRepo  repository.FavoriteRepository
	catalog       CatalogGateway
	kafkaProducer infrastructure.MessagePublisher
}

// NewFavoriteService создает новый сервис избранного с внедрением зависимостей
func NewFavoriteService(
	favoriteRepo repository.FavoriteRepository,
	catalog CatalogGateway,
	kafkaProducer infrastructure.MessagePublisher,
) *FavoriteService {
	return &FavoriteService{
		favoriteRepo:  favoriteRepo,
		catalog:       catalog,
		kafkaProducer: kafkaProducer,
	}
}

// SaveFavorite сохраняет книгу в избранное пользователя
// Идемпотентный upsert по (user_id, book_id): повторное сохранение
// перезаписывает денормализованный снимок, так что устаревшие
// title/cover самоисцеляются, дубликат не появляется.
// Пустой снимок дозаполняется из Catalog Service, best effort
func (s *FavoriteService) SaveFavorite(ctx context.Context, identity *entity.Identity, bookID string, snapshot entity.BookSnapshot) (*entity.FavoriteEntry, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrUnauthenticated
	}

	if snapshot.Title == "" {
		fetched, err := s.catalog.GetBook(ctx, bookID)
		if err != nil {
			// Снимок дозаполнится при следующем сохранении
			logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to backfill favorite snapshot from catalog")
		} else {
			snapshot = *fetched
		}
	}

	entry := &entity.FavoriteEntry{
		UserID:     identity.UserID,
		BookID:     bookID,
		Title:      snapshot.Title,
		CoverID:    snapshot.CoverID,
		AuthorName: snapshot.AuthorName,
	}

	if err := s.favoriteRepo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save favorite: %w: %w", ErrStoreUnavailable, err)
	}

	metrics.FavoritesSaved.Inc()

	event := entity.AnnotationEvent{
		EventType: entity.EventFavoriteSaved,
		BookID:    bookID,
		UserID:    identity.UserID,
		Timestamp: time.Now(),
	}

	if err := s.publishEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to publish favorite saved event")
	}

	return entry, nil
}

// ListFavorites получает избранное пользователя, свежие сохранения первыми
// Каждый вызов перечитывает текущее состояние; это pull, а не live-поток
func (s *FavoriteService) ListFavorites(ctx context.Context, userID string) ([]entity.FavoriteEntry, error) {
	favorites, err := s.favoriteRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w: %w", ErrStoreUnavailable, err)
	}

	return favorites, nil
}

// RemoveFavorite удаляет книгу из избранного пользователя
func (s *FavoriteService) RemoveFavorite(ctx context.Context, identity *entity.Identity, bookID string) error {
	if identity == nil || identity.UserID == "" {
		return ErrUnauthenticated
	}

	if err := s.favoriteRepo.Delete(ctx, identity.UserID, bookID); err != nil {
		if errors.Is(err, repository.ErrFavoriteNotFound) {
			return ErrFavoriteNotFound
		}
		return fmt.Errorf("failed to remove favorite: %w: %w", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *FavoriteService) publishEvent(ctx context.Context, event entity.AnnotationEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation event: %w", err)
	}

	if err := s.kafkaProducer.PublishMessage(ctx, event.BookID, eventData); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	return nil
}
