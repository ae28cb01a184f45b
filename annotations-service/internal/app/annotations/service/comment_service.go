package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/hub"
	"bookworm/annotations-service/internal/app/annotations/infrastructure"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"
)

// CommentService обрабатывает бизнес-логику комментариев
// Координирует работу репозитория, хаба подписок и Kafka
type CommentService struct {
	commentRepo   repository.CommentRepository
	hub           *hub.Hub
	kafkaProducer infrastructure.MessagePublisher
}

// NewCommentService создает новый сервис комментариев с внедрением зависимостей
func NewCommentService(
	commentRepo repository.CommentRepository,
	h *hub.Hub,
	kafkaProducer infrastructure.MessagePublisher,
) *CommentService {
	return &CommentService{
		commentRepo:   commentRepo,
		hub:           h,
		kafkaProducer: kafkaProducer,
	}
}

// PostComment публикует комментарий к книге
// 1. Валидирует текст и identity до обращения к хранилищу
// 2. Добавляет комментарий в журнал книги в MongoDB
// 3. Уведомляет хаб подписок - все открытые detail view получают
//    обновленный список, включая сессию автора
// 4. Отправляет событие COMMENT_CREATED в Kafka
func (s *CommentService) PostComment(ctx context.Context, identity *entity.Identity, bookID string, text string) (*entity.Comment, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrUnauthenticated
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	comment := &entity.Comment{
		BookID:    bookID,
		UserID:    identity.UserID,
		UserName:  identity.DisplayName,
		AvatarURL: identity.AvatarURL,
		Text:      text,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to post comment: %w: %w", ErrStoreUnavailable, err)
	}

	s.hub.Notify(bookID, hub.AspectComments)
	metrics.CommentsPosted.Inc()

	event := entity.AnnotationEvent{
		EventType: entity.EventCommentCreated,
		BookID:    comment.BookID,
		UserID:    comment.UserID,
		CommentID: comment.ID.Hex(),
		Timestamp: time.Now(),
	}

	if err := s.publishEvent(ctx, event); err != nil {
		// Комментарий уже записан, проблемы с Kafka не критичны
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to publish comment created event")
	}

	return comment, nil
}

// GetComments получает текущий журнал комментариев книги
// Список всегда отсортирован: created_at по убыванию, при равенстве id по убыванию
func (s *CommentService) GetComments(ctx context.Context, bookID string) ([]entity.Comment, error) {
	comments, err := s.commentRepo.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w: %w", ErrStoreUnavailable, err)
	}

	return comments, nil
}

// Subscribe открывает live-подписку на журнал комментариев книги
// Сразу доставляет полный текущий список, затем полный обновленный список
// на каждое изменение (замена всего представления, не диффы)
func (s *CommentService) Subscribe(ctx context.Context, bookID string, deliver func([]entity.Comment) error) *hub.Subscription {
	return s.hub.Subscribe(bookID, hub.AspectComments, func() error {
		comments, err := s.commentRepo.GetByBookID(ctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to load comments for delivery: %w", err)
		}
		return deliver(comments)
	})
}

// publishEvent отправляет событие в Kafka с ключом book_id,
// чтобы события одной книги сохраняли порядок в партиции
func (s *CommentService) publishEvent(ctx context.Context, event entity.AnnotationEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation event: %w", err)
	}

	if err := s.kafkaProducer.PublishMessage(ctx, event.BookID, eventData); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	return nil
}
