package repository

import (
	"context"

	"bookworm/annotations-service/internal/app/annotations/entity"
)

// CommentRepository определяет методы для журнала комментариев в MongoDB
// Журнал append-only: комментарии не редактируются и не удаляются
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	GetByBookID(ctx context.Context, bookID string) ([]entity.Comment, error)
}

// RatingRepository определяет методы для таблицы оценок в MongoDB
// Единственная операция записи - upsert по ключу (book_id, user_id)
type RatingRepository interface {
	Upsert(ctx context.Context, rating *entity.Rating) error
	GetByBookID(ctx context.Context, bookID string) ([]entity.Rating, error)
	GetRatedBookIDs(ctx context.Context) ([]string, error)
}

// FavoriteRepository определяет методы для избранного в PostgreSQL
type FavoriteRepository interface {
	Upsert(ctx context.Context, entry *entity.FavoriteEntry) error
	GetByUserID(ctx context.Context, userID string) ([]entity.FavoriteEntry, error)
	Delete(ctx context.Context, userID string, bookID string) error
}

// AggregateCache кеширует агрегаты оценок в Redis
// Get возвращает (nil, nil) при промахе кеша
type AggregateCache interface {
	Get(ctx context.Context, bookID string) (*entity.RatingAggregate, error)
	Set(ctx context.Context, aggregate *entity.RatingAggregate) error
	Delete(ctx context.Context, bookID string) error
}
