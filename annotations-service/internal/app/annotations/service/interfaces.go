package service

import (
	"context"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/hub"
)

// CatalogGateway - клиент внешнего Catalog Service (OpenLibrary)
// Используется только для дозаполнения снимка избранного
type CatalogGateway interface {
	GetBook(ctx context.Context, bookID string) (*entity.BookSnapshot, error)
}

type CommentServiceInterface interface {
	PostComment(ctx context.Context, identity *entity.Identity, bookID string, text string) (*entity.Comment, error)
	GetComments(ctx context.Context, bookID string) ([]entity.Comment, error)
	Subscribe(ctx context.Context, bookID string, deliver func([]entity.Comment) error) *hub.Subscription
}

type RatingServiceInterface interface {
	SubmitRating(ctx context.Context, identity *entity.Identity, bookID string, stars int) (*entity.RatingAggregate, error)
	GetAggregate(ctx context.Context, bookID string) (*entity.RatingAggregate, error)
	Subscribe(ctx context.Context, bookID string, deliver func(*entity.RatingAggregate) error) *hub.Subscription
}

type FavoriteServiceInterface interface {
	SaveFavorite(ctx context.Context, identity *entity.Identity, bookID string, snapshot entity.BookSnapshot) (*entity.FavoriteEntry, error)
	ListFavorites(ctx context.Context, userID string) ([]entity.FavoriteEntry, error)
	RemoveFavorite(ctx context.Context, identity *entity.Identity, bookID string) error
}
