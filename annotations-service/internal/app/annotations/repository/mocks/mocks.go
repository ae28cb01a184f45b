package mocks

import (
	"context"

	"bookworm/annotations-service/internal/app/annotations/entity"

	"github.com/stretchr/testify/mock"
)

// MockCommentRepository мок для CommentRepository
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) GetByBookID(ctx context.Context, bookID string) ([]entity.Comment, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Comment), args.Error(1)
}

// MockRatingRepository мок для RatingRepository
type MockRatingRepository struct {
	mock.Mock
}

func (m *MockRatingRepository) Upsert(ctx context.Context, rating *entity.Rating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *MockRatingRepository) GetByBookID(ctx context.Context, bookID string) ([]entity.Rating, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Rating), args.Error(1)
}

func (m *MockRatingRepository) GetRatedBookIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockFavoriteRepository мок для FavoriteRepository
type MockFavoriteRepository struct {
	mock.Mock
}

func (m *MockFavoriteRepository) Upsert(ctx context.Context, entry *entity.FavoriteEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockFavoriteRepository) GetByUserID(ctx context.Context, userID string) ([]entity.FavoriteEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FavoriteEntry), args.Error(1)
}

func (m *MockFavoriteRepository) Delete(ctx context.Context, userID string, bookID string) error {
	args := m.Called(ctx, userID, bookID)
	return args.Error(0)
}

// MockAggregateCache мок для AggregateCache
type MockAggregateCache struct {
	mock.Mock
}

func (m *MockAggregateCache) Get(ctx context.Context, bookID string) (*entity.RatingAggregate, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingAggregate), args.Error(1)
}

func (m *MockAggregateCache) Set(ctx context.Context, aggregate *entity.RatingAggregate) error {
	args := m.Called(ctx, aggregate)
	return args.Error(0)
}

func (m *MockAggregateCache) Delete(ctx context.Context, bookID string) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

// MockMessagePublisher мок для Kafka MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.Messages = append(m.Messages, value)
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return nil
}

// MockCatalogGateway мок для CatalogGateway
type MockCatalogGateway struct {
	mock.Mock
}

func (m *MockCatalogGateway) GetBook(ctx context.Context, bookID string) (*entity.BookSnapshot, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BookSnapshot), args.Error(1)
}
