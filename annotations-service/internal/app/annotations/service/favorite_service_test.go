package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/annotations-service/internal/app/annotations/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeFavoriteRepo - репозиторий избранного в памяти с семантикой
// PostgreSQL-реализации: upsert по (user_id, book_id), выдача свежими вперед
type fakeFavoriteRepo struct {
	mu      sync.Mutex
	entries map[string]map[string]entity.FavoriteEntry // user_id -> book_id -> entry
	savedAt time.Time
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{
		entries: make(map[string]map[string]entity.FavoriteEntry),
		savedAt: time.Now(),
	}
}

func (f *fakeFavoriteRepo) Upsert(_ context.Context, entry *entity.FavoriteEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byBook, ok := f.entries[entry.UserID]
	if !ok {
		byBook = make(map[string]entity.FavoriteEntry)
		f.entries[entry.UserID] = byBook
	}
	// Монотонные метки времени, чтобы порядок выдачи был детерминированным
	f.savedAt = f.savedAt.Add(time.Second)
	entry.SavedAt = f.savedAt
	byBook[entry.BookID] = *entry
	return nil
}

func (f *fakeFavoriteRepo) GetByUserID(_ context.Context, userID string) ([]entity.FavoriteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]entity.FavoriteEntry, 0, len(f.entries[userID]))
	for _, entry := range f.entries[userID] {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SavedAt.After(result[j].SavedAt)
	})
	return result, nil
}

func (f *fakeFavoriteRepo) Delete(_ context.Context, userID string, bookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byBook := f.entries[userID]
	if _, ok := byBook[bookID]; !ok {
		return repository.ErrFavoriteNotFound
	}
	delete(byBook, bookID)
	return nil
}

func newFavoriteServiceWithFakes() (*FavoriteService, *fakeFavoriteRepo, *mocks.MockCatalogGateway) {
	repo := newFakeFavoriteRepo()
	catalog := new(mocks.MockCatalogGateway)
	kafkaProducer := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	kafkaProducer.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return NewFavoriteService(repo, catalog, kafkaProducer), repo, catalog
}

func snapshotHobbit() entity.BookSnapshot {
	return entity.BookSnapshot{Title: "The Hobbit", CoverID: 101, AuthorName: "J.R.R. Tolkien"}
}

func TestSaveFavorite_Success(t *testing.T) {
	service, repo, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	entry, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())

	require.NoError(t, err)
	assert.Equal(t, "user-a", entry.UserID)
	assert.Equal(t, "book-1", entry.BookID)
	assert.Equal(t, "The Hobbit", entry.Title)

	favorites, err := repo.GetByUserID(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, favorites, 1)
}

func TestSaveFavorite_DoubleSaveIsIdempotent(t *testing.T) {
	service, repo, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	_, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())
	require.NoError(t, err)

	// Повторное сохранение перезаписывает снимок, дубликата не появляется
	updated := entity.BookSnapshot{Title: "The Hobbit, or There and Back Again", CoverID: 202, AuthorName: "J.R.R. Tolkien"}
	_, err = service.SaveFavorite(ctx, identityFor("user-a"), "book-1", updated)
	require.NoError(t, err)

	favorites, err := repo.GetByUserID(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "The Hobbit, or There and Back Again", favorites[0].Title)
	assert.Equal(t, int64(202), favorites[0].CoverID)
}

func TestSaveFavorite_BackfillsSnapshotFromCatalog(t *testing.T) {
	service, repo, catalog := newFavoriteServiceWithFakes()
	ctx := context.Background()

	catalog.On("GetBook", ctx, "book-1").Return(&entity.BookSnapshot{
		Title: "Dune", CoverID: 303, AuthorName: "Frank Herbert",
	}, nil)

	entry, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", entity.BookSnapshot{})

	require.NoError(t, err)
	assert.Equal(t, "Dune", entry.Title)
	assert.Equal(t, "Frank Herbert", entry.AuthorName)

	favorites, err := repo.GetByUserID(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "Dune", favorites[0].Title)
}

func TestSaveFavorite_CatalogFailureStillSaves(t *testing.T) {
	service, repo, catalog := newFavoriteServiceWithFakes()
	ctx := context.Background()

	catalog.On("GetBook", ctx, "book-1").Return(nil, errors.New("catalog unreachable"))

	entry, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", entity.BookSnapshot{})

	// Снимок остается пустым, но само сохранение не срывается
	require.NoError(t, err)
	assert.Empty(t, entry.Title)

	favorites, err := repo.GetByUserID(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, favorites, 1)
}

func TestSaveFavorite_Unauthenticated(t *testing.T) {
	service, repo, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	entry, err := service.SaveFavorite(ctx, nil, "book-1", snapshotHobbit())

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	favorites, err := repo.GetByUserID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestSaveFavorite_RepoError(t *testing.T) {
	favoriteRepo := new(mocks.MockFavoriteRepository)
	catalog := new(mocks.MockCatalogGateway)
	kafkaProducer := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	service := NewFavoriteService(favoriteRepo, catalog, kafkaProducer)

	ctx := context.Background()
	favoriteRepo.On("Upsert", ctx, mock.Anything).Return(errors.New("pq: connection refused"))

	entry, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestListFavorites_NewestFirst(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	_, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())
	require.NoError(t, err)
	_, err = service.SaveFavorite(ctx, identityFor("user-a"), "book-2", entity.BookSnapshot{Title: "Dune"})
	require.NoError(t, err)

	favorites, err := service.ListFavorites(ctx, "user-a")

	require.NoError(t, err)
	require.Len(t, favorites, 2)
	assert.Equal(t, "book-2", favorites[0].BookID)
	assert.Equal(t, "book-1", favorites[1].BookID)
}

func TestListFavorites_PerUserIsolation(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	_, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())
	require.NoError(t, err)
	_, err = service.SaveFavorite(ctx, identityFor("user-b"), "book-2", entity.BookSnapshot{Title: "Dune"})
	require.NoError(t, err)

	favoritesA, err := service.ListFavorites(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, favoritesA, 1)
	assert.Equal(t, "book-1", favoritesA[0].BookID)

	favoritesB, err := service.ListFavorites(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, favoritesB, 1)
	assert.Equal(t, "book-2", favoritesB[0].BookID)
}

func TestListFavorites_Empty(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()

	favorites, err := service.ListFavorites(context.Background(), "user-without-favorites")

	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestRemoveFavorite_Success(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()
	ctx := context.Background()

	_, err := service.SaveFavorite(ctx, identityFor("user-a"), "book-1", snapshotHobbit())
	require.NoError(t, err)

	err = service.RemoveFavorite(ctx, identityFor("user-a"), "book-1")
	require.NoError(t, err)

	favorites, err := service.ListFavorites(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestRemoveFavorite_NotFound(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()

	err := service.RemoveFavorite(context.Background(), identityFor("user-a"), "book-never-saved")

	assert.ErrorIs(t, err, ErrFavoriteNotFound)
}

func TestRemoveFavorite_Unauthenticated(t *testing.T) {
	service, _, _ := newFavoriteServiceWithFakes()

	err := service.RemoveFavorite(context.Background(), nil, "book-1")

	assert.ErrorIs(t, err, ErrUnauthenticated)
}
