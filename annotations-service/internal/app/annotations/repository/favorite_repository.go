package repository

import (
	"context"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/pkg/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository создает новый репозиторий избранного
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Upsert сохраняет запись избранного по составному ключу (user_id, book_id)
// Повторное сохранение перезаписывает снимок (title, cover_id, author_name),
// строка-дубликат не появляется даже при конкурентных сохранениях:
// ON CONFLICT разрешается на стороне PostgreSQL
func (r *favoriteRepository) Upsert(ctx context.Context, entry *entity.FavoriteEntry) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, "favorites")
	defer timer.ObserveDuration()

	entry.SavedAt = time.Now()

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "cover_id", "author_name", "saved_at"}),
	}).Create(entry)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
	}
	return result.Error
}

// GetByUserID получает избранное пользователя, свежие сохранения первыми
func (r *favoriteRepository) GetByUserID(ctx context.Context, userID string) ([]entity.FavoriteEntry, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpFind, "favorites")
	defer timer.ObserveDuration()

	var favorites []entity.FavoriteEntry
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("saved_at DESC").
		Find(&favorites)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpFind)
		return nil, result.Error
	}

	return favorites, nil
}

// Delete удаляет запись избранного
func (r *favoriteRepository) Delete(ctx context.Context, userID string, bookID string) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpDelete, "favorites")
	defer timer.ObserveDuration()

	result := r.db.WithContext(ctx).
		Delete(&entity.FavoriteEntry{}, "user_id = ? AND book_id = ?", userID, bookID)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpDelete)
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}

	return nil
}
