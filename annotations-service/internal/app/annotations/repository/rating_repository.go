package repository

import (
	"context"
	"fmt"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ratingRepository struct {
	collection *mongo.Collection
}

// NewRatingRepository создает новый репозиторий оценок
// Уникальный индекс (book_id, user_id) - страховка инварианта
// "одна оценка на пользователя" на уровне хранилища
func NewRatingRepository(db *mongo.Database) RatingRepository {
	collection := db.Collection("ratings")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "book_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetName("book_user_idx").SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		fmt.Printf("Warning: failed to create index on ratings: %v\n", err)
	}

	return &ratingRepository{
		collection: collection,
	}
}

// Upsert записывает оценку по ключу (book_id, user_id)
// Существующая оценка того же пользователя заменяется на месте,
// вторая строка никогда не создается
func (r *ratingRepository) Upsert(ctx context.Context, rating *entity.Rating) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, "ratings")
	defer timer.ObserveDuration()

	rating.RatedAt = time.Now()

	filter := bson.M{"book_id": rating.BookID, "user_id": rating.UserID}
	update := bson.M{
		"$set": bson.M{
			"user_name": rating.UserName,
			"stars":     rating.Stars,
			"rated_at":  rating.RatedAt,
		},
		"$setOnInsert": bson.M{
			"book_id": rating.BookID,
			"user_id": rating.UserID,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	return nil
}

// GetByBookID получает полный набор оценок книги
// Агрегат всегда пересчитывается из этого набора, а не инкрементально
func (r *ratingRepository) GetByBookID(ctx context.Context, bookID string) ([]entity.Rating, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpFind, "ratings")
	defer timer.ObserveDuration()

	filter := bson.M{"book_id": bookID}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpFind)
		return nil, fmt.Errorf("failed to find ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var ratings []entity.Rating
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}

	return ratings, nil
}

// GetRatedBookIDs возвращает идентификаторы всех книг с хотя бы одной оценкой
// Используется фоновой сверкой кеша агрегатов
func (r *ratingRepository) GetRatedBookIDs(ctx context.Context) ([]string, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpFind, "ratings")
	defer timer.ObserveDuration()

	values, err := r.collection.Distinct(ctx, "book_id", bson.M{})
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpFind)
		return nil, fmt.Errorf("failed to list rated books: %w", err)
	}

	bookIDs := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			bookIDs = append(bookIDs, id)
		}
	}

	return bookIDs, nil
}
