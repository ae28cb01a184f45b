package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrFavoriteNotFound = errors.New("favorite not found")
)

const serviceName = "annotations-service"

type commentRepository struct {
	collection *mongo.Collection
}

// NewCommentRepository создает новый репозиторий комментариев
// Автоматически создает индекс (book_id, created_at desc) для выборки
// журнала книги в порядке доставки
func NewCommentRepository(db *mongo.Database) CommentRepository {
	collection := db.Collection("comments")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "book_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("book_id_created_at_idx"),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		// Логируем ошибку, но не прерываем работу - индекс может уже существовать
		fmt.Printf("Warning: failed to create index on comments: %v\n", err)
	}

	return &commentRepository{
		collection: collection,
	}
}

// Create добавляет комментарий в журнал книги
// Метка времени выставляется здесь, на сервере: клиентским значениям
// нельзя доверять, иначе рассинхронизация часов переупорядочит журнал
func (r *commentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "comments")
	defer timer.ObserveDuration()

	comment.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, comment)
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return fmt.Errorf("failed to create comment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		comment.ID = oid
	}

	return nil
}

// GetByBookID получает все комментарии книги
// Сортировка: created_at по убыванию, при равенстве - _id по убыванию,
// чтобы порядок был детерминированным
func (r *commentRepository) GetByBookID(ctx context.Context, bookID string) ([]entity.Comment, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpFind, "comments")
	defer timer.ObserveDuration()

	filter := bson.M{"book_id": bookID}
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpFind)
		return nil, fmt.Errorf("failed to find comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []entity.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}

	return comments, nil
}
