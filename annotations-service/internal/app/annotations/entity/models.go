package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity - данные пользователя из JWT токена Auth Service
// Читаются в момент вызова операции записи; сервис их никогда не изменяет
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Email       string `json:"email"`
}

// Comment - комментарий к книге, неизменяемый после создания
// created_at выставляется на сервере, клиентские метки времени не принимаются
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BookID    string             `json:"book_id" bson:"book_id"` // Work ID книги из Catalog Service (OpenLibrary)
	UserID    string             `json:"user_id" bson:"user_id"` // UUID пользователя из Auth Service
	UserName  string             `json:"user_name" bson:"user_name"`
	AvatarURL string             `json:"avatar_url" bson:"avatar_url"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// Rating - оценка книги пользователем, ровно одна на пару (book_id, user_id)
// Повторная отправка тем же пользователем заменяет значение на месте (upsert)
type Rating struct {
	BookID   string    `json:"book_id" bson:"book_id"`
	UserID   string    `json:"user_id" bson:"user_id"`
	UserName string    `json:"user_name" bson:"user_name"`
	Stars    int       `json:"stars" bson:"stars"` // Оценка от 1 до 5
	RatedAt  time.Time `json:"rated_at" bson:"rated_at"`
}

// RatingAggregate - производная сводка по оценкам книги
// Mean хранит точное среднее; округление до одного знака - забота презентации.
// Mean == nil и Count == 0, когда оценок нет
type RatingAggregate struct {
	BookID string   `json:"book_id"`
	Mean   *float64 `json:"mean"`
	Count  int      `json:"count"`
}

// FavoriteEntry - запись в избранном пользователя с денормализованным
// снимком книги (title, cover_id, author_name), чтобы список избранного
// рендерился без обращения к Catalog Service
type FavoriteEntry struct {
	UserID     string    `gorm:"primaryKey;size:64" json:"user_id"`
	BookID     string    `gorm:"primaryKey;size:64" json:"book_id"`
	Title      string    `gorm:"size:512" json:"title"`
	CoverID    int64     `json:"cover_id"`
	AuthorName string    `gorm:"size:256" json:"author_name"`
	SavedAt    time.Time `json:"saved_at"`
}

func (FavoriteEntry) TableName() string {
	return "favorites"
}

// BookSnapshot - поля книги из Catalog Service для снимка избранного
type BookSnapshot struct {
	Title      string `json:"title"`
	CoverID    int64  `json:"cover_id"`
	AuthorName string `json:"author_name"`
}

// Типы событий для Kafka
const (
	EventCommentCreated  = "COMMENT_CREATED"
	EventRatingSubmitted = "RATING_SUBMITTED"
	EventFavoriteSaved   = "FAVORITE_SAVED"
)

type AnnotationEvent struct {
	EventType string    `json:"event_type"` // COMMENT_CREATED, RATING_SUBMITTED, FAVORITE_SAVED
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	CommentID string    `json:"comment_id,omitempty"`
	Stars     int       `json:"stars,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
