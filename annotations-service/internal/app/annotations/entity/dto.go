package entity

// PostCommentRequest - запрос на публикацию комментария
// Пустой или состоящий из пробелов текст отклоняется сервисом
type PostCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// SubmitRatingRequest - запрос на выставление оценки
type SubmitRatingRequest struct {
	Stars int `json:"stars" validate:"required,min=1,max=5"`
}

// SaveFavoriteRequest - запрос на сохранение книги в избранное
// Поля снимка опциональны: пустой снимок дозаполняется из Catalog Service
type SaveFavoriteRequest struct {
	BookID     string `json:"book_id" validate:"required"`
	Title      string `json:"title" validate:"omitempty,max=512"`
	CoverID    int64  `json:"cover_id"`
	AuthorName string `json:"author_name" validate:"omitempty,max=256"`
}

// AggregateResponse - агрегат оценок для презентации
// Display - округление до одного знака, "N/A" при отсутствии оценок
type AggregateResponse struct {
	BookID  string   `json:"book_id"`
	Mean    *float64 `json:"mean"`
	Count   int      `json:"count"`
	Display string   `json:"display"`
}

// CommentListResponse - ответ со списком комментариев книги
type CommentListResponse struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// FavoriteListResponse - ответ со списком избранного пользователя
type FavoriteListResponse struct {
	Favorites []FavoriteEntry `json:"favorites"`
	Total     int             `json:"total"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
