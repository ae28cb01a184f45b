package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/hub"
	"bookworm/annotations-service/internal/app/annotations/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) PostComment(ctx context.Context, identity *entity.Identity, bookID string, text string) (*entity.Comment, error) {
	args := m.Called(ctx, identity, bookID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Comment), args.Error(1)
}

func (m *MockCommentService) GetComments(ctx context.Context, bookID string) ([]entity.Comment, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Comment), args.Error(1)
}

func (m *MockCommentService) Subscribe(ctx context.Context, bookID string, deliver func([]entity.Comment) error) *hub.Subscription {
	args := m.Called(ctx, bookID, deliver)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*hub.Subscription)
}

type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) SubmitRating(ctx context.Context, identity *entity.Identity, bookID string, stars int) (*entity.RatingAggregate, error) {
	args := m.Called(ctx, identity, bookID, stars)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingAggregate), args.Error(1)
}

func (m *MockRatingService) GetAggregate(ctx context.Context, bookID string) (*entity.RatingAggregate, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RatingAggregate), args.Error(1)
}

func (m *MockRatingService) Subscribe(ctx context.Context, bookID string, deliver func(*entity.RatingAggregate) error) *hub.Subscription {
	args := m.Called(ctx, bookID, deliver)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*hub.Subscription)
}

type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) SaveFavorite(ctx context.Context, identity *entity.Identity, bookID string, snapshot entity.BookSnapshot) (*entity.FavoriteEntry, error) {
	args := m.Called(ctx, identity, bookID, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.FavoriteEntry), args.Error(1)
}

func (m *MockFavoriteService) ListFavorites(ctx context.Context, userID string) ([]entity.FavoriteEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FavoriteEntry), args.Error(1)
}

func (m *MockFavoriteService) RemoveFavorite(ctx context.Context, identity *entity.Identity, bookID string) error {
	args := m.Called(ctx, identity, bookID)
	return args.Error(0)
}

func setupHandlerTest() (*gin.Engine, *MockCommentService, *MockRatingService, *MockFavoriteService) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	commentService := new(MockCommentService)
	ratingService := new(MockRatingService)
	favoriteService := new(MockFavoriteService)
	h := NewAnnotationHandler(commentService, ratingService, favoriteService)

	injectIdentity := func(c *gin.Context) {
		c.Set(identityContextKey, &entity.Identity{UserID: "user-123", DisplayName: "Alice Reader"})
	}

	router.GET("/books/:book_id/comments", h.GetComments)
	router.GET("/books/:book_id/rating", h.GetAggregate)
	router.POST("/books/:book_id/comments", injectIdentity, h.PostComment)
	router.POST("/books/:book_id/rating", injectIdentity, h.SubmitRating)
	router.POST("/favorites", injectIdentity, h.SaveFavorite)
	router.GET("/favorites", injectIdentity, h.ListFavorites)
	router.DELETE("/favorites/:book_id", injectIdentity, h.RemoveFavorite)

	// Те же маршруты без identity - для проверок 401
	router.POST("/anon/books/:book_id/comments", h.PostComment)
	router.POST("/anon/books/:book_id/rating", h.SubmitRating)
	router.GET("/anon/favorites", h.ListFavorites)

	return router, commentService, ratingService, favoriteService
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostCommentHandler_Success(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	comment := &entity.Comment{
		ID:        primitive.NewObjectID(),
		BookID:    "OL27448W",
		UserID:    "user-123",
		UserName:  "Alice Reader",
		Text:      "Loved the ending",
		CreatedAt: time.Now(),
	}
	commentService.On("PostComment", mock.Anything, mock.Anything, "OL27448W", "Loved the ending").Return(comment, nil)

	w := performRequest(router, http.MethodPost, "/books/OL27448W/comments", entity.PostCommentRequest{Text: "Loved the ending"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result entity.Comment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Loved the ending", result.Text)
	assert.Equal(t, "Alice Reader", result.UserName)
}

func TestPostCommentHandler_Unauthorized(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	w := performRequest(router, http.MethodPost, "/anon/books/OL27448W/comments", entity.PostCommentRequest{Text: "Hello"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	commentService.AssertNotCalled(t, "PostComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostCommentHandler_EmptyText(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	w := performRequest(router, http.MethodPost, "/books/OL27448W/comments", entity.PostCommentRequest{Text: ""})

	// Пустой текст отсекается валидатором до вызова сервиса
	assert.Equal(t, http.StatusBadRequest, w.Code)
	commentService.AssertNotCalled(t, "PostComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostCommentHandler_WhitespaceText(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	commentService.On("PostComment", mock.Anything, mock.Anything, "OL27448W", "   ").Return(nil, service.ErrEmptyComment)

	w := performRequest(router, http.MethodPost, "/books/OL27448W/comments", entity.PostCommentRequest{Text: "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostCommentHandler_StoreUnavailable(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	commentService.On("PostComment", mock.Anything, mock.Anything, "OL27448W", "Hello").
		Return(nil, errors.Join(service.ErrStoreUnavailable, errors.New("mongo: connection refused")))

	w := performRequest(router, http.MethodPost, "/books/OL27448W/comments", entity.PostCommentRequest{Text: "Hello"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetCommentsHandler_Success(t *testing.T) {
	router, commentService, _, _ := setupHandlerTest()

	comments := []entity.Comment{
		{ID: primitive.NewObjectID(), BookID: "OL27448W", Text: "Newer"},
		{ID: primitive.NewObjectID(), BookID: "OL27448W", Text: "Older"},
	}
	commentService.On("GetComments", mock.Anything, "OL27448W").Return(comments, nil)

	w := performRequest(router, http.MethodGet, "/books/OL27448W/comments", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result entity.CommentListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Comments, 2)
}

func TestSubmitRatingHandler_Success(t *testing.T) {
	router, _, ratingService, _ := setupHandlerTest()

	mean := 4.0
	aggregate := &entity.RatingAggregate{BookID: "OL27448W", Mean: &mean, Count: 1}
	ratingService.On("SubmitRating", mock.Anything, mock.Anything, "OL27448W", 4).Return(aggregate, nil)

	w := performRequest(router, http.MethodPost, "/books/OL27448W/rating", entity.SubmitRatingRequest{Stars: 4})

	assert.Equal(t, http.StatusOK, w.Code)

	var result entity.AggregateResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "4.0", result.Display)
}

func TestSubmitRatingHandler_InvalidStars(t *testing.T) {
	router, _, ratingService, _ := setupHandlerTest()

	w := performRequest(router, http.MethodPost, "/books/OL27448W/rating", entity.SubmitRatingRequest{Stars: 6})

	// Выход за 1..5 отсекается валидатором до вызова сервиса
	assert.Equal(t, http.StatusBadRequest, w.Code)
	ratingService.AssertNotCalled(t, "SubmitRating", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitRatingHandler_Unauthorized(t *testing.T) {
	router, _, ratingService, _ := setupHandlerTest()

	w := performRequest(router, http.MethodPost, "/anon/books/OL27448W/rating", entity.SubmitRatingRequest{Stars: 4})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	ratingService.AssertNotCalled(t, "SubmitRating", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAggregateHandler_WithRatings(t *testing.T) {
	router, _, ratingService, _ := setupHandlerTest()

	mean := 10.0 / 3.0
	aggregate := &entity.RatingAggregate{BookID: "OL27448W", Mean: &mean, Count: 3}
	ratingService.On("GetAggregate", mock.Anything, "OL27448W").Return(aggregate, nil)

	w := performRequest(router, http.MethodGet, "/books/OL27448W/rating", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result entity.AggregateResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Count)
	// Ровно один знак после запятой
	assert.Equal(t, "3.3", result.Display)
}

func TestGetAggregateHandler_NoRatings(t *testing.T) {
	router, _, ratingService, _ := setupHandlerTest()

	aggregate := &entity.RatingAggregate{BookID: "OL27448W", Count: 0}
	ratingService.On("GetAggregate", mock.Anything, "OL27448W").Return(aggregate, nil)

	w := performRequest(router, http.MethodGet, "/books/OL27448W/rating", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result entity.AggregateResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Count)
	assert.Nil(t, result.Mean)
	assert.Equal(t, "N/A", result.Display)
}

func TestSaveFavoriteHandler_Success(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	entry := &entity.FavoriteEntry{
		UserID: "user-123",
		BookID: "OL27448W",
		Title:  "The Lord of the Rings",
	}
	favoriteService.On("SaveFavorite", mock.Anything, mock.Anything, "OL27448W", mock.Anything).Return(entry, nil)

	w := performRequest(router, http.MethodPost, "/favorites", entity.SaveFavoriteRequest{
		BookID: "OL27448W",
		Title:  "The Lord of the Rings",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSaveFavoriteHandler_MissingBookID(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	w := performRequest(router, http.MethodPost, "/favorites", entity.SaveFavoriteRequest{Title: "No ID"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	favoriteService.AssertNotCalled(t, "SaveFavorite", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListFavoritesHandler_Success(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	favorites := []entity.FavoriteEntry{
		{UserID: "user-123", BookID: "OL45883W", Title: "Dune"},
		{UserID: "user-123", BookID: "OL27448W", Title: "The Lord of the Rings"},
	}
	favoriteService.On("ListFavorites", mock.Anything, "user-123").Return(favorites, nil)

	w := performRequest(router, http.MethodGet, "/favorites", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result entity.FavoriteListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "OL45883W", result.Favorites[0].BookID)
}

func TestListFavoritesHandler_Unauthorized(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	w := performRequest(router, http.MethodGet, "/anon/favorites", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	favoriteService.AssertNotCalled(t, "ListFavorites", mock.Anything, mock.Anything)
}

func TestRemoveFavoriteHandler_Success(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	favoriteService.On("RemoveFavorite", mock.Anything, mock.Anything, "OL27448W").Return(nil)

	w := performRequest(router, http.MethodDelete, "/favorites/OL27448W", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRemoveFavoriteHandler_NotFound(t *testing.T) {
	router, _, _, favoriteService := setupHandlerTest()

	favoriteService.On("RemoveFavorite", mock.Anything, mock.Anything, "book-never-saved").Return(service.ErrFavoriteNotFound)

	w := performRequest(router, http.MethodDelete, "/favorites/book-never-saved", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
