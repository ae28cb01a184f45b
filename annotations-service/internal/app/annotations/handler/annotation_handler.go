package handler

import (
	"errors"
	"net/http"
	"strconv"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AnnotationHandler struct {
	commentService  service.CommentServiceInterface
	ratingService   service.RatingServiceInterface
	favoriteService service.FavoriteServiceInterface
	validator       *validator.Validate
}

func NewAnnotationHandler(
	commentService service.CommentServiceInterface,
	ratingService service.RatingServiceInterface,
	favoriteService service.FavoriteServiceInterface,
) *AnnotationHandler {
	return &AnnotationHandler{
		commentService:  commentService,
		ratingService:   ratingService,
		favoriteService: favoriteService,
		validator:       validator.New(),
	}
}

func (h *AnnotationHandler) PostComment(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	var req entity.PostCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	comment, err := h.commentService.PostComment(c.Request.Context(), identity, bookID, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrEmptyComment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Comment text must not be empty"})
			return
		}
		respondWithServiceError(c, err, "Failed to post comment")
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *AnnotationHandler) GetComments(c *gin.Context) {
	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	comments, err := h.commentService.GetComments(c.Request.Context(), bookID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to get comments")
		return
	}

	c.JSON(http.StatusOK, entity.CommentListResponse{
		Comments: comments,
		Total:    len(comments),
	})
}

func (h *AnnotationHandler) SubmitRating(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	var req entity.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	aggregate, err := h.ratingService.SubmitRating(c.Request.Context(), identity, bookID, req.Stars)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStars) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Stars must be between 1 and 5"})
			return
		}
		respondWithServiceError(c, err, "Failed to submit rating")
		return
	}

	c.JSON(http.StatusOK, aggregateResponse(aggregate))
}

func (h *AnnotationHandler) GetAggregate(c *gin.Context) {
	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	aggregate, err := h.ratingService.GetAggregate(c.Request.Context(), bookID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to get rating aggregate")
		return
	}

	c.JSON(http.StatusOK, aggregateResponse(aggregate))
}

func (h *AnnotationHandler) SaveFavorite(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req entity.SaveFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	snapshot := entity.BookSnapshot{
		Title:      req.Title,
		CoverID:    req.CoverID,
		AuthorName: req.AuthorName,
	}

	favorite, err := h.favoriteService.SaveFavorite(c.Request.Context(), identity, req.BookID, snapshot)
	if err != nil {
		respondWithServiceError(c, err, "Failed to save favorite")
		return
	}

	c.JSON(http.StatusCreated, favorite)
}

func (h *AnnotationHandler) ListFavorites(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	favorites, err := h.favoriteService.ListFavorites(c.Request.Context(), identity.UserID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to list favorites")
		return
	}

	c.JSON(http.StatusOK, entity.FavoriteListResponse{
		Favorites: favorites,
		Total:     len(favorites),
	})
}

func (h *AnnotationHandler) RemoveFavorite(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), identity, bookID); err != nil {
		if errors.Is(err, service.ErrFavoriteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Favorite not found"})
			return
		}
		respondWithServiceError(c, err, "Failed to remove favorite")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Favorite removed successfully",
	})
}

// aggregateResponse добавляет к агрегату презентационное поле Display:
// среднее с ровно одним знаком после запятой, "N/A" без оценок.
// Округляется копия на границе; в агрегате остается точное значение
func aggregateResponse(aggregate *entity.RatingAggregate) entity.AggregateResponse {
	display := "N/A"
	if aggregate.Count > 0 && aggregate.Mean != nil {
		display = strconv.FormatFloat(*aggregate.Mean, 'f', 1, 64)
	}

	return entity.AggregateResponse{
		BookID:  aggregate.BookID,
		Mean:    aggregate.Mean,
		Count:   aggregate.Count,
		Display: display,
	}
}

// respondWithServiceError переводит ошибки сервисного слоя в HTTP статусы
func respondWithServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
