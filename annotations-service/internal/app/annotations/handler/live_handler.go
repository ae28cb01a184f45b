package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/service"
	"bookworm/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait = 10 * time.Second
	liveReadLimit = 512
)

// liveMessage - кадр live-канала detail view
// Type различает аспекты; Data - полное текущее представление аспекта
// (замена всего представления, клиент не собирает диффы)
type liveMessage struct {
	Type string      `json:"type"` // comments, rating_aggregate
	Data interface{} `json:"data"`
}

// LiveHandler отдает live-обновления книги по WebSocket
// Одно соединение несет обе подписки: журнал комментариев и агрегат оценок
type LiveHandler struct {
	commentService service.CommentServiceInterface
	ratingService  service.RatingServiceInterface
	upgrader       websocket.Upgrader
}

func NewLiveHandler(
	commentService service.CommentServiceInterface,
	ratingService service.RatingServiceInterface,
) *LiveHandler {
	return &LiveHandler{
		commentService: commentService,
		ratingService:  ratingService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Происхождение проверяет API gateway
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream держит WebSocket соединение, пока зритель смотрит страницу книги
// При подключении сразу уходят снимки обоих аспектов, дальше - полные
// обновленные представления на каждое изменение. Автор собственной записи
// видит ее через этот же канал, как и все остальные зрители
func (h *LiveHandler) Stream(c *gin.Context) {
	bookID := c.Param("book_id")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to upgrade live connection")
		return
	}
	defer conn.Close()

	// Подписки переживают c.Request.Context() только до закрытия соединения
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	// Доставки двух подписок бегут в своих горутинах; один mutex
	// сериализует запись в соединение
	var writeMu sync.Mutex
	send := func(msgType string, data interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(liveMessage{Type: msgType, Data: data})
	}

	commentSub := h.commentService.Subscribe(ctx, bookID, func(comments []entity.Comment) error {
		return send("comments", entity.CommentListResponse{Comments: comments, Total: len(comments)})
	})
	defer commentSub.Cancel()

	ratingSub := h.ratingService.Subscribe(ctx, bookID, func(aggregate *entity.RatingAggregate) error {
		return send("rating_aggregate", aggregateResponse(aggregate))
	})
	defer ratingSub.Cancel()

	logger.Debug().Str("book_id", bookID).Msg("Live subscriber connected")

	// Читаем только чтобы заметить закрытие соединения клиентом
	conn.SetReadLimit(liveReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logger.Debug().Str("book_id", bookID).Msg("Live subscriber disconnected")
			return
		}
	}
}
