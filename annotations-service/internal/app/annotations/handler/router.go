package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"
)

func SetupRoutes(
	annotationHandler *AnnotationHandler,
	liveHandler *LiveHandler,
	authMiddleware *AuthMiddleware,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware("annotations-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "annotations-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	books := router.Group("/books")
	{
		// Чтение и live-просмотр доступны без входа, как страница книги в UI
		books.GET("/:book_id/comments", annotationHandler.GetComments)
		books.GET("/:book_id/rating", annotationHandler.GetAggregate)
		books.GET("/:book_id/live", liveHandler.Stream)

		authed := books.Group("")
		authed.Use(authMiddleware.Authenticate())
		{
			authed.POST("/:book_id/comments", annotationHandler.PostComment)
			authed.POST("/:book_id/rating", annotationHandler.SubmitRating)
		}
	}

	favorites := router.Group("/favorites")
	favorites.Use(authMiddleware.Authenticate())
	{
		favorites.POST("/", annotationHandler.SaveFavorite)
		favorites.GET("/", annotationHandler.ListFavorites)
		favorites.DELETE("/:book_id", annotationHandler.RemoveFavorite)
	}

	return router
}
