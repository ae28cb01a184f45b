package worker

import (
	"context"
	"math"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/annotations-service/internal/app/annotations/hub"
	"bookworm/annotations-service/internal/app/annotations/repository"
	"bookworm/annotations-service/internal/app/annotations/service"
	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// AggregateReconciler периодически сверяет кеш агрегатов с авторитетным
// набором оценок в MongoDB и чинит разъехавшиеся значения
// (например, после недоступности Redis во время записи)
type AggregateReconciler struct {
	cron       *cron.Cron
	ratingRepo repository.RatingRepository
	cache      repository.AggregateCache
	hub        *hub.Hub
}

func NewAggregateReconciler(
	ratingRepo repository.RatingRepository,
	cache repository.AggregateCache,
	h *hub.Hub,
) *AggregateReconciler {
	return &AggregateReconciler{
		cron:       cron.New(),
		ratingRepo: ratingRepo,
		cache:      cache,
		hub:        h,
	}
}

// Start запускает периодическую сверку по cron-расписанию
func (r *AggregateReconciler) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.Reconcile(ctx); err != nil {
			logger.Error().Err(err).Msg("Aggregate reconciliation failed")
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	logger.Info().Str("schedule", schedule).Msg("Aggregate reconciler started")

	return nil
}

func (r *AggregateReconciler) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	logger.Info().Msg("Aggregate reconciler stopped")
}

// Reconcile пересчитывает агрегат каждой оцененной книги и сравнивает
// с кешем. Расхождение исправляется и рассылается подписчикам, чтобы
// открытые detail view не застряли на устаревшем значении
func (r *AggregateReconciler) Reconcile(ctx context.Context) error {
	bookIDs, err := r.ratingRepo.GetRatedBookIDs(ctx)
	if err != nil {
		return err
	}

	repaired := 0
	for _, bookID := range bookIDs {
		ratings, err := r.ratingRepo.GetByBookID(ctx, bookID)
		if err != nil {
			metrics.AggregatesReconciled.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to read ratings during reconciliation")
			continue
		}

		want := service.ComputeAggregate(bookID, ratings)

		got, err := r.cache.Get(ctx, bookID)
		if err != nil {
			metrics.AggregatesReconciled.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to read cached aggregate during reconciliation")
			continue
		}

		if got == nil {
			// Холодный кеш - не расхождение, его прогреет ближайший читатель
			metrics.AggregatesReconciled.WithLabelValues("ok").Inc()
			continue
		}

		if aggregatesEqual(got, want) {
			metrics.AggregatesReconciled.WithLabelValues("ok").Inc()
			continue
		}

		if err := r.cache.Set(ctx, want); err != nil {
			metrics.AggregatesReconciled.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to repair cached aggregate")
			continue
		}

		r.hub.Notify(bookID, hub.AspectRatingAggregate)
		metrics.AggregatesReconciled.WithLabelValues("repaired").Inc()
		repaired++
	}

	logger.Info().
		Int("books", len(bookIDs)).
		Int("repaired", repaired).
		Msg("Aggregate reconciliation completed")

	return nil
}

func aggregatesEqual(got, want *entity.RatingAggregate) bool {
	if got.Count != want.Count {
		return false
	}
	if got.Mean == nil || want.Mean == nil {
		return got.Mean == nil && want.Mean == nil
	}
	return math.Abs(*got.Mean-*want.Mean) < 1e-9
}
