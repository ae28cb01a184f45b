// Package hub реализует локальную для процесса рассылку уведомлений
// об изменениях книги активным подписчикам detail view.
//
// Подписка привязана к паре (book_id, aspect). Писатели (сервисы
// комментариев и оценок) дергают Notify после каждой успешной записи;
// каждый подписчик получает уведомления строго в своем FIFO порядке,
// но порядок между аспектами одной книги не гарантируется.
package hub

import (
	"sync"

	"bookworm/pkg/logger"
	"bookworm/pkg/metrics"
)

// Aspect - часть состояния книги, на которую можно подписаться
type Aspect string

const (
	AspectComments        Aspect = "comments"
	AspectRatingAggregate Aspect = "rating_aggregate"
)

// UpdateFunc вызывается на каждое уведомление. Функция сама перечитывает
// текущее состояние из хранилища, поэтому подписчик никогда не увидит
// состояние старее уже доставленного, сколько бы уведомлений ни слиплось.
// Возвращенная ошибка снимает подписку; писателю она не видна.
type UpdateFunc func() error

type subKey struct {
	bookID string
	aspect Aspect
}

// Hub хранит множества подписок по ключу (book_id, aspect)
type Hub struct {
	mu   sync.RWMutex
	subs map[subKey]map[*Subscription]struct{}
}

func New() *Hub {
	return &Hub{
		subs: make(map[subKey]map[*Subscription]struct{}),
	}
}

// Subscription - эфемерная подписка одной сессии просмотра
// Не персистентна; живет до Cancel или до первой неудачной доставки
type Subscription struct {
	hub      *Hub
	key      subKey
	onUpdate UpdateFunc
	pending  chan struct{} // буфер 1: слипшиеся уведомления коалесцируются
	done     chan struct{}
	once     sync.Once
}

// Subscribe регистрирует подписку и сразу доставляет текущее состояние,
// затем доставляет его заново на каждый Notify по тому же ключу
func (h *Hub) Subscribe(bookID string, aspect Aspect, onUpdate UpdateFunc) *Subscription {
	sub := &Subscription{
		hub:      h,
		key:      subKey{bookID: bookID, aspect: aspect},
		onUpdate: onUpdate,
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	// Немедленная первая доставка: клиент получает снимок без ожидания записи
	sub.pending <- struct{}{}

	h.mu.Lock()
	set, ok := h.subs[sub.key]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.key] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	metrics.LiveSubscribers.WithLabelValues(string(aspect)).Inc()

	go sub.run()

	return sub
}

// Notify сигнализирует всем подписчикам (book_id, aspect) об изменении.
// Не блокируется на медленных подписчиках: если у подписчика уже есть
// недоставленное уведомление, новое с ним сливается - доставка все равно
// перечитает самое свежее состояние
func (h *Hub) Notify(bookID string, aspect Aspect) {
	key := subKey{bookID: bookID, aspect: aspect}

	h.mu.RLock()
	for sub := range h.subs[key] {
		select {
		case sub.pending <- struct{}{}:
		default:
		}
	}
	h.mu.RUnlock()

	metrics.HubNotifications.WithLabelValues(string(aspect)).Inc()
}

// SubscriberCount возвращает число активных подписок на (book_id, aspect)
func (h *Hub) SubscriberCount(bookID string, aspect Aspect) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[subKey{bookID: bookID, aspect: aspect}])
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.pending:
			// Уведомление, догнавшее Cancel, молча отбрасывается
			select {
			case <-s.done:
				return
			default:
			}

			if err := s.onUpdate(); err != nil {
				logger.Warn().
					Err(err).
					Str("book_id", s.key.bookID).
					Str("aspect", string(s.key.aspect)).
					Msg("Subscriber delivery failed, dropping subscription")
				metrics.SubscriptionDeliveryErrors.WithLabelValues(string(s.key.aspect)).Inc()
				s.Cancel()
				return
			}
		}
	}
}

// Cancel снимает подписку и освобождает ее ресурсы
// Повторный вызов - no-op; безопасен из собственного callback доставки
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)

		s.hub.mu.Lock()
		if set, ok := s.hub.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.key)
			}
		}
		s.hub.mu.Unlock()

		metrics.LiveSubscribers.WithLabelValues(string(s.key.aspect)).Dec()
	})
}
