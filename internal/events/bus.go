package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Kind — событие жизненного цикла сущности.
type Kind string

const (
	EntityCreate Kind = "entity.create"
	EntityUpdate Kind = "entity.update"
	EntityDelete Kind = "entity.delete"
)

// Sender — токен отправителя. Сравнивается по значению.
type Sender string

// NewSender выдаёт уникальный токен для подписчика/издателя.
func NewSender() Sender {
	return Sender(ulid.Make().String())
}

// Event — полезная нагрузка события сущности.
// Before/After содержат запись целиком, Changes — только изменённые поля (update).
type Event struct {
	Kind              Kind
	Sender            Sender
	Namespace         string
	ModelSingularCode string
	Before            any
	After             any
	Changes           map[string]any
	At                time.Time
}

// Handler обрабатывает одно событие.
type Handler func(ctx context.Context, ev Event) error

// Bus — внутрипроцессная шина. Обработчики вызываются синхронно, по порядку подписки.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[Kind][]Handler), logger: logger}
}

func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish вызывает всех подписчиков kind. Ошибка одного не мешает остальным;
// все ошибки возвращаются вместе.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()

	var errs []error
	for i, h := range hs {
		if err := h(ctx, ev); err != nil {
			b.logger.Warn("Event handler failed",
				zap.String("event", string(ev.Kind)),
				zap.String("model", ev.Namespace+"."+ev.ModelSingularCode),
				zap.Int("handler", i),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s handler %d: %w", ev.Kind, i, err))
		}
	}
	return errors.Join(errs...)
}
