package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/google/uuid"
)

// ErrBusClosed шина закрыта
var ErrBusClosed = errors.New("шина событий закрыта")

// EventSink то, что вызывает ядро сервера при игровых событиях.
// Вызов происходит внутри тика, поэтому реализация не должна блокировать.
type EventSink interface {
	OnEvent(name util.Identifier, payload any)
}

// HandlerFunc синхронный обработчик события (мост к скриптам)
type HandlerFunc func(payload any)

// Dispatcher вызывает обработчики, зарегистрированные на идентификатор
// события, и пересылает событие в шину.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[util.Identifier][]HandlerFunc
	bus      EventBus
	source   string
	logger   *logging.Logger
}

// NewDispatcher создаёт диспетчер. bus может быть nil.
func NewDispatcher(source string, bus EventBus) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[util.Identifier][]HandlerFunc),
		bus:      bus,
		source:   source,
		logger:   logging.GetServerLogger(),
	}
}

// On регистрирует обработчик события
func (d *Dispatcher) On(name util.Identifier, h HandlerFunc) {
	d.mu.Lock()
	d.handlers[name] = append(d.handlers[name], h)
	d.mu.Unlock()
}

// OnEvent реализует EventSink
func (d *Dispatcher) OnEvent(name util.Identifier, payload any) {
	d.mu.RLock()
	handlers := d.handlers[name]
	d.mu.RUnlock()

	for _, h := range handlers {
		d.call(name, h, payload)
	}

	if d.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn("Событие %s не сериализуется: %v", name, err)
		return
	}
	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    d.source,
		EventType: name.String(),
		Payload:   data,
	}
	if err := d.bus.Publish(context.Background(), ev); err != nil {
		d.logger.Warn("Не удалось опубликовать событие %s: %v", name, err)
	}
}

func (d *Dispatcher) call(name util.Identifier, h HandlerFunc, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Паника в обработчике события %s: %v", name, r)
		}
	}()
	h(payload)
}
