package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/annel0/blockbyte/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinPayload struct {
	Player string `json:"player"`
}

func TestMemoryBusDelivery(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"bb:player_join"}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "bb:player_join"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "bb:keyboard"}))

	assert.Eventually(t, func() bool {
		return bus.Metrics().InFlight == 0 && bus.Metrics().Published == 2
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"bb:player_join"}, got, "фильтр по типу")
	mu.Unlock()
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")
	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrBusClosed)
}

func TestDispatcher(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	received := make(chan *Envelope, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		received <- ev
	})
	require.NoError(t, err)

	d := NewDispatcher("test-server", bus)
	join := util.BB("player_join")

	var calls []string
	d.On(join, func(payload any) {
		calls = append(calls, payload.(joinPayload).Player)
	})
	d.On(join, func(payload any) {
		panic("сломанный скрипт")
	})

	d.OnEvent(join, joinPayload{Player: "alice"})
	d.OnEvent(util.BB("keyboard"), joinPayload{Player: "bob"})

	assert.Equal(t, []string{"alice"}, calls, "синхронный вызов, паника не мешает")

	select {
	case ev := <-received:
		assert.Equal(t, "bb:player_join", ev.EventType)
		assert.Equal(t, "test-server", ev.Source)
		var p joinPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &p))
		assert.Equal(t, "alice", p.Player)
	case <-time.After(time.Second):
		t.Fatalf("Событие не доставлено в шину")
	}
}

func TestDispatcherWithoutBus(t *testing.T) {
	d := NewDispatcher("test", nil)
	called := false
	d.On(util.BB("x"), func(any) { called = true })
	d.OnEvent(util.BB("x"), make(chan int))
	assert.True(t, called)
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "a"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "b"}))

	prev := me.collect(Stats{})
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published))

	me.collect(prev)
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published), "повторный сбор не удваивает счётчик")
}
