package server

import (
	"github.com/annel0/blockbyte/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики тика сервера
type Metrics struct {
	TickDuration prometheus.Histogram
	Overruns     prometheus.Counter
	Worlds       prometheus.Gauge
	Chunks       prometheus.Gauge
	Players      prometheus.Gauge
}

// NewMetrics создаёт метрики. Счётчики загрузки чанков читаются из env.
func NewMetrics(reg prometheus.Registerer, env *world.Env) *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockbyte",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика сервера.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.035, 0.05, 0.075, 0.1, 0.25, 0.5},
		}),
		Overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Name:      "tick_overruns_total",
			Help:      "Тики, после которых сервер отстал от графика.",
		}),
		Worlds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockbyte",
			Name:      "worlds_loaded",
			Help:      "Загруженные миры.",
		}),
		Chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockbyte",
			Name:      "chunks_in_memory",
			Help:      "Загруженные чанки во всех мирах.",
		}),
		Players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockbyte",
			Name:      "players_online",
			Help:      "Игроки на сервере.",
		}),
	}
	if reg == nil {
		return m
	}

	loaded := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "blockbyte",
		Name:      "chunks_loaded_total",
		Help:      "Всего загруженных или сгенерированных чанков.",
	}, func() float64 { return float64(env.ChunksLoaded.Load()) })
	unloaded := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "blockbyte",
		Name:      "chunks_unloaded_total",
		Help:      "Всего выгруженных чанков.",
	}, func() float64 { return float64(env.ChunksUnloaded.Load()) })

	reg.MustRegister(m.TickDuration, m.Overruns, m.Worlds, m.Chunks, m.Players, loaded, unloaded)
	return m
}
