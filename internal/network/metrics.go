package network

import (
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики сетевой подсистемы
type Metrics struct {
	Handshakes        *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	MessagesSent      prometheus.Counter
	MessagesReceived  prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	Errors            *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// nil reg означает, что метрики считаются, но никуда не экспортируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "handshakes_total",
			Help:      "Рукопожатия по режимам соединения.",
		}, []string{"mode"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "active_connections",
			Help:      "Открытые игровые соединения.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "messages_sent_total",
			Help:      "Отправленные клиентам сообщения.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "messages_received_total",
			Help:      "Принятые от клиентов сообщения.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "bytes_sent_total",
			Help:      "Отправленные байты.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "bytes_received_total",
			Help:      "Принятые байты.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbyte",
			Subsystem: "network",
			Name:      "errors_total",
			Help:      "Ошибки соединений по типам.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.Handshakes, m.ActiveConnections, m.MessagesSent,
			m.MessagesReceived, m.BytesSent, m.BytesReceived, m.Errors)
	}
	return m
}

// RecordError увеличивает счётчик ошибок: "protocol", "overflow", "write", "handshake"
func (m *Metrics) RecordError(errorType string) {
	m.Errors.WithLabelValues(errorType).Inc()
}

func modeLabel(mode uint8) string {
	switch mode {
	case protocol.ModeGameplay:
		return "gameplay"
	case protocol.ModeQuery:
		return "query"
	case protocol.ModeContent:
		return "content"
	}
	return "unknown"
}
