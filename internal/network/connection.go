package network

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	handshakeWait  = 10 * time.Second
	maxMessageSize = 64 * 1024

	// SendQueueSize очередь исходящих кадров. Начальная загрузка мира
	// при дальности 8/16 даёт около десяти тысяч LoadChunk.
	SendQueueSize = 1 << 15
)

// Connection игровое соединение поверх WebSocket.
// Send не блокирует: кадр ставится в очередь, переполнение очереди закрывает соединение.
// Принятые сообщения копятся до вызова Receive из тика сущности игрока.
type Connection struct {
	id      string
	ws      *websocket.Conn
	metrics *Metrics

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	inboxMu sync.Mutex
	inbox   []protocol.C2S
}

func newConnection(id string, ws *websocket.Conn, metrics *Metrics) *Connection {
	return &Connection{
		id:      id,
		ws:      ws,
		metrics: metrics,
		send:    make(chan []byte, SendQueueSize),
		done:    make(chan struct{}),
	}
}

// ID идентификатор соединения для логов
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) start() {
	c.metrics.ActiveConnections.Inc()
	go c.writePump()
	go c.readPump()
}

// Send кодирует сообщение и ставит его в очередь отправки
func (c *Connection) Send(msg protocol.S2C) {
	if c.closed.Load() {
		return
	}
	data := protocol.EncodeS2C(msg)
	select {
	case c.send <- data:
	case <-c.done:
	default:
		logging.GetNetworkLogger().Warn("Очередь отправки соединения %s переполнена, закрываем", c.id)
		c.metrics.RecordError("overflow")
		c.Close()
	}
}

// Receive забирает все принятые с прошлого вызова сообщения
func (c *Connection) Receive() []protocol.C2S {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	messages := c.inbox
	c.inbox = nil
	return messages
}

// IsClosed сообщает, закрыто ли соединение
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close помечает соединение закрытым. Сокет закрывает писатель.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.metrics.ActiveConnections.Dec()
		logging.GetNetworkLogger().Debug("Соединение %s закрыто", c.id)
	})
}

func (c *Connection) push(msg protocol.C2S) {
	c.inboxMu.Lock()
	c.inbox = append(c.inbox, msg)
	c.inboxMu.Unlock()
}

// readPump читает кадры до ошибки. Некорректный кадр закрывает соединение.
func (c *Connection) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logging.GetNetworkLogger().Debug("Ошибка чтения соединения %s: %v", c.id, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.BinaryMessage {
			continue
		}
		c.metrics.MessagesReceived.Inc()
		c.metrics.BytesReceived.Add(float64(len(data)))

		msg, err := protocol.DecodeC2S(data)
		if err != nil {
			logging.LogProtocolError(c.id, err, data)
			c.metrics.RecordError("protocol")
			return
		}
		c.push(msg)
	}
}

// writePump пишет очередь в сокет и шлёт пинги
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.metrics.RecordError("write")
				c.Close()
				return
			}
			c.metrics.MessagesSent.Inc()
			c.metrics.BytesSent.Add(float64(len(data)))

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
