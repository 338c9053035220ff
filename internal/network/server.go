package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/gorilla/websocket"
)

// Конфигурация WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Клиент открывается с любого адреса
	},
}

// QueryResponse ответ на соединение в режиме 1
type QueryResponse struct {
	Motd              string `json:"motd"`
	Time              string `json:"time"`
	ClientContentHash string `json:"client_content_hash"`
}

// Listener принимает WebSocket подключения и разбирает рукопожатие.
// Игровые соединения передаются в канал joins, который читает тик сервера.
type Listener struct {
	joins   chan<- world.Connection
	motd    func() string
	content *registry.Content
	metrics *Metrics
	nextID  atomic.Uint64
}

// NewListener создаёт обработчик. motd вызывается на каждый запрос режима 1.
func NewListener(joins chan<- world.Connection, motd func() string, content *registry.Content, metrics *Metrics) *Listener {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Listener{
		joins:   joins,
		motd:    motd,
		content: content,
		metrics: metrics,
	}
}

// Handler маршрутизатор с единственным путём /ws
func (l *Listener) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", l)
	return mux
}

// ListenAndServe обслуживает addr до отмены ctx
func (l *Listener) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           l.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.GetNetworkLogger().Info("WebSocket сервер слушает %s/ws", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket сервер: %w", err)
	}
	return nil
}

// ServeHTTP обновляет соединение и читает первый кадр ConnectionMode
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.GetNetworkLogger()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Ошибка обновления соединения %s: %v", r.RemoteAddr, err)
		return
	}
	id := "conn-" + strconv.FormatUint(l.nextID.Add(1), 10)

	mode, err := readMode(ws)
	if err != nil {
		log.Debug("Рукопожатие %s (%s) отклонено: %v", id, r.RemoteAddr, err)
		l.metrics.RecordError("handshake")
		closeWith(ws, websocket.CloseProtocolError)
		return
	}
	l.metrics.Handshakes.WithLabelValues(modeLabel(mode)).Inc()

	switch mode {
	case protocol.ModeGameplay:
		conn := newConnection(id, ws, l.metrics)
		conn.start()
		log.Info("Игровое соединение %s от %s", id, r.RemoteAddr)
		select {
		case l.joins <- conn:
		case <-conn.done:
		}

	case protocol.ModeQuery:
		resp := QueryResponse{
			Motd:              l.motd(),
			Time:              strconv.FormatInt(time.Now().UnixMilli(), 10),
			ClientContentHash: l.content.Hash,
		}
		data, err := json.Marshal(resp)
		if err != nil {
			log.Error("Ошибка сериализации ответа запроса: %v", err)
			closeWith(ws, websocket.CloseInternalServerErr)
			return
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, data)
		closeWith(ws, websocket.CloseNormalClosure)

	case protocol.ModeContent:
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.BinaryMessage, l.content.Zip)
		closeWith(ws, websocket.CloseNormalClosure)

	default:
		log.Debug("Неизвестный режим соединения %d от %s", mode, r.RemoteAddr)
		closeWith(ws, websocket.CloseUnsupportedData)
	}
}

func readMode(ws *websocket.Conn) (uint8, error) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(handshakeWait))
	kind, data, err := ws.ReadMessage()
	if err != nil {
		return 0, err
	}
	if kind != websocket.BinaryMessage {
		return 0, fmt.Errorf("%w: первый кадр не бинарный", protocol.ErrMalformed)
	}
	msg, err := protocol.DecodeC2S(data)
	if err != nil {
		return 0, err
	}
	mode, ok := msg.(protocol.ConnectionMode)
	if !ok {
		return 0, fmt.Errorf("%w: первым ожидался ConnectionMode", protocol.ErrMalformed)
	}
	return mode.Mode, nil
}

func closeWith(ws *websocket.Conn, code int) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(writeWait))
	ws.Close()
}
