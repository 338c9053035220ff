package network

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	http    *httptest.Server
	joins   chan world.Connection
	content *registry.Content
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	content, err := registry.BuildContent(registry.DefaultRegistries())
	require.NoError(t, err)

	joins := make(chan world.Connection, 4)
	l := NewListener(joins, func() string { return "тестовый сервер" }, content, nil)
	srv := httptest.NewServer(l.Handler())
	t.Cleanup(srv.Close)
	return &testServer{http: srv, joins: joins, content: content}
}

func (s *testServer) dial(t *testing.T, mode uint8) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "не удалось подключиться")
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, protocol.EncodeC2S(protocol.ConnectionMode{Mode: mode})))
	return ws
}

func (s *testServer) accept(t *testing.T) *Connection {
	t.Helper()
	select {
	case c := <-s.joins:
		conn, ok := c.(*Connection)
		require.True(t, ok)
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("игровое соединение не передано серверу")
	}
	return nil
}

func TestQueryMode(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, protocol.ModeQuery)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "тестовый сервер", resp.Motd)
	assert.Equal(t, s.content.Hash, resp.ClientContentHash)
	assert.NotEmpty(t, resp.Time)

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "после ответа соединение закрывается: %v", err)
}

func TestContentMode(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, protocol.ModeContent)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, s.content.Zip, data)
}

func TestGameplayMode(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, protocol.ModeGameplay)
	conn := s.accept(t)
	defer conn.Close()

	t.Run("Отправка", func(t *testing.T) {
		conn.Send(protocol.ChatMessage{Text: "привет"})
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, kind)
		msg, err := protocol.DecodeS2C(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.ChatMessage{Text: "привет"}, msg)
	})

	t.Run("Приём", func(t *testing.T) {
		require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, protocol.EncodeC2S(protocol.SendMessage{Text: "/tp 0 10 0"})))
		require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, protocol.EncodeC2S(protocol.MouseScroll{X: 0, Y: 1})))

		var got []protocol.C2S
		require.Eventually(t, func() bool {
			got = append(got, conn.Receive()...)
			return len(got) >= 2
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, protocol.SendMessage{Text: "/tp 0 10 0"}, got[0])
		assert.Empty(t, conn.Receive(), "очередь опустошается")
	})

	t.Run("НекорректныйКадрЗакрывает", func(t *testing.T) {
		require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 1, 2}))
		require.Eventually(t, conn.IsClosed, 2*time.Second, 10*time.Millisecond)
	})
}

func TestClientDisconnectClosesConnection(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, protocol.ModeGameplay)
	conn := s.accept(t)

	ws.Close()
	require.Eventually(t, conn.IsClosed, 2*time.Second, 10*time.Millisecond)
	conn.Send(protocol.ChatMessage{Text: "никому"})
}

func TestBadHandshake(t *testing.T) {
	s := newTestServer(t)

	t.Run("ТекстовыйКадр", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer ws.Close()
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = ws.ReadMessage()
		assert.Error(t, err)
	})

	t.Run("НеизвестныйРежим", func(t *testing.T) {
		ws := s.dial(t, 7)
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err)
	})

	select {
	case <-s.joins:
		t.Error("отклонённое соединение не должно попадать в игру")
	default:
	}
}

func TestSendQueueOverflowCloses(t *testing.T) {
	conn := newConnection("overflow", nil, NewMetrics(nil))
	for i := 0; i < SendQueueSize; i++ {
		conn.Send(protocol.DeleteEntity{ID: uint32(i)})
	}
	if conn.IsClosed() {
		t.Fatal("заполненная очередь ещё не переполнение")
	}
	conn.Send(protocol.DeleteEntity{ID: 0})
	assert.True(t, conn.IsClosed(), "переполнение закрывает соединение")

	conn.Close()
}
