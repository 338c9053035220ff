package api

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/config"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/server"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullConn struct {
	closed atomic.Bool
}

func (c *nullConn) Send(protocol.S2C)       {}
func (c *nullConn) Receive() []protocol.C2S { return nil }
func (c *nullConn) IsClosed() bool          { return c.closed.Load() }
func (c *nullConn) Close()                  { c.closed.Store(true) }

func newGame(t *testing.T, opts server.Options) *server.Server {
	t.Helper()
	settings := config.NewSettings()
	settings.Set(config.KeyViewDistanceHorizontal, "1")
	settings.Set(config.KeyViewDistanceVertical, "1")
	opts.Settings = settings
	opts.Rand = rand.New(rand.NewSource(7))
	opts.Generator = func(regs *registry.Registries, _ util.Identifier, _ int64) (world.Generator, error) {
		return world.FlatGenerator{Height: 0, State: regs.State(registry.BlockStone)}, nil
	}
	s, err := server.New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func tick(s *server.Server, n int) {
	for i := 0; i < n; i++ {
		s.Tick()
		s.Env().Pool.Wait()
	}
}

type apiResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func get(t *testing.T, h http.Handler, path string) (int, apiResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp apiResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "ответ %s должен быть JSON", path)
	}
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	rs := NewRestServer(Config{Game: newGame(t, server.Options{})})

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatus(t *testing.T) {
	game := newGame(t, server.Options{})
	game.Joins() <- &nullConn{}
	tick(game, 3)

	rs := NewRestServer(Config{Game: game})
	code, resp := get(t, rs.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	assert.Equal(t, float64(game.TickCount()), resp.Data["tick_count"])
	assert.Equal(t, float64(1), resp.Data["worlds"])
	assert.Equal(t, float64(1), resp.Data["players"])
	assert.Greater(t, resp.Data["chunks"], float64(0), "вокруг игрока загружены чанки")
	assert.NotEmpty(t, resp.Data["uptime"])
	assert.Contains(t, resp.Data, "memory")
}

func TestWorlds(t *testing.T) {
	index, err := storage.NewMemoryWorldIndex()
	require.NoError(t, err)
	defer index.Close()
	require.NoError(t, index.Put(&storage.WorldMeta{ID: "bb:archive", Seed: 99, SavedChunks: 12}))

	game := newGame(t, server.Options{Index: index})
	_, err = game.GetOrCreateWorld(server.Lobby)
	require.NoError(t, err)

	rs := NewRestServer(Config{Game: game})
	code, resp := get(t, rs.Handler(), "/api/worlds")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), resp.Data["total"])

	worlds := resp.Data["worlds"].([]interface{})
	archive := worlds[0].(map[string]interface{})
	lobby := worlds[1].(map[string]interface{})

	t.Run("Мир только из индекса", func(t *testing.T) {
		assert.Equal(t, "bb:archive", archive["id"])
		assert.Equal(t, false, archive["loaded"])
		assert.Equal(t, float64(99), archive["seed"])
		assert.Equal(t, float64(12), archive["saved_chunks"])
	})

	t.Run("Загруженный мир", func(t *testing.T) {
		assert.Equal(t, "bb:lobby", lobby["id"])
		assert.Equal(t, true, lobby["loaded"])
		assert.Equal(t, true, lobby["temporary"], "мир без каталога сохранений временный")
		assert.Contains(t, lobby, "seed", "сид берётся из индекса")
	})
}

func TestPlayers(t *testing.T) {
	t.Run("Без каталога присутствия", func(t *testing.T) {
		game := newGame(t, server.Options{})
		game.Joins() <- &nullConn{}
		tick(game, 1)

		rs := NewRestServer(Config{Game: game})
		code, resp := get(t, rs.Handler(), "/api/players")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "local", resp.Data["source"])
		assert.Equal(t, float64(1), resp.Data["total"])

		player := resp.Data["players"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "bb:lobby", player["world"])
	})

	t.Run("Из каталога присутствия", func(t *testing.T) {
		presence := cache.NewMemoryPresence(time.Minute)
		require.NoError(t, presence.Put(context.Background(), cache.Presence{
			ID:       "remote-player",
			ClientID: 42,
			World:    "bb:arena",
			Position: vec.Position{X: 1, Y: 2, Z: 3},
		}))
		game := newGame(t, server.Options{Presence: presence})

		rs := NewRestServer(Config{Game: game})
		code, resp := get(t, rs.Handler(), "/api/players")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "presence", resp.Data["source"])
		require.Equal(t, float64(1), resp.Data["total"])

		player := resp.Data["players"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "remote-player", player["id"])
		assert.Equal(t, "bb:arena", player["world"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rs := NewRestServer(Config{Game: newGame(t, server.Options{}), Registerer: reg, Gatherer: reg})

	code, _ := get(t, rs.Handler(), "/health")
	require.Equal(t, http.StatusOK, code)

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	if !strings.Contains(string(body), `admin_api_http_request_duration_seconds_count{method="GET",path="/health",status="200"} 1`) {
		t.Errorf("в /metrics нет гистограммы запроса /health:\n%s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	rs := NewRestServer(Config{Game: newGame(t, server.Options{})})

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFormatUptime(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Second:               "5с",
		2*time.Minute + 3*time.Second: "2м 3с",
		time.Hour + time.Minute:       "1ч 1м 0с",
		49*time.Hour + 30*time.Second: "2д 1ч 0м 30с",
	}
	for d, want := range cases {
		if got := formatUptime(d); got != want {
			t.Errorf("formatUptime(%v) = %q, ожидалось %q", d, got, want)
		}
	}
}
