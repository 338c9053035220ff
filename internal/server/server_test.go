package server

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/config"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.S2C
	inbox  []protocol.C2S
	closed atomic.Bool
}

func (c *fakeConn) Send(msg protocol.S2C) {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
}
func (c *fakeConn) Receive() []protocol.C2S {
	c.mu.Lock()
	defer c.mu.Unlock()
	in := c.inbox
	c.inbox = nil
	return in
}
func (c *fakeConn) IsClosed() bool { return c.closed.Load() }
func (c *fakeConn) Close()         { c.closed.Store(true) }

func (c *fakeConn) push(msg protocol.C2S) {
	c.mu.Lock()
	c.inbox = append(c.inbox, msg)
	c.mu.Unlock()
}

type recordedEvent struct {
	name    util.Identifier
	payload any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) OnEvent(name util.Identifier, payload any) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{name, payload})
	r.mu.Unlock()
}

func (r *eventRecorder) named(name util.Identifier) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func flatFactory(regs *registry.Registries, _ util.Identifier, _ int64) (world.Generator, error) {
	return world.FlatGenerator{Height: 0, State: regs.State(registry.BlockStone)}, nil
}

func testSettings() *config.ServerSettings {
	s := config.NewSettings()
	s.Set(config.KeyViewDistanceHorizontal, "1")
	s.Set(config.KeyViewDistanceVertical, "1")
	return s
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Settings == nil {
		opts.Settings = testSettings()
	}
	if opts.Generator == nil {
		opts.Generator = flatFactory
	}
	opts.Rand = rand.New(rand.NewSource(1))
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func (s *Server) tickAndWait() {
	s.Tick()
	s.env.Pool.Wait()
}

func TestServerAcceptsJoin(t *testing.T) {
	events := &eventRecorder{}
	presence := cache.NewMemoryPresence(time.Minute)
	s := newTestServer(t, Options{Events: events, Presence: presence})

	conn := &fakeConn{}
	s.Joins() <- conn
	s.tickAndWait()

	lobby, ok := s.GetWorld(Lobby)
	require.True(t, ok, "лобби создаётся при первом входе")
	require.Len(t, lobby.Players(), 1)

	joins := events.named(world.EventPlayerJoin)
	require.Len(t, joins, 1)
	ev, ok := joins[0].payload.(world.PlayerJoinEvent)
	require.True(t, ok)
	assert.Equal(t, "bb:lobby", ev.World)
	assert.Equal(t, lobby.Players()[0].Entity().ClientID(), ev.Player)

	require.Eventually(t, func() bool {
		list, err := presence.List(context.Background())
		return err == nil && len(list) == 1
	}, 2*time.Second, 10*time.Millisecond, "игрок появляется в каталоге присутствия")

	t.Run("Выход", func(t *testing.T) {
		conn.Close()
		s.tickAndWait()
		s.tickAndWait()
		assert.Empty(t, s.Players())
		require.Eventually(t, func() bool {
			list, err := presence.List(context.Background())
			return err == nil && len(list) == 0
		}, 2*time.Second, 10*time.Millisecond, "вышедший игрок удаляется из каталога")
	})
}

func TestGetOrCreateWorldUsesIndexSeed(t *testing.T) {
	index, err := storage.NewMemoryWorldIndex()
	require.NoError(t, err)
	defer index.Close()
	require.NoError(t, index.Put(&storage.WorldMeta{ID: "bb:arena", Seed: 1234}))

	var seeds sync.Map
	factory := func(regs *registry.Registries, id util.Identifier, seed int64) (world.Generator, error) {
		seeds.Store(id.String(), seed)
		return flatFactory(regs, id, seed)
	}
	s := newTestServer(t, Options{Index: index, Generator: factory})

	w1, err := s.GetOrCreateWorld(util.BB("arena"))
	require.NoError(t, err)
	w2, err := s.GetOrCreateWorld(util.BB("arena"))
	require.NoError(t, err)
	assert.Same(t, w1, w2, "повторный запрос возвращает тот же мир")

	seed, ok := seeds.Load("bb:arena")
	require.True(t, ok)
	assert.Equal(t, int64(1234), seed)

	_, err = s.GetOrCreateWorld(util.BB("fresh"))
	require.NoError(t, err)
	meta, ok, err := index.Get("bb:fresh")
	require.NoError(t, err)
	require.True(t, ok, "новый мир записывается в индекс")
	fresh, _ := seeds.Load("bb:fresh")
	assert.Equal(t, meta.Seed, fresh)
}

func TestIdleWorldUnloads(t *testing.T) {
	s := newTestServer(t, Options{})
	_, err := s.GetOrCreateWorld(util.BB("empty"))
	require.NoError(t, err)

	for i := 0; i < world.WorldUnloadTime-1; i++ {
		s.tickAndWait()
	}
	_, ok := s.GetWorld(util.BB("empty"))
	require.True(t, ok, "мир ещё не простоял достаточно")

	s.tickAndWait()
	_, ok = s.GetWorld(util.BB("empty"))
	assert.False(t, ok, "пустой мир выгружается")
}

func TestWorldEnteredOnUnloadTickStays(t *testing.T) {
	s := newTestServer(t, Options{})
	target := util.BB("empty")
	_, err := s.GetOrCreateWorld(target)
	require.NoError(t, err)

	conn := &fakeConn{}
	s.Joins() <- conn
	for i := 0; i < world.WorldUnloadTime-1; i++ {
		s.tickAndWait()
	}
	_, ok := s.GetWorld(target)
	require.True(t, ok)

	// мир простаивает ровно до порога в этом тике, а игрок входит в него из задачи пула
	conn.push(protocol.SendMessage{Text: "/world bb:empty"})
	s.tickAndWait()

	w, ok := s.GetWorld(target)
	require.True(t, ok, "мир с вошедшим игроком не выгружается")
	assert.Len(t, w.Players(), 1)
	assert.Positive(t, w.ChunkCount())
}

func TestRunSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	index, err := storage.NewMemoryWorldIndex()
	require.NoError(t, err)
	defer index.Close()

	s := newTestServer(t, Options{SaveDir: dir, Index: index})
	s.Joins() <- &fakeConn{}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}

	assert.GreaterOrEqual(t, s.TickCount(), uint64(2))
	assert.LessOrEqual(t, s.TickCount(), uint64(10), "тики идут не чаще раза в 50 мс")
	assert.Empty(t, s.Worlds(), "миры выгружены")

	settings, err := os.ReadFile(filepath.Join(dir, "settings.txt"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(settings), config.KeyViewDistanceHorizontal+"=1"))

	_, err = os.Stat(filepath.Join(dir, "content.zip"))
	assert.NoError(t, err)

	meta, ok, err := index.Get("bb:lobby")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, meta.SavedChunks, 0, "чанки лобби сохранены")
	assert.False(t, meta.LastSaved.IsZero())
}

func TestSettingsLoadedFromSaveDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.txt"), []byte("server.motd=привет\n"), 0o644))

	s, err := New(Options{SaveDir: dir, Generator: flatFactory})
	require.NoError(t, err)
	defer s.Destroy()
	assert.Equal(t, "привет", s.Motd())
}
