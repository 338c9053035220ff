package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/config"
	"github.com/annel0/blockbyte/internal/eventbus"
	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/taskpool"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TickDuration длительность одного тика
const TickDuration = 50 * time.Millisecond

// Lobby мир, в котором появляются новые игроки
var Lobby = util.BB("lobby")

// GeneratorFactory создаёт генератор мира по сиду
type GeneratorFactory func(regs *registry.Registries, id util.Identifier, seed int64) (world.Generator, error)

// PerlinFactory генератор по умолчанию
func PerlinFactory(regs *registry.Registries, _ util.Identifier, seed int64) (world.Generator, error) {
	return world.NewPerlinGenerator(regs, seed)
}

// Options параметры сервера. Пустые поля заполняются значениями по умолчанию.
type Options struct {
	SaveDir    string
	Workers    int
	Registries *registry.Registries
	Settings   *config.ServerSettings
	Index      *storage.WorldIndex
	Events     eventbus.EventSink
	Presence   cache.PresenceDirectory
	Registerer prometheus.Registerer
	Generator  GeneratorFactory
	Rand       *rand.Rand
}

type loadedWorld struct {
	world     *world.World
	generator world.Generator
}

// Server владеет мирами и тикает их каждые 50 мс
type Server struct {
	env       *world.Env
	saveDir   string
	content   *registry.Content
	index     *storage.WorldIndex
	generator GeneratorFactory
	metrics   *Metrics
	tracer    trace.Tracer
	presence  *presenceSync
	directory cache.PresenceDirectory

	worldsMu sync.Mutex
	worlds   map[util.Identifier]*loadedWorld

	joins     chan world.Connection
	tickCount atomic.Uint64
	startedAt time.Time
	destroyed atomic.Bool
}

// New собирает сервер: реестры, настройки из settings.txt, пул задач и content.zip
func New(opts Options) (*Server, error) {
	regs := opts.Registries
	if regs == nil {
		regs = registry.DefaultRegistries()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	generator := opts.Generator
	if generator == nil {
		generator = PerlinFactory
	}

	settings := opts.Settings
	if settings == nil {
		var err error
		settings, err = loadSettings(opts.SaveDir)
		if err != nil {
			return nil, err
		}
	}

	content, err := registry.BuildContent(regs)
	if err != nil {
		return nil, fmt.Errorf("сборка клиентского контента: %w", err)
	}
	if opts.SaveDir != "" {
		if err := os.MkdirAll(opts.SaveDir, 0o755); err != nil {
			return nil, fmt.Errorf("каталог сохранений: %w", err)
		}
		if err := os.WriteFile(filepath.Join(opts.SaveDir, "content.zip"), content.Zip, 0o644); err != nil {
			return nil, fmt.Errorf("запись content.zip: %w", err)
		}
	}

	s := &Server{
		saveDir:   opts.SaveDir,
		content:   content,
		index:     opts.Index,
		generator: generator,
		tracer:    otel.Tracer("github.com/annel0/blockbyte/internal/server"),
		directory: opts.Presence,
		worlds:    make(map[util.Identifier]*loadedWorld),
		joins:     make(chan world.Connection, 64),
		startedAt: time.Now(),
	}
	s.env = &world.Env{
		Registries: regs,
		Loot:       inventory.DefaultLootTables(regs),
		Recipes:    inventory.DefaultRecipes(regs),
		Pool:       taskpool.New(workers),
		Settings:   settings,
		Events:     opts.Events,
		Worlds:     s,
		SaveDir:    opts.SaveDir,
		ClientIDs:  new(atomic.Uint32),
		Rand:       rng,
	}
	s.metrics = NewMetrics(opts.Registerer, s.env)
	if opts.Presence != nil {
		s.presence = newPresenceSync(opts.Presence)
	}

	logging.GetServerLogger().Info("Сервер создан: воркеров %d, каталог сохранений %q, хэш контента %s",
		workers, opts.SaveDir, content.Hash)
	return s, nil
}

func loadSettings(saveDir string) (*config.ServerSettings, error) {
	if saveDir == "" {
		return config.NewSettings(), nil
	}
	data, err := os.ReadFile(filepath.Join(saveDir, "settings.txt"))
	if errors.Is(err, os.ErrNotExist) {
		return config.NewSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение settings.txt: %w", err)
	}
	return config.LoadSettings(string(data)), nil
}

// Env окружение миров
func (s *Server) Env() *world.Env { return s.env }

// Content клиентский архив и его хэш
func (s *Server) Content() *registry.Content { return s.content }

// Settings настройки сервера
func (s *Server) Settings() *config.ServerSettings { return s.env.Settings }

// Motd приветствие для режима запроса
func (s *Server) Motd() string {
	return s.env.Settings.Get(config.KeyMotd, "test server")
}

// Joins канал, в который сеть передаёт новые игровые соединения
func (s *Server) Joins() chan<- world.Connection { return s.joins }

// TickCount число выполненных тиков
func (s *Server) TickCount() uint64 { return s.tickCount.Load() }

// StartedAt время создания сервера
func (s *Server) StartedAt() time.Time { return s.startedAt }

// Index индекс миров, может быть nil
func (s *Server) Index() *storage.WorldIndex { return s.index }

// Presence каталог присутствия, может быть nil
func (s *Server) Presence() cache.PresenceDirectory { return s.directory }

// GetOrCreateWorld возвращает загруженный мир или создаёт его.
// Сид берётся из индекса миров, новый мир получает случайный сид.
func (s *Server) GetOrCreateWorld(id util.Identifier) (*world.World, error) {
	s.worldsMu.Lock()
	defer s.worldsMu.Unlock()

	if lw, ok := s.worlds[id]; ok {
		return lw.world, nil
	}

	seed := s.env.RandSeed()
	if s.index != nil {
		meta, err := s.index.GetOrCreate(id.String(), seed)
		if err != nil {
			return nil, fmt.Errorf("метаданные мира %s: %w", id, err)
		}
		seed = meta.Seed
	}

	gen, err := s.generator(s.env.Registries, id, seed)
	if err != nil {
		return nil, fmt.Errorf("генератор мира %s: %w", id, err)
	}
	w, err := world.NewWorld(id, s.env, gen, s.saveDir == "")
	if err != nil {
		closeGenerator(gen)
		return nil, err
	}
	s.worlds[id] = &loadedWorld{world: w, generator: gen}
	logging.GetServerLogger().Info("Мир %s загружен (сид %d)", id, seed)
	return w, nil
}

// GetWorld возвращает мир, только если он уже загружен
func (s *Server) GetWorld(id util.Identifier) (*world.World, bool) {
	s.worldsMu.Lock()
	defer s.worldsMu.Unlock()
	lw, ok := s.worlds[id]
	if !ok {
		return nil, false
	}
	return lw.world, true
}

// Worlds загруженные миры, отсортированные по идентификатору
func (s *Server) Worlds() []*world.World {
	s.worldsMu.Lock()
	worlds := make([]*world.World, 0, len(s.worlds))
	for _, lw := range s.worlds {
		worlds = append(worlds, lw.world)
	}
	s.worldsMu.Unlock()
	sort.Slice(worlds, func(i, j int) bool {
		return worlds[i].ID.String() < worlds[j].ID.String()
	})
	return worlds
}

// Players все игроки во всех мирах
func (s *Server) Players() []*world.PlayerData {
	var players []*world.PlayerData
	for _, w := range s.Worlds() {
		players = append(players, w.Players()...)
	}
	return players
}

// SpawnLocation место появления новых игроков
func (s *Server) SpawnLocation() (*world.World, vec.Position, error) {
	w, err := s.GetOrCreateWorld(Lobby)
	if err != nil {
		return nil, vec.Position{}, err
	}
	return w, vec.Position{}, nil
}

// CallEvent передаёт событие приёмнику
func (s *Server) CallEvent(id util.Identifier, payload any) {
	s.env.CallEvent(id, payload)
}

// Tick принимает новых игроков, тикает миры и выгружает пустые
func (s *Server) Tick() {
	s.acceptJoins()

	worlds := s.Worlds()
	for _, w := range worlds {
		w.Tick()
	}
	// задачи сущностей могут перенести игрока в простаивающий мир
	s.env.Pool.Wait()
	s.unloadIdleWorlds()

	if s.presence != nil {
		n := s.tickCount.Load()
		s.presence.update(s.Players(), n%PresenceRefreshTicks == 0)
	}
}

func (s *Server) acceptJoins() {
	for {
		select {
		case conn := <-s.joins:
			s.spawn(conn)
		default:
			return
		}
	}
}

func (s *Server) spawn(conn world.Connection) {
	w, pos, err := s.SpawnLocation()
	if err != nil {
		logging.GetServerLogger().Error("Нет места появления: %v", err)
		conn.Close()
		return
	}
	p, err := world.SpawnPlayer(w, pos, conn)
	if err != nil {
		logging.GetServerLogger().Error("Не удалось создать игрока: %v", err)
		conn.Close()
		return
	}
	s.CallEvent(world.EventPlayerJoin, world.PlayerJoinEvent{
		Player:   p.Entity().ClientID(),
		World:    w.ID.String(),
		Position: pos,
	})
}

func (s *Server) unloadIdleWorlds() {
	var idle []*loadedWorld
	s.worldsMu.Lock()
	for id, lw := range s.worlds {
		if lw.world.ShouldUnload() {
			delete(s.worlds, id)
			idle = append(idle, lw)
		}
	}
	s.worldsMu.Unlock()

	for _, lw := range idle {
		s.destroyWorld(lw)
		logging.GetServerLogger().Info("Мир %s выгружен за неактивностью", lw.world.ID)
	}
}

func (s *Server) destroyWorld(lw *loadedWorld) {
	lw.world.Destroy()
	closeGenerator(lw.generator)
	if s.index != nil && !lw.world.Temporary() {
		if err := s.index.Touch(lw.world.ID.String(), lw.world.SavedChunks()); err != nil {
			logging.GetStorageLogger().Warn("Не удалось обновить индекс мира %s: %v", lw.world.ID, err)
		}
	}
}

func closeGenerator(gen world.Generator) {
	if c, ok := gen.(interface{ Close() }); ok {
		c.Close()
	}
}

// tick выполняет тик внутри span server.tick и обновляет метрики
func (s *Server) tick(ctx context.Context) time.Duration {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "server.tick")
	s.Tick()
	s.env.Pool.Wait()

	worlds := s.Worlds()
	chunks := 0
	for _, w := range worlds {
		chunks += w.ChunkCount()
	}
	players := len(s.Players())
	span.SetAttributes(
		attribute.Int64("tick", int64(s.tickCount.Load())),
		attribute.Int("worlds", len(worlds)),
		attribute.Int("chunks", chunks),
		attribute.Int("players", players),
	)
	span.End()

	s.metrics.Worlds.Set(float64(len(worlds)))
	s.metrics.Chunks.Set(float64(chunks))
	s.metrics.Players.Set(float64(players))

	elapsed := time.Since(start)
	s.metrics.TickDuration.Observe(elapsed.Seconds())
	s.tickCount.Add(1)
	return elapsed
}

// Run тикает сервер до отмены ctx, затем сохраняет миры.
// Тик N должен начаться не раньше N*50 мс от старта. Отставание не
// пропускает тики, а только логируется, когда растёт.
func (s *Server) Run(ctx context.Context) {
	log := logging.GetServerLogger()
	log.Info("Сервер запущен")

	start := time.Now()
	var highestLag time.Duration
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for ctx.Err() == nil {
		s.tick(ctx)

		next := time.Duration(s.tickCount.Load()) * TickDuration
		sleep := next - time.Since(start)
		if sleep > 0 {
			timer.Reset(sleep)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			highestLag = 0
			continue
		}

		s.metrics.Overruns.Inc()
		if lag := -sleep; lag > highestLag {
			log.Warn("Сервер отстаёт на %d мс", lag.Milliseconds())
			highestLag = lag
		}
	}

	log.Info("Сохранение...")
	s.Destroy()
	log.Info("Сервер остановлен")
}

// Destroy выгружает все миры, записывает settings.txt и останавливает пул
func (s *Server) Destroy() {
	if s.destroyed.Swap(true) {
		return
	}

	s.worldsMu.Lock()
	worlds := make([]*loadedWorld, 0, len(s.worlds))
	for _, lw := range s.worlds {
		worlds = append(worlds, lw)
	}
	s.worlds = make(map[util.Identifier]*loadedWorld)
	s.worldsMu.Unlock()

	for _, lw := range worlds {
		s.destroyWorld(lw)
	}
	s.env.Pool.Wait()

	if s.saveDir != "" {
		path := filepath.Join(s.saveDir, "settings.txt")
		if err := os.WriteFile(path, []byte(s.env.Settings.SaveToString()), 0o644); err != nil {
			logging.GetServerLogger().Error("Не удалось сохранить settings.txt: %v", err)
		}
	}
	if s.presence != nil {
		s.presence.close()
	}
	s.env.Pool.Close()
}
