package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockbyte/internal/api"
	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/config"
	"github.com/annel0/blockbyte/internal/eventbus"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/network"
	"github.com/annel0/blockbyte/internal/observability"
	"github.com/annel0/blockbyte/internal/server"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к config.yaml (по умолчанию GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	configured := cfg != nil
	if !configured {
		cfg = config.Default()
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Printf("⚠️ %v, используется INFO", err)
	}
	logging.GetLoggerManager().Configure(logging.Options{
		ConsoleLevel: level,
		FileLevel:    logging.DEBUG,
		Files:        cfg.Logging.Files,
		Dir:          cfg.Logging.Dir,
	})
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск BlockByte server...")
	if !configured {
		logging.Info("Конфигурация не задана, используются значения по умолчанию")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	saveDir := cfg.Server.GetSaveDir()
	index, err := storage.NewWorldIndex(saveDir)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия индекса миров: %v", err)
	}
	defer index.Close()

	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Логирование событий шины недоступно: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start(5 * time.Second)
	defer exporter.Stop()

	dispatcher := eventbus.NewDispatcher("blockbyte-server", bus)
	dispatcher.On(world.EventCommand, func(payload any) {
		if ev, ok := payload.(world.CommandEvent); ok {
			logging.Debug("Команда /%s от игрока %d без обработчика", ev.Command, ev.Player)
		}
	})

	presence, err := newPresence(cfg.Presence)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к каталогу присутствия: %v", err)
	}
	defer presence.Close()

	srv, err := server.New(server.Options{
		SaveDir:    saveDir,
		Workers:    cfg.Server.GetWorkers(),
		Index:      index,
		Events:     dispatcher,
		Presence:   presence,
		Registerer: reg,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания сервера: %v", err)
	}

	gameAddr := fmt.Sprintf(":%d", cfg.Server.GetGamePort())
	adminAddr := fmt.Sprintf(":%d", cfg.Server.GetAdminPort())
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())

	listener := network.NewListener(srv.Joins(), srv.Motd, srv.Content(), network.NewMetrics(reg))
	go func() {
		if err := listener.ListenAndServe(ctx, gameAddr); err != nil {
			logging.Error("❌ Игровой сервер остановился: %v", err)
			stop()
		}
	}()

	rest := api.NewRestServer(api.Config{Addr: adminAddr, Game: srv, Registerer: reg, Gatherer: reg})
	go func() {
		if err := rest.ListenAndServe(ctx); err != nil {
			logging.Error("❌ Административный API остановился: %v", err)
		}
	}()

	go serveMetrics(ctx, metricsAddr, reg)

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🎮 WebSocket: ws://localhost%s/ws", gameAddr)
	logging.Info("   🌐 Admin API: http://localhost%s/api/status", adminAddr)
	logging.Info("   📈 Metrics: http://localhost%s/metrics", metricsAddr)

	srv.Run(ctx)

	if err := shutdownTelemetry(context.Background()); err != nil {
		logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

// newEventBus без url даёт шину в памяти, иначе NATS JetStream
func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	retention := time.Duration(cfg.Retention) * time.Hour
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		return nil, err
	}
	logging.Info("📨 События публикуются в JetStream %s (стрим %s)", cfg.URL, cfg.Stream)
	return bus, nil
}

// newPresence без адреса Redis даёт каталог в памяти
func newPresence(cfg config.PresenceConfig) (cache.PresenceDirectory, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		return cache.NewMemoryPresence(ttl), nil
	}
	return cache.NewRedisPresence(&cache.PresenceConfig{
		RedisAddr: cfg.RedisAddr,
		TTL:       ttl,
	})
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("❌ Сервер метрик остановился: %v", err)
	}
}
