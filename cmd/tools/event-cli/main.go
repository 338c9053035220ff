package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/blockbyte/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "BLOCKBYTE", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated, e.g. bb:player_join)")
		sources    = flag.String("sources", "", "Source servers filter (comma-separated)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		window     = flag.Duration("window", 5*time.Second, "How long stats collects events")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к шине: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, filter, *limit, *follow); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(ctx, bus, filter, *window); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

// tailEvents выводит события стрима, начиная с самых старых
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int, follow bool) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", limit, follow)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if !follow && count >= limit {
			return
		}
		printEvent(ev)
		count++
		if !follow && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()

	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats считает события по типам за окно window
func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, window time.Duration) error {
	fmt.Printf("📊 Event statistics (window: %s)\n", window)

	var (
		mu     sync.Mutex
		byType = make(map[string]int)
		total  int
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		byType[ev.EventType]++
		total++
		mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return byType[types[i]] > byType[types[j]] })

	fmt.Printf("Total events: %d\n\n", total)
	fmt.Printf("%-30s %10s %8s\n", "TYPE", "COUNT", "SHARE")
	for _, t := range types {
		fmt.Printf("%-30s %10d %7.1f%%\n", t, byType[t], float64(byType[t])*100/float64(total))
	}
	return nil
}

func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %-24s source=%s id=%s\n",
		ev.Timestamp.Format(timeFormat), ev.EventType, ev.Source, ev.ID)
	if len(ev.Payload) > 0 {
		fmt.Printf("    %s\n", ev.Payload)
	}
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
