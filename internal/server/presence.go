package server

import (
	"context"
	"time"

	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/world"
)

// PresenceRefreshTicks период полного обновления каталога присутствия
const PresenceRefreshTicks = 100

const presenceTimeout = 2 * time.Second

// presenceOp одна пачка изменений каталога
type presenceOp struct {
	put    []cache.Presence
	remove []string
}

// presenceSync сравнивает игроков на сервере с уже объявленными
// и отправляет изменения в каталог из отдельной горутины, чтобы
// медленный Redis не задерживал тик.
type presenceSync struct {
	dir    cache.PresenceDirectory
	known  map[string]cache.Presence
	ops    chan presenceOp
	done   chan struct{}
	closed bool
}

func newPresenceSync(dir cache.PresenceDirectory) *presenceSync {
	ps := &presenceSync{
		dir:   dir,
		known: make(map[string]cache.Presence),
		ops:   make(chan presenceOp, 64),
		done:  make(chan struct{}),
	}
	go ps.loop()
	return ps
}

func (ps *presenceSync) loop() {
	defer close(ps.done)
	log := logging.GetServerLogger()
	for op := range ps.ops {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		for _, p := range op.put {
			if err := ps.dir.Put(ctx, p); err != nil {
				log.Warn("Не удалось обновить присутствие %s: %v", p.ID, err)
			}
		}
		for _, id := range op.remove {
			if err := ps.dir.Remove(ctx, id); err != nil {
				log.Warn("Не удалось удалить присутствие %s: %v", id, err)
			}
		}
		cancel()
	}
}

// update вызывается из тика. refresh обновляет записи всех игроков.
func (ps *presenceSync) update(players []*world.PlayerData, refresh bool) {
	var op presenceOp
	now := time.Now()
	current := make(map[string]struct{}, len(players))

	for _, p := range players {
		e := p.Entity()
		id := e.ID().String()
		current[id] = struct{}{}
		prev, known := ps.known[id]
		if known && !refresh {
			continue
		}
		loc := e.Location()
		rec := cache.Presence{
			ID:       id,
			ClientID: e.ClientID(),
			World:    loc.World().ID.String(),
			Position: loc.Position,
			JoinedAt: now,
		}
		if known {
			rec.JoinedAt = prev.JoinedAt
		}
		ps.known[id] = rec
		op.put = append(op.put, rec)
	}
	for id := range ps.known {
		if _, ok := current[id]; !ok {
			delete(ps.known, id)
			op.remove = append(op.remove, id)
		}
	}
	ps.send(op)
}

func (ps *presenceSync) send(op presenceOp) {
	if ps.closed || (len(op.put) == 0 && len(op.remove) == 0) {
		return
	}
	select {
	case ps.ops <- op:
	default:
		logging.GetServerLogger().Warn("Очередь каталога присутствия переполнена, пропускаем %d изменений", len(op.put)+len(op.remove))
	}
}

// close удаляет все объявленные записи и дожидается горутины
func (ps *presenceSync) close() {
	if ps.closed {
		return
	}
	var op presenceOp
	for id := range ps.known {
		op.remove = append(op.remove, id)
	}
	ps.known = make(map[string]cache.Presence)
	if len(op.remove) > 0 {
		ps.ops <- op
	}
	ps.closed = true
	close(ps.ops)
	<-ps.done
}
