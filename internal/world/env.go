package world

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockbyte/internal/config"
	"github.com/annel0/blockbyte/internal/eventbus"
	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/taskpool"
	"github.com/annel0/blockbyte/internal/util"
)

// Константы выгрузки в тиках
const (
	ChunkUnloadTime = 200
	WorldUnloadTime = 1000
)

// WorldSource даёт доступ к другим мирам сервера (команда /world)
type WorldSource interface {
	GetOrCreateWorld(id util.Identifier) (*World, error)
}

// Env общее окружение миров: реестры, пул задач, настройки и точка вызова событий.
// Заполняется сервером один раз, дальше только читается.
type Env struct {
	Registries *registry.Registries
	Loot       inventory.LootTables
	Recipes    *inventory.RecipeManager
	Pool       *taskpool.Pool
	Settings   *config.ServerSettings
	Events     eventbus.EventSink
	Worlds     WorldSource
	SaveDir    string

	// ClientIDs счётчик клиентских номеров сущностей
	ClientIDs *atomic.Uint32

	// Rand источник случайности для добычи и разброса предметов.
	// Доступ только через withRand.
	Rand  *rand.Rand
	rngMu sync.Mutex

	localIDs atomic.Uint32

	// Счётчики для метрик сервера
	ChunksLoaded   atomic.Uint64
	ChunksUnloaded atomic.Uint64
}

// CallEvent передаёт событие обработчикам. Без приёмника событие теряется.
func (e *Env) CallEvent(id util.Identifier, payload any) {
	if e.Events != nil {
		e.Events.OnEvent(id, payload)
	}
}

func (e *Env) nextClientID() uint32 {
	ids := e.ClientIDs
	if ids == nil {
		ids = &e.localIDs
	}
	return ids.Add(1) - 1
}

func (e *Env) withRand(fn func(r *rand.Rand)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	if e.Rand == nil {
		e.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	fn(e.Rand)
}

// RandSeed случайное число для сида. Безопасно из любой горутины.
func (e *Env) RandSeed() int64 {
	var v int64
	e.withRand(func(r *rand.Rand) { v = r.Int63() })
	return v
}

func (e *Env) viewDistance() (horizontal, vertical int32) {
	if e.Settings == nil {
		return 8, 16
	}
	h := e.Settings.GetInt64(config.KeyViewDistanceHorizontal, 8)
	v := e.Settings.GetInt64(config.KeyViewDistanceVertical, 16)
	return int32(h), int32(v)
}
