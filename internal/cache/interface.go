package cache

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/blockbyte/internal/vec"
)

// ErrNotFound запись о присутствии не найдена
var ErrNotFound = errors.New("игрок не найден в каталоге присутствия")

// Presence запись о подключённом игроке
type Presence struct {
	ID        string       `json:"id"`
	ClientID  uint32       `json:"client_id"`
	World     string       `json:"world"`
	Position  vec.Position `json:"position"`
	JoinedAt  time.Time    `json:"joined_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PresenceDirectory каталог игроков, находящихся на сервере.
// Сервер обновляет записи при входе, при выходе и периодически по тикам.
//
// Использование:
//
//	dir := NewMemoryPresence(30 * time.Second)
//	err := dir.Put(ctx, Presence{ID: id, World: "bb:lobby"})
//	players, err := dir.List(ctx)
type PresenceDirectory interface {
	// Put добавляет или обновляет запись. UpdatedAt выставляется каталогом.
	Put(ctx context.Context, p Presence) error

	// Remove удаляет запись игрока.
	Remove(ctx context.Context, id string) error

	// List возвращает записи, обновлённые не позднее TTL назад.
	List(ctx context.Context) ([]Presence, error)

	// Close закрывает соединение.
	Close() error
}
