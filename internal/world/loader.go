package world

import (
	"sort"
	"sync"

	"github.com/annel0/blockbyte/internal/vec"
)

// ViewLoader держит игрока зрителем чанков вокруг него.
// Горизонтальный радиус действует по X и Z, вертикальный по Y.
type ViewLoader struct {
	player *PlayerData

	mu     sync.Mutex
	world  *World
	center vec.ChunkPosition
	loaded []vec.ChunkPosition
}

func newViewLoader(p *PlayerData) *ViewLoader {
	return &ViewLoader{player: p}
}

// ChunksToLoadAt чанки зоны видимости вокруг точки, ближние первыми
func (l *ViewLoader) ChunksToLoadAt(pos vec.Position) []vec.ChunkPosition {
	return chunkBox(pos.ToChunkPos(), l.player.entity.Location().World().env)
}

func chunkBox(center vec.ChunkPosition, env *Env) []vec.ChunkPosition {
	h, v := env.viewDistance()
	chunks := make([]vec.ChunkPosition, 0, int((2*h+1)*(2*h+1)*(2*v+1)))
	for x := -h; x <= h; x++ {
		for y := -v; y <= v; y++ {
			for z := -h; z <= h; z++ {
				chunks = append(chunks, center.Add(vec.ChunkPosition{X: x, Y: y, Z: z}))
			}
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return distance2(chunks[i], center) < distance2(chunks[j], center)
	})
	return chunks
}

func distance2(a, b vec.ChunkPosition) int64 {
	dx, dy, dz := int64(a.X-b.X), int64(a.Y-b.Y), int64(a.Z-b.Z)
	return dx*dx + dy*dy + dz*dz
}

// LoadInitialChunks подписывает игрока на зону видимости в мире w
func (l *ViewLoader) LoadInitialChunks(w *World, pos vec.Position) {
	l.mu.Lock()
	l.world = w
	l.center = pos.ToChunkPos()
	l.loaded = chunkBox(l.center, w.env)
	chunks := l.loaded
	l.mu.Unlock()

	for _, c := range chunks {
		w.LoadChunk(c).AddViewer(l.player)
	}
}

// TransferPosition сдвигает зону видимости внутри текущего мира:
// отписывает от вышедших из неё чанков и подписывает на вошедшие
func (l *ViewLoader) TransferPosition(pos vec.Position) {
	center := pos.ToChunkPos()

	l.mu.Lock()
	if l.world == nil || center == l.center {
		l.mu.Unlock()
		return
	}
	w := l.world
	prev := l.loaded
	l.center = center
	l.loaded = chunkBox(center, w.env)
	next := l.loaded
	l.mu.Unlock()

	keep := make(map[vec.ChunkPosition]struct{}, len(next))
	for _, c := range next {
		keep[c] = struct{}{}
	}
	had := make(map[vec.ChunkPosition]struct{}, len(prev))
	for _, c := range prev {
		had[c] = struct{}{}
		if _, ok := keep[c]; !ok {
			if chunk, ok := w.GetChunk(c); ok {
				chunk.RemoveViewer(l.player, true)
			}
		}
	}
	for _, c := range next {
		if _, ok := had[c]; !ok {
			w.LoadChunk(c).AddViewer(l.player)
		}
	}
}

// TransferWorld переносит зону видимости в другой мир целиком
func (l *ViewLoader) TransferWorld(w *World, pos vec.Position) {
	l.UnloadChunks(true)
	l.LoadInitialChunks(w, pos)
}

// UnloadChunks отписывает игрока от всех чанков
func (l *ViewLoader) UnloadChunks(unloadEntities bool) {
	l.mu.Lock()
	w := l.world
	chunks := l.loaded
	l.loaded = nil
	l.mu.Unlock()
	if w == nil {
		return
	}
	for _, c := range chunks {
		if chunk, ok := w.GetChunk(c); ok {
			chunk.RemoveViewer(l.player, unloadEntities)
		}
	}
}

// Loaded число чанков в зоне видимости
func (l *ViewLoader) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loaded)
}
