package world

import (
	"testing"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	regs := env.Registries

	w := newFlatWorld(t, env, false)
	loadReady(t, w, vec.ChunkPosition{})

	chestPos := vec.BlockPosition{X: 1, Y: 4, Z: 1}
	logPos := vec.BlockPosition{X: 2, Y: 4, Z: 2}
	w.SetBlock(chestPos, regs.State(registry.BlockChest), nil)

	logBlock, _ := regs.Blocks.BlockByIdentifier(registry.BlockLog)
	rotated, err := regs.Blocks.StateByRef(logBlock.DefaultState).WithProperty("axis", "x")
	require.NoError(t, err)
	w.SetBlock(logPos, rotated, nil)

	chest, ok := w.GetBlock(chestPos)
	require.True(t, ok)
	stick, _ := regs.Items.ItemByIdentifier(registry.ItemStick)
	require.NoError(t, chest.Block().Inventory.SetItem(4, inventory.NewItemStack(stick, 7)))

	dropped := w.DropItemOnGround(vec.Position{X: 5.5, Y: 4, Z: 5.5}, inventory.NewItemStack(stick, 3), 90, vec.Position{})
	require.NotNil(t, dropped)

	w.Destroy()

	files, err := storage.NewChunkFiles(dir + "/worlds/bb:test")
	require.NoError(t, err)
	assert.True(t, files.Exists(vec.ChunkPosition{}), "файл чанка записан")

	// Второй экземпляр мира читает те же файлы
	w2 := newFlatWorld(t, env, false)
	c := loadReady(t, w2, vec.ChunkPosition{})

	t.Run("Блоки", func(t *testing.T) {
		block, ok := w2.GetBlock(logPos)
		require.True(t, ok)
		assert.Equal(t, rotated, block.State(), "свойство axis сохраняется")

		block, ok = w2.GetBlock(vec.BlockPosition{X: 7, Y: 0, Z: 7})
		require.True(t, ok)
		assert.Equal(t, regs.State(registry.BlockStone), block.State())
	})

	t.Run("Сундук", func(t *testing.T) {
		block, ok := w2.GetBlock(chestPos)
		require.True(t, ok)
		require.True(t, block.IsStateful())
		item, err := block.Block().Inventory.GetItem(4)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, registry.ItemStick, item.Type.ID)
		assert.Equal(t, uint32(7), item.Count())
	})

	t.Run("Сущности", func(t *testing.T) {
		entities := c.Entities()
		require.Len(t, entities, 1)
		e := entities[0]
		assert.Equal(t, registry.EntityItem, e.Type.ID)
		assert.Equal(t, vec.Position{X: 5.5, Y: 4, Z: 5.5}, e.Location().Position)
		assert.Equal(t, float32(90), e.Rotation())
		item, err := e.Inventory.GetItem(0)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, uint32(3), item.Count())
	})
}

func TestTemporaryWorldDoesNotSave(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	w := newFlatWorld(t, env, true)
	loadReady(t, w, vec.ChunkPosition{})
	w.Destroy()
	assert.Equal(t, 0, w.SavedChunks())
}

func TestCorruptSaveRegenerates(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)

	files, err := storage.NewChunkFiles(dir + "/worlds/bb:test")
	require.NoError(t, err)
	require.NoError(t, files.Write(vec.ChunkPosition{}, []byte{1, 2, 3}))

	w := newFlatWorld(t, env, false)
	loadReady(t, w, vec.ChunkPosition{})
	block, ok := w.GetBlock(vec.BlockPosition{X: 0, Y: 0, Z: 0})
	require.True(t, ok)
	assert.Equal(t, env.Registries.State(registry.BlockStone), block.State(), "повреждённый файл заменяется генерацией")
}

func TestUnknownPaletteEntryBecomesAir(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)

	data := storage.NewChunkData()
	for i := 0; i < vec.ChunkVolume; i++ {
		data.SetCell(i, "mod:unobtainium", nil)
	}
	data.SetCell(0, "bb:dirt", nil)

	files, err := storage.NewChunkFiles(dir + "/worlds/bb:test")
	require.NoError(t, err)
	require.NoError(t, files.Write(vec.ChunkPosition{}, storage.EncodeChunk(data)))

	w := newFlatWorld(t, env, false)
	loadReady(t, w, vec.ChunkPosition{})

	block, _ := w.GetBlock(vec.BlockPosition{})
	assert.Equal(t, env.Registries.State(registry.BlockDirt), block.State())
	block, _ = w.GetBlock(vec.BlockPosition{X: 5, Y: 5, Z: 5})
	assert.True(t, block.IsAir())
}

func TestUnknownContainerKeepsChunk(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)

	chestAt := vec.ChunkOffset{X: 3, Y: 2, Z: 1}.Index()
	data := storage.NewChunkData()
	for i := 0; i < vec.ChunkVolume; i++ {
		data.SetCell(i, "bb:dirt", nil)
	}
	data.SetCell(chestAt, "mod:removed_chest", []*inventory.SavedStack{{ID: "bb:stick", Count: 4}})

	files, err := storage.NewChunkFiles(dir + "/worlds/bb:test")
	require.NoError(t, err)
	require.NoError(t, files.Write(vec.ChunkPosition{}, storage.EncodeChunk(data)))

	w := newFlatWorld(t, env, false)
	loadReady(t, w, vec.ChunkPosition{})

	dirt := env.Registries.State(registry.BlockDirt)
	block, _ := w.GetBlock(vec.BlockPosition{X: 3, Y: 2, Z: 1})
	assert.True(t, block.IsAir(), "незнакомый контейнер становится воздухом")
	block, _ = w.GetBlock(vec.BlockPosition{X: 7, Y: 9, Z: 7})
	if block.State() != dirt {
		t.Errorf("Чанк перегенерирован вместо загрузки: в (7,9,7) %v, ожидалась земля", block.State())
	}
	block, _ = w.GetBlock(vec.BlockPosition{X: 15, Y: 15, Z: 15})
	assert.Equal(t, dirt, block.State())
}

func TestAddViewerTwiceSendsChunkOnce(t *testing.T) {
	env := newTestEnv(t, "")
	w := newFlatWorld(t, env, true)

	conn := &fakeConn{}
	p, err := SpawnPlayer(w, vec.Position{X: 0.5, Y: 4, Z: 0.5}, conn)
	require.NoError(t, err)
	env.Pool.Wait()

	// Повторная подписка не дублирует LoadChunk
	c, _ := w.GetChunk(vec.ChunkPosition{})
	c.AddViewer(p)
	env.Pool.Wait()

	count := 0
	for _, l := range sentOf[protocol.LoadChunk](conn) {
		if l.Position == c.Position {
			count++
		}
	}
	assert.Equal(t, 1, count, "LoadChunk отправлен ровно один раз")
}

func TestLoadChunkOrderedWithConcurrentSetBlock(t *testing.T) {
	env := newTestEnv(t, "")
	w := newFlatWorld(t, env, true)
	c := loadReady(t, w, vec.ChunkPosition{})

	// игрок далеко, чанк (0,0,0) вне его зоны видимости
	conn := &fakeConn{}
	p, err := SpawnPlayer(w, vec.Position{X: 100.5, Y: 4, Z: 0.5}, conn)
	require.NoError(t, err)
	env.Pool.Wait()
	conn.reset()

	dirt := env.Registries.State(registry.BlockDirt)
	stone := env.Registries.State(registry.BlockStone)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			state := dirt
			if i%2 == 1 {
				state = stone
			}
			w.SetBlock(vec.BlockPosition{X: int32(i % 16), Y: 5, Z: int32(i / 16 % 16)}, state, nil)
		}
	}()
	c.AddViewer(p)
	<-done
	env.Pool.Wait()

	var client *[vec.ChunkVolume]uint32
	for _, m := range conn.messages() {
		switch msg := m.(type) {
		case protocol.LoadChunk:
			if msg.Position != c.Position {
				continue
			}
			client, err = protocol.DecompressBlocks(msg.Blocks)
			require.NoError(t, err)
		case protocol.SetBlock:
			if client != nil && msg.Position.ToChunkPos() == c.Position {
				client[msg.Position.ChunkOffset().Index()] = msg.State
			}
		}
	}
	require.NotNil(t, client, "LoadChunk должен прийти")
	for i := 0; i < vec.ChunkVolume; i++ {
		want := c.GetBlock(vec.OffsetFromIndex(i)).ClientID()
		if client[i] != want {
			t.Fatalf("Клиент расходится с чанком в ячейке %d: %d вместо %d", i, client[i], want)
		}
	}
}

func TestRemoveViewerSendsUnload(t *testing.T) {
	env := newTestEnv(t, "")
	w := newFlatWorld(t, env, true)
	conn := &fakeConn{}
	p, err := SpawnPlayer(w, vec.Position{X: 0.5, Y: 4, Z: 0.5}, conn)
	require.NoError(t, err)
	env.Pool.Wait()

	c, _ := w.GetChunk(vec.ChunkPosition{X: 1})
	conn.reset()
	c.RemoveViewer(p, true)
	c.RemoveViewer(p, true)

	unloads := sentOf[protocol.UnloadChunk](conn)
	require.Len(t, unloads, 1, "повторная отписка ничего не отправляет")
	assert.Equal(t, vec.ChunkPosition{X: 1}, unloads[0].Position)
	assert.False(t, c.HasViewer(p.Entity().ID()))
}

func TestItemEntityFallsToGround(t *testing.T) {
	env := newTestEnv(t, "")
	w := newFlatWorld(t, env, true)
	loadReady(t, w, vec.ChunkPosition{})

	stick, _ := env.Registries.Items.ItemByIdentifier(registry.ItemStick)
	e := w.DropItemOnGround(vec.Position{X: 3.5, Y: 8, Z: 3.5}, inventory.NewItemStack(stick, 1), 0, vec.Position{})
	require.NotNil(t, e)

	for i := 0; i < 40; i++ {
		e.Tick()
	}
	assert.InDelta(t, 4.0, e.Location().Position.Y, 0.05, "предмет лежит на камне")
	assert.Equal(t, 0.0, e.Velocity().Y)
}

func TestPerlinGenerator(t *testing.T) {
	regs := registry.DefaultRegistries()
	g1, err := NewPerlinGenerator(regs, 42)
	require.NoError(t, err)
	defer g1.Close()
	g2, err := NewPerlinGenerator(regs, 42)
	require.NoError(t, err)
	defer g2.Close()

	t.Run("Детерминированность", func(t *testing.T) {
		pos := vec.ChunkPosition{X: 3, Y: 0, Z: -2}
		assert.Equal(t, g1.Generate(pos), g2.Generate(pos))
	})

	t.Run("ГлубинаКамень", func(t *testing.T) {
		deep := g1.Generate(vec.ChunkPosition{Y: -10})
		stone := regs.State(registry.BlockStone)
		for i, state := range deep {
			if state != stone {
				t.Fatalf("ячейка %d на глубине: ожидался камень, получено %d", i, state)
			}
		}
	})

	t.Run("НебоВоздух", func(t *testing.T) {
		sky := g1.Generate(vec.ChunkPosition{Y: 10})
		for i, state := range sky {
			if !state.IsAir() {
				t.Fatalf("ячейка %d в небе не воздух: %d", i, state)
			}
		}
	})

	t.Run("ПоверхностьСовпадаетСВысотой", func(t *testing.T) {
		h := g1.Height(7, 9)
		blocks := g1.Generate(vec.BlockPosition{X: 7, Y: h, Z: 9}.ToChunkPos())
		surface := blocks[vec.BlockPosition{X: 7, Y: h, Z: 9}.ChunkOffset().Index()]
		if h > SeaLevel+1 {
			assert.Equal(t, regs.State(registry.BlockGrass), surface)
		} else {
			assert.Equal(t, regs.State(registry.BlockSand), surface)
		}
	})
}
