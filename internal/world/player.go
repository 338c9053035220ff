package world

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/google/uuid"
)

// Connection соединение игрока. Send не блокируется; Receive забирает
// накопленные с прошлого тика сообщения.
type Connection interface {
	Send(msg protocol.S2C)
	Receive() []protocol.C2S
	IsClosed() bool
	Close()
}

// PlayerData состояние подключённого игрока, привязанное к его сущности
type PlayerData struct {
	entity *Entity
	conn   Connection
	loader *ViewLoader

	mu       sync.Mutex
	open     *openInventory
	hand     *inventory.ItemStack
	speed    float32
	movement protocol.MovementType
}

// SpawnPlayer создаёт сущность игрока в точке pos мира w и отправляет клиенту
// начальное состояние: чанки, курсор, способности, положение и хотбар
func SpawnPlayer(w *World, pos vec.Position, conn Connection) (*PlayerData, error) {
	playerType, ok := w.env.Registries.Entities.EntityByIdentifier(registry.EntityPlayer)
	if !ok {
		return nil, fmt.Errorf("тип сущности %s не зарегистрирован", registry.EntityPlayer)
	}

	p := &PlayerData{conn: conn, speed: 1, movement: protocol.MovementNormal}
	p.loader = newViewLoader(p)

	e := NewEntity(ChunkLocation{Chunk: w.LoadChunk(pos.ToChunkPos()), Position: pos}, playerType)
	p.entity = e
	e.setPlayer(p)

	p.loader.LoadInitialChunks(w, pos)
	p.setHand(nil)
	p.SetOpenInventory(nil)
	p.ResyncAbilities()
	p.SendMessage(protocol.TeleportPlayer{Position: pos, Rotation: 0})
	p.SendMessage(protocol.ControllingEntity{ID: playerType.ClientID})
	e.views.add(&guiView{id: e.id.String(), player: p, start: 0, end: hotbarSlots, layout: layoutHotbar})
	e.SetHandSlot(0)

	logging.GetGameLogger().Info("Игрок %s появился в мире %s (%s)", p, w.ID, pos)
	return p, nil
}

// Entity сущность игрока
func (p *PlayerData) Entity() *Entity {
	return p.entity
}

// Loader зона видимости игрока
func (p *PlayerData) Loader() *ViewLoader {
	return p.loader
}

// Connection соединение игрока
func (p *PlayerData) Connection() Connection {
	return p.conn
}

func (p *PlayerData) String() string {
	return fmt.Sprintf("player-%d", p.entity.clientID)
}

// SendMessage отправляет сообщение клиенту
func (p *PlayerData) SendMessage(msg protocol.S2C) {
	p.conn.Send(msg)
}

// SendMessages отправляет сообщения по порядку
func (p *PlayerData) SendMessages(msgs []protocol.S2C) {
	for _, m := range msgs {
		p.conn.Send(m)
	}
}

// SendChatMessage строка в чат игрока
func (p *PlayerData) SendChatMessage(text string) {
	p.SendMessage(protocol.ChatMessage{Text: text})
}

// SetAbilities задаёт скорость и режим передвижения
func (p *PlayerData) SetAbilities(speed float32, movement protocol.MovementType) {
	p.mu.Lock()
	p.speed = speed
	p.movement = movement
	p.mu.Unlock()
	p.ResyncAbilities()
}

// ResyncAbilities повторно отправляет способности клиенту
func (p *PlayerData) ResyncAbilities() {
	p.mu.Lock()
	msg := protocol.PlayerAbilities{Speed: p.speed, Movement: p.movement}
	p.mu.Unlock()
	p.SendMessage(msg)
}

// HandItem предмет под курсором
func (p *PlayerData) HandItem() *inventory.ItemStack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hand.Clone()
}

// setHand кладёт предмет под курсор и перерисовывает его
func (p *PlayerData) setHand(item *inventory.ItemStack) {
	p.mu.Lock()
	p.hand = item.Clone()
	p.mu.Unlock()

	if item == nil {
		p.SendMessage(protocol.GuiRemoveElements{Prefix: guiItemCursor})
		return
	}
	p.SendMessage(protocol.GuiSetElement{
		ID: guiItemCursor,
		Element: protocol.SlotElement(slotItem(item), "", protocol.Vec2{X: 100, Y: 100},
			vec.Position{Z: 10}, protocol.AnchorCursor),
	})
}

// SetInventoryHand алиас для обработчиков событий
func (p *PlayerData) SetInventoryHand(item *inventory.ItemStack) {
	p.setHand(item)
}

// throwHand выбрасывает предмет из-под курсора
func (p *PlayerData) throwHand() {
	p.mu.Lock()
	hand := p.hand
	p.hand = nil
	p.mu.Unlock()
	if hand != nil {
		p.entity.ThrowItem(hand)
		p.SendMessage(protocol.GuiRemoveElements{Prefix: guiItemCursor})
	}
}

// OpenInventory открыт ли чужой инвентарь
func (p *PlayerData) OpenInventory() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open != nil
}

// SetOpenInventory открывает инвентарь блока или закрывает текущий (nil).
// Предмет под курсором выбрасывается, курсор мыши блокируется, когда
// ничего не открыто.
func (p *PlayerData) SetOpenInventory(views *inventoryViews) {
	var next *openInventory
	if views != nil {
		next = &openInventory{
			views: views,
			view: &guiView{
				id:     uuid.NewString(),
				player: p,
				start:  0,
				end:    views.inv.Size(),
				layout: layoutChest,
			},
		}
	}

	p.mu.Lock()
	prev := p.open
	p.open = next
	p.mu.Unlock()

	if prev != nil {
		prev.views.remove(prev.view.id)
	}
	p.throwHand()
	p.SendMessage(protocol.SetCursorLock{Locked: views == nil})
	p.SendMessage(protocol.GuiRemoveElements{Prefix: guiCursor})
	if views == nil {
		p.SendMessage(protocol.GuiSetElement{
			ID: guiCursor,
			Element: protocol.GuiElement{
				Component: protocol.GuiComponent{
					Kind:    protocol.ComponentImage,
					Texture: "bb:cursor",
					Size:    protocol.Vec2{X: 50, Y: 50},
				},
				Anchor: protocol.AnchorCenter,
				Color:  protocol.ColorWhite,
			},
		})
		return
	}
	views.add(next.view)
}

// closeInventoryView вызывается, когда инвентарь закрывается со стороны владельца
func (p *PlayerData) closeInventoryView(id string) {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if open != nil && open.view.id == id {
		p.SetOpenInventory(nil)
		return
	}
	p.entity.views.remove(id)
}

// Destroy отписывает игрока от чанков и закрывает открытый инвентарь
func (p *PlayerData) Destroy() {
	p.loader.UnloadChunks(false)

	p.mu.Lock()
	open := p.open
	p.open = nil
	hand := p.hand
	p.hand = nil
	p.mu.Unlock()

	if open != nil {
		open.views.remove(open.view.id)
	}
	if hand != nil {
		p.entity.Inventory.AddItem(hand)
	}
	p.entity.views.remove(p.entity.id.String())
	logging.GetGameLogger().Info("Игрок %s покинул мир", p)
}

// processMessages разбирает команды клиента, накопленные с прошлого тика
func (p *PlayerData) processMessages() {
	for _, msg := range p.conn.Receive() {
		switch m := msg.(type) {
		case protocol.Keyboard:
			p.onKeyboard(m)
		case protocol.GuiClick:
			p.onGuiClick(m)
		case protocol.GuiScroll:
			p.onGuiScroll(m)
		case protocol.PlayerPosition:
			p.onPlayerPosition(m)
		case protocol.RequestBlockBreakTime:
			p.onRequestBreakTime(m)
		case protocol.BreakBlock:
			p.onBreakBlock(m)
		case protocol.RightClickBlock:
			p.onRightClickBlock(m)
		case protocol.RightClick:
			p.world().env.CallEvent(EventRightClick, RightClickEvent{Player: p.entity.clientID, Shifting: m.Shifting})
		case protocol.LeftClickEntity:
			p.onLeftClickEntity(m)
		case protocol.RightClickEntity:
			p.onRightClickEntity(m)
		case protocol.MouseScroll:
			slot := (int64(p.entity.HandSlot()) - int64(m.Y)) % hotbarSlots
			if slot < 0 {
				slot += hotbarSlots
			}
			p.entity.SetHandSlot(slot)
		case protocol.SendMessage:
			p.onChat(m.Text)
		default:
			logging.GetGameLogger().Debug("Игрок %s: неожиданное сообщение %T", p, msg)
		}
	}
}

func (p *PlayerData) world() *World {
	return p.entity.Location().World()
}

func (p *PlayerData) onKeyboard(m protocol.Keyboard) {
	if m.Pressed {
		switch {
		case m.Key == protocol.KeyQ:
			p.dropHandSlot(m.Modifiers&protocol.ModifierCtrl != 0)
		case m.Key == protocol.KeyEscape:
			if p.OpenInventory() {
				p.SetOpenInventory(nil)
			}
		default:
			if slot, ok := m.Key.Slot(); ok {
				p.entity.SetHandSlot(int64(slot))
			}
		}
	}
	p.world().env.CallEvent(EventKeyboard, KeyboardEvent{
		Player:    p.entity.clientID,
		Key:       uint16(m.Key),
		Modifiers: m.Modifiers,
		Pressed:   m.Pressed,
		Repeat:    m.Repeat,
	})
}

// dropHandSlot выбрасывает один предмет из выбранного слота или всю стопку
func (p *PlayerData) dropHandSlot(all bool) {
	var thrown *inventory.ItemStack
	p.entity.Inventory.ModifyItem(p.entity.HandSlot(), func(current *inventory.ItemStack) *inventory.ItemStack {
		if current == nil {
			return nil
		}
		if all {
			thrown = current.Clone()
			return nil
		}
		thrown = current.Copy(1)
		current.AddCount(-1)
		return current
	})
	p.entity.ThrowItem(thrown)
}

// resolveSlot находит инвентарь и слот по идентификатору элемента интерфейса
func (p *PlayerData) resolveSlot(elementID string) (*inventory.Inventory, uint32, bool) {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()

	if open != nil {
		if slot, ok := open.view.resolve(elementID); ok {
			return open.views.inv, slot, true
		}
	}
	if view, ok := p.entity.views.get(p.entity.id.String()); ok {
		if slot, ok := view.resolve(elementID); ok {
			return p.entity.Inventory, slot, true
		}
	}
	return nil, 0, false
}

func (p *PlayerData) onGuiClick(m protocol.GuiClick) {
	inv, slot, ok := p.resolveSlot(m.ID)
	if !ok {
		return
	}

	if m.Button == protocol.MouseLeft && m.Shifting {
		if p.quickMove(inv, slot) {
			return
		}
	}

	var hand *inventory.ItemStack
	var err error
	switch m.Button {
	case protocol.MouseLeft:
		hand, err = inventory.Click(p.HandItem(), inv, slot)
	case protocol.MouseRight:
		y := int32(1)
		if p.HandItem() != nil {
			y = -1
		}
		hand, err = inventory.Scroll(p.HandItem(), inv, slot, y)
	default:
		return
	}
	if err != nil {
		logging.GetGameLogger().Debug("Игрок %s: клик по слоту %d: %v", p, slot, err)
		return
	}
	p.setHand(hand)
}

// quickMove переносит стопку между своим и открытым инвентарём
func (p *PlayerData) quickMove(from *inventory.Inventory, slot uint32) bool {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if open == nil {
		return false
	}

	to := open.views.inv
	if from == open.views.inv {
		to = p.entity.Inventory
	}
	from.ModifyItem(slot, func(current *inventory.ItemStack) *inventory.ItemStack {
		if current == nil {
			return nil
		}
		return to.AddItem(current)
	})
	return true
}

func (p *PlayerData) onGuiScroll(m protocol.GuiScroll) {
	inv, slot, ok := p.resolveSlot(m.ID)
	if !ok || m.Y == 0 {
		return
	}
	hand, err := inventory.Scroll(p.HandItem(), inv, slot, m.Y)
	if err != nil {
		return
	}
	p.setHand(hand)
}

func (p *PlayerData) onPlayerPosition(m protocol.PlayerPosition) {
	p.entity.MoveTo(m.Position)
	p.entity.SetRotation(m.Rotation, m.Shifting)
	if m.Moving {
		p.entity.setAnimation(AnimationWalk)
	} else {
		p.entity.setAnimation(AnimationIdle)
	}
}

func (p *PlayerData) onRequestBreakTime(m protocol.RequestBlockBreakTime) {
	w := p.world()
	block, ok := w.GetBlock(m.Position)
	if !ok || block.IsAir() {
		return
	}
	breaking := w.env.Registries.Blocks.StateByRef(block.State()).Parent.Breaking

	var tool *registry.Item
	if hand := p.entity.HandItem(); hand != nil {
		tool = hand.Type
	}
	p.SendMessage(protocol.BlockBreakTimeResponse{
		ID:   m.ID,
		Time: breaking.Hardness / tool.BreakSpeed(breaking.Tool),
	})
}

func (p *PlayerData) onBreakBlock(m protocol.BreakBlock) {
	w := p.world()
	block, ok := w.GetBlock(m.Position)
	if !ok || block.IsAir() {
		return
	}
	w.SetBlock(m.Position, registry.Air, p)
}

func (p *PlayerData) onRightClickBlock(m protocol.RightClickBlock) {
	w := p.world()
	block, ok := w.GetBlock(m.Position)
	if !ok {
		return
	}
	if !m.Shifting && block.IsStateful() {
		p.SetOpenInventory(block.Block().views)
		return
	}

	hand := p.entity.HandItem()
	if hand == nil || hand.Type.PlaceBlock == nil {
		return
	}
	target := m.Position.Offset(m.Face)
	current, ok := w.GetBlock(target)
	if !ok {
		return
	}
	regs := w.env.Registries
	if !current.IsAir() && regs.Blocks.IsCollidable(current.State()) {
		return
	}
	if w.CollidesEntityWithBlock(target) {
		return
	}

	state := hand.Type.PlaceBlock.DefaultState
	if _, hasAxis := regs.Blocks.StateByRef(state).Property("axis"); hasAxis {
		if rotated, err := regs.Blocks.StateByRef(state).WithProperty("axis", faceAxis(m.Face)); err == nil {
			state = rotated
		}
	}
	w.SetBlock(target, state, nil)
	p.entity.Inventory.ModifyItem(p.entity.HandSlot(), func(current *inventory.ItemStack) *inventory.ItemStack {
		if current != nil {
			current.AddCount(-1)
		}
		return current
	})
}

func faceAxis(face vec.Face) string {
	switch face {
	case vec.FaceUp, vec.FaceDown:
		return "y"
	case vec.FaceLeft, vec.FaceRight:
		return "x"
	default:
		return "z"
	}
}

// findEntity ищет сущность по клиентскому номеру в соседних чанках
func (p *PlayerData) findEntity(clientID uint32) *Entity {
	loc := p.entity.Location()
	for _, c := range loc.World().ChunksAround(loc.Chunk.Position, 1) {
		for _, e := range c.Entities() {
			if e.clientID == clientID && !e.IsRemoved() {
				return e
			}
		}
	}
	return nil
}

func (p *PlayerData) onLeftClickEntity(m protocol.LeftClickEntity) {
	target := p.findEntity(m.ID)
	if target == nil || target == p.entity {
		return
	}
	yaw := float64(p.entity.Rotation()) * math.Pi / 180
	target.ApplyKnockback(vec.Position{X: -math.Sin(yaw) * 0.5, Y: 0.3, Z: -math.Cos(yaw) * 0.5}, false)
}

func (p *PlayerData) onRightClickEntity(m protocol.RightClickEntity) {
	target := p.findEntity(m.ID)
	if target == nil || target.Type.ID != registry.EntityItem {
		return
	}
	target.Inventory.ModifyItem(0, func(current *inventory.ItemStack) *inventory.ItemStack {
		if current == nil {
			return nil
		}
		return p.entity.Inventory.AddItem(current)
	})
	if target.Inventory.IsEmpty() {
		target.Remove()
	}
}

// onChat рассылает сообщение игрокам мира или выполняет команду
func (p *PlayerData) onChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		p.onCommand(strings.Fields(text[1:]))
		return
	}
	line := fmt.Sprintf("%s: %s", p, text)
	for _, other := range p.world().Players() {
		other.SendChatMessage(line)
	}
}

func (p *PlayerData) onCommand(args []string) {
	if len(args) == 0 {
		return
	}
	w := p.world()
	switch args[0] {
	case "craft":
		p.commandCraft(args[1:])
	case "tp":
		if len(args) != 4 {
			p.SendChatMessage("использование: /tp x y z")
			return
		}
		var coords [3]float64
		for i := range coords {
			v, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				p.SendChatMessage("неверная координата: " + args[i+1])
				return
			}
			coords[i] = v
		}
		p.entity.Teleport(w, vec.Position{X: coords[0], Y: coords[1], Z: coords[2]})
	case "world":
		if len(args) != 2 || w.env.Worlds == nil {
			p.SendChatMessage("использование: /world <id>")
			return
		}
		id, err := util.ParseIdentifier(args[1])
		if err != nil {
			p.SendChatMessage("неверный идентификатор мира: " + args[1])
			return
		}
		target, err := w.env.Worlds.GetOrCreateWorld(id)
		if err != nil {
			logging.GetGameLogger().Error("Не удалось открыть мир %s: %v", id, err)
			p.SendChatMessage("мир недоступен: " + id.String())
			return
		}
		p.entity.Teleport(target, vec.Position{})
	default:
		w.env.CallEvent(EventCommand, CommandEvent{
			Player:  p.entity.clientID,
			World:   w.ID.String(),
			Command: args[0],
			Args:    args[1:],
		})
	}
}

// commandCraft выполняет рецепт по идентификатору над инвентарём игрока
func (p *PlayerData) commandCraft(args []string) {
	env := p.world().env
	if len(args) != 1 || env.Recipes == nil {
		p.SendChatMessage("использование: /craft <рецепт>")
		return
	}
	id, err := util.ParseIdentifier(args[0])
	if err != nil {
		p.SendChatMessage("неверный идентификатор рецепта: " + args[0])
		return
	}
	recipe, ok := env.Recipes.ByID(id)
	if !ok {
		p.SendChatMessage("рецепт не найден: " + id.String())
		return
	}
	inv := p.entity.Inventory
	if !recipe.HasIngredients(inv) || !recipe.HasOutputSpace(inv) {
		p.SendChatMessage("не хватает предметов или места")
		return
	}
	if err := recipe.ConsumeInputs(inv); err != nil {
		p.SendChatMessage("не удалось скрафтить: " + err.Error())
		return
	}
	if err := recipe.AddOutputs(inv); err != nil {
		logging.GetGameLogger().Warn("Игрок %s: выход рецепта %s не поместился: %v", p, id, err)
	}
	p.SendChatMessage("скрафчено: " + id.String())
}
