package inventory

// Click обрабатывает клик левой кнопкой по слоту с предметом в руке (курсоре).
// Стопки одного типа сначала сливаются в руку, затем рука и слот меняются местами.
// Возвращает новое содержимое руки.
func Click(hand *ItemStack, inv *Inventory, slot uint32) (*ItemStack, error) {
	hand = hand.Clone()
	var newHand *ItemStack

	err := inv.ModifyItem(slot, func(current *ItemStack) *ItemStack {
		if hand.SameType(current) && !hand.Full() && !current.Full() {
			transfer := min(hand.Type.StackSize-hand.count, current.count)
			hand.count += transfer
			current.count -= transfer
		}
		if current != nil && current.count == 0 {
			current = nil
		}
		newHand = current.Clone()
		return hand
	})
	if err != nil {
		return hand, err
	}
	return newHand, nil
}

// Scroll переносит один предмет между рукой и слотом.
// При y < 0 предмет уходит из руки в слот, иначе из слота в руку.
func Scroll(hand *ItemStack, inv *Inventory, slot uint32, y int32) (*ItemStack, error) {
	hand = hand.Clone()

	err := inv.ModifyItem(slot, func(current *ItemStack) *ItemStack {
		if y < 0 {
			hand, current = transferOne(hand, current)
		} else {
			current, hand = transferOne(current, hand)
		}
		return current
	})
	if hand != nil && hand.count == 0 {
		hand = nil
	}
	return hand, err
}

// transferOne переносит один предмет из from в to
func transferOne(from, to *ItemStack) (*ItemStack, *ItemStack) {
	if from == nil || from.count == 0 {
		return from, to
	}
	switch {
	case to == nil:
		to = NewItemStack(from.Type, 1)
		from.count--
	case to.Type == from.Type && !to.Full():
		to.count++
		from.count--
	}
	if from.count == 0 {
		from = nil
	}
	return from, to
}
