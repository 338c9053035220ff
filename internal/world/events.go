package world

import (
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
)

// Идентификаторы событий, которые мир передаёт обработчикам
var (
	EventPlayerJoin = util.BB("player_join")
	EventKeyboard   = util.BB("keyboard")
	EventRightClick = util.BB("right_click")
	EventCommand    = util.BB("command")
)

// PlayerJoinEvent игрок появился в мире
type PlayerJoinEvent struct {
	Player   uint32       `json:"player"`
	World    string       `json:"world"`
	Position vec.Position `json:"position"`
}

// KeyboardEvent нажатие или отпускание клавиши
type KeyboardEvent struct {
	Player    uint32 `json:"player"`
	Key       uint16 `json:"key"`
	Modifiers uint8  `json:"modifiers"`
	Pressed   bool   `json:"pressed"`
	Repeat    bool   `json:"repeat"`
}

// RightClickEvent клик правой кнопкой не по блоку
type RightClickEvent struct {
	Player   uint32 `json:"player"`
	Shifting bool   `json:"shifting"`
}

// CommandEvent незнакомая серверу команда чата
type CommandEvent struct {
	Player  uint32   `json:"player"`
	World   string   `json:"world"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}
