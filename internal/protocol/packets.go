package protocol

import "encoding/json"

// Inbound event names emitted by the client
const (
	EventSpawn            = "spawn"
	EventText             = "text"
	EventDisconnect       = "disconnect"
	EventKick             = "kick"
	EventClose            = "close"
	EventError            = "error"
	EventContainerOpen    = "container_open"
	EventInventoryContent = "inventory_content"
	EventContainerClose   = "container_close"
)

// Outbound packet names
const (
	PacketLogin            = "login"
	PacketText             = "text"
	PacketCommandRequest   = "command_request"
	PacketItemStackRequest = "item_stack_request"
	PacketContainerClose   = "container_close"
	PacketPlayerHotbar     = "player_hotbar"
	PacketPlayerAction     = "player_action"
)

// Event is one decoded frame from the server
type Event struct {
	Name    string
	Payload json.RawMessage
}

// EventHandler receives every event the client emits
type EventHandler func(Event)

// frame is the wire representation of a packet in either direction
type frame struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LoginPacket authenticates the session after the transport opens
type LoginPacket struct {
	Username string `json:"username"`
}

// TextPacket carries a chat or system message
type TextPacket struct {
	Message string `json:"message"`
}

// DisconnectPacket carries the server's reason for ending the session
type DisconnectPacket struct {
	Message string `json:"message"`
}

// ErrorPacket carries a transport-layer error message
type ErrorPacket struct {
	Message string `json:"message"`
}

// CommandRequestPacket asks the server to run a slash command
type CommandRequestPacket struct {
	Command string `json:"command"`
}

// Slot is one inventory slot of a container snapshot
type Slot struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// ContainerOpenPacket announces a server-opened container window
type ContainerOpenPacket struct {
	WindowID int `json:"window_id"`
}

// InventoryContentPacket carries the slot contents of an open window
type InventoryContentPacket struct {
	WindowID int    `json:"window_id"`
	Slots    []Slot `json:"slots"`
}

// ContainerClosePacket closes a window, in either direction
type ContainerClosePacket struct {
	WindowID int `json:"window_id"`
}

// ItemStackRequestPacket moves the item at Slot of window WindowID
// into the player inventory
type ItemStackRequestPacket struct {
	WindowID int `json:"window_id"`
	Slot     int `json:"slot"`
}

// PlayerHotbarPacket selects a hotbar slot
type PlayerHotbarPacket struct {
	Slot int `json:"slot"`
}

// Player action names
const (
	ActionDropStack = "drop_stack"
)

// PlayerActionPacket performs a world action with the held item
type PlayerActionPacket struct {
	Action string `json:"action"`
}
