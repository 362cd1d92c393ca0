package domain

import "github.com/bytedance/sonic"

// Inbound event names understood by the sync engine.
const (
	EventRoomJoin   = "room:join"
	EventTaskAdd    = "task:add"
	EventTaskUpdate = "task:update"
	EventTaskDelete = "task:delete"
)

// Outbound event names emitted by the sync engine.
const (
	EventRoomState    = "room:state"
	EventRoomPresence = "room:presence"
	EventRoomError    = "room:error"
	EventTaskList     = "task:list"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string                 `json:"event"`
	Data  sonic.NoCopyRawMessage `json:"data,omitempty"`
}

// TaskAddPayload is the data of a task:add event.
type TaskAddPayload struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

// TaskUpdatePayload is the data of a task:update event.
type TaskUpdatePayload struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

// TaskDeletePayload is the data of a task:delete event.
type TaskDeletePayload struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
}

// RoomStatePayload is sent to a connection right after it joins a room.
type RoomStatePayload struct {
	Tasks []Task `json:"tasks"`
}

// PresencePayload lists the connection ids currently joined to a room.
type PresencePayload struct {
	Users []string `json:"users"`
}

// ErrorPayload is sent to the originating connection when its event is dropped.
type ErrorPayload struct {
	Error string `json:"error"`
}
