package model

import "encoding/json"

// Message types carried in the "type" field of every envelope.
// Inbound and outbound video/audio/coffee_invite share the same tag.
const (
	TypeCreateRoom   = "create_room"
	TypeJoin         = "join"
	TypeVideoUpdate  = "video_update"
	TypeAudioUpdate  = "audio_update"
	TypeCoffeeInvite = "coffee_invite"
	TypeCoffeeAccept = "coffee_accept"
	TypeCoffeeLeave  = "coffee_leave"
	TypeKeyDown      = "keydown"
	TypeKeyUp        = "keyup"

	TypeRoomCreated  = "room_created"
	TypeWelcome      = "welcome"
	TypePlayerUpdate = "player_update"
	TypeWorldUpdate  = "world_update"
	TypeCoffeeStart  = "coffee_start"
	TypeCoffeeEnded  = "coffee_ended"
)

// Envelope is a single inbound client message. Only the fields relevant
// to Type are populated; media payloads stay opaque.
type Envelope struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	RoomCode string          `json:"room_code,omitempty"`
	Key      string          `json:"key,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	ToID     string          `json:"to_id,omitempty"`
	Frame    json.RawMessage `json:"frame,omitempty"`
	Chunk    json.RawMessage `json:"chunk,omitempty"`
}

type RoomCreated struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

type Welcome struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Username string `json:"username"`
	RoomCode string `json:"room_code"`
}

type PlayerEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsLeader bool   `json:"is_leader"`
}

type PlayerUpdate struct {
	Type    string        `json:"type"`
	Players []PlayerEntry `json:"players"`
	Leader  string        `json:"leader"`
}

// AvatarState is one participant's slice of a world_update snapshot.
type AvatarState struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Username    string  `json:"username"`
	IsMoving    bool    `json:"is_moving"`
	FacingRight bool    `json:"facing_right"`
	IsChatting  bool    `json:"is_chatting"`
}

type WorldUpdate struct {
	Type    string                 `json:"type"`
	Players map[string]AvatarState `json:"players"`
}

type VideoUpdate struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Frame    json.RawMessage `json:"frame"`
}

type AudioUpdate struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Chunk json.RawMessage `json:"chunk"`
}

type CoffeeInvite struct {
	Type       string `json:"type"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
}

type CoffeeStart struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

type CoffeeEnded struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

// Wire is the channel pair bridging one websocket connection and the
// core. The transport feeds decoded envelopes into RX and drains TX;
// the wire pointer itself is the connection's identity inside the core.
type Wire struct {
	RX chan Envelope
	TX chan any
}

func NewWire() *Wire {
	return &Wire{
		RX: make(chan Envelope),
		TX: make(chan any, 32),
	}
}

// Status payloads served by the introspection endpoint.
type ParticipantStatus struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Username string  `json:"username"`
}

type RoomStatus struct {
	Players map[string]ParticipantStatus `json:"players"`
}

type Status struct {
	Message          string                `json:"message"`
	ActiveRooms      int                   `json:"active_rooms"`
	TotalConnections int                   `json:"total_connections"`
	Games            map[string]RoomStatus `json:"games"`
}
