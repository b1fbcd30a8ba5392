package game

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Inbound message types every game understands.
const (
	TypeJoin    = "join"
	TypeLeave   = "leave"
	TypeRestart = "restart"
	TypePing    = "ping"
)

type ViewerFlags struct {
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
	Joined   bool   `json:"joined"`
}

type PacketState struct {
	Type        string      `json:"type"`
	State       any         `json:"state"`
	ViewerFlags ViewerFlags `json:"viewerFlags"`
}

type PacketError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PacketPong struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

type PacketPlayerJoined struct {
	Type   string `json:"type"`
	Player Member `json:"player"`
}

type PacketPlayerLeft struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	HostID   string `json:"hostId"`
}

func MakePacketState(state any, flags ViewerFlags) PacketState {
	return PacketState{Type: "state", State: state, ViewerFlags: flags}
}

func MakePacketError(code, message string) PacketError {
	return PacketError{Type: "error", Code: code, Message: message}
}

func MakePacketPong(now time.Time) PacketPong {
	return PacketPong{Type: "pong", ServerTime: now.UnixMilli()}
}

func MakePacketPlayerJoined(m Member) PacketPlayerJoined {
	return PacketPlayerJoined{Type: "player-joined", Player: m}
}

func MakePacketPlayerLeft(id, hostID string) PacketPlayerLeft {
	return PacketPlayerLeft{Type: "player-left", PlayerID: id, HostID: hostID}
}

type inboundHead struct {
	Type string `json:"type"`
}

type joinPayload struct {
	Name string `json:"name"`
}

const maxNameLength = 20

func parseHead(raw []byte) (string, error) {
	var head inboundHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", InvalidPayload("malformed message")
	}
	if head.Type == "" {
		return "", InvalidPayload("missing message type")
	}
	return head.Type, nil
}

func parseJoin(raw []byte) (string, error) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", InvalidPayload("malformed join")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", InvalidPayload("name must be 1 to %d characters", maxNameLength)
	}
	return name, nil
}

// Decode parses a command payload into its typed form.
func Decode[T any](cmd Command) (T, error) {
	var v T
	if err := json.Unmarshal(cmd.Payload, &v); err != nil {
		return v, InvalidPayload("malformed %s", cmd.Type)
	}
	return v, nil
}
