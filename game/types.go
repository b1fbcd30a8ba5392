package game

import (
	"encoding/json"
	"slices"
	"time"
)

// Status is the room-level lifecycle shared by every game.
type Status string

const (
	StatusWaiting       Status = "waiting"
	StatusTeamSelection Status = "team-selection"
	StatusPlaying       Status = "playing"
	StatusFinished      Status = "finished"
)

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Header is embedded in every game state. Members keeps join order, which is
// what host migration picks from.
type Header struct {
	Status  Status   `json:"status"`
	HostID  string   `json:"hostId"`
	Members []Member `json:"members"`
}

func NewHeader(hostID string) Header {
	return Header{Status: StatusWaiting, HostID: hostID, Members: []Member{}}
}

func (h *Header) IsHost(id string) bool {
	return id != "" && h.HostID == id
}

func (h *Header) Member(id string) (Member, bool) {
	i := slices.IndexFunc(h.Members, func(m Member) bool { return m.ID == id })
	if i < 0 {
		return Member{}, false
	}
	return h.Members[i], true
}

func (h *Header) IsMember(id string) bool {
	_, ok := h.Member(id)
	return ok
}

func (h *Header) addMember(m Member) {
	h.Members = append(h.Members, m)
}

func (h *Header) removeMember(id string) bool {
	n := len(h.Members)
	h.Members = slices.DeleteFunc(h.Members, func(m Member) bool { return m.ID == id })
	return len(h.Members) != n
}

// migrateHost hands the host role to the first remaining member, falling back
// to any still-connected id. With nobody left the room keeps an orphaned host.
func (h *Header) migrateHost(departed string, connected []string) {
	if h.HostID != departed {
		return
	}
	if len(h.Members) > 0 {
		h.HostID = h.Members[0].ID
		return
	}
	for _, id := range connected {
		if id != departed {
			h.HostID = id
			return
		}
	}
}

// Event is one input to a Machine. The concrete types are Joined, Left,
// Command and AlarmFired.
type Event interface {
	isEvent()
}

type Joined struct {
	Member Member
	At     time.Time
}

type Left struct {
	ID string
	At time.Time
}

type Command struct {
	Sender  string
	Type    string
	Payload json.RawMessage
	At      time.Time
}

type AlarmFired struct {
	At time.Time
}

func (Joined) isEvent()     {}
func (Left) isEvent()       {}
func (Command) isEvent()    {}
func (AlarmFired) isEvent() {}

// Outcome tells the room what to do after a machine accepted an event.
// Quiet outcomes are persisted but only their Events are sent, without a
// fresh state snapshot (drawing strokes).
type Outcome struct {
	Changed bool
	Quiet   bool
	Events  []Send
}

// Send is an outbound packet. An empty To means every connection.
type Send struct {
	To     string
	Packet any
}

func Changed(events ...Send) Outcome {
	return Outcome{Changed: true, Events: events}
}

func Broadcast(packet any) Send {
	return Send{Packet: packet}
}

func Unicast(to string, packet any) Send {
	return Send{To: to, Packet: packet}
}

// RoomDescription is what the lobby lists for public rooms.
type RoomDescription struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Players int    `json:"players"`
	Status  Status `json:"status"`
	private bool
}
