package game

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type roomParent interface {
	RequestUpdateDescription(desc RoomDescription)
	Release(r *Room) bool
}

type roomJoinRequest struct {
	client   *Client
	settings Settings
	host     bool
	errChan  chan error
}

// Room is the single writer of one game's state. Every field below the
// channels is owned by the Run goroutine.
type Room struct {
	key     string
	kind    string
	code    string
	private bool

	factory   Factory
	store     Store
	scheduler Scheduler
	clock     Clock
	parent    roomParent

	machine  Machine
	snapshot []byte
	broken   error
	clients  map[string]*Client
	order    []string

	inbox    chan clientEnvelope
	joinReqs chan roomJoinRequest
	removals chan *Client
	alarms   chan time.Time
	ticks    chan time.Time
	done     chan struct{}

	log zerolog.Logger
}

func NewRoom(kind, code string, factory Factory, store Store, clock Clock, parent roomParent) *Room {
	key := RoomKey(kind, code)
	r := &Room{
		key:      key,
		kind:     kind,
		code:     code,
		factory:  factory,
		store:    store,
		clock:    clock,
		parent:   parent,
		clients:  make(map[string]*Client),
		order:    make([]string, 0, 8),
		inbox:    make(chan clientEnvelope, 1024),
		joinReqs: make(chan roomJoinRequest),
		removals: make(chan *Client, 64),
		alarms:   make(chan time.Time, 4),
		ticks:    make(chan time.Time, 1),
		done:     make(chan struct{}),
		log:      log.With().Str("room", key).Str("kind", kind).Logger(),
	}
	r.scheduler = NewAlarmScheduler(key, store, clock, r.alarms, r.done)
	return r
}

func RoomKey(kind, code string) string {
	return kind + "/" + code
}

func (r *Room) Key() string {
	return r.key
}

func (r *Room) Done() <-chan struct{} {
	return r.done
}

// RequestJoin hands a new connection to the room and waits for the verdict.
// ErrRoomClosed means the actor was evicted meanwhile; the caller retries
// through the lobby.
func (r *Room) RequestJoin(ctx context.Context, client *Client, settings Settings, host bool) error {
	req := roomJoinRequest{client: client, settings: settings, host: host, errChan: make(chan error, 1)}
	select {
	case r.joinReqs <- req:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.errChan
}

func (r *Room) Deliver(ctx context.Context, env clientEnvelope) bool {
	select {
	case r.inbox <- env:
		return true
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}
}

func (r *Room) RemoveMe(c *Client) {
	select {
	case r.removals <- c:
	case <-r.done:
	}
}

// Tick wakes the room so it can notice it became idle. Never blocks.
func (r *Room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *Room) Description() RoomDescription {
	desc := RoomDescription{Key: r.key, Kind: r.kind, Code: r.code, private: r.private}
	if r.machine != nil {
		h := r.machine.Header()
		desc.Players = len(h.Members)
		desc.Status = h.Status
	}
	return desc
}
