package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"partyrooms/domain"
	"partyrooms/logger"
)

const (
	sweepInterval   = time.Second
	maxJoinAttempts = 5
	maxCodeAttempts = 20
)

type acquireRequest struct {
	kind, code string
	resp       chan acquireResult
}

type acquireResult struct {
	room *Room
	err  error
}

type releaseRequest struct {
	room *Room
	resp chan bool
}

// Lobby maps room keys to live actors. Only LobbyActor touches rooms and
// descriptions.
type Lobby struct {
	factories     map[string]Factory
	store         Store
	clock         Clock
	codes         UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator

	rooms        map[string]*Room
	descriptions map[string]RoomDescription

	acquireReqs  chan acquireRequest
	releaseReqs  chan releaseRequest
	descUpdates  chan RoomDescription
	pubRoomsReqs chan chan []RoomDescription
	done         chan struct{}

	log zerolog.Logger
}

func NewLobby(factories []Factory, store Store, clock Clock, codes UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator) *Lobby {
	byKind := make(map[string]Factory, len(factories))
	for _, f := range factories {
		byKind[f.Kind()] = f
	}
	return &Lobby{
		factories:     byKind,
		store:         store,
		clock:         clock,
		codes:         codes,
		tickerCreator: tickerCreator,
		rooms:         map[string]*Room{},
		descriptions:  map[string]RoomDescription{},
		acquireReqs:   make(chan acquireRequest, 32),
		releaseReqs:   make(chan releaseRequest, 32),
		descUpdates:   make(chan RoomDescription, 256),
		pubRoomsReqs:  make(chan chan []RoomDescription, 256),
		done:          make(chan struct{}),
		log:           logger.Component("lobby"),
	}
}

// Kinds lists the registered game kinds, sorted.
func (l *Lobby) Kinds() []string {
	kinds := make([]string, 0, len(l.factories))
	for k := range l.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (l *Lobby) HasKind(kind string) bool {
	_, ok := l.factories[kind]
	return ok
}

// LobbyActor runs until ctx is cancelled. Rooms are started with the same ctx,
// so they stop with it.
func (l *Lobby) LobbyActor(ctx context.Context, started chan struct{}) {
	ticker := l.tickerCreator.Create(sweepInterval)
	defer close(l.done)
	close(started)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case req := <-l.acquireReqs:
			room, err := l.handleAcquire(ctx, req.kind, req.code)
			req.resp <- acquireResult{room: room, err: err}
		case req := <-l.releaseReqs:
			req.resp <- l.handleRelease(req.room)
		case desc := <-l.descUpdates:
			l.handleDescriptionUpdate(desc)
		case resp := <-l.pubRoomsReqs:
			l.handleGetPublicRooms(resp)
		}
	}
}

func (l *Lobby) handleAcquire(ctx context.Context, kind, code string) (*Room, error) {
	factory, ok := l.factories[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	key := RoomKey(kind, code)
	if r, ok := l.rooms[key]; ok {
		return r, nil
	}
	r := NewRoom(kind, code, factory, l.store, l.clock, l)
	l.rooms[key] = r
	go r.Run(ctx)
	l.log.Debug().Str("room", key).Msg("room actor started")
	return r, nil
}

// handleRelease only agrees when r is still the registered actor for its key;
// after agreeing the room is gone from the map, so the next acquire starts a
// fresh actor that reloads from storage.
func (l *Lobby) handleRelease(r *Room) bool {
	if l.rooms[r.key] != r {
		return true
	}
	delete(l.rooms, r.key)
	delete(l.descriptions, r.key)
	return true
}

func (l *Lobby) handleDescriptionUpdate(desc RoomDescription) {
	if _, live := l.rooms[desc.Key]; !live || desc.private || desc.Status == "" {
		delete(l.descriptions, desc.Key)
		return
	}
	l.descriptions[desc.Key] = desc
}

func (l *Lobby) handleGetPublicRooms(resp chan []RoomDescription) {
	out := make([]RoomDescription, 0, len(l.descriptions))
	for _, d := range l.descriptions {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b RoomDescription) int { return strings.Compare(a.Key, b.Key) })
	resp <- out
}

func (l *Lobby) acquire(ctx context.Context, kind, code string) (*Room, error) {
	req := acquireRequest{kind: kind, code: code, resp: make(chan acquireResult, 1)}
	select {
	case l.acquireReqs <- req:
	case <-l.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := <-req.resp
	return res.room, res.err
}

// Connect hands client to the room kind/code, starting its actor if needed.
// On success the client's pumps may be started.
func (l *Lobby) Connect(ctx context.Context, kind, code string, client *Client, settings Settings, host bool) error {
	for range maxJoinAttempts {
		room, err := l.acquire(ctx, kind, code)
		if err != nil {
			return err
		}
		err = room.RequestJoin(ctx, client, settings, host)
		if !errors.Is(err, ErrRoomClosed) {
			return err
		}
	}
	return ErrRoomClosed
}

// Resume starts an actor for every room with a durable alarm, so deadlines
// that were pending when the process stopped still fire.
func (l *Lobby) Resume(ctx context.Context) (int, error) {
	alarms, err := l.store.PendingAlarms(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing pending alarms: %w", err)
	}
	resumed := 0
	for _, a := range alarms {
		kind, code, ok := strings.Cut(a.Key, "/")
		if !ok {
			l.log.Warn().Str("room", a.Key).Msg("skipping malformed alarm key")
			continue
		}
		if _, err := l.acquire(ctx, kind, code); err != nil {
			l.log.Warn().Err(err).Str("room", a.Key).Msg("resuming room")
			continue
		}
		resumed++
	}
	return resumed, nil
}

// ReserveCode returns a fresh code with no stored state for kind.
func (l *Lobby) ReserveCode(ctx context.Context, kind string) (string, error) {
	if !l.HasKind(kind) {
		return "", ErrUnknownKind
	}
	for range maxCodeAttempts {
		code := l.codes.Generate()
		_, err := l.store.Get(ctx, RoomKey(kind, code))
		if errors.Is(err, domain.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("no free room code")
}

func (l *Lobby) PublicRooms(ctx context.Context) []RoomDescription {
	resp := make(chan []RoomDescription, 1)
	select {
	case l.pubRoomsReqs <- resp:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case rooms := <-resp:
		return rooms
	case <-ctx.Done():
		return nil
	}
}

func (l *Lobby) RequestUpdateDescription(desc RoomDescription) {
	select {
	case l.descUpdates <- desc:
	default:
	}
}

// Release asks whether r may exit. It is called from the room goroutine.
func (l *Lobby) Release(r *Room) bool {
	req := releaseRequest{room: r, resp: make(chan bool, 1)}
	select {
	case l.releaseReqs <- req:
		return <-req.resp
	case <-l.done:
		return true
	}
}

func (l *Lobby) Done() <-chan struct{} {
	return l.done
}
