package game

import (
	"context"
	"net/url"
	"time"
)

// Machine is one game's turn state machine. Implementations are the game
// state itself: they mutate in place, which is safe because only the owning
// room goroutine ever calls them.
type Machine interface {
	Header() *Header
	// Apply validates and applies one event. A *CommandError means nothing
	// was mutated.
	Apply(ctx context.Context, ev Event) (Outcome, error)
	// View is the per-viewer projection. It must not mutate.
	View(viewerID string) any
	// Deadline is the single pending phase deadline, zero when none.
	Deadline() time.Time
	// Reset replaces the game content with a fresh default, keeping the
	// header's host and members.
	Reset(now time.Time)
	MaxPlayers() int
}

// Factory creates and restores the machines of one game kind.
type Factory interface {
	Kind() string
	New(settings Settings, hostID string, now time.Time) Machine
	Restore(state []byte) (Machine, error)
}

type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
}

type Alarm struct {
	Key    string
	FireAt time.Time
}

type AlarmStore interface {
	SetAlarm(ctx context.Context, key string, at time.Time) error
	DeleteAlarm(ctx context.Context, key string) error
	PendingAlarms(ctx context.Context) ([]Alarm, error)
}

// Store is what a room needs from durable storage.
type Store interface {
	StateStore
	AlarmStore
}

type Scheduler interface {
	Arm(ctx context.Context, at time.Time) error
	Cancel(ctx context.Context) error
	Pending() time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
}

type Socket interface {
	Close(reason string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type UniqueIdGenerator interface {
	Generate() string
}

type PeriodicTickerChannelCreator interface {
	Create(d time.Duration) <-chan time.Time
}

type Settings = url.Values
