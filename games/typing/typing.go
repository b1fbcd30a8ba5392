// Package typing is the typing race: everyone types the same passage and the
// server keeps the authoritative progress.
package typing

import (
	"encoding/json"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "typing"

type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
)

const (
	countdown  = 3 * time.Second
	maxPlayers = 10
)

type Racer struct {
	// Racing is set for members present at start.
	Racing   bool          `json:"racing"`
	Position int           `json:"position"`
	Mistakes int           `json:"mistakes"`
	Place    int           `json:"place,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	WPM      float64       `json:"wpm,omitempty"`
}

func (r *Racer) finished() bool {
	return r.Place > 0
}

type Settings struct {
	TimeLimit time.Duration `json:"timeLimit"`
}

type Game struct {
	Head     game.Header       `json:"header"`
	Settings Settings          `json:"settings"`
	Racers   map[string]*Racer `json:"racers"`
	Passage  string            `json:"passage"`
	Phase    Phase             `json:"phase"`
	// PhaseEndsAt is the end of the countdown or of the race.
	PhaseEndsAt   time.Time `json:"phaseEndsAt"`
	RaceStartedAt time.Time `json:"raceStartedAt"`
	Finishers     int       `json:"finishers"`

	deps Deps
}

type Deps struct {
	Passages content.WordSource
}

type factory struct {
	deps Deps
}

func NewFactory(deps Deps) game.Factory {
	return &factory{deps: deps}
}

func (f *factory) Kind() string {
	return Kind
}

func (f *factory) New(s game.Settings, hostID string, now time.Time) game.Machine {
	return &Game{
		Head: game.NewHeader(hostID),
		Settings: Settings{
			TimeLimit: game.SecondsSetting(s, "timeLimit", 120*time.Second, 30*time.Second, 300*time.Second, false),
		},
		Racers: map[string]*Racer{},
		deps:   f.deps,
	}
}

func (f *factory) Restore(state []byte) (game.Machine, error) {
	g := &Game{}
	if err := json.Unmarshal(state, g); err != nil {
		return nil, err
	}
	if g.Racers == nil {
		g.Racers = map[string]*Racer{}
	}
	g.deps = f.deps
	return g, nil
}

func (g *Game) Header() *game.Header {
	return &g.Head
}

func (g *Game) MaxPlayers() int {
	return maxPlayers
}

func (g *Game) Deadline() time.Time {
	if g.Head.Status != game.StatusPlaying {
		return time.Time{}
	}
	return g.PhaseEndsAt
}

func (g *Game) Reset(now time.Time) {
	g.Head.Status = game.StatusWaiting
	g.Racers = make(map[string]*Racer, len(g.Head.Members))
	for _, m := range g.Head.Members {
		g.Racers[m.ID] = &Racer{}
	}
	g.Passage = ""
	g.Phase = ""
	g.PhaseEndsAt = time.Time{}
	g.RaceStartedAt = time.Time{}
	g.Finishers = 0
}
