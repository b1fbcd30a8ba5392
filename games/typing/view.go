package typing

import (
	"time"

	"partyrooms/game"
)

type RacerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Racer
}

type View struct {
	game.Header   `json:"header"`
	Settings      Settings    `json:"settings"`
	Racers        []RacerView `json:"racers"`
	Passage       string      `json:"passage,omitempty"`
	Phase         Phase       `json:"phase,omitempty"`
	PhaseEndsAt   *time.Time  `json:"phaseEndsAt,omitempty"`
	RaceStartedAt *time.Time  `json:"raceStartedAt,omitempty"`
}

// View keeps the passage back until the countdown is over.
func (g *Game) View(viewerID string) any {
	v := View{
		Header:   g.Head,
		Settings: g.Settings,
		Racers:   make([]RacerView, 0, len(g.Racers)),
		Phase:    g.Phase,
	}
	for _, m := range g.Head.Members {
		if r, ok := g.Racers[m.ID]; ok {
			v.Racers = append(v.Racers, RacerView{ID: m.ID, Name: m.Name, Racer: *r})
		}
	}
	if g.Head.Status == game.StatusFinished || g.Phase == PhaseRacing {
		v.Passage = g.Passage
	}
	if d := g.Deadline(); !d.IsZero() {
		v.PhaseEndsAt = &d
	}
	if !g.RaceStartedAt.IsZero() {
		started := g.RaceStartedAt
		v.RaceStartedAt = &started
	}
	return v
}
