package wordle

import (
	"time"

	"partyrooms/game"
)

type PlayerView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Playing bool   `json:"playing"`
	// Hidden is set when the entry below is withheld from this viewer.
	Hidden   bool       `json:"hidden,omitempty"`
	Attempts []Attempt  `json:"attempts"`
	Solved   bool       `json:"solved"`
	Done     bool       `json:"done"`
	DoneAt   *time.Time `json:"doneAt,omitempty"`
}

type View struct {
	game.Header `json:"header"`
	Settings    Settings     `json:"settings"`
	Players     []PlayerView `json:"players"`
	Target      string       `json:"target,omitempty"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	EndsAt      *time.Time   `json:"endsAt,omitempty"`
	Ranking     []string     `json:"ranking,omitempty"`
}

// View reveals the target once the game has started. In the hidden variant
// nobody sees another player's board until the game is over.
func (g *Game) View(viewerID string) any {
	v := View{
		Header:   g.Head,
		Settings: g.Settings,
		Players:  make([]PlayerView, 0, len(g.Players)),
		Ranking:  g.Ranking,
	}
	if g.Head.Status != game.StatusWaiting {
		v.Target = g.Target
		v.StartedAt = timePtr(g.StartedAt)
		v.EndsAt = timePtr(g.Deadline())
	}
	hide := g.Settings.Variant == VariantHidden && g.Head.Status != game.StatusFinished

	for _, m := range g.Head.Members {
		p, ok := g.Players[m.ID]
		if !ok {
			continue
		}
		pv := PlayerView{ID: m.ID, Name: m.Name, Playing: p.Playing}
		if hide && m.ID != viewerID {
			pv.Hidden = true
		} else {
			pv.Attempts = p.Attempts
			pv.Solved = p.Solved
			pv.Done = p.Done
			pv.DoneAt = timePtr(p.DoneAt)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
