package sudoku

import (
	"time"

	"partyrooms/game"
)

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Player
}

type View struct {
	game.Header `json:"header"`
	Settings    Settings     `json:"settings"`
	Players     []PlayerView `json:"players"`
	Board       *[81]int     `json:"board,omitempty"`
	Givens      *[81]bool    `json:"givens,omitempty"`
	Solution    *[81]int     `json:"solution,omitempty"`
	Rating      int          `json:"rating"`
	Hearts      int          `json:"hearts"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	EndsAt      *time.Time   `json:"endsAt,omitempty"`
	Result      *Result      `json:"result,omitempty"`
}

// View never carries the solution before the game is over.
func (g *Game) View(viewerID string) any {
	v := View{
		Header:   g.Head,
		Settings: g.Settings,
		Players:  make([]PlayerView, 0, len(g.Players)),
		Hearts:   g.Hearts,
		Result:   g.Result,
	}
	for _, m := range g.Head.Members {
		if p, ok := g.Players[m.ID]; ok {
			v.Players = append(v.Players, PlayerView{ID: m.ID, Name: m.Name, Player: *p})
		}
	}
	if g.Head.Status == game.StatusWaiting {
		return v
	}
	board, givens := g.Board, g.Givens
	v.Board, v.Givens = &board, &givens
	v.Rating = g.Rating
	started := g.StartedAt
	v.StartedAt = &started
	if d := g.Deadline(); !d.IsZero() {
		v.EndsAt = &d
	}
	if g.Head.Status == game.StatusFinished {
		solution := g.Solution
		v.Solution = &solution
	}
	return v
}
