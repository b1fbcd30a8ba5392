// Package sudoku is the cooperative Sudoku race with shared hearts.
package sudoku

import (
	"encoding/json"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "sudoku"

const (
	ModeNormal   = "normal"
	ModeHardcore = "hardcore"
)

const (
	ReasonSolved      = "solved"
	ReasonOutOfHearts = "out-of-hearts"
	ReasonTimeout     = "timeout"
)

const (
	normalHearts   = 3
	hardcoreHearts = 1
	maxPlayers     = 8
)

type Player struct {
	Score    int `json:"score"`
	Mistakes int `json:"mistakes"`
}

type Settings struct {
	Difficulty string        `json:"difficulty"`
	Mode       string        `json:"mode"`
	TimeLimit  time.Duration `json:"timeLimit"`
}

type Result struct {
	Won    bool   `json:"won"`
	Reason string `json:"reason"`
}

type Game struct {
	Head     game.Header        `json:"header"`
	Settings Settings           `json:"settings"`
	Players  map[string]*Player `json:"players"`
	// Board is what is filled so far, givens included. Zero is empty.
	Board     [81]int   `json:"board"`
	Givens    [81]bool  `json:"givens"`
	Solution  [81]int   `json:"solution"`
	Rating    int       `json:"rating"`
	Hearts    int       `json:"hearts"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
	Result    *Result   `json:"result"`

	deps Deps
}

type Deps struct {
	Puzzles content.PuzzleGenerator
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
			Difficulty: game.EnumSetting(s, "difficulty", content.DifficultyMedium,
				content.DifficultyEasy, content.DifficultyMedium, content.DifficultyHard),
			Mode:      game.EnumSetting(s, "mode", ModeNormal, ModeNormal, ModeHardcore),
			TimeLimit: game.SecondsSetting(s, "timeLimit", 0, 60*time.Second, 3600*time.Second, true),
		},
		Players: map[string]*Player{},
		deps:    f.deps,
	}
}

func (f *factory) Restore(state []byte) (game.Machine, error) {
	g := &Game{}
	if err := json.Unmarshal(state, g); err != nil {
		return nil, err
	}
	if g.Players == nil {
		g.Players = map[string]*Player{}
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
	return g.EndsAt
}

func (g *Game) Reset(now time.Time) {
	g.Head.Status = game.StatusWaiting
	g.Players = make(map[string]*Player, len(g.Head.Members))
	for _, m := range g.Head.Members {
		g.Players[m.ID] = &Player{}
	}
	g.Board = [81]int{}
	g.Givens = [81]bool{}
	g.Solution = [81]int{}
	g.Rating = 0
	g.Hearts = 0
	g.StartedAt = time.Time{}
	g.EndsAt = time.Time{}
	g.Result = nil
}

func (g *Game) startingHearts() int {
	if g.Settings.Mode == ModeHardcore {
		return hardcoreHearts
	}
	return normalHearts
}

func (g *Game) complete() bool {
	for _, v := range g.Board {
		if v == 0 {
			return false
		}
	}
	return true
}
