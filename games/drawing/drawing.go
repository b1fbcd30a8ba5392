// Package drawing is the draw-and-guess game. Each player draws once per
// round while everyone else guesses the word.
package drawing

import (
	"encoding/json"
	"slices"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "drawing"

type Phase string

const (
	PhaseChoosing Phase = "choosing-word"
	PhaseDrawing  Phase = "drawing"
	PhaseSummary  Phase = "turn-summary"
)

const (
	minPlayers  = 2
	maxPlayers  = 12
	choiceCount = 3
	summaryTime = 5 * time.Second

	maxStrokePoints = 1000
	maxStrokes      = 2000
	maxGuessLength  = 64
)

type Player struct {
	Score int `json:"score"`
	// Drawn is set once the player has drawn in the current round.
	Drawn bool `json:"drawn"`
}

type Point [2]float64

type Stroke struct {
	Tool   string  `json:"tool"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

type Turn struct {
	Drawer         string    `json:"drawer"`
	Phase          Phase     `json:"phase"`
	PhaseStartedAt time.Time `json:"phaseStartedAt"`
	Deadline       time.Time `json:"deadline"`
	Choices        []string  `json:"choices"`
	Word           string    `json:"word"`
	// CorrectGuessers is in the order the word was found.
	CorrectGuessers []string       `json:"correctGuessers"`
	Strokes         []Stroke       `json:"strokes"`
	Awarded         map[string]int `json:"awarded,omitempty"`
}

type Settings struct {
	Rounds     int           `json:"rounds"`
	ChooseTime time.Duration `json:"chooseTime"`
	DrawTime   time.Duration `json:"drawTime"`
}

type Game struct {
	Head     game.Header        `json:"header"`
	Settings Settings           `json:"settings"`
	Players  map[string]*Player `json:"players"`
	Round    int                `json:"round"`
	Turn     *Turn              `json:"turn"`
	// NextDrawer is who draws after the summary. Empty ends the game.
	NextDrawer string `json:"nextDrawer"`
	NextRound  bool   `json:"nextRound"`
	// WordPool is dealt at start and cycled through for choices.
	WordPool []string `json:"wordPool"`
	PoolNext int      `json:"poolNext"`
	Ranking  []string `json:"ranking"`

	deps Deps
}

type Deps struct {
	Words content.WordSource
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
			Rounds:     game.IntSetting(s, "rounds", 3, 1, 10),
			ChooseTime: game.SecondsSetting(s, "chooseTime", 15*time.Second, 5*time.Second, 30*time.Second, false),
			DrawTime:   game.SecondsSetting(s, "drawTime", 80*time.Second, 30*time.Second, 240*time.Second, false),
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
	if g.Head.Status != game.StatusPlaying || g.Turn == nil {
		return time.Time{}
	}
	return g.Turn.Deadline
}

func (g *Game) Reset(now time.Time) {
	g.Head.Status = game.StatusWaiting
	g.Players = make(map[string]*Player, len(g.Head.Members))
	for _, m := range g.Head.Members {
		g.Players[m.ID] = &Player{}
	}
	g.Round = 0
	g.Turn = nil
	g.NextDrawer = ""
	g.NextRound = false
	g.WordPool = nil
	g.PoolNext = 0
	g.Ranking = nil
}

// order lists present players in join order.
func (g *Game) order() []string {
	ids := make([]string, 0, len(g.Players))
	for _, m := range g.Head.Members {
		if _, ok := g.Players[m.ID]; ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (g *Game) dealChoices() []string {
	choices := make([]string, 0, choiceCount)
	for range choiceCount {
		choices = append(choices, g.WordPool[g.PoolNext%len(g.WordPool)])
		g.PoolNext++
	}
	return choices
}

func (t *Turn) guessed(id string) bool {
	return slices.Contains(t.CorrectGuessers, id)
}
