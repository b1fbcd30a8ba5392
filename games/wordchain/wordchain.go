// Package wordchain is the elimination game where every word must start with
// the last letter of the one before it.
package wordchain

import (
	"encoding/json"
	"slices"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "wordchain"

// Elimination reasons.
const (
	ReasonInvalid     = "invalid"
	ReasonWrongLetter = "wrong-letter"
	ReasonRepeated    = "repeated"
	ReasonTimeout     = "timeout"
)

const (
	minPlayers    = 2
	maxPlayers    = 12
	minWordLength = 2
)

type Elimination struct {
	Reason string    `json:"reason"`
	Word   string    `json:"word,omitempty"`
	At     time.Time `json:"at"`
}

type Player struct {
	// Active players are still in the chain. Late joiners watch.
	Active     bool         `json:"active"`
	Words      int          `json:"words"`
	Eliminated *Elimination `json:"eliminated,omitempty"`
}

type Link struct {
	Word string `json:"word"`
	// By is empty for the start word.
	By string `json:"by,omitempty"`
}

type Settings struct {
	TurnTime time.Duration `json:"turnTime"`
}

type Game struct {
	Head     game.Header        `json:"header"`
	Settings Settings           `json:"settings"`
	Players  map[string]*Player `json:"players"`
	// Order is the turn order fixed at start.
	Order         []string  `json:"order"`
	Chain         []Link    `json:"chain"`
	Current       string    `json:"current"`
	TurnStartedAt time.Time `json:"turnStartedAt"`
	TurnDeadline  time.Time `json:"turnDeadline"`
	Winner        string    `json:"winner"`

	deps Deps
}

type Deps struct {
	Words      content.WordSource
	Dictionary content.Dictionary
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
			TurnTime: game.SecondsSetting(s, "turnTime", 15*time.Second, 5*time.Second, 60*time.Second, false),
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
	return g.TurnDeadline
}

func (g *Game) Reset(now time.Time) {
	g.Head.Status = game.StatusWaiting
	g.Players = make(map[string]*Player, len(g.Head.Members))
	for _, m := range g.Head.Members {
		g.Players[m.ID] = &Player{}
	}
	g.Order = nil
	g.Chain = nil
	g.Current = ""
	g.TurnStartedAt = time.Time{}
	g.TurnDeadline = time.Time{}
	g.Winner = ""
}

func (g *Game) active() []string {
	var ids []string
	for _, id := range g.Order {
		if p, ok := g.Players[id]; ok && p.Active {
			ids = append(ids, id)
		}
	}
	return ids
}

// nextAfter is the first active player after id in turn order, wrapping
// around. id itself need not be active any more.
func (g *Game) nextAfter(id string) string {
	start := slices.Index(g.Order, id)
	for i := 1; i <= len(g.Order); i++ {
		candidate := g.Order[(start+i)%len(g.Order)]
		if p, ok := g.Players[candidate]; ok && p.Active && candidate != id {
			return candidate
		}
	}
	return ""
}

func (g *Game) lastLetter() byte {
	if len(g.Chain) == 0 {
		return 0
	}
	w := g.Chain[len(g.Chain)-1].Word
	return w[len(w)-1]
}

func (g *Game) used(word string) bool {
	return slices.ContainsFunc(g.Chain, func(l Link) bool { return l.Word == word })
}
