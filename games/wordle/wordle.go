// Package wordle is the simultaneous five-letter guessing race.
package wordle

import (
	"encoding/json"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "wordle"

const (
	VariantOpen   = "open"
	VariantHidden = "hidden"
)

const (
	wordLength  = 5
	maxAttempts = 6
	maxPlayers  = 16
)

type Mark string

const (
	MarkCorrect Mark = "correct"
	MarkPresent Mark = "present"
	MarkAbsent  Mark = "absent"
)

type Attempt struct {
	Word  string `json:"word"`
	Marks []Mark `json:"marks"`
}

type Player struct {
	// Playing is set for members present at start.
	Playing  bool      `json:"playing"`
	Attempts []Attempt `json:"attempts"`
	Solved   bool      `json:"solved"`
	Done     bool      `json:"done"`
	DoneAt   time.Time `json:"doneAt"`
}

type Settings struct {
	Variant   string        `json:"variant"`
	TimeLimit time.Duration `json:"timeLimit"`
}

type Game struct {
	Head      game.Header        `json:"header"`
	Settings  Settings           `json:"settings"`
	Players   map[string]*Player `json:"players"`
	Target    string             `json:"target"`
	StartedAt time.Time          `json:"startedAt"`
	EndsAt    time.Time          `json:"endsAt"`
	// Ranking lists the players best first once the game is over.
	Ranking []string `json:"ranking"`

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
			Variant:   game.EnumSetting(s, "variant", VariantOpen, VariantOpen, VariantHidden),
			TimeLimit: game.SecondsSetting(s, "timeLimit", 0, 60*time.Second, 900*time.Second, true),
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
	g.Target = ""
	g.StartedAt = time.Time{}
	g.EndsAt = time.Time{}
	g.Ranking = nil
}

// Score marks each letter of guess against target. Exact matches are taken
// first so a repeated letter is only "present" as many times as target still
// has it unmatched.
func Score(guess, target string) []Mark {
	marks := make([]Mark, len(guess))
	var left [26]int
	for i := range guess {
		if guess[i] == target[i] {
			marks[i] = MarkCorrect
		} else {
			left[target[i]-'a']++
		}
	}
	for i := range guess {
		if marks[i] == MarkCorrect {
			continue
		}
		if c := guess[i] - 'a'; left[c] > 0 {
			left[c]--
			marks[i] = MarkPresent
		} else {
			marks[i] = MarkAbsent
		}
	}
	return marks
}
