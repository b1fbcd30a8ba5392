// Package codenames is the word-clue team game: two teams, one spymaster
// each, racing to uncover their cards on a 5x5 board.
package codenames

import (
	"encoding/json"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const Kind = "codenames"

type Team string

const (
	Red  Team = "red"
	Blue Team = "blue"
)

func (t Team) Other() Team {
	if t == Red {
		return Blue
	}
	return Red
}

func (t Team) valid() bool {
	return t == Red || t == Blue
}

type Role string

const (
	Spymaster Role = "spymaster"
	Guesser   Role = "guesser"
)

type Category string

const (
	CategoryRed      Category = "red"
	CategoryBlue     Category = "blue"
	CategoryNeutral  Category = "neutral"
	CategoryAssassin Category = "assassin"
	CategoryUnknown  Category = "unknown"
)

func teamCategory(t Team) Category {
	return Category(t)
}

type Phase string

const (
	PhaseGivingClue Phase = "giving-clue"
	PhaseGuessing   Phase = "guessing"
)

const (
	ModeNormal   = "normal"
	ModeHardcore = "hardcore"
)

// Game-over reasons.
const (
	ReasonInstantLoss = "instant-loss"
	ReasonAllCards    = "all-cards"
	ReasonWrongGuess  = "wrong-guess"
	ReasonTimeout     = "timeout"
	ReasonForfeit     = "forfeit"
)

const (
	boardSize     = 25
	startingCards = 9
	secondCards   = 8
	neutralCards  = 7
	maxClueCount  = 9
	maxPlayers    = 16

	// Unlimited is GuessesRemaining after a clue with count 0.
	Unlimited = -1
)

type Player struct {
	Team Team `json:"team,omitempty"`
	Role Role `json:"role,omitempty"`
}

type Card struct {
	Word     string   `json:"word"`
	Category Category `json:"category"`
	Revealed bool     `json:"revealed"`
}

type Clue struct {
	Team  Team   `json:"team"`
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type Reveal struct {
	Index    int      `json:"index"`
	Team     Team     `json:"team"`
	By       string   `json:"by"`
	Category Category `json:"category"`
}

type Turn struct {
	Team             Team      `json:"team"`
	Phase            Phase     `json:"phase"`
	PhaseStartedAt   time.Time `json:"phaseStartedAt"`
	Deadline         time.Time `json:"deadline"`
	GuessesRemaining int       `json:"guessesRemaining"`
	GuessesMade      int       `json:"guessesMade"`
}

type Result struct {
	Winner Team   `json:"winner"`
	Reason string `json:"reason"`
}

type Settings struct {
	Mode      string        `json:"mode"`
	ClueTime  time.Duration `json:"clueTime"`
	GuessTime time.Duration `json:"guessTime"`
}

func (s Settings) hardcore() bool {
	return s.Mode == ModeHardcore
}

// Game is the whole persisted state of one codenames room.
type Game struct {
	Head         game.Header        `json:"header"`
	Settings     Settings           `json:"settings"`
	Players      map[string]*Player `json:"players"`
	Board        []Card             `json:"board"`
	Remaining    map[Team]int       `json:"remaining"`
	StartingTeam Team               `json:"startingTeam"`
	Turn         *Turn              `json:"turn"`
	Clues        []Clue             `json:"clues"`
	Reveals      []Reveal           `json:"reveals"`
	Result       *Result            `json:"result"`

	deps Deps
}

type Deps struct {
	Words content.WordSource
	Rand  game.Rand
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
			Mode:      game.EnumSetting(s, "mode", ModeNormal, ModeNormal, ModeHardcore),
			ClueTime:  game.SecondsSetting(s, "clueTime", 0, 10*time.Second, 300*time.Second, true),
			GuessTime: game.SecondsSetting(s, "guessTime", 0, 10*time.Second, 300*time.Second, true),
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

// Reset clears the board and every team assignment. Members stay.
func (g *Game) Reset(now time.Time) {
	g.Head.Status = game.StatusWaiting
	g.Players = make(map[string]*Player, len(g.Head.Members))
	for _, m := range g.Head.Members {
		g.Players[m.ID] = &Player{}
	}
	g.Board = nil
	g.Remaining = nil
	g.StartingTeam = ""
	g.Turn = nil
	g.Clues = nil
	g.Reveals = nil
	g.Result = nil
}

// teamMembers lists the ids on team t in join order.
func (g *Game) teamMembers(t Team) []string {
	var ids []string
	for _, m := range g.Head.Members {
		if p, ok := g.Players[m.ID]; ok && p.Team == t {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (g *Game) spymaster(t Team) (string, bool) {
	for _, id := range g.teamMembers(t) {
		if g.Players[id].Role == Spymaster {
			return id, true
		}
	}
	return "", false
}

func (g *Game) guessers(t Team) int {
	n := 0
	for _, id := range g.teamMembers(t) {
		if g.Players[id].Role == Guesser {
			n++
		}
	}
	return n
}
