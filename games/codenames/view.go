package codenames

import (
	"strconv"
	"time"

	"partyrooms/game"
)

type PacketClueGiven struct {
	Type string `json:"type"`
	Clue Clue   `json:"clue"`
}

type PacketCardRevealed struct {
	Type   string `json:"type"`
	Reveal Reveal `json:"reveal"`
}

type PacketTurnChanged struct {
	Type     string     `json:"type"`
	Team     Team       `json:"team"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type PacketGameOver struct {
	Type   string `json:"type"`
	Result Result `json:"result"`
}

func makePacketClueGiven(c Clue) PacketClueGiven {
	return PacketClueGiven{Type: "clue-given", Clue: c}
}

func makePacketCardRevealed(r Reveal) PacketCardRevealed {
	return PacketCardRevealed{Type: "card-revealed", Reveal: r}
}

func makePacketTurnChanged(t *Turn) PacketTurnChanged {
	return PacketTurnChanged{Type: "turn-changed", Team: t.Team, Deadline: optionalTime(t.Deadline)}
}

func makePacketGameOver(r Result) PacketGameOver {
	return PacketGameOver{Type: "game-over", Result: r}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team Team   `json:"team,omitempty"`
	Role Role   `json:"role,omitempty"`
}

type CardView struct {
	Word     string   `json:"word"`
	Category Category `json:"category"`
	Revealed bool     `json:"revealed"`
}

type TurnView struct {
	Team           Team       `json:"team"`
	Phase          Phase      `json:"phase"`
	PhaseStartedAt time.Time  `json:"phaseStartedAt"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	// GuessesRemaining is "∞" after a clue with count 0.
	GuessesRemaining string `json:"guessesRemaining"`
	GuessesMade      int    `json:"guessesMade"`
}

type View struct {
	game.Header  `json:"header"`
	Settings     Settings     `json:"settings"`
	Players      []PlayerView `json:"players"`
	Board        []CardView   `json:"board"`
	Remaining    map[Team]int `json:"remaining,omitempty"`
	StartingTeam Team         `json:"startingTeam,omitempty"`
	Turn         *TurnView    `json:"turn"`
	Clues        []Clue       `json:"clues"`
	Reveals      []Reveal     `json:"reveals"`
	Result       *Result      `json:"result"`
}

// View hides unrevealed card categories from everyone but the spymasters
// until the game is over.
func (g *Game) View(viewerID string) any {
	seeAll := g.Head.Status == game.StatusFinished
	if p, ok := g.Players[viewerID]; ok && p.Role == Spymaster {
		seeAll = true
	}

	v := View{
		Header:       g.Head,
		Settings:     g.Settings,
		Players:      make([]PlayerView, 0, len(g.Head.Members)),
		Board:        make([]CardView, len(g.Board)),
		Remaining:    g.Remaining,
		StartingTeam: g.StartingTeam,
		Clues:        g.Clues,
		Reveals:      g.Reveals,
		Result:       g.Result,
	}
	for _, m := range g.Head.Members {
		pv := PlayerView{ID: m.ID, Name: m.Name}
		if p, ok := g.Players[m.ID]; ok {
			pv.Team, pv.Role = p.Team, p.Role
		}
		v.Players = append(v.Players, pv)
	}
	for i, c := range g.Board {
		cv := CardView{Word: c.Word, Category: CategoryUnknown, Revealed: c.Revealed}
		if c.Revealed || seeAll {
			cv.Category = c.Category
		}
		v.Board[i] = cv
	}
	if t := g.Turn; t != nil {
		remaining := strconv.Itoa(t.GuessesRemaining)
		if t.GuessesRemaining == Unlimited {
			remaining = "∞"
		}
		v.Turn = &TurnView{
			Team:             t.Team,
			Phase:            t.Phase,
			PhaseStartedAt:   t.PhaseStartedAt,
			Deadline:         optionalTime(t.Deadline),
			GuessesRemaining: remaining,
			GuessesMade:      t.GuessesMade,
		}
	}
	return v
}
