package drawing

import (
	"strings"
	"time"
	"unicode"

	"partyrooms/game"
)

type PacketStroke struct {
	Type   string `json:"type"`
	Stroke Stroke `json:"stroke"`
}

type PacketCanvasCleared struct {
	Type string `json:"type"`
}

type PacketChat struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

type PacketCorrectGuess struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Position int    `json:"position"`
}

type PacketTurnEnded struct {
	Type       string         `json:"type"`
	Word       string         `json:"word"`
	Awarded    map[string]int `json:"awarded"`
	NextDrawer string         `json:"nextDrawer,omitempty"`
}

type PacketGameOver struct {
	Type    string   `json:"type"`
	Ranking []string `json:"ranking"`
}

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Player
}

type TurnView struct {
	Drawer          string         `json:"drawer"`
	Phase           Phase          `json:"phase"`
	PhaseStartedAt  time.Time      `json:"phaseStartedAt"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
	Choices         []string       `json:"choices,omitempty"`
	Word            string         `json:"word,omitempty"`
	Mask            string         `json:"mask"`
	CorrectGuessers []string       `json:"correctGuessers"`
	Strokes         []Stroke       `json:"strokes"`
	Awarded         map[string]int `json:"awarded,omitempty"`
}

type View struct {
	game.Header `json:"header"`
	Settings    Settings     `json:"settings"`
	Players     []PlayerView `json:"players"`
	Round       int          `json:"round"`
	Turn        *TurnView    `json:"turn"`
	NextDrawer  string       `json:"nextDrawer,omitempty"`
	Ranking     []string     `json:"ranking,omitempty"`
}

// View shows the word to the drawer and to whoever already found it. The
// rest get a mask until the summary.
func (g *Game) View(viewerID string) any {
	v := View{
		Header:     g.Head,
		Settings:   g.Settings,
		Players:    make([]PlayerView, 0, len(g.Players)),
		Round:      g.Round,
		NextDrawer: g.NextDrawer,
		Ranking:    g.Ranking,
	}
	for _, id := range g.order() {
		m, _ := g.Head.Member(id)
		v.Players = append(v.Players, PlayerView{ID: id, Name: m.Name, Player: *g.Players[id]})
	}
	if t := g.Turn; t != nil {
		tv := &TurnView{
			Drawer:          t.Drawer,
			Phase:           t.Phase,
			PhaseStartedAt:  t.PhaseStartedAt,
			Mask:            Mask(t.Word),
			CorrectGuessers: t.CorrectGuessers,
			Strokes:         t.Strokes,
			Awarded:         t.Awarded,
		}
		if d := g.Deadline(); !d.IsZero() {
			tv.Deadline = &d
		}
		isDrawer := viewerID == t.Drawer
		if isDrawer && t.Phase == PhaseChoosing {
			tv.Choices = t.Choices
		}
		if isDrawer || t.guessed(viewerID) || t.Phase == PhaseSummary || g.Head.Status == game.StatusFinished {
			tv.Word = t.Word
		}
		v.Turn = tv
	}
	return v
}

// Mask replaces every letter with an underscore and keeps everything else,
// so guessers see the word's shape.
func Mask(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return '_'
		}
		return r
	}, word)
}
