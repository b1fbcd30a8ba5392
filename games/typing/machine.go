package typing

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"partyrooms/content"
	"partyrooms/game"
)

const (
	TypeStart    = "start"
	TypeProgress = "progress"
)

type progressPayload struct {
	Typed *string `json:"typed"`
}

type PacketProgress struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Position int    `json:"position"`
	Mistakes int    `json:"mistakes"`
}

type PacketRacerFinished struct {
	Type     string        `json:"type"`
	PlayerID string        `json:"playerId"`
	Place    int           `json:"place"`
	Elapsed  time.Duration `json:"elapsed"`
	WPM      float64       `json:"wpm"`
}

type PacketRaceStarted struct {
	Type    string    `json:"type"`
	Passage string    `json:"passage"`
	EndsAt  time.Time `json:"endsAt"`
}

func (g *Game) Apply(ctx context.Context, ev game.Event) (game.Outcome, error) {
	switch ev := ev.(type) {
	case game.Joined:
		if _, ok := g.Racers[ev.Member.ID]; !ok {
			g.Racers[ev.Member.ID] = &Racer{}
		}
		return game.Changed(), nil
	case game.Left:
		delete(g.Racers, ev.ID)
		if g.Head.Status == game.StatusPlaying && g.Phase == PhaseRacing && g.allFinished() {
			g.Head.Status = game.StatusFinished
		}
		return game.Changed(), nil
	case game.AlarmFired:
		return g.handleAlarm(ev.At), nil
	case game.Command:
		switch ev.Type {
		case TypeStart:
			return g.start(ctx, ev)
		case TypeProgress:
			return g.progress(ev)
		}
		return game.Outcome{}, game.InvalidPayload("unknown command %q", ev.Type)
	}
	return game.Outcome{}, nil
}

func (g *Game) start(ctx context.Context, cmd game.Command) (game.Outcome, error) {
	if !g.Head.IsHost(cmd.Sender) {
		return game.Outcome{}, game.Unauthorized("only the host can start")
	}
	if g.Head.Status != game.StatusWaiting {
		return game.Outcome{}, game.InvalidPhase("the race already started")
	}
	passages, err := g.deps.Passages.RandomWords(ctx, content.CategoryTyping, 1)
	if err != nil || len(passages) == 0 {
		return game.Outcome{}, game.Unavailable("could not pick a passage")
	}
	for _, r := range g.Racers {
		*r = Racer{Racing: true}
	}
	g.Passage = strings.TrimSpace(passages[0])
	g.Finishers = 0
	g.Phase = PhaseCountdown
	g.PhaseEndsAt = cmd.At.Add(countdown)
	g.Head.Status = game.StatusPlaying
	return game.Changed(), nil
}

func (g *Game) handleAlarm(at time.Time) game.Outcome {
	if g.Head.Status != game.StatusPlaying || !game.Due(g.PhaseEndsAt, at) {
		return game.Outcome{}
	}
	if g.Phase == PhaseCountdown {
		g.Phase = PhaseRacing
		g.RaceStartedAt = g.PhaseEndsAt
		g.PhaseEndsAt = g.RaceStartedAt.Add(g.Settings.TimeLimit)
		return game.Changed(game.Broadcast(PacketRaceStarted{Type: "race-started", Passage: g.Passage, EndsAt: g.PhaseEndsAt}))
	}
	g.Head.Status = game.StatusFinished
	return game.Changed()
}

// progress takes the whole typed text so far. Only the correct prefix counts
// and a racer never moves backwards.
func (g *Game) progress(cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying || g.Phase != PhaseRacing {
		return game.Outcome{}, game.InvalidPhase("the race is not running")
	}
	r, ok := g.Racers[cmd.Sender]
	if !ok || !r.Racing {
		return game.Outcome{}, game.Unauthorized("you are not in this race")
	}
	if r.finished() {
		return game.Outcome{}, game.InvalidPhase("you already finished")
	}
	payload, err := game.Decode[progressPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	if payload.Typed == nil {
		return game.Outcome{}, game.InvalidPayload("typed is required")
	}
	typed := *payload.Typed

	pos := correctPrefix(g.Passage, typed)
	if pos < utf8.RuneCountInString(typed) {
		r.Mistakes++
	}
	if pos > r.Position {
		r.Position = pos
	}

	if r.Position < utf8.RuneCountInString(g.Passage) {
		return game.Outcome{Changed: true, Quiet: true, Events: []game.Send{
			game.Broadcast(PacketProgress{Type: "progress", PlayerID: cmd.Sender, Position: r.Position, Mistakes: r.Mistakes}),
		}}, nil
	}

	g.Finishers++
	r.Place = g.Finishers
	r.Elapsed = cmd.At.Sub(g.RaceStartedAt)
	r.WPM = wpm(r.Position, r.Elapsed)
	if g.allFinished() {
		g.Head.Status = game.StatusFinished
	}
	return game.Changed(game.Broadcast(PacketRacerFinished{
		Type: "racer-finished", PlayerID: cmd.Sender, Place: r.Place, Elapsed: r.Elapsed, WPM: r.WPM,
	})), nil
}

// correctPrefix counts the leading runes of typed that match passage.
func correctPrefix(passage, typed string) int {
	n := 0
	for len(passage) > 0 && len(typed) > 0 {
		p, ps := utf8.DecodeRuneInString(passage)
		t, ts := utf8.DecodeRuneInString(typed)
		if p != t {
			break
		}
		n++
		passage, typed = passage[ps:], typed[ts:]
	}
	return n
}

// wpm uses the usual five characters per word, rounded to one decimal.
func wpm(chars int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	words := float64(chars) / 5
	return math.Round(words/elapsed.Minutes()*10) / 10
}

func (g *Game) allFinished() bool {
	for _, r := range g.Racers {
		if r.Racing && !r.finished() {
			return false
		}
	}
	return true
}
