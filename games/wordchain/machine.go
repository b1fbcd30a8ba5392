package wordchain

import (
	"context"
	"strings"
	"time"

	"partyrooms/content"
	"partyrooms/game"
)

const (
	TypeStart  = "start"
	TypeSubmit = "submit"
)

type submitPayload struct {
	Word string `json:"word"`
}

func (g *Game) Apply(ctx context.Context, ev game.Event) (game.Outcome, error) {
	switch ev := ev.(type) {
	case game.Joined:
		if _, ok := g.Players[ev.Member.ID]; !ok {
			g.Players[ev.Member.ID] = &Player{}
		}
		return game.Changed(), nil
	case game.Left:
		return g.handleLeft(ev), nil
	case game.AlarmFired:
		if g.Head.Status != game.StatusPlaying || !game.Due(g.TurnDeadline, ev.At) {
			return game.Outcome{}, nil
		}
		return game.Changed(g.eliminate(g.Current, ReasonTimeout, "", ev.At)...), nil
	case game.Command:
		switch ev.Type {
		case TypeStart:
			return g.start(ctx, ev)
		case TypeSubmit:
			return g.submit(ctx, ev)
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
		return game.Outcome{}, game.InvalidPhase("the game already started")
	}
	if len(g.Players) < minPlayers {
		return game.Outcome{}, game.InvalidPhase("at least %d players are needed", minPlayers)
	}
	words, err := g.deps.Words.RandomWords(ctx, content.CategoryWordChain, 1)
	if err != nil || len(words) == 0 {
		return game.Outcome{}, game.Unavailable("could not pick a start word")
	}

	g.Order = g.Order[:0]
	for _, m := range g.Head.Members {
		if p, ok := g.Players[m.ID]; ok {
			*p = Player{Active: true}
			g.Order = append(g.Order, m.ID)
		}
	}
	g.Chain = []Link{{Word: strings.ToLower(words[0])}}
	g.Winner = ""
	g.Head.Status = game.StatusPlaying
	return game.Changed(g.beginTurn(g.Order[0], cmd.At)), nil
}

func (g *Game) submit(ctx context.Context, cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying {
		return game.Outcome{}, game.InvalidPhase("the game is not running")
	}
	if cmd.Sender != g.Current {
		return game.Outcome{}, game.Unauthorized("it is not your turn")
	}
	payload, err := game.Decode[submitPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	word := strings.ToLower(strings.TrimSpace(payload.Word))

	if reason := g.check(ctx, word); reason != "" {
		return game.Changed(g.eliminate(cmd.Sender, reason, word, cmd.At)...), nil
	}

	link := Link{Word: word, By: cmd.Sender}
	g.Chain = append(g.Chain, link)
	g.Players[cmd.Sender].Words++
	events := []game.Send{game.Broadcast(makePacketWordAccepted(link))}
	events = append(events, g.beginTurn(g.nextAfter(cmd.Sender), cmd.At))
	return game.Changed(events...), nil
}

// check returns the elimination reason for word, or "" when it extends the
// chain. The dictionary is only asked once the cheap checks pass.
func (g *Game) check(ctx context.Context, word string) string {
	if len(word) < minWordLength {
		return ReasonInvalid
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return ReasonInvalid
		}
	}
	if word[0] != g.lastLetter() {
		return ReasonWrongLetter
	}
	if g.used(word) {
		return ReasonRepeated
	}
	if !g.deps.Dictionary.Valid(ctx, word) {
		return ReasonInvalid
	}
	return ""
}

func (g *Game) eliminate(id, reason, word string, now time.Time) []game.Send {
	p, ok := g.Players[id]
	if !ok {
		return nil
	}
	p.Active = false
	p.Eliminated = &Elimination{Reason: reason, Word: word, At: now}
	events := []game.Send{game.Broadcast(makePacketPlayerEliminated(id, *p.Eliminated))}
	return append(events, g.afterElimination(id, now)...)
}

func (g *Game) afterElimination(id string, now time.Time) []game.Send {
	if active := g.active(); len(active) <= 1 {
		winner := ""
		if len(active) == 1 {
			winner = active[0]
		}
		return []game.Send{g.finish(winner)}
	}
	if id == g.Current {
		return []game.Send{g.beginTurn(g.nextAfter(id), now)}
	}
	return nil
}

func (g *Game) handleLeft(ev game.Left) game.Outcome {
	p, ok := g.Players[ev.ID]
	if !ok {
		return game.Changed()
	}
	if g.Head.Status != game.StatusPlaying || !p.Active {
		delete(g.Players, ev.ID)
		return game.Changed()
	}
	p.Active = false
	events := g.afterElimination(ev.ID, ev.At)
	delete(g.Players, ev.ID)
	return game.Changed(events...)
}

func (g *Game) beginTurn(id string, now time.Time) game.Send {
	g.Current = id
	g.TurnStartedAt = now
	g.TurnDeadline = game.DeadlineAfter(now, g.Settings.TurnTime)
	return game.Broadcast(makePacketTurnChanged(id, g.lastLetter(), g.TurnDeadline))
}

func (g *Game) finish(winner string) game.Send {
	g.Head.Status = game.StatusFinished
	g.Winner = winner
	g.Current = ""
	g.TurnDeadline = time.Time{}
	return game.Broadcast(makePacketGameOver(winner))
}
