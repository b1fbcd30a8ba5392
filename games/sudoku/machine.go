package sudoku

import (
	"context"

	"partyrooms/game"
)

const (
	TypeStart = "start"
	TypePlace = "place"
)

type placePayload struct {
	Row   *int `json:"row"`
	Col   *int `json:"col"`
	Value *int `json:"value"`
}

type PacketCellFilled struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Value    int    `json:"value"`
}

type PacketMistake struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Hearts   int    `json:"hearts"`
}

type PacketGameOver struct {
	Type     string  `json:"type"`
	Result   Result  `json:"result"`
	Solution [81]int `json:"solution"`
}

func (g *Game) Apply(ctx context.Context, ev game.Event) (game.Outcome, error) {
	switch ev := ev.(type) {
	case game.Joined:
		if _, ok := g.Players[ev.Member.ID]; !ok {
			g.Players[ev.Member.ID] = &Player{}
		}
		return game.Changed(), nil
	case game.Left:
		delete(g.Players, ev.ID)
		return game.Changed(), nil
	case game.AlarmFired:
		if g.Head.Status != game.StatusPlaying || !game.Due(g.EndsAt, ev.At) {
			return game.Outcome{}, nil
		}
		return game.Changed(g.finish(false, ReasonTimeout)), nil
	case game.Command:
		switch ev.Type {
		case TypeStart:
			return g.start(ev)
		case TypePlace:
			return g.place(ev)
		}
		return game.Outcome{}, game.InvalidPayload("unknown command %q", ev.Type)
	}
	return game.Outcome{}, nil
}

func (g *Game) start(cmd game.Command) (game.Outcome, error) {
	if !g.Head.IsHost(cmd.Sender) {
		return game.Outcome{}, game.Unauthorized("only the host can start")
	}
	if g.Head.Status != game.StatusWaiting {
		return game.Outcome{}, game.InvalidPhase("the game already started")
	}
	if len(g.Players) == 0 {
		return game.Outcome{}, game.InvalidPhase("nobody has joined yet")
	}
	puzzle, err := g.deps.Puzzles.Generate(g.Settings.Difficulty)
	if err != nil {
		return game.Outcome{}, game.Unavailable("could not generate a puzzle")
	}
	g.Board = puzzle.Givens
	g.Solution = puzzle.Solution
	g.Rating = puzzle.Rating
	for i, v := range puzzle.Givens {
		g.Givens[i] = v != 0
	}
	for _, p := range g.Players {
		*p = Player{}
	}
	g.Hearts = g.startingHearts()
	g.StartedAt = cmd.At
	g.EndsAt = game.DeadlineAfter(cmd.At, g.Settings.TimeLimit)
	g.Result = nil
	g.Head.Status = game.StatusPlaying
	return game.Changed(), nil
}

func (g *Game) place(cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying {
		return game.Outcome{}, game.InvalidPhase("the game is not running")
	}
	p, ok := g.Players[cmd.Sender]
	if !ok {
		return game.Outcome{}, game.Unauthorized("join the room first")
	}
	payload, err := game.Decode[placePayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	if !inRange(payload.Row, 0, 8) || !inRange(payload.Col, 0, 8) || !inRange(payload.Value, 1, 9) {
		return game.Outcome{}, game.InvalidPayload("row and col must be 0-8 and value 1-9")
	}
	row, col, value := *payload.Row, *payload.Col, *payload.Value
	i := row*9 + col
	if g.Board[i] != 0 {
		return game.Outcome{}, game.InvalidPayload("that cell is already filled")
	}

	if g.Solution[i] != value {
		g.Hearts--
		p.Mistakes++
		events := []game.Send{game.Broadcast(PacketMistake{
			Type: "mistake", PlayerID: cmd.Sender, Row: row, Col: col, Hearts: g.Hearts,
		})}
		if g.Hearts <= 0 {
			events = append(events, g.finish(false, ReasonOutOfHearts))
		}
		return game.Changed(events...), nil
	}

	g.Board[i] = value
	p.Score++
	events := []game.Send{game.Broadcast(PacketCellFilled{
		Type: "cell-filled", PlayerID: cmd.Sender, Row: row, Col: col, Value: value,
	})}
	if g.complete() {
		events = append(events, g.finish(true, ReasonSolved))
	}
	return game.Changed(events...), nil
}

func inRange(v *int, lo, hi int) bool {
	return v != nil && *v >= lo && *v <= hi
}

func (g *Game) finish(won bool, reason string) game.Send {
	g.Head.Status = game.StatusFinished
	g.Result = &Result{Won: won, Reason: reason}
	return game.Broadcast(PacketGameOver{Type: "game-over", Result: *g.Result, Solution: g.Solution})
}
