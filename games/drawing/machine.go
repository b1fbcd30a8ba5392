package drawing

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"partyrooms/content"
	"partyrooms/game"
)

const (
	TypeStart       = "start"
	TypeChooseWord  = "choose-word"
	TypeDraw        = "draw"
	TypeClearCanvas = "clear-canvas"
	TypeGuess       = "guess"
)

type chooseWordPayload struct {
	Index *int `json:"index"`
}

type drawPayload struct {
	Stroke *Stroke `json:"stroke"`
}

type guessPayload struct {
	Text string `json:"text"`
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
		return g.handleAlarm(ev.At), nil
	case game.Command:
		return g.handleCommand(ctx, ev)
	}
	return game.Outcome{}, nil
}

func (g *Game) handleCommand(ctx context.Context, cmd game.Command) (game.Outcome, error) {
	switch cmd.Type {
	case TypeStart:
		return g.start(ctx, cmd)
	case TypeChooseWord:
		return g.chooseWord(cmd)
	case TypeDraw:
		return g.draw(cmd)
	case TypeClearCanvas:
		return g.clearCanvas(cmd)
	case TypeGuess:
		return g.guess(cmd)
	}
	return game.Outcome{}, game.InvalidPayload("unknown command %q", cmd.Type)
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
	need := choiceCount * len(g.Players) * g.Settings.Rounds
	words, err := g.deps.Words.RandomWords(ctx, content.CategoryDrawing, need)
	if err != nil || len(words) == 0 {
		return game.Outcome{}, game.Unavailable("could not load words")
	}

	for _, p := range g.Players {
		*p = Player{}
	}
	g.WordPool = words
	g.PoolNext = 0
	g.Round = 1
	g.NextRound = false
	g.Ranking = nil
	g.Head.Status = game.StatusPlaying
	g.startTurn(g.order()[0], cmd.At)
	return game.Changed(), nil
}

func (g *Game) requireDrawer(sender string, phase Phase) error {
	if g.Head.Status != game.StatusPlaying || g.Turn == nil {
		return game.InvalidPhase("the game is not running")
	}
	if sender != g.Turn.Drawer {
		return game.Unauthorized("only the drawer can do that")
	}
	if g.Turn.Phase != phase {
		return game.InvalidPhase("not while %s", g.Turn.Phase)
	}
	return nil
}

func (g *Game) chooseWord(cmd game.Command) (game.Outcome, error) {
	if err := g.requireDrawer(cmd.Sender, PhaseChoosing); err != nil {
		return game.Outcome{}, err
	}
	payload, err := game.Decode[chooseWordPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	if payload.Index == nil || *payload.Index < 0 || *payload.Index >= len(g.Turn.Choices) {
		return game.Outcome{}, game.InvalidPayload("index must be between 0 and %d", len(g.Turn.Choices)-1)
	}
	g.beginDrawing(g.Turn.Choices[*payload.Index], cmd.At)
	return game.Changed(), nil
}

func (g *Game) draw(cmd game.Command) (game.Outcome, error) {
	if err := g.requireDrawer(cmd.Sender, PhaseDrawing); err != nil {
		return game.Outcome{}, err
	}
	payload, err := game.Decode[drawPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	s := payload.Stroke
	if s == nil || len(s.Points) == 0 || len(s.Points) > maxStrokePoints {
		return game.Outcome{}, game.InvalidPayload("a stroke needs 1 to %d points", maxStrokePoints)
	}
	if len(g.Turn.Strokes) >= maxStrokes {
		return game.Outcome{}, game.InvalidPhase("the canvas is full")
	}
	g.Turn.Strokes = append(g.Turn.Strokes, *s)
	return game.Outcome{Changed: true, Quiet: true, Events: []game.Send{
		game.Broadcast(PacketStroke{Type: "stroke", Stroke: *s}),
	}}, nil
}

func (g *Game) clearCanvas(cmd game.Command) (game.Outcome, error) {
	if err := g.requireDrawer(cmd.Sender, PhaseDrawing); err != nil {
		return game.Outcome{}, err
	}
	g.Turn.Strokes = []Stroke{}
	return game.Outcome{Changed: true, Quiet: true, Events: []game.Send{
		game.Broadcast(PacketCanvasCleared{Type: "canvas-cleared"}),
	}}, nil
}

// guess checks a guess against the word. Misses are relayed as chat and
// never stored.
func (g *Game) guess(cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying || g.Turn == nil || g.Turn.Phase != PhaseDrawing {
		return game.Outcome{}, game.InvalidPhase("nothing to guess right now")
	}
	if _, ok := g.Players[cmd.Sender]; !ok || cmd.Sender == g.Turn.Drawer {
		return game.Outcome{}, game.Unauthorized("you cannot guess this turn")
	}
	if g.Turn.guessed(cmd.Sender) {
		return game.Outcome{}, game.InvalidPhase("you already found the word")
	}
	payload, err := game.Decode[guessPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" || utf8.RuneCountInString(text) > maxGuessLength {
		return game.Outcome{}, game.InvalidPayload("a guess is 1 to %d characters", maxGuessLength)
	}

	if !strings.EqualFold(normalize(text), normalize(g.Turn.Word)) {
		return game.Outcome{Events: []game.Send{
			game.Broadcast(PacketChat{Type: "chat", PlayerID: cmd.Sender, Text: text}),
		}}, nil
	}

	g.Turn.CorrectGuessers = append(g.Turn.CorrectGuessers, cmd.Sender)
	events := []game.Send{game.Broadcast(PacketCorrectGuess{
		Type: "correct-guess", PlayerID: cmd.Sender, Position: len(g.Turn.CorrectGuessers),
	})}
	if g.allGuessed() {
		events = append(events, g.endTurn(cmd.At))
	}
	return game.Changed(events...), nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (g *Game) handleAlarm(at time.Time) game.Outcome {
	if g.Head.Status != game.StatusPlaying || g.Turn == nil || !game.Due(g.Turn.Deadline, at) {
		return game.Outcome{}
	}
	switch g.Turn.Phase {
	case PhaseChoosing:
		g.beginDrawing(g.Turn.Choices[0], at)
		return game.Changed()
	case PhaseDrawing:
		return game.Changed(g.endTurn(at))
	default:
		return game.Changed(g.advance(at)...)
	}
}

func (g *Game) handleLeft(ev game.Left) game.Outcome {
	if _, ok := g.Players[ev.ID]; !ok {
		return game.Changed()
	}
	delete(g.Players, ev.ID)
	if g.Head.Status != game.StatusPlaying || g.Turn == nil {
		return game.Changed()
	}

	var events []game.Send
	switch {
	case ev.ID == g.Turn.Drawer && g.Turn.Phase != PhaseSummary:
		events = append(events, g.endTurn(ev.At))
	case ev.ID == g.NextDrawer && g.Turn.Phase == PhaseSummary:
		g.pickNext()
	case g.Turn.Phase == PhaseDrawing && len(g.Turn.CorrectGuessers) > 0 && g.allGuessed():
		events = append(events, g.endTurn(ev.At))
	}
	if len(g.Players) < minPlayers {
		events = append(events, g.finish())
	}
	return game.Changed(events...)
}

func (g *Game) allGuessed() bool {
	for id := range g.Players {
		if id != g.Turn.Drawer && !g.Turn.guessed(id) {
			return false
		}
	}
	return true
}

func (g *Game) startTurn(drawer string, now time.Time) {
	if g.NextRound {
		g.Round++
		g.NextRound = false
		for _, p := range g.Players {
			p.Drawn = false
		}
	}
	g.Turn = &Turn{
		Drawer:          drawer,
		Phase:           PhaseChoosing,
		PhaseStartedAt:  now,
		Deadline:        game.DeadlineAfter(now, g.Settings.ChooseTime),
		Choices:         g.dealChoices(),
		CorrectGuessers: []string{},
		Strokes:         []Stroke{},
	}
	g.NextDrawer = ""
}

func (g *Game) beginDrawing(word string, now time.Time) {
	g.Turn.Word = word
	g.Turn.Phase = PhaseDrawing
	g.Turn.PhaseStartedAt = now
	g.Turn.Deadline = game.DeadlineAfter(now, g.Settings.DrawTime)
}

// endTurn reveals the word, scores the turn and picks who draws next.
// Guessers earn less the later they found the word; the drawer earns per
// correct guesser.
func (g *Game) endTurn(now time.Time) game.Send {
	t := g.Turn
	t.Awarded = map[string]int{}
	for i, id := range t.CorrectGuessers {
		if p, ok := g.Players[id]; ok {
			pts := max(100-20*i, 20)
			p.Score += pts
			t.Awarded[id] = pts
		}
	}
	if p, ok := g.Players[t.Drawer]; ok {
		pts := 25 * len(t.CorrectGuessers)
		p.Score += pts
		t.Awarded[t.Drawer] = pts
		p.Drawn = true
	}
	t.Phase = PhaseSummary
	t.PhaseStartedAt = now
	t.Deadline = now.Add(summaryTime)
	g.pickNext()
	return game.Broadcast(PacketTurnEnded{Type: "turn-ended", Word: t.Word, Awarded: t.Awarded, NextDrawer: g.NextDrawer})
}

// pickNext chooses the first player in join order who has not drawn this
// round. When everyone has, the next round starts from the top, unless that
// was the last round.
func (g *Game) pickNext() {
	g.NextDrawer = ""
	g.NextRound = false
	order := g.order()
	for _, id := range order {
		if id != g.Turn.Drawer && !g.Players[id].Drawn {
			g.NextDrawer = id
			return
		}
	}
	if g.Round < g.Settings.Rounds && len(order) > 0 {
		g.NextDrawer = order[0]
		g.NextRound = true
	}
}

func (g *Game) advance(now time.Time) []game.Send {
	if _, ok := g.Players[g.NextDrawer]; !ok {
		return []game.Send{g.finish()}
	}
	g.startTurn(g.NextDrawer, now)
	return nil
}

func (g *Game) finish() game.Send {
	g.Head.Status = game.StatusFinished
	ids := g.order()
	slices.SortStableFunc(ids, func(a, b string) int {
		return cmp.Compare(g.Players[b].Score, g.Players[a].Score)
	})
	g.Ranking = ids
	if g.Turn != nil {
		g.Turn.Deadline = time.Time{}
	}
	g.NextDrawer = ""
	return game.Broadcast(PacketGameOver{Type: "game-over", Ranking: ids})
}
