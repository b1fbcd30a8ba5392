package codenames

import (
	"context"
	"strings"
	"time"
	"unicode"

	"partyrooms/content"
	"partyrooms/game"
)

// Inbound command types.
const (
	TypeProceed     = "proceed"
	TypeJoinTeam    = "join-team"
	TypeStart       = "start"
	TypeGiveClue    = "give-clue"
	TypeGuess       = "guess"
	TypeEndGuessing = "end-guessing"
)

type joinTeamPayload struct {
	Team Team `json:"team"`
	Role Role `json:"role"`
}

type giveCluePayload struct {
	Word  string `json:"word"`
	Count *int   `json:"count"`
}

type guessPayload struct {
	Index *int `json:"index"`
}

func (g *Game) Apply(ctx context.Context, ev game.Event) (game.Outcome, error) {
	switch ev := ev.(type) {
	case game.Joined:
		g.Players[ev.Member.ID] = &Player{}
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
	case TypeProceed:
		return g.proceed(cmd)
	case TypeJoinTeam:
		return g.joinTeam(cmd)
	case TypeStart:
		return g.start(ctx, cmd)
	case TypeGiveClue:
		return g.giveClue(cmd)
	case TypeGuess:
		return g.guess(cmd)
	case TypeEndGuessing:
		return g.endGuessing(cmd)
	}
	return game.Outcome{}, game.InvalidPayload("unknown command %q", cmd.Type)
}

func (g *Game) proceed(cmd game.Command) (game.Outcome, error) {
	if !g.Head.IsHost(cmd.Sender) {
		return game.Outcome{}, game.Unauthorized("only the host can open team selection")
	}
	if g.Head.Status != game.StatusWaiting {
		return game.Outcome{}, game.InvalidPhase("teams can only be opened while waiting")
	}
	g.Head.Status = game.StatusTeamSelection
	return game.Changed(), nil
}

func (g *Game) joinTeam(cmd game.Command) (game.Outcome, error) {
	p, ok := g.Players[cmd.Sender]
	if !ok {
		return game.Outcome{}, game.Unauthorized("join the room first")
	}
	if g.Head.Status != game.StatusWaiting && g.Head.Status != game.StatusTeamSelection {
		return game.Outcome{}, game.InvalidPhase("teams are locked")
	}
	payload, err := game.Decode[joinTeamPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	if !payload.Team.valid() {
		return game.Outcome{}, game.InvalidPayload("team must be red or blue")
	}
	if payload.Role != Spymaster && payload.Role != Guesser {
		return game.Outcome{}, game.InvalidPayload("role must be spymaster or guesser")
	}
	if payload.Role == Spymaster {
		if id, taken := g.spymaster(payload.Team); taken && id != cmd.Sender {
			return game.Outcome{}, game.InvalidPhase("%s already has a spymaster", payload.Team)
		}
	}
	p.Team = payload.Team
	p.Role = payload.Role
	return game.Changed(), nil
}

func (g *Game) start(ctx context.Context, cmd game.Command) (game.Outcome, error) {
	if !g.Head.IsHost(cmd.Sender) {
		return game.Outcome{}, game.Unauthorized("only the host can start")
	}
	if g.Head.Status != game.StatusTeamSelection {
		return game.Outcome{}, game.InvalidPhase("the game can only start from team selection")
	}
	for _, t := range []Team{Red, Blue} {
		if _, ok := g.spymaster(t); !ok {
			return game.Outcome{}, game.InvalidPhase("%s needs a spymaster", t)
		}
		if g.guessers(t) == 0 {
			return game.Outcome{}, game.InvalidPhase("%s needs at least one guesser", t)
		}
	}

	words, err := g.deps.Words.RandomWords(ctx, content.CategoryCodenames, boardSize)
	if err != nil {
		return game.Outcome{}, game.Unavailable("could not load words")
	}
	if len(words) < boardSize {
		return game.Outcome{}, game.Unavailable("not enough words")
	}

	g.StartingTeam = Red
	cats := make([]Category, 0, boardSize)
	cats = appendN(cats, teamCategory(Red), startingCards)
	cats = appendN(cats, teamCategory(Blue), secondCards)
	cats = appendN(cats, CategoryNeutral, neutralCards)
	cats = append(cats, CategoryAssassin)
	g.deps.Rand.Shuffle(len(cats), func(i, j int) { cats[i], cats[j] = cats[j], cats[i] })

	g.Board = make([]Card, boardSize)
	for i := range g.Board {
		g.Board[i] = Card{Word: strings.ToUpper(words[i]), Category: cats[i]}
	}
	g.Remaining = map[Team]int{Red: startingCards, Blue: secondCards}
	g.Clues = []Clue{}
	g.Reveals = []Reveal{}
	g.Result = nil
	g.Head.Status = game.StatusPlaying
	g.beginClue(g.StartingTeam, cmd.At)
	return game.Changed(game.Broadcast(makePacketTurnChanged(g.Turn))), nil
}

func appendN(cats []Category, c Category, n int) []Category {
	for range n {
		cats = append(cats, c)
	}
	return cats
}

func (g *Game) giveClue(cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying {
		return game.Outcome{}, game.InvalidPhase("the game is not running")
	}
	p, ok := g.Players[cmd.Sender]
	if !ok || p.Team != g.Turn.Team || p.Role != Spymaster {
		return game.Outcome{}, game.Unauthorized("only the %s spymaster can give a clue", g.Turn.Team)
	}
	if g.Turn.Phase != PhaseGivingClue {
		return game.Outcome{}, game.InvalidPhase("a clue was already given")
	}
	payload, err := game.Decode[giveCluePayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	word := strings.ToUpper(strings.TrimSpace(payload.Word))
	if !singleToken(word) {
		return game.Outcome{}, game.InvalidPayload("the clue must be one word")
	}
	for _, c := range g.Board {
		if !c.Revealed && strings.EqualFold(c.Word, word) {
			return game.Outcome{}, game.InvalidPayload("the clue cannot be a word on the board")
		}
	}
	if payload.Count == nil || *payload.Count < 0 || *payload.Count > maxClueCount {
		return game.Outcome{}, game.InvalidPayload("count must be between 0 and %d", maxClueCount)
	}

	count := *payload.Count
	clue := Clue{Team: g.Turn.Team, Word: word, Count: count}
	g.Clues = append(g.Clues, clue)

	g.Turn.Phase = PhaseGuessing
	g.Turn.PhaseStartedAt = cmd.At
	g.Turn.Deadline = game.DeadlineAfter(cmd.At, g.Settings.GuessTime)
	g.Turn.GuessesMade = 0
	g.Turn.GuessesRemaining = Unlimited
	if count > 0 {
		g.Turn.GuessesRemaining = count + 1
	}
	return game.Changed(game.Broadcast(makePacketClueGiven(clue))), nil
}

func singleToken(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func (g *Game) requireGuesser(sender string) error {
	if g.Head.Status != game.StatusPlaying {
		return game.InvalidPhase("the game is not running")
	}
	p, ok := g.Players[sender]
	if !ok || p.Team != g.Turn.Team || p.Role != Guesser {
		return game.Unauthorized("only %s guessers can do that", g.Turn.Team)
	}
	if g.Turn.Phase != PhaseGuessing {
		return game.InvalidPhase("wait for the clue")
	}
	return nil
}

func (g *Game) guess(cmd game.Command) (game.Outcome, error) {
	if err := g.requireGuesser(cmd.Sender); err != nil {
		return game.Outcome{}, err
	}
	payload, err := game.Decode[guessPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	if payload.Index == nil || *payload.Index < 0 || *payload.Index >= len(g.Board) {
		return game.Outcome{}, game.InvalidPayload("index must be between 0 and %d", len(g.Board)-1)
	}
	index := *payload.Index
	card := &g.Board[index]
	if card.Revealed {
		return game.Outcome{}, game.InvalidPayload("that card is already revealed")
	}

	team := g.Turn.Team
	card.Revealed = true
	reveal := Reveal{Index: index, Team: team, By: cmd.Sender, Category: card.Category}
	g.Reveals = append(g.Reveals, reveal)
	events := []game.Send{game.Broadcast(makePacketCardRevealed(reveal))}

	switch card.Category {
	case CategoryAssassin:
		events = append(events, g.finish(team.Other(), ReasonInstantLoss))

	case teamCategory(team):
		g.Remaining[team]--
		if g.Remaining[team] == 0 {
			events = append(events, g.finish(team, ReasonAllCards))
			break
		}
		g.Turn.GuessesMade++
		if g.Turn.GuessesRemaining != Unlimited {
			g.Turn.GuessesRemaining--
			if g.Turn.GuessesRemaining == 0 {
				events = append(events, g.flip(cmd.At))
				break
			}
		}
		g.Turn.PhaseStartedAt = cmd.At
		g.Turn.Deadline = game.DeadlineAfter(cmd.At, g.Settings.GuessTime)

	case teamCategory(team.Other()):
		other := team.Other()
		g.Remaining[other]--
		switch {
		case g.Remaining[other] == 0:
			events = append(events, g.finish(other, ReasonAllCards))
		case g.Settings.hardcore():
			events = append(events, g.finish(other, ReasonWrongGuess))
		default:
			events = append(events, g.flip(cmd.At))
		}

	default:
		if g.Settings.hardcore() {
			events = append(events, g.finish(team.Other(), ReasonWrongGuess))
		} else {
			events = append(events, g.flip(cmd.At))
		}
	}
	return game.Changed(events...), nil
}

func (g *Game) endGuessing(cmd game.Command) (game.Outcome, error) {
	if err := g.requireGuesser(cmd.Sender); err != nil {
		return game.Outcome{}, err
	}
	if g.Turn.GuessesMade == 0 {
		return game.Outcome{}, game.InvalidPhase("make at least one guess first")
	}
	return game.Changed(g.flip(cmd.At)), nil
}

// handleAlarm enforces the clue and guess time limits. Fires that do not
// match the current phase deadline are ignored.
func (g *Game) handleAlarm(at time.Time) game.Outcome {
	if g.Head.Status != game.StatusPlaying || g.Turn == nil || !game.Due(g.Turn.Deadline, at) {
		return game.Outcome{}
	}
	team := g.Turn.Team
	hardcore := g.Settings.hardcore()
	if g.Turn.Phase == PhaseGivingClue && hardcore ||
		g.Turn.Phase == PhaseGuessing && hardcore && g.Turn.GuessesMade == 0 {
		return game.Changed(g.finish(team.Other(), ReasonTimeout))
	}
	return game.Changed(g.flip(at))
}

func (g *Game) handleLeft(ev game.Left) game.Outcome {
	p, ok := g.Players[ev.ID]
	if !ok {
		return game.Changed()
	}
	delete(g.Players, ev.ID)

	if p.Role == Spymaster {
		if mates := g.teamMembers(p.Team); len(mates) > 0 {
			g.Players[mates[0]].Role = Spymaster
		}
	}

	if g.Head.Status != game.StatusPlaying || p.Team == "" {
		return game.Changed()
	}
	if _, ok := g.spymaster(p.Team); !ok || g.guessers(p.Team) == 0 {
		return game.Changed(g.finish(p.Team.Other(), ReasonForfeit))
	}
	return game.Changed()
}

func (g *Game) beginClue(team Team, now time.Time) {
	g.Turn = &Turn{
		Team:             team,
		Phase:            PhaseGivingClue,
		PhaseStartedAt:   now,
		Deadline:         game.DeadlineAfter(now, g.Settings.ClueTime),
		GuessesRemaining: 0,
	}
}

func (g *Game) flip(now time.Time) game.Send {
	g.beginClue(g.Turn.Team.Other(), now)
	return game.Broadcast(makePacketTurnChanged(g.Turn))
}

func (g *Game) finish(winner Team, reason string) game.Send {
	g.Head.Status = game.StatusFinished
	g.Result = &Result{Winner: winner, Reason: reason}
	g.Turn = nil
	return game.Broadcast(makePacketGameOver(*g.Result))
}
