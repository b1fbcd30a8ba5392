package wordle

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"partyrooms/content"
	"partyrooms/game"
)

const (
	TypeStart = "start"
	TypeGuess = "guess"
)

type guessPayload struct {
	Word string `json:"word"`
}

type PacketPlayerDone struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Solved   bool   `json:"solved"`
	Attempts int    `json:"attempts"`
}

type PacketGameOver struct {
	Type    string   `json:"type"`
	Target  string   `json:"target"`
	Ranking []string `json:"ranking"`
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
		if g.Head.Status == game.StatusPlaying && g.allDone() {
			return game.Changed(g.finish()), nil
		}
		return game.Changed(), nil
	case game.AlarmFired:
		if g.Head.Status != game.StatusPlaying || !game.Due(g.EndsAt, ev.At) {
			return game.Outcome{}, nil
		}
		return game.Changed(g.finish()), nil
	case game.Command:
		switch ev.Type {
		case TypeStart:
			return g.start(ctx, ev)
		case TypeGuess:
			return g.guess(ctx, ev)
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
	if len(g.Players) == 0 {
		return game.Outcome{}, game.InvalidPhase("nobody has joined yet")
	}
	words, err := g.deps.Words.RandomWords(ctx, content.CategoryWordle, 1)
	if err != nil || len(words) == 0 {
		return game.Outcome{}, game.Unavailable("could not pick a word")
	}
	for _, p := range g.Players {
		*p = Player{Playing: true, Attempts: []Attempt{}}
	}
	g.Target = strings.ToLower(words[0])
	g.StartedAt = cmd.At
	g.EndsAt = game.DeadlineAfter(cmd.At, g.Settings.TimeLimit)
	g.Ranking = nil
	g.Head.Status = game.StatusPlaying
	return game.Changed(), nil
}

func (g *Game) guess(ctx context.Context, cmd game.Command) (game.Outcome, error) {
	if g.Head.Status != game.StatusPlaying {
		return game.Outcome{}, game.InvalidPhase("the game is not running")
	}
	p, ok := g.Players[cmd.Sender]
	if !ok || !p.Playing {
		return game.Outcome{}, game.Unauthorized("you are not in this round")
	}
	if p.Done {
		return game.Outcome{}, game.InvalidPhase("you are already done")
	}
	payload, err := game.Decode[guessPayload](cmd)
	if err != nil {
		return game.Outcome{}, err
	}
	word := strings.ToLower(strings.TrimSpace(payload.Word))
	if !fiveLetters(word) {
		return game.Outcome{}, game.InvalidPayload("guess must be %d letters", wordLength)
	}
	if word != g.Target && !g.deps.Dictionary.Valid(ctx, word) {
		return game.Outcome{}, game.InvalidPayload("%q is not in the word list", word)
	}

	p.Attempts = append(p.Attempts, Attempt{Word: word, Marks: Score(word, g.Target)})
	if word == g.Target || len(p.Attempts) == maxAttempts {
		p.Done = true
		p.Solved = word == g.Target
		p.DoneAt = cmd.At
	}
	if !p.Done {
		return game.Changed(), nil
	}

	done := makePacketPlayerDone(cmd.Sender, p)
	var events []game.Send
	if g.Settings.Variant == VariantHidden {
		events = append(events, game.Unicast(cmd.Sender, done))
	} else {
		events = append(events, game.Broadcast(done))
	}
	if g.allDone() {
		events = append(events, g.finish())
	}
	return game.Changed(events...), nil
}

func fiveLetters(word string) bool {
	if len(word) != wordLength {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

func (g *Game) allDone() bool {
	for _, p := range g.Players {
		if p.Playing && !p.Done {
			return false
		}
	}
	return true
}

func (g *Game) finish() game.Send {
	g.Head.Status = game.StatusFinished
	g.Ranking = g.rank()
	return game.Broadcast(PacketGameOver{Type: "game-over", Target: g.Target, Ranking: g.Ranking})
}

// rank orders players solved first, then by fewer attempts, then by earlier
// solve time. Ties keep join order.
func (g *Game) rank() []string {
	var ids []string
	for _, m := range g.Head.Members {
		if p, ok := g.Players[m.ID]; ok && p.Playing {
			ids = append(ids, m.ID)
		}
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		pa, pb := g.Players[a], g.Players[b]
		if pa.Solved != pb.Solved {
			if pa.Solved {
				return -1
			}
			return 1
		}
		if !pa.Solved {
			return 0
		}
		if c := cmp.Compare(len(pa.Attempts), len(pb.Attempts)); c != 0 {
			return c
		}
		return pa.DoneAt.Compare(pb.DoneAt)
	})
	return ids
}

func makePacketPlayerDone(id string, p *Player) PacketPlayerDone {
	return PacketPlayerDone{Type: "player-done", PlayerID: id, Solved: p.Solved, Attempts: len(p.Attempts)}
}
