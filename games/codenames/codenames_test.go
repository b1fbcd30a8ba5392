package codenames

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyrooms/game"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var boardWords = []string{
	"apple", "bank", "castle", "dragon", "engine", "forest", "ghost", "horse",
	"island", "jungle", "knight", "lemon", "mirror", "needle", "orange", "pirate",
	"queen", "robot", "saddle", "tiger", "umbrella", "violin", "whale", "yacht", "zebra",
}

type stubWords struct {
	err error
}

func (s stubWords) RandomWords(ctx context.Context, category string, n int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return boardWords[:n], nil
}

func newGame(t *testing.T, settings url.Values, words stubWords) *Game {
	t.Helper()
	f := NewFactory(Deps{Words: words, Rand: rand.New(rand.NewPCG(1, 2))})
	g := f.New(settings, "rs", t0).(*Game)
	for _, m := range []game.Member{{ID: "rs", Name: "Red Spy"}, {ID: "rg", Name: "Red Guess"}, {ID: "bs", Name: "Blue Spy"}, {ID: "bg", Name: "Blue Guess"}} {
		g.Head.Members = append(g.Head.Members, m)
		_, err := g.Apply(context.Background(), game.Joined{Member: m, At: t0})
		require.NoError(t, err)
	}
	return g
}

func command(sender, typ string, payload any, at time.Time) game.Command {
	raw, _ := json.Marshal(payload)
	return game.Command{Sender: sender, Type: typ, Payload: raw, At: at}
}

func mustApply(t *testing.T, g *Game, ev game.Event) game.Outcome {
	t.Helper()
	out, err := g.Apply(context.Background(), ev)
	require.NoError(t, err)
	return out
}

func requireCode(t *testing.T, code string, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, game.ErrorCode(err), err.Error())
}

// startedGame returns a game in play with rs/rg on red and bs/bg on blue.
func startedGame(t *testing.T, settings url.Values) *Game {
	t.Helper()
	g := newGame(t, settings, stubWords{})
	mustApply(t, g, command("rs", TypeProceed, nil, t0))
	mustApply(t, g, command("rs", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Spymaster}, t0))
	mustApply(t, g, command("rg", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Guesser}, t0))
	mustApply(t, g, command("bs", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Spymaster}, t0))
	mustApply(t, g, command("bg", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Guesser}, t0))
	mustApply(t, g, command("rs", TypeStart, nil, t0))
	return g
}

func cardOf(g *Game, c Category) int {
	for i, card := range g.Board {
		if card.Category == c && !card.Revealed {
			return i
		}
	}
	return -1
}

func clue(word string, count int) giveCluePayload {
	return giveCluePayload{Word: word, Count: &count}
}

func guessAt(i int) guessPayload {
	return guessPayload{Index: &i}
}

func TestStartDealsBoard(t *testing.T) {
	g := startedGame(t, nil)

	assert.Equal(t, game.StatusPlaying, g.Head.Status)
	require.Len(t, g.Board, boardSize)
	counts := map[Category]int{}
	for _, c := range g.Board {
		counts[c.Category]++
		assert.False(t, c.Revealed)
	}
	assert.Equal(t, map[Category]int{CategoryRed: 9, CategoryBlue: 8, CategoryNeutral: 7, CategoryAssassin: 1}, counts)
	assert.Equal(t, map[Team]int{Red: 9, Blue: 8}, g.Remaining)
	assert.Equal(t, Red, g.Turn.Team)
	assert.Equal(t, PhaseGivingClue, g.Turn.Phase)
	assert.True(t, g.Deadline().IsZero())
}

func TestStartPreconditions(t *testing.T) {
	g := newGame(t, nil, stubWords{})

	_, err := g.Apply(context.Background(), command("rg", TypeProceed, nil, t0))
	requireCode(t, game.CodeUnauthorized, err)

	_, err = g.Apply(context.Background(), command("rs", TypeStart, nil, t0))
	requireCode(t, game.CodeInvalidPhase, err)

	mustApply(t, g, command("rs", TypeProceed, nil, t0))
	mustApply(t, g, command("rs", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Spymaster}, t0))

	_, err = g.Apply(context.Background(), command("rg", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Spymaster}, t0))
	requireCode(t, game.CodeInvalidPhase, err)
	_, err = g.Apply(context.Background(), command("rg", TypeJoinTeam, joinTeamPayload{Team: "green", Role: Guesser}, t0))
	requireCode(t, game.CodeInvalidPayload, err)

	_, err = g.Apply(context.Background(), command("rs", TypeStart, nil, t0))
	requireCode(t, game.CodeInvalidPhase, err)
	assert.Equal(t, game.StatusTeamSelection, g.Head.Status)
}

func TestStartWithoutWords(t *testing.T) {
	g := newGame(t, nil, stubWords{err: errors.New("db down")})
	mustApply(t, g, command("rs", TypeProceed, nil, t0))
	mustApply(t, g, command("rs", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Spymaster}, t0))
	mustApply(t, g, command("rg", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Guesser}, t0))
	mustApply(t, g, command("bs", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Spymaster}, t0))
	mustApply(t, g, command("bg", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Guesser}, t0))

	_, err := g.Apply(context.Background(), command("rs", TypeStart, nil, t0))
	requireCode(t, game.CodeUnavailable, err)
	assert.Equal(t, game.StatusTeamSelection, g.Head.Status)
	assert.Empty(t, g.Board)
}

func TestClueThenInstantLoss(t *testing.T) {
	g := startedGame(t, nil)

	out := mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 2), t0))
	require.Len(t, out.Events, 1)
	assert.Equal(t, 3, g.Turn.GuessesRemaining)
	assert.Equal(t, PhaseGuessing, g.Turn.Phase)

	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	assert.Equal(t, 2, g.Turn.GuessesRemaining)
	assert.Equal(t, 1, g.Turn.GuessesMade)
	assert.Equal(t, Red, g.Turn.Team)
	assert.Equal(t, 8, g.Remaining[Red])

	out = mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryAssassin)), t0))
	assert.Equal(t, game.StatusFinished, g.Head.Status)
	assert.Equal(t, &Result{Winner: Blue, Reason: ReasonInstantLoss}, g.Result)
	assert.Nil(t, g.Turn)
	require.Len(t, out.Events, 2)
	assert.Equal(t, makePacketGameOver(*g.Result), out.Events[1].Packet)
}

func TestHardcoreNeutralLoses(t *testing.T) {
	g := startedGame(t, url.Values{"mode": {"hardcore"}})

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 1), t0))
	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryNeutral)), t0))

	assert.Equal(t, game.StatusFinished, g.Head.Status)
	assert.Equal(t, &Result{Winner: Blue, Reason: ReasonWrongGuess}, g.Result)
}

func TestNormalWrongGuessFlips(t *testing.T) {
	g := startedGame(t, nil)

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 1), t0))
	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryBlue)), t0))

	assert.Equal(t, game.StatusPlaying, g.Head.Status)
	assert.Equal(t, Blue, g.Turn.Team)
	assert.Equal(t, PhaseGivingClue, g.Turn.Phase)
	assert.Equal(t, 7, g.Remaining[Blue])
}

func TestExhaustedGuessesFlip(t *testing.T) {
	g := startedGame(t, nil)

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 1), t0))
	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	assert.Equal(t, Red, g.Turn.Team)
	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	assert.Equal(t, Blue, g.Turn.Team)
	assert.Equal(t, 7, g.Remaining[Red])
}

func TestUnlimitedClue(t *testing.T) {
	g := startedGame(t, nil)

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 0), t0))
	assert.Equal(t, Unlimited, g.Turn.GuessesRemaining)
	for range 3 {
		mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	}
	assert.Equal(t, Unlimited, g.Turn.GuessesRemaining)
	assert.Equal(t, 3, g.Turn.GuessesMade)

	v := g.View("rg").(View)
	assert.Equal(t, "∞", v.Turn.GuessesRemaining)
}

func TestAllCardsWins(t *testing.T) {
	g := startedGame(t, nil)

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 0), t0))
	for g.Head.Status == game.StatusPlaying {
		mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	}
	assert.Equal(t, &Result{Winner: Red, Reason: ReasonAllCards}, g.Result)
}

func TestGiveClueValidation(t *testing.T) {
	g := startedGame(t, nil)
	board := g.Board[0].Word

	tests := []struct {
		name   string
		sender string
		clue   giveCluePayload
		code   string
	}{
		{"guesser", "rg", clue("OCEAN", 1), game.CodeUnauthorized},
		{"other spymaster", "bs", clue("OCEAN", 1), game.CodeUnauthorized},
		{"board word", "rs", clue(board, 1), game.CodeInvalidPayload},
		{"board word lower", "rs", clue("apple", 1), game.CodeInvalidPayload},
		{"two words", "rs", clue("deep sea", 1), game.CodeInvalidPayload},
		{"digits", "rs", clue("r2d2", 1), game.CodeInvalidPayload},
		{"count too high", "rs", clue("OCEAN", 10), game.CodeInvalidPayload},
		{"negative count", "rs", clue("OCEAN", -1), game.CodeInvalidPayload},
		{"missing count", "rs", giveCluePayload{Word: "OCEAN"}, game.CodeInvalidPayload},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Apply(context.Background(), command(tc.sender, TypeGiveClue, tc.clue, t0))
			requireCode(t, tc.code, err)
			assert.Equal(t, PhaseGivingClue, g.Turn.Phase)
			assert.Empty(t, g.Clues)
		})
	}

	_, err := g.Apply(context.Background(), command("rg", TypeGuess, guessAt(0), t0))
	requireCode(t, game.CodeInvalidPhase, err)
}

func TestRepeatedGuessIsRejected(t *testing.T) {
	g := startedGame(t, nil)
	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 3), t0))
	red := cardOf(g, CategoryRed)
	mustApply(t, g, command("rg", TypeGuess, guessAt(red), t0))

	before, err := json.Marshal(g)
	require.NoError(t, err)

	_, err = g.Apply(context.Background(), command("rg", TypeGuess, guessAt(red), t0))
	requireCode(t, game.CodeInvalidPayload, err)
	_, err = g.Apply(context.Background(), command("rg", TypeGuess, guessAt(25), t0))
	requireCode(t, game.CodeInvalidPayload, err)
	_, err = g.Apply(context.Background(), command("bg", TypeGuess, guessAt(0), t0))
	requireCode(t, game.CodeUnauthorized, err)

	after, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestEndGuessing(t *testing.T) {
	g := startedGame(t, nil)
	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 3), t0))

	_, err := g.Apply(context.Background(), command("rg", TypeEndGuessing, nil, t0))
	requireCode(t, game.CodeInvalidPhase, err)

	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), t0))
	mustApply(t, g, command("rg", TypeEndGuessing, nil, t0))
	assert.Equal(t, Blue, g.Turn.Team)
	assert.Equal(t, PhaseGivingClue, g.Turn.Phase)
}

func TestClueTimeout(t *testing.T) {
	tests := []struct {
		mode   string
		status game.Status
		team   Team
		result *Result
	}{
		{ModeNormal, game.StatusPlaying, Blue, nil},
		{ModeHardcore, game.StatusFinished, "", &Result{Winner: Blue, Reason: ReasonTimeout}},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			g := startedGame(t, url.Values{"mode": {tc.mode}, "clueTime": {"30"}})
			assert.Equal(t, t0.Add(30*time.Second), g.Deadline())

			out := mustApply(t, g, game.AlarmFired{At: t0.Add(29 * time.Second)})
			assert.False(t, out.Changed)
			assert.Equal(t, Red, g.Turn.Team)

			fired := t0.Add(29500 * time.Millisecond)
			out = mustApply(t, g, game.AlarmFired{At: fired})
			assert.True(t, out.Changed)
			assert.Equal(t, tc.status, g.Head.Status)
			assert.Equal(t, tc.result, g.Result)
			if tc.team != "" {
				assert.Equal(t, tc.team, g.Turn.Team)
				assert.Equal(t, fired.Add(30*time.Second), g.Deadline())
			} else {
				assert.True(t, g.Deadline().IsZero())
			}
		})
	}
}

func TestGuessTimeout(t *testing.T) {
	g := startedGame(t, url.Values{"mode": {"hardcore"}, "guessTime": {"20"}})
	assert.True(t, g.Deadline().IsZero())

	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 2), t0))
	assert.Equal(t, t0.Add(20*time.Second), g.Deadline())

	guessed := t0.Add(10 * time.Second)
	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryRed)), guessed))
	assert.Equal(t, guessed.Add(20*time.Second), g.Deadline())

	mustApply(t, g, game.AlarmFired{At: guessed.Add(20 * time.Second)})
	assert.Equal(t, game.StatusPlaying, g.Head.Status)
	assert.Equal(t, Blue, g.Turn.Team)
	assert.True(t, g.Deadline().IsZero())

	mustApply(t, g, command("bs", TypeGiveClue, clue("RIVER", 2), guessed))
	mustApply(t, g, game.AlarmFired{At: guessed.Add(20 * time.Second)})
	assert.Equal(t, &Result{Winner: Red, Reason: ReasonTimeout}, g.Result)
}

func TestStaleAlarmIgnored(t *testing.T) {
	g := startedGame(t, nil)
	out := mustApply(t, g, game.AlarmFired{At: t0.Add(time.Hour)})
	assert.False(t, out.Changed)
	assert.Equal(t, Red, g.Turn.Team)
}

func TestSpymasterLeaving(t *testing.T) {
	g := newGame(t, nil, stubWords{})
	extra := game.Member{ID: "rg2", Name: "Second"}
	g.Head.Members = append(g.Head.Members, extra)
	mustApply(t, g, game.Joined{Member: extra, At: t0})
	mustApply(t, g, command("rs", TypeProceed, nil, t0))
	mustApply(t, g, command("rs", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Spymaster}, t0))
	mustApply(t, g, command("rg", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Guesser}, t0))
	mustApply(t, g, command("rg2", TypeJoinTeam, joinTeamPayload{Team: Red, Role: Guesser}, t0))
	mustApply(t, g, command("bs", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Spymaster}, t0))
	mustApply(t, g, command("bg", TypeJoinTeam, joinTeamPayload{Team: Blue, Role: Guesser}, t0))
	mustApply(t, g, command("rs", TypeStart, nil, t0))

	mustApply(t, g, game.Left{ID: "rs", At: t0})
	assert.Equal(t, Spymaster, g.Players["rg"].Role)
	assert.Equal(t, game.StatusPlaying, g.Head.Status)

	out := mustApply(t, g, game.Left{ID: "rg2", At: t0})
	assert.Equal(t, &Result{Winner: Blue, Reason: ReasonForfeit}, g.Result)
	require.Len(t, out.Events, 1)
}

func TestViewRedaction(t *testing.T) {
	g := startedGame(t, nil)
	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 2), t0))
	revealed := cardOf(g, CategoryRed)
	mustApply(t, g, command("rg", TypeGuess, guessAt(revealed), t0))

	full := make([]CardView, len(g.Board))
	masked := make([]CardView, len(g.Board))
	for i, c := range g.Board {
		full[i] = CardView{Word: c.Word, Category: c.Category, Revealed: c.Revealed}
		masked[i] = CardView{Word: c.Word, Category: CategoryUnknown, Revealed: c.Revealed}
	}
	masked[revealed].Category = CategoryRed

	for _, viewer := range []string{"rg", "bg", "stranger"} {
		v := g.View(viewer).(View)
		if diff := cmp.Diff(masked, v.Board); diff != "" {
			t.Errorf("%s board mismatch (-want +got):\n%s", viewer, diff)
		}
	}
	for _, viewer := range []string{"rs", "bs"} {
		v := g.View(viewer).(View)
		if diff := cmp.Diff(full, v.Board); diff != "" {
			t.Errorf("%s board mismatch (-want +got):\n%s", viewer, diff)
		}
	}

	// Serialised views keep the marker at every index.
	raw, err := json.Marshal(g.View("rg"))
	require.NoError(t, err)
	var decoded View
	require.NoError(t, json.Unmarshal(raw, &decoded))
	if diff := cmp.Diff(masked, decoded.Board); diff != "" {
		t.Errorf("decoded board mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"rs", "rg", "bs", "bg"}, playerIDs(decoded.Players))

	mustApply(t, g, command("rg", TypeGuess, guessAt(cardOf(g, CategoryAssassin)), t0))
	v := g.View("rg").(View)
	for i, c := range g.Board {
		assert.Equal(t, c.Category, v.Board[i].Category)
	}
}

func playerIDs(ps []PlayerView) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestRestoreRoundTrip(t *testing.T) {
	g := startedGame(t, url.Values{"clueTime": {"45"}})
	mustApply(t, g, command("rs", TypeGiveClue, clue("OCEAN", 2), t0))

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	f := NewFactory(Deps{Words: stubWords{}, Rand: game.NewRand()})
	m, err := f.Restore(raw)
	require.NoError(t, err)

	if diff := cmp.Diff(g, m.(*Game), cmpopts.IgnoreUnexported(Game{})); diff != "" {
		t.Errorf("restored game mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, g.Deadline(), m.Deadline())
}

func TestResetKeepsMembers(t *testing.T) {
	g := startedGame(t, nil)
	g.Reset(t0)

	assert.Equal(t, game.StatusWaiting, g.Head.Status)
	assert.Len(t, g.Players, 4)
	assert.Empty(t, g.Board)
	assert.Equal(t, Role(""), g.Players["rs"].Role)
	assert.Equal(t, "rs", g.Head.HostID)
}
