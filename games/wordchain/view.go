package wordchain

import (
	"time"

	"partyrooms/game"
)

type PacketWordAccepted struct {
	Type string `json:"type"`
	Link Link   `json:"link"`
}

type PacketPlayerEliminated struct {
	Type        string      `json:"type"`
	PlayerID    string      `json:"playerId"`
	Elimination Elimination `json:"elimination"`
}

type PacketTurnChanged struct {
	Type     string     `json:"type"`
	PlayerID string     `json:"playerId"`
	Letter   string     `json:"letter"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type PacketGameOver struct {
	Type   string `json:"type"`
	Winner string `json:"winner"`
}

func makePacketWordAccepted(l Link) PacketWordAccepted {
	return PacketWordAccepted{Type: "word-accepted", Link: l}
}

func makePacketPlayerEliminated(id string, e Elimination) PacketPlayerEliminated {
	return PacketPlayerEliminated{Type: "player-eliminated", PlayerID: id, Elimination: e}
}

func makePacketTurnChanged(id string, letter byte, deadline time.Time) PacketTurnChanged {
	p := PacketTurnChanged{Type: "turn-changed", PlayerID: id, Letter: string(rune(letter))}
	if !deadline.IsZero() {
		p.Deadline = &deadline
	}
	return p
}

func makePacketGameOver(winner string) PacketGameOver {
	return PacketGameOver{Type: "game-over", Winner: winner}
}

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Player
}

type View struct {
	game.Header   `json:"header"`
	Settings      Settings     `json:"settings"`
	Players       []PlayerView `json:"players"`
	Chain         []Link       `json:"chain"`
	Current       string       `json:"current"`
	TurnStartedAt time.Time    `json:"turnStartedAt"`
	TurnDeadline  *time.Time   `json:"turnDeadline,omitempty"`
	Winner        string       `json:"winner"`
}

// View holds nothing back: the chain and every elimination are public.
func (g *Game) View(viewerID string) any {
	v := View{
		Header:        g.Head,
		Settings:      g.Settings,
		Players:       make([]PlayerView, 0, len(g.Players)),
		Chain:         g.Chain,
		Current:       g.Current,
		TurnStartedAt: g.TurnStartedAt,
		Winner:        g.Winner,
	}
	for _, m := range g.Head.Members {
		if p, ok := g.Players[m.ID]; ok {
			v.Players = append(v.Players, PlayerView{ID: m.ID, Name: m.Name, Player: *p})
		}
	}
	if d := g.Deadline(); !d.IsZero() {
		v.TurnDeadline = &d
	}
	return v
}
