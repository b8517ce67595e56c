package turn

import (
	"time"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/board"
)

// Snapshot is a read-only copy of the session used by the store, the web
// board and the CLI.
type Snapshot struct {
	ID        string        `json:"id"`
	StartFEN  string        `json:"start_fen"`
	FEN       string        `json:"fen"`
	Phase     string        `json:"phase"`
	Turn      string        `json:"turn"`
	Result    *board.Result `json:"result,omitempty"`
	Moves     []string      `json:"moves"`
	SAN       []string      `json:"san"`
	Pending   string        `json:"pending,omitempty"`
	LastMove  string        `json:"last_move,omitempty"`
	Agents    []agent.Info  `json:"agents"`
	Strikes   [2]int        `json:"strikes"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		StartFEN:  s.rules.Serialize(s.start),
		FEN:       s.FEN(),
		Phase:     s.state.Phase.String(),
		Turn:      s.state.Color.String(),
		Moves:     make([]string, 0, len(s.history)),
		SAN:       make([]string, 0, len(s.history)),
		Agents:    []agent.Info{agent.Describe(s.agents[board.White]), agent.Describe(s.agents[board.Black])},
		Strikes:   s.strikes,
		UpdatedAt: s.updatedAt,
	}
	for _, e := range s.history {
		snap.Moves = append(snap.Moves, e.move.String())
		snap.SAN = append(snap.SAN, e.san)
	}
	if n := len(s.history); n > 0 {
		snap.LastMove = s.history[n-1].move.String()
	}
	if s.state.Phase == PhaseGameOver {
		r := s.state.Result
		snap.Result = &r
	}
	if sq, ok := s.agg.Pending(); ok {
		snap.Pending = sq.String()
	}
	return snap
}

// ParseMoves decodes a snapshot's move list.
func (s Snapshot) ParseMoves() ([]board.Move, error) {
	out := make([]board.Move, 0, len(s.Moves))
	for _, code := range s.Moves {
		mv, err := board.ParseMove(code)
		if err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, nil
}
