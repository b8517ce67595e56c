package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-arena/internal/board"
)

const schema = `CREATE TABLE IF NOT EXISTS arena_games (
    game_id       TEXT PRIMARY KEY,
    white_name    TEXT NOT NULL,
    white_kind    TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    black_kind    TEXT NOT NULL,
    start_fen     TEXT NOT NULL,
    final_fen     TEXT NOT NULL,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL,
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    pgn           TEXT NOT NULL,
    white_used_ms BIGINT NOT NULL DEFAULT 0,
    black_used_ms BIGINT NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

// Record is one finished game.
type Record struct {
	GameID    string
	White     Player
	Black     Player
	StartFEN  string
	FinalFEN  string
	Result    board.Result
	MovesUCI  []string
	MovesSAN  []string
	StartedAt time.Time
	EndedAt   time.Time
}

type Player struct {
	Name string
	Kind string
	Used time.Duration
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// SaveResult upserts a finished game.
func (r *Repository) SaveResult(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	if !rec.Result.Decided() {
		return fmt.Errorf("game %s has no result", rec.GameID)
	}

	movesUCIRaw, _ := json.Marshal(nonNil(rec.MovesUCI))
	movesSANRaw, _ := json.Marshal(nonNil(rec.MovesSAN))
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
        game_id, white_name, white_kind, black_name, black_kind,
        start_fen, final_fen, result, result_method, moves_uci, moves_san, pgn,
        white_used_ms, black_used_ms, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
      ) ON CONFLICT (game_id) DO UPDATE SET
        final_fen=EXCLUDED.final_fen,
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        white_used_ms=EXCLUDED.white_used_ms,
        black_used_ms=EXCLUDED.black_used_ms,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID,
		rec.White.Name, rec.White.Kind,
		rec.Black.Name, rec.Black.Kind,
		rec.StartFEN, rec.FinalFEN,
		string(rec.Result.Outcome), string(rec.Result.Reason),
		string(movesUCIRaw), string(movesSANRaw), BuildPGN(rec),
		rec.White.Used.Milliseconds(), rec.Black.Used.Milliseconds(),
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// BuildPGN renders a record as PGN text. A non-standard start position is
// carried in SetUp/FEN headers.
func BuildPGN(rec Record) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := string(rec.Result.Outcome)
	if result == "" {
		result = string(board.NoOutcome)
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"local\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.White.Name)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.Black.Name)))
	if fen := strings.TrimSpace(rec.StartFEN); fen != "" && fen != startFEN {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(fen)))
	}
	if rec.Result.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(string(rec.Result.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	// Black to move in the start position shifts the numbering.
	first, number := 0, 1
	if fields := strings.Fields(rec.StartFEN); len(fields) >= 6 && fields[1] == "b" {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			number = n
		}
		if len(rec.MovesSAN) > 0 {
			b.WriteString(fmt.Sprintf("%d... %s ", number, strings.TrimSpace(rec.MovesSAN[0])))
			first = 1
			number++
		}
	}
	for i := first; i < len(rec.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", number, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
		number++
	}
	b.WriteString(result)
	return b.String()
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
