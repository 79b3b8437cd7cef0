// Package archive persists finished games to postgres. The archive is a
// write-behind record; gameplay never reads from it, so a missing database
// only degrades history, not play.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	_ "github.com/lib/pq"
)

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
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
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

// Record is one finished game ready for the archive.
type Record struct {
	RoomID      string
	WhiteName   string
	WhiteRef    string
	BlackName   string
	BlackRef    string
	Result      string // "white", "black" or "draw"
	Reason      string
	Category    string
	WhiteDelta  int
	BlackDelta  int
	Moves       []string
	TimeControl string
	StartedAt   time.Time
	EndedAt     time.Time
}

// SaveCompleted upserts the record keyed by room id, so a retried
// finalization overwrites rather than duplicates.
func (r *Repository) SaveCompleted(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}

	pgnResult := mapResultToPGN(rec.Result)
	pgn := BuildPGN(rec, pgnResult)
	finalFEN := FinalFEN(rec.Moves)
	movesRaw, _ := json.Marshal(rec.Moves)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
	    room_id, white_ref, white_name, black_ref, black_name,
	    result, reason, category, time_control,
	    white_delta, black_delta, moves, pgn, final_fen,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
	  ) ON CONFLICT (room_id) DO UPDATE SET
	    white_ref=EXCLUDED.white_ref,
	    white_name=EXCLUDED.white_name,
	    black_ref=EXCLUDED.black_ref,
	    black_name=EXCLUDED.black_name,
	    result=EXCLUDED.result,
	    reason=EXCLUDED.reason,
	    category=EXCLUDED.category,
	    time_control=EXCLUDED.time_control,
	    white_delta=EXCLUDED.white_delta,
	    black_delta=EXCLUDED.black_delta,
	    moves=EXCLUDED.moves,
	    pgn=EXCLUDED.pgn,
	    final_fen=EXCLUDED.final_fen,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.RoomID,
		rec.WhiteRef, rec.WhiteName,
		rec.BlackRef, rec.BlackName,
		rec.Result, strings.TrimSpace(rec.Reason), rec.Category, rec.TimeControl,
		rec.WhiteDelta, rec.BlackDelta, string(movesRaw), pgn, finalFEN,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the archived game as PGN text from the stored move list.
func BuildPGN(rec Record, pgnResult string) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Chess Arena\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.BlackName)))
	if strings.TrimSpace(rec.TimeControl) != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(rec.TimeControl)))
	}
	if strings.TrimSpace(rec.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.Moves); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.Moves[i])))
		if i+1 < len(rec.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.Moves[i+1]))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

// FinalFEN replays the move list from the start position and returns the
// resulting FEN. Clients send notation the engine never validates, so a move
// that fails to parse yields an empty FEN rather than an error.
func FinalFEN(moves []string) string {
	game := nchess.NewGame()
	for _, mv := range moves {
		mv = strings.TrimSpace(mv)
		if mv == "" {
			return ""
		}
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
				return ""
			}
		}
	}
	return game.FEN()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
