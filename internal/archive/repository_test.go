package archive

import (
	"strings"
	"testing"
	"time"
)

func TestBuildPGNHeadersAndMoves(t *testing.T) {
	rec := Record{
		WhiteName:   `alice "the rook"`,
		BlackName:   "bob",
		Reason:      "checkmate",
		Moves:       []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"},
		TimeControl: "5+3",
		EndedAt:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(rec, "1-0")

	for _, want := range []string{
		`[Date "2026.03.14"]`,
		`[White "alice 'the rook'"]`,
		`[Black "bob"]`,
		`[TimeControl "5+3"]`,
		`[Termination "checkmate"]`,
		`[Result "1-0"]`,
		"1. e4 e5",
		"4. Qxf7#",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("PGN missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, "1-0") {
		t.Fatalf("PGN does not end with result:\n%s", pgn)
	}
}

func TestMapResultToPGN(t *testing.T) {
	cases := map[string]string{
		"white": "1-0",
		"black": "0-1",
		"draw":  "1/2-1/2",
		"":      "*",
		"weird": "*",
	}
	for in, want := range cases {
		if got := mapResultToPGN(in); got != want {
			t.Fatalf("mapResultToPGN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFinalFENReplaysScholarsMate(t *testing.T) {
	fen := FinalFEN([]string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"})
	if fen == "" {
		t.Fatalf("expected a FEN from a legal game")
	}
	if !strings.Contains(fen, " b ") {
		t.Fatalf("black should be to move in final position: %s", fen)
	}
}

func TestFinalFENAcceptsUCI(t *testing.T) {
	if fen := FinalFEN([]string{"e2e4", "e7e5"}); fen == "" {
		t.Fatalf("UCI moves should replay")
	}
}

func TestFinalFENToleratesGarbage(t *testing.T) {
	if fen := FinalFEN([]string{"e4", "not-a-move"}); fen != "" {
		t.Fatalf("garbage move produced FEN %q", fen)
	}
	if fen := FinalFEN(nil); fen == "" {
		t.Fatalf("empty game should yield the start position FEN")
	}
}
