package profile

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	ratingpkg "github.com/chess-arena/server/internal/rating"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("profile.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ref1, err := s.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ref2, err := s.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register again: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("refs diverged: %s vs %s", ref1, ref2)
	}

	got, found, err := s.Resolve(ctx, "alice")
	if err != nil || !found || got != ref1 {
		t.Fatalf("Resolve = %s,%v,%v", got, found, err)
	}
	if _, found, _ := s.Resolve(ctx, "nobody"); found {
		t.Fatalf("unknown name resolved")
	}
}

func TestLookupMissingReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	p, found, err := s.Lookup(context.Background(), "no-such-ref", ratingpkg.Blitz)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatalf("missing profile reported found")
	}
	if p.Rating != ratingpkg.DefaultRating || p.GamesPlayed != 0 {
		t.Fatalf("defaults = %+v", p)
	}
}

func TestApplyResultStreaksAndWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ref, err := s.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := s.ApplyResult(ctx, ref, ratingpkg.Blitz, ratingpkg.Win, 1216, "checkmate")
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if p.Rating != 1216 || p.Wins != 1 || p.Streak != 1 || p.BestStreak != 1 {
		t.Fatalf("after win: %+v", p)
	}

	p, err = s.ApplyResult(ctx, ref, ratingpkg.Blitz, ratingpkg.Win, 1230, "resignation")
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if p.Streak != 2 || p.BestStreak != 2 || p.HighestRating != 1230 {
		t.Fatalf("after second win: %+v", p)
	}

	p, err = s.ApplyResult(ctx, ref, ratingpkg.Blitz, ratingpkg.Loss, 1214, "timeout")
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if p.Streak != 0 || p.BestStreak != 2 {
		t.Fatalf("after loss: %+v", p)
	}
	// highest rating is a watermark, not the current value
	if p.HighestRating != 1230 || p.Rating != 1214 {
		t.Fatalf("watermark lost: %+v", p)
	}
	if p.GamesPlayed != 3 || p.Outcomes["timeout"].Losses != 1 || p.Outcomes["checkmate"].Wins != 1 {
		t.Fatalf("breakdown: %+v", p)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ref, _ := s.Register(ctx, "alice")

	if _, err := s.ApplyResult(ctx, ref, ratingpkg.Bullet, ratingpkg.Win, 1250, "timeout"); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	p, found, err := s.Lookup(ctx, ref, ratingpkg.Rapid)
	if err != nil || found {
		t.Fatalf("rapid profile = found=%v err=%v", found, err)
	}
	if p.Rating != ratingpkg.DefaultRating {
		t.Fatalf("rapid rating bled over: %d", p.Rating)
	}
}
