package session

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func sides() (Side, Side) {
	return Side{ConnID: "w1", DisplayName: "alice", Rating: 1200},
		Side{ConnID: "b1", DisplayName: "bob", Rating: 1300}
}

func TestCreateSeedsClocks(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+3")

	if g.WhiteTime != 5*time.Minute || g.BlackTime != 5*time.Minute {
		t.Fatalf("clocks = %v/%v, want 5m each", g.WhiteTime, g.BlackTime)
	}
	if g.Turn != White {
		t.Fatalf("turn = %s, want white", g.Turn)
	}
}

func TestApplyMoveTurnAlternatesAndChargesClock(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+3")

	if _, err := s.ApplyMove(g.RoomID, "b1", "e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("black moved first, err = %v", err)
	}

	clk.Advance(10 * time.Second)
	out, err := s.ApplyMove(g.RoomID, "w1", "e4")
	if err != nil {
		t.Fatalf("white move: %v", err)
	}
	// 5m - 10s elapsed + 3s increment
	want := 5*time.Minute - 10*time.Second + 3*time.Second
	if out.WhiteTime != want {
		t.Fatalf("white clock = %v, want %v", out.WhiteTime, want)
	}
	if out.BlackTime != 5*time.Minute {
		t.Fatalf("black clock = %v, want untouched 5m", out.BlackTime)
	}

	// same side again is rejected
	if _, err := s.ApplyMove(g.RoomID, "w1", "d4"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("double move by white, err = %v", err)
	}

	snap, _ := s.Snapshot(g.RoomID)
	if snap.Turn != Black || len(snap.Moves) != 1 {
		t.Fatalf("turn=%s moves=%d after one move", snap.Turn, len(snap.Moves))
	}
}

func TestApplyMoveFlagFall(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "1+0")

	clk.Advance(2 * time.Minute)
	out, err := s.ApplyMove(g.RoomID, "w1", "e4")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if !out.Flagged {
		t.Fatalf("expected flag fall after overshooting the clock")
	}
	if out.WhiteTime != 0 {
		t.Fatalf("flagged clock = %v, want 0 (no negative values)", out.WhiteTime)
	}
	snap, _ := s.Snapshot(g.RoomID)
	if len(snap.Moves) != 0 || snap.Turn != White {
		t.Fatalf("flagged move must not land: moves=%d turn=%s", len(snap.Moves), snap.Turn)
	}
}

func TestDrawOfferClearedOnlyByOpponentMove(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	// white offers, then white moves: own offer survives
	if _, err := s.OfferDraw(g.RoomID, "w1"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	out, err := s.ApplyMove(g.RoomID, "w1", "e4")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if out.DrawOfferCleared {
		t.Fatalf("own move cleared own offer")
	}

	// black's move implicitly declines
	out, err = s.ApplyMove(g.RoomID, "b1", "e5")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if !out.DrawOfferCleared {
		t.Fatalf("opponent move should clear the offer")
	}

	// with the offer gone, accept is a stale no-op
	ok, err := s.AcceptDraw(g.RoomID, "b1")
	if err != nil || ok {
		t.Fatalf("stale accept: ok=%v err=%v", ok, err)
	}
}

func TestAcceptDrawRequiresOpponentOffer(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	// no offer outstanding
	if ok, _ := s.AcceptDraw(g.RoomID, "b1"); ok {
		t.Fatalf("accept without offer succeeded")
	}

	opp, err := s.OfferDraw(g.RoomID, "w1")
	if err != nil || opp != "b1" {
		t.Fatalf("OfferDraw: opp=%s err=%v", opp, err)
	}
	// offerer cannot accept their own offer
	if ok, _ := s.AcceptDraw(g.RoomID, "w1"); ok {
		t.Fatalf("offerer accepted own offer")
	}
	if ok, _ := s.AcceptDraw(g.RoomID, "b1"); !ok {
		t.Fatalf("valid accept failed")
	}
}

func TestDeclineDrawReturnsOfferer(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	if _, ok := s.DeclineDraw(g.RoomID, "b1"); ok {
		t.Fatalf("decline without offer succeeded")
	}
	if _, err := s.OfferDraw(g.RoomID, "w1"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	offerer, ok := s.DeclineDraw(g.RoomID, "b1")
	if !ok || offerer != "w1" {
		t.Fatalf("DeclineDraw = %s,%v", offerer, ok)
	}
}

func TestRejoinRebindsAndAccruesClock(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	clk.Advance(30 * time.Second)
	state, err := s.Rejoin(g.RoomID, "w1", "w2")
	if err != nil {
		t.Fatalf("Rejoin: %v", err)
	}
	if state.Color != White {
		t.Fatalf("rejoined color = %s", state.Color)
	}
	// white is to move, so white's shown clock has accrued
	if state.WhiteTime != 5*time.Minute-30*time.Second {
		t.Fatalf("white shown = %v", state.WhiteTime)
	}
	if state.BlackTime != 5*time.Minute {
		t.Fatalf("black shown = %v", state.BlackTime)
	}
	if state.Opponent.ConnID != "b1" {
		t.Fatalf("opponent = %+v", state.Opponent)
	}

	// the new connection owns the seat now
	if _, err := s.ApplyMove(g.RoomID, "w2", "e4"); err != nil {
		t.Fatalf("move after rebind: %v", err)
	}
	if _, err := s.Rejoin(g.RoomID, "w1", "w3"); !errors.Is(err, ErrInvalidRejoin) {
		t.Fatalf("stale credentials accepted, err = %v", err)
	}
}

func TestRejoinRebindsOutstandingDrawOffer(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	if _, err := s.OfferDraw(g.RoomID, "w1"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	if _, err := s.Rejoin(g.RoomID, "w1", "w2"); err != nil {
		t.Fatalf("Rejoin: %v", err)
	}

	// the offer followed the rebind: the offerer's own move keeps it alive
	out, err := s.ApplyMove(g.RoomID, "w2", "e4")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if out.DrawOfferCleared {
		t.Fatalf("own move after rejoin cleared own offer")
	}

	// and a decline resolves to the live connection, not the dead one
	offerer, ok := s.DeclineDraw(g.RoomID, "b1")
	if !ok || offerer != "w2" {
		t.Fatalf("DeclineDraw = %s,%v, want w2", offerer, ok)
	}
}

func TestRejoinUnknownRoom(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Rejoin("nope", "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBeginFinalizeAtMostOnce(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	if !s.BeginFinalize(g.RoomID) {
		t.Fatalf("first BeginFinalize failed")
	}
	if s.BeginFinalize(g.RoomID) {
		t.Fatalf("second BeginFinalize won")
	}
	if !s.Remove(g.RoomID) {
		t.Fatalf("first Remove failed")
	}
	if s.Remove(g.RoomID) {
		t.Fatalf("second Remove succeeded")
	}
	if s.BeginFinalize(g.RoomID) {
		t.Fatalf("BeginFinalize on removed room succeeded")
	}
}

func TestAppendChatUsesDisplayNameAndServerTime(t *testing.T) {
	clk := newClock()
	s := NewStore(clk.Now)
	w, b := sides()
	g := s.Create(w, b, "5+0")

	entry, err := s.AppendChat(g.RoomID, "b1", "gg")
	if err != nil {
		t.Fatalf("AppendChat: %v", err)
	}
	if entry.Sender != "bob" || !entry.At.Equal(clk.now) {
		t.Fatalf("entry = %+v", entry)
	}
	if _, err := s.AppendChat(g.RoomID, "stranger", "hi"); err == nil {
		t.Fatalf("non-participant chat accepted")
	}
}
