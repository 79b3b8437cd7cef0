// Package rating implements the Elo arithmetic applied at game end and the
// classification of time controls into rating categories. Everything here is
// a pure function; the engine owns all state.
package rating

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultRating seeds players with no stored profile (guests included).
const DefaultRating = 1200

// MinRating is the floor no rating may drop below.
const MinRating = 100

// Category buckets a time control by effective pace.
type Category string

const (
	Bullet Category = "bullet"
	Blitz  Category = "blitz"
	Rapid  Category = "rapid"
)

// ParseTimeControl splits "base+increment" into base minutes and increment
// seconds. A missing increment means zero.
func ParseTimeControl(tc string) (base int, increment int, err error) {
	parts := strings.SplitN(strings.TrimSpace(tc), "+", 2)
	base, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad time control %q: %w", tc, err)
	}
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		increment, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("bad time control %q: %w", tc, err)
		}
	}
	return base, increment, nil
}

// CategoryOf classifies a time control by its effective duration,
// base + increment*40/60, assuming a nominal 40-move game.
// Unparseable controls land in rapid.
func CategoryOf(tc string) Category {
	base, inc, err := ParseTimeControl(tc)
	if err != nil {
		return Rapid
	}
	effective := float64(base) + float64(inc)*40.0/60.0
	switch {
	case effective < 3:
		return Bullet
	case effective < 10:
		return Blitz
	default:
		return Rapid
	}
}

// ExpectedScore is the standard Elo win expectancy of a against b.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// KFactor tiers Elo sensitivity by experience and strength: provisional
// players move fast, established masters move slowly.
func KFactor(ratingVal, gamesPlayed int) int {
	if gamesPlayed < 30 {
		return 40
	}
	if ratingVal >= 2400 {
		return 16
	}
	return 32
}

// Outcome is one player's result.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

func (o Outcome) score() float64 {
	switch o {
	case Win:
		return 1
	case Loss:
		return 0
	default:
		return 0.5
	}
}

// Delta is the rounded rating change for one player.
func Delta(player, opponent int, outcome Outcome, k int) int {
	return int(math.Round(float64(k) * (outcome.score() - ExpectedScore(player, opponent))))
}

// GameInput describes a finished game from the rating engine's view.
// Result is "white", "black" or "draw".
type GameInput struct {
	WhiteRating      int
	BlackRating      int
	Result           string
	WhiteGamesPlayed int
	BlackGamesPlayed int
}

// GameRatings carries both deltas and both new ratings, floored at MinRating.
type GameRatings struct {
	WhiteDelta     int
	BlackDelta     int
	WhiteNewRating int
	BlackNewRating int
}

// ComputeGameRatings applies per-side K factors and the game result to both
// players at once.
func ComputeGameRatings(in GameInput) GameRatings {
	whiteK := KFactor(in.WhiteRating, in.WhiteGamesPlayed)
	blackK := KFactor(in.BlackRating, in.BlackGamesPlayed)

	var whiteOutcome, blackOutcome Outcome
	switch in.Result {
	case "white":
		whiteOutcome, blackOutcome = Win, Loss
	case "black":
		whiteOutcome, blackOutcome = Loss, Win
	default:
		whiteOutcome, blackOutcome = Draw, Draw
	}

	wd := Delta(in.WhiteRating, in.BlackRating, whiteOutcome, whiteK)
	bd := Delta(in.BlackRating, in.WhiteRating, blackOutcome, blackK)

	return GameRatings{
		WhiteDelta:     wd,
		BlackDelta:     bd,
		WhiteNewRating: max(MinRating, in.WhiteRating+wd),
		BlackNewRating: max(MinRating, in.BlackRating+bd),
	}
}
