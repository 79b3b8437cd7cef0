// Package profile persists player ratings and result statistics in redis,
// keyed per rating category. Guests never reach this store; the engine hands
// them default values instead.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/obslog"
	ratingpkg "github.com/chess-arena/server/internal/rating"
)

// OutcomeLine breaks one player's results down by how games ended.
type OutcomeLine struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// Profile is the stored document for one player in one rating category.
type Profile struct {
	Rating        int                    `json:"rating"`
	HighestRating int                    `json:"highestRating"`
	GamesPlayed   int                    `json:"gamesPlayed"`
	Wins          int                    `json:"wins"`
	Losses        int                    `json:"losses"`
	Draws         int                    `json:"draws"`
	Streak        int                    `json:"streak"`
	BestStreak    int                    `json:"bestStreak"`
	Outcomes      map[string]OutcomeLine `json:"outcomes,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

type Store struct{ rdb *redis.Client }

// NewStore connects to redis and verifies the connection before returning.
func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for profile store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewStoreWithClient wraps an existing client, used by tests.
func NewStoreWithClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func profileKey(ref string, cat ratingpkg.Category) string {
	return "profile:" + strings.TrimSpace(ref) + ":" + string(cat)
}

func nameKey(displayName string) string {
	return "player:name:" + strings.TrimSpace(displayName)
}

// Resolve returns the player ref registered for the display name, if any.
func (s *Store) Resolve(ctx context.Context, displayName string) (string, bool, error) {
	ref, err := s.rdb.Get(ctx, nameKey(displayName)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ref, true, nil
}

// Register maps the display name to a player ref, minting one when the name
// is new. Concurrent registrations of the same name converge on one ref.
func (s *Store) Register(ctx context.Context, displayName string) (string, error) {
	if strings.TrimSpace(displayName) == "" {
		return "", fmt.Errorf("display name required")
	}
	ref := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, nameKey(displayName), ref, 0).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return ref, nil
	}
	return s.rdb.Get(ctx, nameKey(displayName)).Result()
}

// Lookup fetches the player's profile for one category. A missing document
// returns found=false with default values so callers can seed a provisional
// player without a separate write.
func (s *Store) Lookup(ctx context.Context, ref string, cat ratingpkg.Category) (Profile, bool, error) {
	p := Profile{Rating: ratingpkg.DefaultRating, HighestRating: ratingpkg.DefaultRating}
	raw, err := s.rdb.Get(ctx, profileKey(ref, cat)).Bytes()
	if err == redis.Nil {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// ApplyResult folds one finished game into the stored profile under WATCH so
// two finalizations touching the same player cannot clobber each other.
// newRating is the already-computed post-game rating; reason records how the
// game ended for the outcome breakdown.
func (s *Store) ApplyResult(ctx context.Context, ref string, cat ratingpkg.Category, outcome ratingpkg.Outcome, newRating int, reason string) (Profile, error) {
	key := profileKey(ref, cat)
	var out Profile
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		p := Profile{Rating: ratingpkg.DefaultRating, HighestRating: ratingpkg.DefaultRating}
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if jerr := json.Unmarshal(raw, &p); jerr != nil {
				return jerr
			}
		}

		p.Rating = newRating
		if newRating > p.HighestRating {
			p.HighestRating = newRating
		}
		p.GamesPlayed++
		if p.Outcomes == nil {
			p.Outcomes = make(map[string]OutcomeLine)
		}
		line := p.Outcomes[reason]
		switch outcome {
		case ratingpkg.Win:
			p.Wins++
			line.Wins++
			p.Streak++
			if p.Streak > p.BestStreak {
				p.BestStreak = p.Streak
			}
		case ratingpkg.Loss:
			p.Losses++
			line.Losses++
			p.Streak = 0
		default:
			p.Draws++
			line.Draws++
			p.Streak = 0
		}
		p.Outcomes[reason] = line
		p.UpdatedAt = time.Now()

		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = p
		return nil
	}, key)
	if err != nil {
		return Profile{}, err
	}
	obslog.L().Info("profile_apply_result",
		zap.String("player_ref", ref),
		zap.String("category", string(cat)),
		zap.String("outcome", string(outcome)),
		zap.Int("new_rating", newRating),
	)
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
