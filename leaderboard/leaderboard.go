// Package leaderboard caches per-season rating standings in a Redis sorted
// set. Postgres stays the source of truth; the cache is refreshed on every
// rating write and can always be rebuilt from the ratings table.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/duel-system/events"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type Entry struct {
	Rank     int64   `json:"rank"`
	PlayerID int     `json:"player_id"`
	Rating   float64 `json:"rating"`
}

type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewCache(cfg Config, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func seasonKey(seasonID int) string {
	return fmt.Sprintf("season:%d:leaderboard", seasonID)
}

// SetRating записывает текущий рейтинг игрока в сортированное множество сезона.
func (c *Cache) SetRating(ctx context.Context, seasonID, playerID int, rating float64) error {
	err := c.client.ZAdd(ctx, seasonKey(seasonID), redis.Z{
		Score:  rating,
		Member: strconv.Itoa(playerID),
	}).Err()
	if err != nil {
		return fmt.Errorf("setting leaderboard rating: %w", err)
	}
	return nil
}

// Top returns the season's top N by rating, best first.
func (c *Cache) Top(ctx context.Context, seasonID, n int) ([]Entry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, seasonKey(seasonID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard top: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, result := range results {
		playerID, convErr := strconv.Atoi(result.Member.(string))
		if convErr != nil {
			continue
		}
		entries = append(entries, Entry{
			Rank:     int64(i + 1),
			PlayerID: playerID,
			Rating:   result.Score,
		})
	}
	return entries, nil
}

// Rank returns a player's 1-indexed position, or redis.Nil wrapped error
// when the player is not on the board.
func (c *Cache) Rank(ctx context.Context, seasonID, playerID int) (*Entry, error) {
	key := seasonKey(seasonID)
	member := strconv.Itoa(playerID)

	pipe := c.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, member)
	scoreCmd := pipe.ZScore(ctx, key, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("getting leaderboard rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &Entry{Rank: rank + 1, PlayerID: playerID, Rating: score}, nil
}

// HandleRatingUpdated реализует events.Handler: кэш обновляется после
// фиксации рейтинга, ошибка кэша ядро не откатывает.
func (c *Cache) HandleRatingUpdated(e events.Event) {
	payload, ok := e.Payload.(events.RatingUpdatedPayload)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.SetRating(ctx, payload.SeasonID, payload.PlayerID, payload.Rating); err != nil {
		c.logger.Error("failed to refresh leaderboard cache",
			slog.Int("player_id", payload.PlayerID),
			slog.Int("season_id", payload.SeasonID),
			slog.Any("error", err))
	}
}
