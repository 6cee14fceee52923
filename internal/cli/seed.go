package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/postgres"
	redisinfra "exam-session-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads question sets from a JSON file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import question sets into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with an array of question sets (demo sets when empty)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sets, err := readQuestionSets(file)
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewQuestionSetLoader(pool)

	// Running servers read sets through the redis cache; drop stale copies.
	var cache *redisinfra.QuestionSetRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = redisinfra.NewQuestionSetRepository(client, loader, config.TTLDuration(cfg.QuestionSets.TTL, 10*time.Minute))
	}

	for _, set := range sets {
		if err := loader.SaveQuestionSet(ctx, set); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, set.ID); err != nil {
				log.Printf("invalidate cached set %s: %v", set.ID, err)
			}
		}
	}
	log.Printf("seeded %d question sets", len(sets))
	return nil
}

func readQuestionSets(file string) ([]domain.QuestionSet, error) {
	if file == "" {
		var sets []domain.QuestionSet
		for _, set := range sampleQuestionSets() {
			sets = append(sets, set)
		}
		return sets, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var sets []domain.QuestionSet
	if err := json.Unmarshal(raw, &sets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	for i, set := range sets {
		if set.ID == "" {
			return nil, fmt.Errorf("question set %d has no id", i)
		}
	}
	return sets, nil
}
