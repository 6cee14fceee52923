package cli

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	"exam-session-service/internal/infra/postgres"
	redisinfra "exam-session-service/internal/infra/redis"
	transport "exam-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	var durable app.CheckpointStore = memory.NewCheckpointStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuestionSetLoader(pool)

		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		durable = postgres.NewCheckpointStore(db)
	}

	setTTL := config.TTLDuration(cfg.QuestionSets.TTL, 10*time.Minute)
	var sets app.QuestionSetRepository
	var sessions app.SessionRepository
	checkpoints := durable
	if redisClient != nil {
		sets = redisinfra.NewQuestionSetRepository(redisClient, loader, setTTL)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		checkpoints = redisinfra.NewCheckpointStore(redisClient, redisTTL, durable)
	} else {
		sets = memory.NewQuestionSetRepository(loader, setTTL)
		sessions = memory.NewSessionStore()
	}

	policies, err := cfg.Policies()
	if err != nil {
		return err
	}
	opts := []app.Option{app.WithScheme(cfg.Scheme())}
	for flow, p := range policies {
		opts = append(opts, app.WithFlowPolicy(flow, p))
	}
	service := app.NewExamService(sessions, sets, checkpoints, opts...)

	tick := config.TTLDuration(cfg.Server.TickInterval, time.Second)
	handler := transport.NewRouter(service, transport.NewWSHandler(service, tick))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets serves a demo set when no database is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"demo-verbal": {
			ID:               "demo-verbal",
			Title:            "Verbal ability warm-up",
			TimeLimitSeconds: 600,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.TypeMCQ,
					Prompt: "Choose the word closest in meaning to 'terse'.",
					Options: []domain.Option{
						{ID: "a", Text: "verbose"},
						{ID: "b", Text: "concise"},
						{ID: "c", Text: "hostile"},
					},
					CorrectAnswer: json.RawMessage(`"b"`),
					Rationale:     "Terse means using few words.",
				},
				{
					ID:            "q2",
					Type:          domain.TypeOddOneOut,
					Prompt:        "Which sentence does not belong to the paragraph?",
					CorrectAnswer: json.RawMessage(`"3"`),
				},
				{
					ID:            "q3",
					Type:          domain.TypeParaJumble,
					Prompt:        "Arrange the sentences into a coherent paragraph.",
					CorrectAnswer: json.RawMessage(`"2413"`),
				},
			},
		},
	}
}
