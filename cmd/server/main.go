// Command server runs the partyquorum HTTP process: it wires the store
// (memstore or pgstore, chosen by DATABASE_URL), the phase machine, the
// quorum oracle, the AI orchestrator, the leaderboard, and the deadline
// sweeper together behind internal/api's gin router.
//
// Grounded on the teacher's cmd/server/main.go: the -help/-version flag
// pair, the PORT-flag-overrides-env resolution order, and the zerolog
// console-writer setup are all kept in the teacher's shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/kiliankoe/partyquorum/internal/api"
	"github.com/kiliankoe/partyquorum/internal/config"
	"github.com/kiliankoe/partyquorum/internal/leaderboard"
	"github.com/kiliankoe/partyquorum/internal/model"
	"github.com/kiliankoe/partyquorum/internal/model/ollama"
	"github.com/kiliankoe/partyquorum/internal/model/openai"
	"github.com/kiliankoe/partyquorum/internal/orchestrator"
	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
	"github.com/kiliankoe/partyquorum/internal/store/pgstore"
	"github.com/kiliankoe/partyquorum/internal/sweeper"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`partyquorum - phase-and-quorum engine for a multiplayer party game

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  HOST_SECRET         Shared secret for host-only routes (required)
  CRON_SECRET         Shared secret for the cleanup cron route (required)
  AI_GATEWAY_API_KEY  API key for the OpenAI-compatible provider
  OPENAI_BASE_URL     Custom OpenAI-compatible API base URL (optional)
  OLLAMA_HOST         Ollama host URL (default: http://localhost:11434)
  MODEL_CATALOG       JSON array of {ID, DisplayName, Provider, InputCostPerMillion, OutputCostPerMillion}
  DATABASE_URL        Postgres DSN; unset means an in-memory store
  REDIS_URL           Redis URL for the leaderboard cache (optional)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("partyquorum %s\n", version)
		return
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	cfg, err := config.FromEnv()
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("config")
	}

	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("config")
	}

	st, err := openStore(cfg)
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("store")
	}
	if closer, ok := st.(interface{ Close() }); ok {
		defer closer.Close()
	}

	q := quorum.New(st)
	phaseCfg := phase.DefaultConfig()

	providers := map[string]model.Provider{
		"openai": openai.New(cfg.AIGatewayAPIKey, cfg.OpenAIBaseURL),
		"ollama": ollama.New(cfg.OllamaHost),
	}
	mc := model.NewClient(providers)

	m := phase.New(st, q, phaseCfg, nil)
	orch := orchestrator.New(st, q, m, mc, catalog)
	m.Trigger = orch

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zerologlog.Fatal().Err(err).Msg("redis")
		}
		redisClient = redis.NewClient(opts)
	}
	lb := leaderboard.New(redisClient, st)
	m.Leaderboard = lb

	sw := sweeper.New(st, q, m, phaseCfg)

	srv := &api.Server{
		Store:       st,
		Quorum:      q,
		Machine:     m,
		Sweeper:     sw,
		Leaderboard: lb,
		HostSecret:  cfg.HostSecret,
		CronSecret:  cfg.CronSecret,
	}
	r := api.NewRouter(srv)

	zerologlog.Info().Str("port", port).Msg("listening")
	if err := r.Run(":" + port); err != nil {
		zerologlog.Fatal().Err(err).Msg("server")
	}
}

// openStore picks pgstore when DATABASE_URL is set, running its embedded
// migrations first, and falls back to the in-memory store otherwise —
// fine for local development and tests, but meaningless across more than
// one process per spec.md §5.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return memstore.New(), nil
	}
	if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pgstore.New(context.Background(), cfg.DatabaseURL)
}
