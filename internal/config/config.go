// Package config loads process configuration from the environment.
// Grounded on the teacher's internal/config (a hand-rolled getenv-with-
// default helper); generalized to github.com/kelseyhightower/envconfig so
// required secrets (HOST_SECRET, CRON_SECRET) fail fast at boot instead of
// silently defaulting to empty, which the teacher's version couldn't express.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/kiliankoe/partyquorum/internal/cost"
)

// Config is every environment-sourced setting spec.md §6 enumerates.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	HostSecret      string `envconfig:"HOST_SECRET" required:"true"`
	CronSecret      string `envconfig:"CRON_SECRET" required:"true"`
	AIGatewayAPIKey string `envconfig:"AI_GATEWAY_API_KEY"`

	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OllamaHost    string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`

	// ModelCatalogJSON is the raw MODEL_CATALOG env var; call Catalog() to
	// parse it. Kept raw here so envconfig.Process never has to know about
	// the internal/cost package's decoding rules.
	ModelCatalogJSON string `envconfig:"MODEL_CATALOG" default:"[]"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
}

func FromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Catalog parses ModelCatalogJSON into an internal/cost.Catalog, keyed by
// each entry's own id field.
func (c Config) Catalog() (cost.Catalog, error) {
	var entries []cost.ModelInfo
	if err := json.Unmarshal([]byte(c.ModelCatalogJSON), &entries); err != nil {
		return nil, fmt.Errorf("config: MODEL_CATALOG: %w", err)
	}
	catalog := make(cost.Catalog, len(entries))
	for _, e := range entries {
		catalog[e.ID] = e
	}
	return catalog, nil
}
