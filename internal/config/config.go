package config

import "fmt"

// Config holds all mnemo configuration. It is built once at startup and
// passed explicitly into the engine — there is no process-wide config state.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	LLM       LLMConfig       `toml:"llm"`
	Evolution EvolutionConfig `toml:"evolution"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"` // "claude-cli", "anthropic", "ollama"
	Model          string `toml:"model"`
	OllamaURL      string `toml:"ollama_url"`
	OllamaModel    string `toml:"ollama_model"`
	EmbeddingModel string `toml:"embedding_model"` // e.g. "nomic-embed-text"
	AnthropicKey   string `toml:"anthropic_key"`
}

// EvolutionConfig holds the tunables for the evolution passes. The pruning
// safety gates (importance >= 8, accessed within 7 days) are not tunable and
// live in the engine itself.
type EvolutionConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"` // consolidation cutoff
	MinUsefulness       float64 `toml:"min_usefulness"`       // prune below this score
	MaxAgeDays          int     `toml:"max_age_days"`         // prune at or beyond this idle age
	CoAccessIncrement   float64 `toml:"co_access_increment"`  // edge strength added per co-retrieval
	RelationshipDecay   float64 `toml:"relationship_decay"`   // multiplier per decay pass
	RelationshipFloor   float64 `toml:"relationship_floor"`   // edges below this are deleted
	IntervalHours       int     `toml:"interval_hours"`       // background evolution cadence
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38388,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "claude-cli",
			Model:    "haiku",
		},
		Evolution: EvolutionConfig{
			SimilarityThreshold: 0.85,
			MinUsefulness:       2.0,
			MaxAgeDays:          90,
			CoAccessIncrement:   0.1,
			RelationshipDecay:   0.95,
			RelationshipFloor:   0.05,
			IntervalHours:       24,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
