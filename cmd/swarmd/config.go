package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// serveConfig is the environment-driven configuration for the daemon.
type serveConfig struct {
	Provider      string
	OpenAIKey     string
	AnthropicKey  string
	NormalModel   string
	ThinkingModel string

	Port       int
	EnableCORS bool
	RedisAddr  string

	MaxConcurrency int
	CallTimeout    time.Duration
	TurnTimeout    time.Duration

	MotherBurst int
	MotherRate  float64
	WorkerBurst int
	WorkerRate  float64
	MaxRetries  int
}

// loadConfig reads .env when present, then the process environment.
func loadConfig() (serveConfig, error) {
	_ = godotenv.Load()

	cfg := serveConfig{
		Provider:       envOr("SWARM_PROVIDER", "openai"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		NormalModel:    os.Getenv("SWARM_NORMAL_MODEL"),
		ThinkingModel:  os.Getenv("SWARM_THINKING_MODEL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		EnableCORS:     envBool("SWARM_ENABLE_CORS", true),
		Port:           envInt("PORT", 8080),
		MaxConcurrency: envInt("SWARM_MAX_CONCURRENCY", 4),
		CallTimeout:    envDuration("SWARM_CALL_TIMEOUT", 2*time.Minute),
		TurnTimeout:    envDuration("SWARM_TURN_TIMEOUT", 10*time.Minute),
		MotherBurst:    envInt("SWARM_MOTHER_BURST", 10),
		MotherRate:     envFloat("SWARM_MOTHER_RATE", 0.5),
		WorkerBurst:    envInt("SWARM_WORKER_BURST", 20),
		WorkerRate:     envFloat("SWARM_WORKER_RATE", 2.0),
		MaxRetries:     envInt("SWARM_MAX_RETRIES", 3),
	}

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY is required for provider openai")
		}
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return cfg, fmt.Errorf("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	default:
		return cfg, fmt.Errorf("unknown SWARM_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

const envTemplate = `# swarmd configuration
# Provider: openai or anthropic
SWARM_PROVIDER=openai
OPENAI_API_KEY=
ANTHROPIC_API_KEY=

# Optional model overrides
#SWARM_NORMAL_MODEL=gpt-4o-mini
#SWARM_THINKING_MODEL=o1-mini

# Server
PORT=8080
SWARM_ENABLE_CORS=true

# Optional redis transcript backend (empty keeps transcripts in memory)
#REDIS_ADDR=localhost:6379

# Orchestration tunables
SWARM_MAX_CONCURRENCY=4
SWARM_CALL_TIMEOUT=2m
SWARM_TURN_TIMEOUT=10m
SWARM_MOTHER_BURST=10
SWARM_MOTHER_RATE=0.5
SWARM_WORKER_BURST=20
SWARM_WORKER_RATE=2.0
SWARM_MAX_RETRIES=3
`

func handleInit() {
	dir := "."
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists, not overwriting\n", path)
		os.Exit(1)
	}

	if err := os.WriteFile(path, []byte(envTemplate), 0600); err != nil {
		fmt.Printf("Error writing %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  set your API key in .env")
	fmt.Println("  swarmd serve")
}
