package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/llm/anthropic"
	"github.com/KamdynS/go-swarm/llm/openai"
	"github.com/KamdynS/go-swarm/memory"
	"github.com/KamdynS/go-swarm/memory/inmemory"
	redisstore "github.com/KamdynS/go-swarm/memory/redis"
	"github.com/KamdynS/go-swarm/observability"
	"github.com/KamdynS/go-swarm/observability/prom"
	"github.com/KamdynS/go-swarm/orchestrator"
	"github.com/KamdynS/go-swarm/ratelimit"
	swarmhttp "github.com/KamdynS/go-swarm/server/http"
	"github.com/KamdynS/go-swarm/swarm"

	goredis "github.com/redis/go-redis/v9"
)

const version = "v0.1.0"

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		handleServe()
	case "ask":
		handleAsk()
	case "diagram":
		handleDiagram()
	case "init":
		handleInit()
	case "version":
		handleVersion()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("swarmd - agent swarm orchestration daemon %s\n\n", version)
	fmt.Println("Usage:")
	fmt.Println("  swarmd serve                Start the orchestration server (default)")
	fmt.Println("  swarmd ask <message>        Send one message to a running server (--host localhost:8080)")
	fmt.Println("  swarmd diagram              Print the network diagram from a running server")
	fmt.Println("  swarmd init [dir]           Write a starter .env file")
	fmt.Println("  swarmd version              Show version information")
	fmt.Println("  swarmd help                 Show this help message")
}

func handleServe() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		log.Fatalf("model client: %v", err)
	}
	if err := client.Validate(); err != nil {
		log.Fatalf("model client: %v", err)
	}

	store := buildTranscriptStore(cfg)
	network := swarm.NewNetwork(store)

	limiter := ratelimit.NewLimiter()
	limiter.ConfigureEndpoint(orchestrator.EndpointMother, cfg.MotherBurst, cfg.MotherRate, cfg.MaxRetries)
	limiter.ConfigureEndpoint(orchestrator.EndpointWorkers, cfg.WorkerBurst, cfg.WorkerRate, cfg.MaxRetries)
	limiter.ConfigureEndpoint(orchestrator.EndpointSynthesis, cfg.MotherBurst, cfg.MotherRate, cfg.MaxRetries)

	exporter := prom.New()
	observability.SetMetrics(exporter)

	engine := orchestrator.New(network, client, limiter, orchestrator.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		CallTimeout:    cfg.CallTimeout,
		TurnTimeout:    cfg.TurnTimeout,
	}, orchestrator.WithMetrics(exporter))

	server := swarmhttp.NewServer(engine, swarmhttp.Config{
		Port:           cfg.Port,
		EnableCORS:     cfg.EnableCORS,
		MetricsHandler: prom.Handler(exporter),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("swarmd %s serving with provider %s", version, client.Provider())
	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func buildClient(cfg serveConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(llm.Config{
			APIKey:        cfg.OpenAIKey,
			NormalModel:   cfg.NormalModel,
			ThinkingModel: cfg.ThinkingModel,
		})
	case "anthropic":
		return anthropic.NewClient(llm.Config{
			APIKey:        cfg.AnthropicKey,
			NormalModel:   cfg.NormalModel,
			ThinkingModel: cfg.ThinkingModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai or anthropic)", cfg.Provider)
	}
}

func buildTranscriptStore(cfg serveConfig) memory.TranscriptStore {
	if cfg.RedisAddr == "" {
		return inmemory.NewTranscriptStore()
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	log.Printf("transcripts backed by redis at %s", cfg.RedisAddr)
	return redisstore.NewTranscriptStore(client, 0, "swarm")
}

func handleAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	host := fs.String("host", "localhost:8080", "Host of the running server")
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("usage: swarmd ask [--host host:port] <message>")
		os.Exit(1)
	}
	message := fs.Arg(0)

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		fmt.Printf("encode error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/api/message", *host), "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("request error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("read error: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("status %d: %s\n", resp.StatusCode, string(data))
		os.Exit(1)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		fmt.Print(string(data))
		return
	}
	fmt.Println(result.Response)
}

func handleDiagram() {
	fs := flag.NewFlagSet("diagram", flag.ExitOnError)
	host := fs.String("host", "localhost:8080", "Host of the running server")
	fs.Parse(os.Args[2:])

	resp, err := httpGet(fmt.Sprintf("http://%s/api/diagram", *host))
	if err != nil {
		fmt.Printf("request error: %v\n", err)
		os.Exit(1)
	}

	var result struct {
		Diagram string `json:"diagram"`
	}
	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		fmt.Print(resp)
		return
	}
	fmt.Println(result.Diagram)
}

func handleVersion() {
	fmt.Printf("swarmd version %s\n", version)
}

func httpGet(url string) (string, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return string(b), nil
}
