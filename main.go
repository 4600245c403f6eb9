package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/itish2003/rag-eval/config"
	"github.com/itish2003/rag-eval/controller"
	"github.com/itish2003/rag-eval/services"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/genai"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load config: %v", err)
	}

	if err := services.InitPDFLicense(os.Getenv("UNIDOC_LICENSE_KEY")); err != nil {
		log.Printf("WARN: Unidoc license not set: %v. PDF processing will fail.", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers := &providerSet{httpClient: &http.Client{Timeout: time.Duration(cfg.Embedder.TimeoutSecs) * time.Second}}

	embedder, err := providers.embedder(ctx, cfg.Embedder)
	if err != nil {
		log.Fatalf("FATAL: Failed to create embedder: %v", err)
	}
	generator, err := providers.generator(ctx, cfg.Generator)
	if err != nil {
		log.Fatalf("FATAL: Failed to create generator: %v", err)
	}
	log.Printf("Using generator %s", generator.Name())

	chunker, err := services.NewChunker(cfg.Chunker.Type, cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		log.Fatalf("FATAL: Invalid chunker config: %v", err)
	}

	indexFactory := services.IndexFactory(services.FlatIndexFactory)
	if cfg.Index.Type == "chroma" {
		chromaClient, err := chromago.NewHTTPClient()
		if err != nil {
			log.Fatalf("FATAL: Failed to create chroma client: %v", err)
		}
		defer func() {
			if err := chromaClient.Close(); err != nil {
				log.Printf("Warning: Failed to close chroma client: %v", err)
			}
		}()
		collection, err := services.OpenChromaCollection(ctx, chromaClient, cfg.Index.Collection)
		if err != nil {
			log.Fatalf("FATAL: Failed to get or create collection: %v", err)
		}
		indexFactory = services.NewChromaIndexFactory(collection)
	}

	store := services.NewDocumentStore(chunker, embedder, indexFactory)
	cache := services.NewEvaluationCache()

	var evaluator *services.Evaluator
	if cfg.Evaluation.Enabled && len(cfg.Evaluation.Subsystems) > 0 {
		subsystems, err := buildSubsystems(cfg.Evaluation, generator)
		if err != nil {
			log.Fatalf("FATAL: Invalid evaluation config: %v", err)
		}
		evaluator = services.NewEvaluator(cache, subsystems, time.Duration(cfg.Evaluation.TimeoutSecs)*time.Second)
		log.Printf("Evaluation enabled with subsystems %v", evaluator.Subsystems())
	}

	ragService := services.NewRAGService(store, embedder, generator, cache, evaluator, services.Options{
		TopK:               cfg.Retrieval.TopK,
		Mode:               services.ParseAnswerMode(cfg.Answer.Mode),
		SummarizeReasoning: cfg.Answer.SummarizeReasoning,
	})
	defer ragService.Close()

	if cfg.Watch.Dir != "" {
		indexer := services.NewFileIndexingService(ragService)
		go func() {
			indexer.ScanAndIndexDirectory(ctx, cfg.Watch.Dir)
			if err := indexer.WatchDirectory(ctx, cfg.Watch.Dir); err != nil {
				log.Printf("WATCHER ERROR: %v", err)
			}
		}()
	}

	ragController := controller.NewRAGController(ragService)

	router := gin.Default()
	router.Use(controller.CORSMiddleware(), controller.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"service":   "RAG evaluation API",
			"version":   "1.0.0",
			"chunks":    store.Len(),
			"generator": generator.Name(),
		})
	})

	apiV1 := router.Group("/api/v1")
	ragController.Register(apiV1)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Go Gin backend server starting on http://localhost:%s", cfg.Server.Port)
		log.Printf("Health check available at: http://localhost:%s/health", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Server shutdown failed: %v", err)
	}
}

// providerSet builds embedders and generators, sharing API clients between them.
type providerSet struct {
	httpClient *http.Client
	gemini     *genai.Client
}

func (p *providerSet) geminiClient(ctx context.Context) (*genai.Client, error) {
	if p.gemini != nil {
		return p.gemini, nil
	}
	client, err := services.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		return nil, err
	}
	log.Println("Successfully connected to Google Gemini.")
	p.gemini = client
	return client, nil
}

func (p *providerSet) embedder(ctx context.Context, cfg config.ProviderConfig) (services.Embedder, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return services.NewOllamaEmbedder(p.httpClient, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return services.EmbedderWithTimeout(services.NewGeminiEmbedder(client, cfg.Model), timeout), nil
	case "openai":
		client, err := services.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return services.EmbedderWithTimeout(services.NewOpenAIEmbedder(client, cfg.Model), timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func (p *providerSet) generator(ctx context.Context, cfg config.ProviderConfig) (services.Generator, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	var gen services.Generator
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		gen = services.NewGeminiGenerator(client, cfg.Model)
	case "openai":
		client, err := services.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		gen = services.NewOpenAIGenerator(client, cfg.Model)
	case "ollama":
		ollamaGen, err := services.NewOllamaGenerator(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		gen = ollamaGen
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	return services.GeneratorWithTimeout(gen, timeout), nil
}

// buildSubsystems turns the evaluation config into scorers. Judge subsystems
// without an explicit metric list use the preset named after the subsystem.
// HTTP scorers share a client without its own timeout; the evaluator's
// per-subsystem deadline bounds each call.
func buildSubsystems(cfg config.EvaluationConfig, judge services.Generator) ([]services.Subsystem, error) {
	httpClient := &http.Client{}
	subsystems := make([]services.Subsystem, 0, len(cfg.Subsystems))
	for _, sc := range cfg.Subsystems {
		var scorer services.Scorer
		switch sc.Type {
		case "judge":
			metrics := sc.Metrics
			if len(metrics) == 0 {
				metrics = services.PresetMetrics(sc.Name)
			}
			js, err := services.NewJudgeScorer(judge, metrics, cfg.Threshold)
			if err != nil {
				return nil, fmt.Errorf("subsystem %s: %w", sc.Name, err)
			}
			scorer = js
		case "http":
			scorer = services.NewHTTPScorer(sc.Endpoint, httpClient)
		default:
			return nil, fmt.Errorf("subsystem %s: unknown type %q", sc.Name, sc.Type)
		}
		subsystems = append(subsystems, services.Subsystem{Name: sc.Name, Scorer: scorer})
	}
	return subsystems, nil
}
