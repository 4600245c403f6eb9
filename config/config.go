package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type    string `yaml:"type"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// RetrievalConfig configures nearest-neighbour lookup.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ProviderConfig selects a model provider: "ollama", "gemini" or "openai".
type ProviderConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects the vector index: "flat" or "chroma".
type IndexConfig struct {
	Type       string `yaml:"type"`
	Collection string `yaml:"collection"`
}

// AnswerConfig configures answer generation.
type AnswerConfig struct {
	Mode               string `yaml:"mode"`
	SummarizeReasoning bool   `yaml:"summarize_reasoning"`
}

// SubsystemConfig describes one scoring subsystem. Type is "judge" or "http".
type SubsystemConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Metrics  []string `yaml:"metrics,omitempty"`
	Endpoint string   `yaml:"endpoint,omitempty"`
}

// EvaluationConfig configures background scoring.
type EvaluationConfig struct {
	Enabled     bool              `yaml:"enabled"`
	TimeoutSecs int               `yaml:"timeout_secs"`
	Threshold   float64           `yaml:"threshold"`
	Subsystems  []SubsystemConfig `yaml:"subsystems"`
}

// WatchConfig names a directory whose files are kept indexed. Empty disables it.
type WatchConfig struct {
	Dir string `yaml:"dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedder   ProviderConfig   `yaml:"embedder"`
	Generator  ProviderConfig   `yaml:"generator"`
	Index      IndexConfig      `yaml:"index"`
	Answer     AnswerConfig     `yaml:"answer"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// Load reads a config from path. A missing file yields the defaults. Values
// from the environment override the file in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetJudges are the judge subsystems that have a default metric set.
var presetJudges = map[string]bool{"deepeval": true, "ragas": true}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	if c.Chunker.Overlap <= 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker: overlap %d must be in (0, size %d)", c.Chunker.Overlap, c.Chunker.Size)
	}
	switch c.Index.Type {
	case "flat", "chroma":
	default:
		return fmt.Errorf("index: unknown type %q", c.Index.Type)
	}
	seen := make(map[string]bool)
	for _, s := range c.Evaluation.Subsystems {
		if s.Name == "" {
			return fmt.Errorf("evaluation: subsystem without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("evaluation: duplicate subsystem %q", s.Name)
		}
		seen[s.Name] = true
		switch s.Type {
		case "judge":
			if len(s.Metrics) == 0 && !presetJudges[strings.ToLower(s.Name)] {
				return fmt.Errorf("evaluation: judge subsystem %q needs a metrics list (only DeepEval and RAGAS have presets)", s.Name)
			}
		case "http":
			if s.Endpoint == "" {
				return fmt.Errorf("evaluation: http subsystem %q needs an endpoint", s.Name)
			}
		default:
			return fmt.Errorf("evaluation: subsystem %q has unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:    ServerConfig{Port: "8080"},
		Chunker:   ChunkerConfig{Type: "window", Size: 800, Overlap: 100},
		Retrieval: RetrievalConfig{TopK: 3},
		Embedder:  ProviderConfig{Provider: "ollama", Model: "nomic-embed-text:v1.5", TimeoutSecs: 30},
		Generator: ProviderConfig{Provider: "gemini", Model: "gemini-2.5-flash", TimeoutSecs: 60},
		Index:     IndexConfig{Type: "flat", Collection: "rag-eval"},
		Answer:    AnswerConfig{Mode: "auto", SummarizeReasoning: true},
		Evaluation: EvaluationConfig{
			Enabled:     true,
			TimeoutSecs: 60,
			Threshold:   0.5,
			Subsystems: []SubsystemConfig{
				{Name: "DeepEval", Type: "judge"},
				{Name: "RAGAS", Type: "judge"},
			},
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 800
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 100
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Embedder.TimeoutSecs <= 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Generator.TimeoutSecs <= 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "rag-eval"
	}
	if cfg.Answer.Mode == "" {
		cfg.Answer.Mode = "auto"
	}
	if cfg.Evaluation.TimeoutSecs <= 0 {
		cfg.Evaluation.TimeoutSecs = 60
	}
	if cfg.Evaluation.Threshold <= 0 {
		cfg.Evaluation.Threshold = 0.5
	}
	for i := range cfg.Evaluation.Subsystems {
		if cfg.Evaluation.Subsystems[i].Type == "" {
			cfg.Evaluation.Subsystems[i].Type = "judge"
		}
	}
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("RAG_PORT")); v != "" {
		cfg.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("RAG_WATCH_DIR")); v != "" {
		cfg.Watch.Dir = v
	}
}
