// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aqua777/docindex/embedding"
	"github.com/aqua777/docindex/pipeline"
	"github.com/aqua777/docindex/textsplitter"
)

// Config is the full service configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Embedding Embedding `yaml:"embedding"`
	Splitter  Splitter  `yaml:"splitter"`
	Watch     Watch     `yaml:"watch"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store selects and configures the vector store backend.
type Store struct {
	// Backend is "memory" or "chromem".
	Backend string `yaml:"backend"`
	// Path is the chromem persistence directory; empty keeps chromem
	// in-memory.
	Path string `yaml:"path"`
	// Collection is the chromem collection name.
	Collection string `yaml:"collection"`
}

// Embedding selects and configures the embedding provider.
type Embedding struct {
	// Provider is "openai", "ollama" or "mock".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	// APIKey overrides $OPENAI_API_KEY when set.
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// Splitter configures passage windowing.
type Splitter struct {
	Unit    string `yaml:"unit"`
	Length  int    `yaml:"length"`
	Overlap int    `yaml:"overlap"`
}

// Watch configures the optional ingestion watch directory.
type Watch struct {
	// Dir is watched for new .docx files; empty disables watching.
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Store: Store{
			Backend:    "memory",
			Collection: "passages",
		},
		Embedding: Embedding{
			Provider:   "openai",
			Dimensions: embedding.DefaultDimensions,
			BatchSize:  pipeline.DefaultBatchSize,
		},
		Splitter: Splitter{
			Unit:   string(textsplitter.UnitWord),
			Length: textsplitter.DefaultLength,
		},
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
