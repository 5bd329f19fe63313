package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Events    EventsConfig    `koanf:"events"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Skills    SkillsConfig    `koanf:"skills"`
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama, mock
	Model       string  `koanf:"model"`
	VisionModel string  `koanf:"vision_model"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
}

type EventsConfig struct {
	// Path is the SQLite database holding structured event records.
	Path string `koanf:"path"`
}

type KnowledgeConfig struct {
	Enabled         bool    `koanf:"enabled"`
	QdrantAddr      string  `koanf:"qdrant_addr"`
	Collection      string  `koanf:"collection"`
	EmbedderBaseURL string  `koanf:"embedder_base_url"`
	EmbedderModel   string  `koanf:"embedder_model"`
	TopK            int     `koanf:"top_k"`
	ScoreThreshold  float64 `koanf:"score_threshold"`
}

type SkillsConfig struct {
	// Enabled restricts which built-in skills load. Empty means all.
	Enabled []string `koanf:"enabled"`
	// Dir optionally points at a directory of skill subdirectories with
	// SKILL.md metadata and prompt template overrides.
	Dir string `koanf:"dir"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5:7b-instruct")
	k.Set("llm.vision_model", "llava:13b")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("llm.temperature", 0.0)

	k.Set("events.path", "./data/events.db")

	k.Set("knowledge.enabled", false)
	k.Set("knowledge.qdrant_addr", "localhost:6334")
	k.Set("knowledge.collection", "safety_knowledge")
	k.Set("knowledge.embedder_base_url", "http://localhost:11434")
	k.Set("knowledge.embedder_model", "nomic-embed-text")
	k.Set("knowledge.top_k", 3)
	k.Set("knowledge.score_threshold", 0.3)

	k.Set("server.addr", ":8080")
	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (VIGIL_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("VIGIL_", ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps an environment variable onto a config key. A single
// underscore separates sections; a double underscore stands for a
// literal underscore inside a key, so VIGIL_LLM_BASE__URL sets
// llm.base_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "VIGIL_"))
	s = strings.ReplaceAll(s, "__", "\x00")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "\x00", "_")
}
