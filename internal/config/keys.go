package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SCHREIB_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "provider.kind", typ: kString, env: "SCHREIB_PROVIDER_KIND",
		apply:   func(cfg *Config, v any) { cfg.Provider.Kind = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Kind },
	},
	{
		key: "provider.openai_api_key", typ: kString, env: "SCHREIB_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.OpenAIAPIKey },
	},
	{
		key: "provider.openai_base_url", typ: kString, env: "SCHREIB_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.OpenAIBaseURL },
	},
	{
		key: "provider.chat_model", typ: kString, env: "SCHREIB_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.ChatModel },
	},
	{
		key: "vision.api_key", typ: kString, env: "SCHREIB_VISION_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Vision.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SCHREIB_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "SCHREIB_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SCHREIB_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.retention_days", typ: kInt, env: "SCHREIB_STORAGE_RETENTION_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Storage.RetentionDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RetentionDays },
	},
	{
		key: "analysis.fallback_vocabulary", typ: kInt, env: "SCHREIB_ANALYSIS_FALLBACK_VOCABULARY",
		apply:   func(cfg *Config, v any) { cfg.Analysis.FallbackVocabulary = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.FallbackVocabulary },
	},
	{
		key: "analysis.fallback_structure", typ: kInt, env: "SCHREIB_ANALYSIS_FALLBACK_STRUCTURE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.FallbackStructure = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.FallbackStructure },
	},
	{
		key: "analysis.fallback_overall", typ: kInt, env: "SCHREIB_ANALYSIS_FALLBACK_OVERALL",
		apply:   func(cfg *Config, v any) { cfg.Analysis.FallbackOverall = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.FallbackOverall },
	},
	{
		key: "log.level", typ: kString, env: "SCHREIB_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
