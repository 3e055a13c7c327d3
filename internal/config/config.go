package config

import (
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Vision   VisionConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

// ProviderConfig selects and configures the language-analysis backend.
// Kind is one of "auto", "openai", "ollama", "standin"; "auto" resolves
// from configured credentials, never from runtime environment detection.
type ProviderConfig struct {
	Kind          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
}

type VisionConfig struct {
	APIKey string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type StorageConfig struct {
	DataDir string
	// RetentionDays <= 0 keeps history forever.
	RetentionDays int
}

// AnalysisConfig carries the fallback scores used when the provider's
// critique cannot be parsed. The defaults are preserved product behavior.
type AnalysisConfig struct {
	FallbackVocabulary int
	FallbackStructure  int
	FallbackOverall    int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Provider: ProviderConfig{
			Kind:      "auto",
			ChatModel: "gpt-4o",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Analysis: AnalysisConfig{
			FallbackVocabulary: 70,
			FallbackStructure:  75,
			FallbackOverall:    72,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory (if present), environment variables, and the
// platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.schreibcoach.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/schreibcoach/config.json
// and secrets are read from a local secrets file or environment variables.
//
// Environment variables (SCHREIB_*) override backend values on all
// platforms. Missing provider credentials are not an error: the service
// falls back to the offline stand-in backend.
func Load() (Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for API keys still empty.
	if cfg.Provider.OpenAIAPIKey == "" {
		if key, err := kc.Get(secretService, "openai_api_key"); err == nil && key != "" {
			cfg.Provider.OpenAIAPIKey = key
		}
	}
	if cfg.Vision.APIKey == "" {
		if key, err := kc.Get(secretService, "vision_api_key"); err == nil && key != "" {
			cfg.Vision.APIKey = key
		}
	}

	return cfg, nil
}

// ResolveProvider returns the backend kind to construct: an explicitly
// configured kind wins; "auto" picks openai when a key is present, else the
// offline stand-in.
func (p ProviderConfig) ResolveProvider() string {
	switch p.Kind {
	case "openai", "ollama", "standin":
		return p.Kind
	}
	if p.OpenAIAPIKey != "" {
		return "openai"
	}
	return "standin"
}

// secretService is the secret-store service name for all schreibcoach
// credentials.
const secretService = "schreibcoach"

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
