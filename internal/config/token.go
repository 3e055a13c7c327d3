package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetAPIToken returns the bearer token protecting the local HTTP API. The
// SCHREIB_API_TOKEN environment variable wins; otherwise the token is read
// from the platform secret store, generated and persisted on first use.
func GetAPIToken() (string, error) {
	if tok := strings.TrimSpace(os.Getenv("SCHREIB_API_TOKEN")); tok != "" {
		return tok, nil
	}

	if raw, err := keychainGet(secretService, "api_token"); err == nil {
		if tok := strings.TrimSpace(string(raw)); tok != "" {
			return tok, nil
		}
	}

	tok := uuid.NewString()
	if err := keychainSet(secretService, "api_token", tok); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return tok, nil
}
