package backend

import (
	"fmt"

	"expensectl/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}

	return Config{
		Type: backendType,

		APIBaseURL:     appConfig.APIBaseURL,
		RequestTimeout: appConfig.RequestTimeout,
		RateLimit:      appConfig.RateLimit,
		RateBurst:      appConfig.RateBurst,

		SeedFile: appConfig.SeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case HTTPBackend:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for http backend")
		}
	case MemoryBackend:
		// An empty or missing seed file starts an empty store
	}

	return nil
}
