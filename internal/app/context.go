package app

import (
	"os"
	"strings"

	"armada/internal/config"
)

const defaultInstanceID = "local"

// ResolveConfig loads armada.yml from the workspace, falling back to the
// built-in defaults when no file exists. Environment overrides win over
// file values so secrets stay out of the config file.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default(defaultInstanceID)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *config.Config) {
	if secret := strings.TrimSpace(os.Getenv("ARMADA_JWT_SECRET")); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if v := strings.TrimSpace(os.Getenv("ARMADA_ALLOW_LEGACY_ACTOR_HEADER")); v != "" {
		cfg.Auth.AllowLegacyActorHeader = v == "1" || strings.EqualFold(v, "true")
	}
}
