package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	// Profile store. Driver selects the backing store: "mongo" or "postgres".
	ProfileStoreDriver string `envconfig:"PROFILE_STORE_DRIVER" default:"mongo"`
	MongoURL           string `envconfig:"MONGO_URL" default:"mongodb://localhost:27017"`
	MongoDatabase      string `envconfig:"MONGO_DATABASE" default:"clinicore"`
	DatabaseURL        string `envconfig:"DATABASE_URL" default:""`

	// Identity provider. Mode "rest" talks to the managed provider's admin
	// API; "local" runs the in-process dev provider.
	IdentityMode        string `envconfig:"IDENTITY_MODE" default:"rest"`
	IdentityURL         string `envconfig:"IDENTITY_URL" default:""`
	IdentityAdminAPIKey string `envconfig:"IDENTITY_ADMIN_API_KEY" default:""`
	TokenSecret         string `envconfig:"TOKEN_SECRET" required:"true"`
	TokenIssuer         string `envconfig:"TOKEN_ISSUER" default:""`

	// The single designated email granted implicit superadmin authority.
	// Empty disables the bypass entirely; prefer seeding via the seed
	// command and leaving this unset.
	BootstrapEmail string `envconfig:"BOOTSTRAP_EMAIL" default:""`

	// Idempotency recorder. Empty RedisURL selects the in-memory recorder.
	RedisURL string `envconfig:"REDIS_URL" default:""`

	// Reconciler.
	ReconcilerEnabled  bool `envconfig:"RECONCILER_ENABLED" default:"true"`
	ReconcilerInterval int  `envconfig:"RECONCILER_INTERVAL" default:"300"`
	ReconcilerGrace    int  `envconfig:"RECONCILER_GRACE" default:"600"`
	ReconcilerRepair   bool `envconfig:"RECONCILER_REPAIR" default:"false"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`
}

// Load reads configuration from the environment into a Config struct. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	switch cfg.ProfileStoreDriver {
	case "mongo", "postgres":
	default:
		return nil, fmt.Errorf("unsupported PROFILE_STORE_DRIVER %q", cfg.ProfileStoreDriver)
	}
	if cfg.ProfileStoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when PROFILE_STORE_DRIVER=postgres")
	}

	switch cfg.IdentityMode {
	case "rest":
		if cfg.IdentityURL == "" {
			return nil, fmt.Errorf("IDENTITY_URL is required when IDENTITY_MODE=rest")
		}
	case "local":
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_MODE %q", cfg.IdentityMode)
	}

	return &cfg, nil
}
