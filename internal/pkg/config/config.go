package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development" validate:"oneof=development staging production test"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Debug    bool   `env:"DEBUG,     default=false"`

	// JWTSecret signs password reset and initial password tokens.
	JWTSecret string `env:"JWT_SECRET" validate:"required,min=16"`

	Admin    AdminConfig
	Security SecurityConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type AdminConfig struct {
	BaseURL         string `env:"BASE_URL,         default=http://localhost:8080" validate:"required,url"`
	Prefix          string `env:"ADMIN_PREFIX,     default=admin" validate:"required,excludes=/"`
	OtpIssuer       string `env:"OTP_ISSUER,       default=Admin"`
	PermissionsFile string `env:"PERMISSIONS_FILE, default=permissions.yaml" validate:"required"`
	AssetsDir       string `env:"ASSETS_DIR,       default=assets"`

	// ProjectName and CloudToken are written to the settings store at startup
	// when set.
	ProjectName string `env:"PROJECT_NAME"`
	CloudToken  string `env:"CLOUD_TOKEN"`
}

type SecurityConfig struct {
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL, default=45s" validate:"gt=0"`
	NonceTTL          time.Duration `env:"NONCE_TTL,          default=60s" validate:"gt=0"`
	ResetTokenTTL     time.Duration `env:"RESET_TOKEN_TTL,    default=3h"  validate:"gt=0"`
	SessionTTL        time.Duration `env:"SESSION_TTL,        default=24h" validate:"gt=0"`
	LoginRate         float64       `env:"LOGIN_RATE,         default=0.2" validate:"gt=0"`
	LoginBurst        int           `env:"LOGIN_BURST,        default=5"   validate:"gt=0"`
	AuditWorkers      int           `env:"AUDIT_WORKERS,      default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI,       default=mongodb://localhost:27017" validate:"required"`
	Database string `env:"MONGO_DB,        default=admin_backend" validate:"required"`
	PoolSize uint64 `env:"MONGO_POOL_SIZE, default=50"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,      default=localhost:6379" validate:"required"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,        default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=0"`
}

// IsProduction reports whether responses should be minified and logs emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "production" && !c.Debug
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values and reports every invalid field at once.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
