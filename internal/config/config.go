package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the complete configuration
type Config struct {
	Env      string         `toml:"env"`
	Port     string         `toml:"port"`
	LogLevel string         `toml:"log_level"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Cache    CacheConfig    `toml:"cache"`
	Assets   AssetsConfig   `toml:"assets"`
	Jobs     JobsConfig     `toml:"jobs"`
	PayPal   PayPalConfig   `toml:"paypal"`

	// GeneratedSecret is set when no JWT secret was configured outside production.
	GeneratedSecret bool `toml:"-"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

// AuthConfig configures locally signed tokens and an optional remote JWKS issuer
type AuthConfig struct {
	JWTSecret string        `toml:"jwt_secret"`
	JWKSURL   string        `toml:"jwks_url"`
	TokenTTL  time.Duration `toml:"token_ttl"`
}

// CacheConfig contains Redis settings
type CacheConfig struct {
	Enabled  bool          `toml:"enabled"`
	Addr     string        `toml:"redis_addr"`
	Password string        `toml:"redis_password"`
	DB       int           `toml:"redis_db"`
	TTL      time.Duration `toml:"ttl"`
}

// AssetsConfig chooses where uploaded images and design files are written
type AssetsConfig struct {
	Backend        string `toml:"backend"` // local or minio
	UploadDir      string `toml:"upload_dir"`
	URLPrefix      string `toml:"url_prefix"`
	MaxUploadMB    int64  `toml:"max_upload_mb"`
	ThumbnailSize  int    `toml:"thumbnail_size"`
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioBucket    string `toml:"minio_bucket"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
	MinioPublicURL string `toml:"minio_public_url"`
}

type JobsConfig struct {
	OrphanSweepInterval time.Duration `toml:"orphan_sweep_interval"`
	OrphanMaxAge        time.Duration `toml:"orphan_max_age"`
}

type PayPalConfig struct {
	Mode         string `toml:"mode"` // sandbox or live
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	ReturnURL    string `toml:"return_url"`
	CancelURL    string `toml:"cancel_url"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Env:      "development",
		Port:     "8080",
		LogLevel: "info",
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Cache: CacheConfig{
			Enabled: true,
			Addr:    "localhost:6379",
			TTL:     15 * time.Minute,
		},
		Assets: AssetsConfig{
			Backend:     "local",
			UploadDir:   "./public/uploads/designs",
			URLPrefix:   "/uploads/designs",
			MaxUploadMB: 50,
			MinioBucket: "designs",
		},
		Jobs: JobsConfig{
			OrphanSweepInterval: time.Hour,
			OrphanMaxAge:        24 * time.Hour,
		},
		PayPal: PayPalConfig{
			Mode:      "sandbox",
			ReturnURL: "http://localhost:3000/payment/success",
			CancelURL: "http://localhost:3000/payment/cancel",
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// STITCHMART_CONFIG, and the environment (a local .env file is read outside production).
func Load() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		// Missing .env is fine; the process environment is used as is.
		_ = godotenv.Load()
	}

	cfg := Default()
	if path := os.Getenv("STITCHMART_CONFIG"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML file on top of cfg
func LoadFile(filename string, cfg *Config) error {
	if _, err := toml.DecodeFile(filename, cfg); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.Assets.Backend {
	case "local":
		if c.Assets.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the local asset backend"))
		}
	case "minio":
		if c.Assets.MinioEndpoint == "" || c.Assets.MinioBucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio asset backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_BACKEND %q", c.Assets.Backend))
	}
	if c.Assets.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Assets.ThumbnailSize < 0 {
		errs = append(errs, errors.New("THUMBNAIL_SIZE must not be negative"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Jobs.OrphanSweepInterval <= 0 || c.Jobs.OrphanMaxAge <= 0 {
		errs = append(errs, errors.New("ORPHAN_SWEEP_INTERVAL and ORPHAN_MAX_AGE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("ENV", c.Env)
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWKSURL = getEnv("JWKS_URL", c.Auth.JWKSURL)

	c.Cache.Addr = getEnv("REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnv("REDIS_PASSWORD", c.Cache.Password)

	c.Assets.Backend = strings.ToLower(getEnv("ASSET_BACKEND", c.Assets.Backend))
	c.Assets.UploadDir = getEnv("UPLOAD_DIR", c.Assets.UploadDir)
	c.Assets.URLPrefix = getEnv("UPLOAD_URL_PREFIX", c.Assets.URLPrefix)
	c.Assets.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.Assets.MinioEndpoint)
	c.Assets.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.Assets.MinioAccessKey)
	c.Assets.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.Assets.MinioSecretKey)
	c.Assets.MinioBucket = getEnv("MINIO_BUCKET", c.Assets.MinioBucket)
	c.Assets.MinioPublicURL = getEnv("MINIO_PUBLIC_URL", c.Assets.MinioPublicURL)

	c.PayPal.Mode = getEnv("PAYPAL_MODE", c.PayPal.Mode)
	c.PayPal.ClientID = getEnv("PAYPAL_CLIENT_ID", c.PayPal.ClientID)
	c.PayPal.ClientSecret = getEnv("PAYPAL_CLIENT_SECRET", c.PayPal.ClientSecret)
	c.PayPal.ReturnURL = getEnv("PAYPAL_RETURN_URL", c.PayPal.ReturnURL)
	c.PayPal.CancelURL = getEnv("PAYPAL_CANCEL_URL", c.PayPal.CancelURL)

	var err error
	if c.Auth.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Cache.Enabled, err = getEnvBool("CACHE_ENABLED", c.Cache.Enabled); err != nil {
		return err
	}
	if c.Cache.DB, err = getEnvInt("REDIS_DB", c.Cache.DB); err != nil {
		return err
	}
	if c.Cache.TTL, err = getEnvDuration("CACHE_TTL", c.Cache.TTL); err != nil {
		return err
	}
	if c.Assets.MinioUseSSL, err = getEnvBool("MINIO_USE_SSL", c.Assets.MinioUseSSL); err != nil {
		return err
	}
	if c.Assets.ThumbnailSize, err = getEnvInt("THUMBNAIL_SIZE", c.Assets.ThumbnailSize); err != nil {
		return err
	}
	maxMB, err := getEnvInt("MAX_UPLOAD_MB", int(c.Assets.MaxUploadMB))
	if err != nil {
		return err
	}
	c.Assets.MaxUploadMB = int64(maxMB)
	if c.Jobs.OrphanSweepInterval, err = getEnvDuration("ORPHAN_SWEEP_INTERVAL", c.Jobs.OrphanSweepInterval); err != nil {
		return err
	}
	if c.Jobs.OrphanMaxAge, err = getEnvDuration("ORPHAN_MAX_AGE", c.Jobs.OrphanMaxAge); err != nil {
		return err
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
