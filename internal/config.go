package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StrategyPHash = "phash"
	StrategyEmbed = "embed"
)

type Config struct {
	TelegramToken string

	// Fingerprint strategy: "phash" (default) or "embed".
	Strategy  string
	ModelPath string // TFLite model file, required for the embed strategy

	CatalogPath string

	// Match acceptance thresholds.
	EmbedThreshold  float64 // minimum cosine similarity
	MaxHashDistance int     // maximum Hamming distance

	// Optional S3 mirror. Enabled only when all five values are set.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	CatalogKey string // S3 key for the catalog mirror
	RefsPrefix string // S3 prefix for stored reference images

	GeminiAPIKey string

	BackupEvery time.Duration

	Silent bool // suppress informational logs on the hot path
}

func LoadConfig() (Config, error) {
	cfg := Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		Strategy:      firstNonEmpty(os.Getenv("FINGERPRINT_STRATEGY"), StrategyPHash),
		ModelPath:     os.Getenv("MODEL_PATH"),
		CatalogPath:   firstNonEmpty(os.Getenv("CATALOG_PATH"), "catalog.json"),

		EmbedThreshold:  0.85,
		MaxHashDistance: 10,

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),

		CatalogKey: "catalog.json",
		RefsPrefix: "refs/",

		GeminiAPIKey: firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")),

		BackupEvery: time.Hour,
		Silent:      false,
	}

	if v := os.Getenv("EMBED_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.EmbedThreshold = f
		}
	}

	if v := os.Getenv("MAX_HASH_DISTANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxHashDistance = n
		}
	}

	if v := os.Getenv("BACKUP_EVERY"); v != "" {
		if duration, err := time.ParseDuration(v); err == nil && duration > 0 {
			cfg.BackupEvery = duration
		}
	}

	if v := os.Getenv("SILENT"); v != "" {
		cfg.Silent = v != "false" && v != "0"
	}

	if cfg.TelegramToken == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Strategy != StrategyPHash && cfg.Strategy != StrategyEmbed {
		return cfg, fmt.Errorf("unknown FINGERPRINT_STRATEGY %q (want %q or %q)", cfg.Strategy, StrategyPHash, StrategyEmbed)
	}
	if cfg.Strategy == StrategyEmbed && cfg.ModelPath == "" {
		return cfg, errors.New("MODEL_PATH is required for the embed strategy")
	}
	return cfg, nil
}

// S3Enabled reports whether the optional S3 mirror is fully configured.
func (c Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3Region != "" && c.S3Bucket != "" &&
		c.S3AccessKey != "" && c.S3SecretKey != ""
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
