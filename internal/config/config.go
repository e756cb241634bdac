package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the server and supporting
// services.
type Config struct {
	ListenAddr string
	LogLevel   string
	MySQLDSN   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	MembrosAPIKey  string
	MembrosBaseURL string

	RequestTimeout time.Duration

	PlanDescription      string
	PlanAmountMinorUnits int
	RegenerationLimit    int
	GenerationAttempts   int

	TelegramBotToken   string
	TelegramAdminChats []int64

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// ArchiveEnabled reports whether generated plans should be copied to S3.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// AlertsEnabled reports whether operator alerts go out via Telegram.
func (c Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && len(c.TelegramAdminChats) > 0
}

// Load reads configuration from environment variables, applying sane
// defaults.
func Load() (Config, error) {
	loadEnvFile()

	const defaultMembrosBaseURL = "http://localhost:3001"

	cfg := Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o"),
		MembrosBaseURL:       normalizeBaseURL(getEnv("MEMBROS_API_URL", defaultMembrosBaseURL), defaultMembrosBaseURL),
		RequestTimeout:       time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 90)),
		PlanDescription:      getEnv("PLAN_DESCRIPTION", "Plano Nutricional Personalizado"),
		PlanAmountMinorUnits: getInt("PLAN_AMOUNT_MINOR_UNITS", 2999),
		RegenerationLimit:    getInt("REGENERATION_LIMIT", 1),
		GenerationAttempts:   getInt("GENERATION_ATTEMPTS", 2),
		TelegramAdminChats:   getInt64List("TELEGRAM_ADMIN_CHAT_IDS"),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3Region:             os.Getenv("S3_REGION"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:          os.Getenv("S3_SECRET_KEY"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:      os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:       getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:             getEnv("S3_PREFIX", "diets"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.MembrosAPIKey = os.Getenv("MEMBROS_API_KEY")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if cfg.MembrosAPIKey == "" {
		missing = append(missing, "MEMBROS_API_KEY")
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.RegenerationLimit < 0 {
		cfg.RegenerationLimit = 0
	}
	if cfg.GenerationAttempts < 1 {
		cfg.GenerationAttempts = 1
	}

	return cfg, nil
}

// normalizeBaseURL keeps gateway URLs scheme-qualified so path joining
// never lands on a relative reference.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}
	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt64List(key string) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func loadEnvFile() {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err == nil {
			return
		}
	}
}
