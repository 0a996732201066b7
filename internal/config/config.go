package config

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr string
	BaseURL  string

	// Storage Configuration
	DataDir           string
	DBPath            string
	ModelsDir         string
	UploadedModelsDir string

	// Proof Worker Configuration
	ProveConcurrency int
	ProveTimeout     time.Duration
	QueueDepth       int
	RecoveryGrace    time.Duration

	// Receipt Cache Configuration
	CacheTTL time.Duration

	// Upload Configuration
	MaxUploadBytes int64

	// Webhook Configuration
	WebhookAttempts int
	WebhookBackoff  time.Duration

	// External Collaborators
	NatsURL      string
	EventPrefix  string
	ConverterURL string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	httpAddr := getEnv("HTTP_ADDR", ":3000")

	return &Config{
		HTTPAddr:          httpAddr,
		BaseURL:           getEnv("BASE_URL", "http://localhost"+httpAddr),
		DataDir:           getEnv("DATA_DIR", "data"),
		DBPath:            getEnv("DB_PATH", "data/proofs.sqlite"),
		ModelsDir:         getEnv("MODELS_DIR", "models"),
		UploadedModelsDir: getEnv("UPLOADED_MODELS_DIR", "data/models"),
		ProveConcurrency:  getEnvInt("PROVE_CONCURRENCY", 2),
		ProveTimeout:      getEnvDuration("PROVE_TIMEOUT", "120s"),
		QueueDepth:        getEnvInt("PROVE_QUEUE_DEPTH", 256),
		RecoveryGrace:     getEnvDuration("RECOVERY_GRACE", "10m"),
		CacheTTL:          getEnvDuration("RECEIPT_CACHE_TTL", "1h"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		WebhookAttempts:   getEnvInt("WEBHOOK_ATTEMPTS", 3),
		WebhookBackoff:    getEnvDuration("WEBHOOK_BACKOFF", "5s"),
		NatsURL:           getEnv("NATS_URL", ""),
		EventPrefix:       getEnv("EVENT_PREFIX", "proof.receipt"),
		ConverterURL:      getEnv("CONVERTER_URL", ""),
	}, nil
}

func loadDotEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
