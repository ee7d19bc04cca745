package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// StorageConfig defines the S3 bucket and presign behavior.
type StorageConfig struct {
    Bucket         string
    Region         string
    Endpoint       string // optional, for S3-compatible stores
    AccessKey      string // optional static credentials
    SecretKey      string
    UploadExpiry   time.Duration
    DownloadExpiry time.Duration
}

// EngineConfig defines connectivity to the OCR serving endpoint.
type EngineConfig struct {
    BaseURL        string
    RequestTimeout time.Duration
}

// ModelsConfig defines model selection defaults.
type ModelsConfig struct {
    Default string
}

// WorkerConfig defines inference worker behavior and limits.
type WorkerConfig struct {
    Concurrency int
    JobTimeout  time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL  string
    Stream    string
    Group     string
    PollBlock time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Storage StorageConfig
    Engine  EngineConfig
    Models  ModelsConfig
    Worker  WorkerConfig
    Queue   QueueConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/ocrpipeline.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_ocrpipeline",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Storage defaults
    cfg.Storage = StorageConfig{
        Bucket:         getEnv("OCR_BUCKET", "ocr-files-dev"),
        Region:         getEnv("AWS_REGION", "ap-northeast-2"),
        Endpoint:       getEnv("S3_ENDPOINT", ""),
        AccessKey:      getEnv("S3_ACCESS_KEY", ""),
        SecretKey:      getEnv("S3_SECRET_KEY", ""),
        UploadExpiry:   parseDuration(getEnv("PRESIGN_UPLOAD_EXPIRY", "5m"), 5*time.Minute),
        DownloadExpiry: parseDuration(getEnv("PRESIGN_DOWNLOAD_EXPIRY", "1h"), time.Hour),
    }

    // Engine defaults
    cfg.Engine = EngineConfig{
        BaseURL:        getEnv("OCR_ENGINE_URL", "http://localhost:8866"),
        RequestTimeout: parseDuration(getEnv("OCR_ENGINE_TIMEOUT", "120s"), 120*time.Second),
    }

    // Model defaults
    cfg.Models = ModelsConfig{
        Default: getEnv("OCR_DEFAULT_MODEL", "paddleocr-vl"),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
        JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "10m"), 10*time.Minute),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:    getEnv("QUEUE_STREAM", "jobs:ocr:inference"),
        Group:     getEnv("QUEUE_GROUP", "workers:ocr"),
        PollBlock: parseDuration(getEnv("QUEUE_POLL_BLOCK", "2s"), 2*time.Second),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
