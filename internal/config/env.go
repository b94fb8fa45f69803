package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RedisURL      string
	StreamName    string
	ConsumerGroup string
	ConsumerName  string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey string
	GenModel string

	ChunkSize     int           // words per summarization chunk
	MaxDepth      int           // reduction levels before giving up
	RetryAttempts int           // per summarizer/extractor call
	TaskTTL       time.Duration // fixed at task creation
	ClaimBlock    time.Duration // how long a claim waits for new work
	ReclaimIdle   time.Duration // visibility window before redelivery

	Port string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StreamName:    getEnv("STREAM_NAME", "doc_processing_tasks"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "doc_workers"),
		ConsumerName:  getEnv("WORKER_NAME", "worker_1"),
		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		BucketName:    getEnv("BUCKET_NAME", "condensa-uploads"),
		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenModel:      getEnv("GEN_MODEL", "gemini-2.0-flash-exp"),
		ChunkSize:     getEnvInt("CHUNK_SIZE", 5000),
		MaxDepth:      getEnvInt("MAX_REDUCTION_DEPTH", 5),
		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", 3),
		TaskTTL:       getEnvDur("TASK_TTL", time.Hour),
		ClaimBlock:    getEnvDur("CLAIM_BLOCK", 5*time.Second),
		ReclaimIdle:   getEnvDur("RECLAIM_IDLE", time.Minute),
		Port:          getEnv("PORT", "8080"),
	}

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDur(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
