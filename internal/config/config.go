package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	APIUrl      string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret string

	// Media S3 - primary object store for originals and derivatives
	MediaS3Endpoint        string
	MediaS3Region          string
	MediaS3AccessKeyID     string
	MediaS3SecretAccessKey string
	MediaS3UsePathStyle    bool
	MediaBucket            string
	MediaPublicURL         string

	// Local scratch space for uploads and derivative generation
	ScratchPath string

	// Transcoder binaries, resolved once at startup (never re-detected per call)
	FFmpegPath    string
	FFprobePath   string
	PDFToTextPath string

	// Pipeline
	PipelineWorkers     int
	SubprocessTimeout   time.Duration
	StageTimeout        time.Duration
	RetrySweepEnabled   bool
	RetrySweepInterval  time.Duration
	RetrySweepBatchSize int

	// AI
	AIBaseURL            string
	AIAPIKey             string
	AIChatModel          string
	AIEmbeddingModel     string
	AITranscriptionModel string
	AIRequestTimeout     time.Duration
	AIRequestsPerSecond  float64
	AIEmbedMaxRetries    int
	TranscriptionMaxSize int64

	// Query expansion cache
	ExpansionCacheTTL time.Duration

	// Upload limits
	UploadMaxFileSize   int64
	UploadMaxConcurrent int

	// Security
	RateLimitRequests int
	RateLimitDuration time.Duration

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		APIUrl:      getEnv("API_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "mediavault"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "mediavault_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "UTC"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		// Media S3
		MediaS3Endpoint:        getEnv("MEDIA_S3_ENDPOINT", ""),
		MediaS3Region:          getEnv("MEDIA_S3_REGION", "us-east-1"),
		MediaS3AccessKeyID:     getEnv("MEDIA_S3_ACCESS_KEY_ID", ""),
		MediaS3SecretAccessKey: getEnv("MEDIA_S3_SECRET_ACCESS_KEY", ""),
		MediaS3UsePathStyle:    getEnv("MEDIA_S3_USE_PATH_STYLE", "true") == "true",
		MediaBucket:            getEnv("MEDIA_BUCKET", "mediavault-assets"),
		MediaPublicURL:         getEnv("MEDIA_PUBLIC_URL", ""),

		// Local scratch
		ScratchPath: getEnv("SCRATCH_PATH", "/tmp/mediavault"),

		// Transcoder binaries
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   getEnv("FFPROBE_PATH", "ffprobe"),
		PDFToTextPath: getEnv("PDFTOTEXT_PATH", "pdftotext"),

		// Pipeline
		PipelineWorkers:     getEnvAsInt("PIPELINE_WORKERS", runtime.NumCPU()),
		SubprocessTimeout:   getEnvAsDuration("SUBPROCESS_TIMEOUT", "2m"),
		StageTimeout:        getEnvAsDuration("STAGE_TIMEOUT", "5m"),
		RetrySweepEnabled:   getEnv("RETRY_SWEEP_ENABLED", "false") == "true",
		RetrySweepInterval:  getEnvAsDuration("RETRY_SWEEP_INTERVAL", "30m"),
		RetrySweepBatchSize: getEnvAsInt("RETRY_SWEEP_BATCH_SIZE", 20),

		// AI
		AIBaseURL:            getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:             getEnv("AI_API_KEY", ""),
		AIChatModel:          getEnv("AI_CHAT_MODEL", "gpt-4o-mini"),
		AIEmbeddingModel:     getEnv("AI_EMBEDDING_MODEL", "text-embedding-3-small"),
		AITranscriptionModel: getEnv("AI_TRANSCRIPTION_MODEL", "whisper-1"),
		AIRequestTimeout:     getEnvAsDuration("AI_REQUEST_TIMEOUT", "90s"),
		AIRequestsPerSecond:  getEnvAsFloat("AI_REQUESTS_PER_SECOND", 2.0),
		AIEmbedMaxRetries:    getEnvAsInt("AI_EMBED_MAX_RETRIES", 2),
		TranscriptionMaxSize: getEnvAsInt64("TRANSCRIPTION_MAX_SIZE", 25*1024*1024),

		// Query expansion cache
		ExpansionCacheTTL: getEnvAsDuration("EXPANSION_CACHE_TTL", "24h"),

		// Upload limits
		UploadMaxFileSize:   getEnvAsInt64("UPLOAD_MAX_FILE_SIZE", 2*1024*1024*1024),
		UploadMaxConcurrent: getEnvAsInt("UPLOAD_MAX_CONCURRENT", 3),

		// Security
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
