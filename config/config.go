package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jjudge-oj/contestd/types"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultMaxTotalBytes = 100 << 20
	defaultMaxFileCount  = 100
)

type Config struct {
	ServerPort int
	Env        string
	LogLevel   string
	JWTSecret  string

	// UploadDir is the root under which file sets and archives are stored.
	UploadDir string

	// StoreBackend selects the repository implementation: "postgres" or "memory".
	StoreBackend    string
	ContestCacheTTL time.Duration

	Database DatabaseConfig
	Quota    map[types.FileSetKind]Quota
	Storage  StorageConfig
	MQ       MQConfig

	// Seed preloads the memory store. It is read from CONFIG_FILE only.
	Seed Seed
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// Quota bounds one file set. Uploads flagged to bypass quotas ignore it.
type Quota struct {
	MaxTotalBytes int64 `toml:"max_total_bytes"`
	MaxFileCount  int   `toml:"max_file_count"`
}

// StorageConfig selects the object storage that mirrors built archives.
// An empty Backend disables mirroring.
type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string

	// UsePathStyle is needed for most S3-compatible services.
	UsePathStyle bool
}

// MQConfig selects the broker delivering judge states. An empty Backend
// disables the consumer.
type MQConfig struct {
	Backend      string
	JudgeChannel string
	RabbitMQ     RabbitMQConfig
	PubSub       PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
	MaxOutstanding     int
	AckDeadline        time.Duration
}

// Seed lists the users and problems known to a memory store at startup.
type Seed struct {
	Users    []SeedUser `toml:"users"`
	Problems []int      `toml:"problems"`
}

type SeedUser struct {
	ID       int    `toml:"id"`
	Username string `toml:"username"`
	Name     string `toml:"name"`
	Role     string `toml:"role"`
}

type fileConfig struct {
	Quota map[string]Quota `toml:"quota"`
	Seed  Seed             `toml:"seed"`
}

// LoadConfig reads configuration from the environment. When CONFIG_FILE
// names a TOML file, its quota section overrides the environment values
// and its seed section preloads the memory store.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "contestd"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "contestd_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	cfg := Config{
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		Env:             getEnv("ENV", "production"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		StoreBackend:    getEnv("STORE_BACKEND", "postgres"),
		ContestCacheTTL: getEnvDuration("CONTEST_CACHE_TTL", 30*time.Second),
		Database:        dbConfig,
		Quota: map[types.FileSetKind]Quota{
			types.FileSetDownfile: {
				MaxTotalBytes: getEnvInt64("DOWNFILE_MAX_BYTES", defaultMaxTotalBytes),
				MaxFileCount:  getEnvInt("DOWNFILE_MAX_FILES", defaultMaxFileCount),
			},
			types.FileSetSolution: {
				MaxTotalBytes: getEnvInt64("SOLUTION_MAX_BYTES", defaultMaxTotalBytes),
				MaxFileCount:  getEnvInt("SOLUTION_MAX_FILES", defaultMaxFileCount),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", ""),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "contestd"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			S3: S3Config{
				Bucket:       getEnv("S3_BUCKET", ""),
				Region:       getEnv("S3_REGION", ""),
				Endpoint:     getEnv("S3_ENDPOINT", ""),
				UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
			},
		},
		MQ: MQConfig{
			Backend:      getEnv("MQ_BACKEND", ""),
			JudgeChannel: getEnv("MQ_JUDGE_CHANNEL", "judge-states"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
				MaxOutstanding:     getEnvInt("PUBSUB_MAX_OUTSTANDING", 10),
				AckDeadline:        getEnvDuration("PUBSUB_ACK_DEADLINE", 30*time.Second),
			},
		},
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// QuotaFor returns the limits of a file set kind.
func (c Config) QuotaFor(kind types.FileSetKind) Quota {
	if q, ok := c.Quota[kind]; ok {
		return q
	}
	return Quota{MaxTotalBytes: defaultMaxTotalBytes, MaxFileCount: defaultMaxFileCount}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for name, override := range fc.Quota {
		kind, err := types.ParseFileSetKind(name)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		q := cfg.QuotaFor(kind)
		if override.MaxTotalBytes > 0 {
			q.MaxTotalBytes = override.MaxTotalBytes
		}
		if override.MaxFileCount > 0 {
			q.MaxFileCount = override.MaxFileCount
		}
		cfg.Quota[kind] = q
	}
	cfg.Seed = fc.Seed
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64)
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
