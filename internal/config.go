package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int    `mapstructure:"PORT"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	FileInputName string `mapstructure:"FILE_INPUT_NAME"`
	MaxFileSize   string `mapstructure:"MAX_FILE_SIZE"`
	UploadRoot    string `mapstructure:"UPLOAD_ROOT"`

	ChunkRetention time.Duration `mapstructure:"CHUNK_RETENTION"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	StorageType        string        `mapstructure:"STORAGE_TYPE"`
	StorageLocalPath   string        `mapstructure:"STORAGE_LOCAL_PATH"`
	S3Bucket           string        `mapstructure:"S3_BUCKET"`
	S3Region           string        `mapstructure:"S3_REGION"`
	S3Endpoint         string        `mapstructure:"S3_ENDPOINT"`
	S3UseSSL           bool          `mapstructure:"S3_USE_SSL"`
	AWSKeyID           string        `mapstructure:"AWS_KEY_ID"`
	AWSSecretKey       string        `mapstructure:"AWS_SECRET_KEY"`
	ExternalURL        string        `mapstructure:"EXTERNAL_URL"`
	ObjectExpires      string        `mapstructure:"OBJECT_EXPIRES"`
	RemoteWriteTimeout time.Duration `mapstructure:"REMOTE_WRITE_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"PORT":                 3000,
	"LOG_LEVEL":            "info",
	"ALLOWED_ORIGINS":      "*",
	"JWT_SECRET":           "",
	"FILE_INPUT_NAME":      "qqfile",
	"MAX_FILE_SIZE":        "0",
	"UPLOAD_ROOT":          "store/uploads",
	"CHUNK_RETENTION":      "0s",
	"SWEEP_INTERVAL":       "1h",
	"DATABASE_URL":         "",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"STORAGE_TYPE":         "s3",
	"STORAGE_LOCAL_PATH":   "store/objects",
	"S3_BUCKET":            "faceflipper",
	"S3_REGION":            "us-east-1",
	"S3_ENDPOINT":          "",
	"S3_USE_SSL":           true,
	"AWS_KEY_ID":           "",
	"AWS_SECRET_KEY":       "",
	"EXTERNAL_URL":         "",
	"OBJECT_EXPIRES":       "",
	"REMOTE_WRITE_TIMEOUT": "60s",
}

// LoadConfig reads the configuration from the environment, with a .env file
// in the working directory taking part for local development.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// MaxFileSizeBytes parses MAX_FILE_SIZE. Plain numbers are bytes; human
// sizes such as "50MB" are accepted too. 0 means unlimited.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	raw := strings.TrimSpace(c.MaxFileSize)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	n, err := units.FromHumanSize(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_FILE_SIZE %q: %w", raw, err)
	}
	return n, nil
}

// ObjectExpiresAt parses OBJECT_EXPIRES (RFC 3339). Zero means the default.
func (c *Config) ObjectExpiresAt() (time.Time, error) {
	if c.ObjectExpires == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.ObjectExpires)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid OBJECT_EXPIRES %q: %w", c.ObjectExpires, err)
	}
	return t, nil
}

func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
