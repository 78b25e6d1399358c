// Package config loads the service configuration from the environment.
// A .env file in the working directory is honoured for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes is the 20MB upload policy cap.
const DefaultMaxUploadBytes = 20 << 20

type Config struct {
	Port      string
	LogLevel  string
	Storage   StorageConfig
	Financial FinancialConfig
	GraphQL   GraphQLConfig
	Reports   ReportsConfig

	DatabaseURL    string
	MaxUploadBytes int64
}

type StorageConfig struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Accelerate      bool
	Timeout         time.Duration
}

// Validate fails when no request against the bucket could succeed.
func (s StorageConfig) Validate() error {
	var missing []string
	if s.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if s.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if s.Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w (missing %s)", apperr.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

type FinancialConfig struct {
	BaseURL string
	Timeout time.Duration
	// RPS paces calls to the financial API; zero disables pacing.
	RPS float64
}

type GraphQLConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type ReportsConfig struct {
	Source     string
	CompanyIDs []string
	// SnapshotSource feeds the db snapshots when Source is db.
	SnapshotSource string
	// SnapshotOnStart copies reports into the database at startup.
	SnapshotOnStart bool
}

// Report sources.
const (
	SourceMock    = "mock"
	SourceGraphQL = "graphql"
	SourceStorage = "storage"
	SourceDB      = "db"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_USE_ACCELERATION", false)
	v.SetDefault("STORAGE_TIMEOUT", "30s")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("FINANCIAL_API_RPS", 2)
	v.SetDefault("GRAPHQL_TIMEOUT", "30s")
	v.SetDefault("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	v.SetDefault("REPORT_SOURCE", SourceMock)
	v.SetDefault("REPORT_COMPANY_IDS", "")
	v.SetDefault("REPORT_SNAPSHOT_SOURCE", SourceMock)
	v.SetDefault("REPORT_SNAPSHOT_ON_START", true)
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:     v.GetString("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		Storage: StorageConfig{
			Bucket:          v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			Accelerate:      v.GetBool("S3_USE_ACCELERATION"),
			Timeout:         v.GetDuration("STORAGE_TIMEOUT"),
		},
		Financial: FinancialConfig{
			BaseURL: strings.TrimRight(v.GetString("FINANCIAL_API_BASE_URL"), "/"),
			Timeout: v.GetDuration("HTTP_TIMEOUT"),
			RPS:     v.GetFloat64("FINANCIAL_API_RPS"),
		},
		GraphQL: GraphQLConfig{
			Endpoint: v.GetString("APPSYNC_ENDPOINT"),
			APIKey:   v.GetString("APPSYNC_API_KEY"),
			Timeout:  v.GetDuration("GRAPHQL_TIMEOUT"),
		},
		Reports: ReportsConfig{
			Source:     strings.ToLower(v.GetString("REPORT_SOURCE")),
			CompanyIDs: splitList(v.GetString("REPORT_COMPANY_IDS")),

			SnapshotSource:  strings.ToLower(v.GetString("REPORT_SNAPSHOT_SOURCE")),
			SnapshotOnStart: v.GetBool("REPORT_SNAPSHOT_ON_START"),
		},
		DatabaseURL:    v.GetString("DATABASE_URL"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
	}

	switch cfg.Reports.Source {
	case SourceMock, SourceGraphQL, SourceStorage, SourceDB:
	default:
		return nil, fmt.Errorf("unknown REPORT_SOURCE %q", cfg.Reports.Source)
	}
	switch cfg.Reports.SnapshotSource {
	case SourceMock, SourceGraphQL, SourceStorage:
	default:
		return nil, fmt.Errorf("unknown REPORT_SNAPSHOT_SOURCE %q", cfg.Reports.SnapshotSource)
	}
	if cfg.Financial.RPS < 0 {
		return nil, fmt.Errorf("FINANCIAL_API_RPS must not be negative, got %v", cfg.Financial.RPS)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
