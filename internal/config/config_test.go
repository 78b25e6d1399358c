package config

import (
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// empty values count as unset
	for _, k := range []string{"PORT", "AWS_REGION", "S3_USE_ACCELERATION", "HTTP_TIMEOUT", "FINANCIAL_API_RPS", "STORAGE_TIMEOUT", "GRAPHQL_TIMEOUT", "MAX_UPLOAD_BYTES", "REPORT_SOURCE", "REPORT_COMPANY_IDS", "REPORT_SNAPSHOT_SOURCE", "REPORT_SNAPSHOT_ON_START"} {
		t.Setenv(k, "")
	}

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.False(t, cfg.Storage.Accelerate)
	assert.Equal(t, 30*time.Second, cfg.Financial.Timeout)
	assert.Equal(t, 2.0, cfg.Financial.RPS)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 30*time.Second, cfg.GraphQL.Timeout)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, SourceMock, cfg.Reports.Source)
	assert.Empty(t, cfg.Reports.CompanyIDs)
	assert.Equal(t, SourceMock, cfg.Reports.SnapshotSource)
	assert.True(t, cfg.Reports.SnapshotOnStart)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("S3_BUCKET_NAME", "fin-docs")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_USE_ACCELERATION", "true")
	t.Setenv("FINANCIAL_API_BASE_URL", "https://api.example.com/")
	t.Setenv("REPORT_SOURCE", "GraphQL")
	t.Setenv("REPORT_COMPANY_IDS", "ACME, GLOBEX ,,INITECH")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("FINANCIAL_API_RPS", "0.5")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "fin-docs", cfg.Storage.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.True(t, cfg.Storage.Accelerate)
	assert.Equal(t, "https://api.example.com", cfg.Financial.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Financial.Timeout)
	assert.Equal(t, 0.5, cfg.Financial.RPS)
	assert.Equal(t, SourceGraphQL, cfg.Reports.Source)
	assert.Equal(t, []string{"ACME", "GLOBEX", "INITECH"}, cfg.Reports.CompanyIDs)
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	t.Setenv("REPORT_SOURCE", "ftp")
	_, err := load(viper.New())
	require.Error(t, err)
}

func TestLoad_SnapshotSourceCannotBeDB(t *testing.T) {
	t.Setenv("REPORT_SNAPSHOT_SOURCE", "db")
	_, err := load(viper.New())
	require.Error(t, err)
}

func TestLoad_RejectsNegativeRPS(t *testing.T) {
	t.Setenv("FINANCIAL_API_RPS", "-1")
	_, err := load(viper.New())
	require.Error(t, err)
}

func TestStorageConfig_Validate(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		s := StorageConfig{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret"}
		assert.NoError(t, s.Validate())
	})

	t.Run("missing credentials is a config error", func(t *testing.T) {
		err := StorageConfig{Bucket: "b"}.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrMissingCredentials))
		assert.Equal(t, apperr.KindConfig, apperr.Classify(err))
		assert.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
		assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
	})
}
