package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: felling_licence
    user: review
  elasticsearch:
    addresses:
      - http://localhost:9200
  redis:
    address: localhost:6379
integrations:
  conditions:
    base_url: ${TEST_CONDITIONS_URL}
notifications:
  from_email: no-reply@example.test
workers:
  confirm-admin-officer-review:
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CONDITIONS_URL", "http://conditions.local")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://conditions.local", cfg.Integrations.Conditions.BaseURL)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)
	assert.Equal(t, "felling-licence-audit", cfg.Database.Elasticsearch.AuditIndex)
	assert.Equal(t, "ses", cfg.Notifications.Provider)
	assert.Equal(t, 14, cfg.Review.AmendmentResponseDays)
	assert.Equal(t, 14*24*time.Hour, cfg.AmendmentResponsePeriod())
	assert.Equal(t, ":8080", cfg.Observability.HTTPAddress)

	wc := GetWorkerConfig(cfg, "confirm-admin-officer-review")
	assert.False(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "confirm-admin-officer-review"))
	assert.True(t, IsWorkerEnabled(cfg, "complete-mapping-check"))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: x\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "unknown provider",
			body: `
camunda: {broker_address: "z:26500"}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: "r:6379"}
notifications: {provider: pigeon}
`,
			wantErr: "notifications.provider must be ses or smtp",
		},
		{
			name: "smtp without host",
			body: `
camunda: {broker_address: "z:26500"}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: "r:6379"}
notifications: {provider: smtp}
`,
			wantErr: "integrations.smtp.host is required",
		},
		{
			name: "missing conditions engine",
			body: `
camunda: {broker_address: "z:26500"}
database:
  postgres: {host: h, database: d, user: u}
  elasticsearch: {url: "http://es:9200"}
  redis: {address: "r:6379"}
notifications: {from_email: a@b.c}
`,
			wantErr: "integrations.conditions.base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
