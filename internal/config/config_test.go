package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "support-api", cfg.ServiceName)
	assert.Equal(t, ":8190", cfg.Addr())
	assert.Equal(t, 3, cfg.EscalationMax)
	assert.Equal(t, time.Hour, cfg.EscalationTTL)
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	assert.False(t, cfg.TelegramEnabled())
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, "stdout", cfg.LogOutput)
}

func TestLoadSupportEmails(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.fr")
	t.Setenv("SUPPORT_EMAILS", "support@trackimpact.fr,ops@trackimpact.fr")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"support@trackimpact.fr", "ops@trackimpact.fr"}, cfg.SupportEmails)
	assert.True(t, cfg.EmailEnabled())
}

func TestLoadParsesAdminChatIDs(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_ADMIN_CHAT_IDS", "101,202")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 202}, cfg.TelegramAdminChatIDs)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "auth without issuer", env: map[string]string{"AUTH_ENABLED": "true", "AUTH_JWKS_URL": "http://jwks"}},
		{name: "unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}},
		{name: "redis store without url", env: map[string]string{"RATE_LIMIT_STORE": "redis"}},
		{name: "zero escalation quota", env: map[string]string{"ESCALATION_RATE_LIMIT": "0"}},
		{name: "unknown log output", env: map[string]string{"LOG_OUTPUT": "syslog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "support.env")
	require.NoError(t, os.WriteFile(path, []byte("SERVICE_NAME=from-file\nHTTP_PORT=9000\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_PORT", "8191")
	t.Cleanup(func() { _ = os.Unsetenv("SERVICE_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ServiceName)
	assert.Equal(t, ":8191", cfg.Addr())
}

func TestLoadIgnoresMissingEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	_, err := Load()
	assert.NoError(t, err)
}
