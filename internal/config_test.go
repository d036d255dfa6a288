package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so tests do not pick
// up values from the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"X_API_KEY", "TWITTER_API_KEY", "CONSUMER_KEY",
		"X_API_SECRET", "TWITTER_API_SECRET", "CONSUMER_SECRET",
		"X_ACCESS_TOKEN", "TWITTER_ACCESS_TOKEN",
		"X_ACCESS_SECRET", "TWITTER_ACCESS_SECRET",
		"DATA_DIR", "X_POST_LIMIT", "POST_LIMIT",
		"X_USE_REMOTE", "X_USE_MEGA",
		"STORAGE_BACKEND", "STORAGE_PUBLIC_URL", "MEGA_PUBLIC_URL",
		"STORAGE_HARD_DELETE", "MEGA_HARD_DELETE",
		"MEGA_EMAIL", "MEGA_PASSWORD", "MEGA_DIR_NAME",
		"GDRIVE_SERVICE_ACCOUNT_JSON", "GDRIVE_SERVICE_ACCOUNT_FILE",
		"GDRIVE_FOLDER_ID", "GDRIVE_DIR_NAME", "GDRIVE_DRIVE_ID",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET",
		"S3_ACCESS_KEY", "S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "S3_SECRET_ACCESS_KEY_ID", "S3_PREFIX",
		"LEDGER_BACKEND", "DB_PATH", "LEDGER_JSON_PATH",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "CRON_SCHEDULE",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func setXCreds(t *testing.T) {
	t.Helper()
	t.Setenv("X_API_KEY", "k")
	t.Setenv("X_API_SECRET", "s")
	t.Setenv("X_ACCESS_TOKEN", "at")
	t.Setenv("X_ACCESS_SECRET", "as")
}

func TestLoadConfig_MissingXCredentials(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	setXCreds(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 1, cfg.PostLimit)
	assert.False(t, cfg.UseRemote)
	assert.Equal(t, BackendMega, cfg.Backend)
	assert.Equal(t, "XYZBlob", cfg.MegaFolder)
	assert.Equal(t, LedgerSQLite, cfg.Ledger)
	assert.Equal(t, "data/twiper.db", cfg.DBPath)
	assert.Equal(t, "data/posted.json", cfg.LedgerJSONPath)
}

func TestLoadConfig_LegacyAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWITTER_API_KEY", "k")
	t.Setenv("CONSUMER_SECRET", "s")
	t.Setenv("TWITTER_ACCESS_TOKEN", "at")
	t.Setenv("TWITTER_ACCESS_SECRET", "as")
	t.Setenv("X_USE_MEGA", "true")
	t.Setenv("MEGA_EMAIL", "u@example.com")
	t.Setenv("MEGA_PASSWORD", "pw")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.XAPIKey)
	assert.Equal(t, "s", cfg.XAPISecret)
	assert.True(t, cfg.UseRemote)
}

func TestLoadConfig_RemoteRequiresBackendCredentials(t *testing.T) {
	clearEnv(t)
	setXCreds(t)
	t.Setenv("X_USE_REMOTE", "1")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "MEGA_EMAIL")
}

func TestLoadConfig_PublicURLSkipsBackendCredentials(t *testing.T) {
	clearEnv(t)
	setXCreds(t)
	t.Setenv("X_USE_REMOTE", "1")
	t.Setenv("STORAGE_PUBLIC_URL", "https://drive.google.com/file/d/abc/view")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", cfg.PublicURL)
}

func TestLoadConfig_S3Backend(t *testing.T) {
	clearEnv(t)
	setXCreds(t)
	t.Setenv("X_USE_REMOTE", "1")
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingCredentials)

	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_ACCESS_KEY", "sk")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Backend)
	assert.Equal(t, "XYZBlob/", cfg.S3Prefix)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	clearEnv(t)
	setXCreds(t)
	t.Setenv("X_USE_REMOTE", "1")
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestLoadConfig_PostLimit(t *testing.T) {
	clearEnv(t)
	setXCreds(t)
	t.Setenv("X_POST_LIMIT", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PostLimit)

	// Garbage and non-positive values keep the default.
	t.Setenv("X_POST_LIMIT", "-3")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.PostLimit)
}
