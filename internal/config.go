package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrMissingCredentials is returned by LoadConfig when required secrets are
// absent. Callers are expected to fail before making any network call.
var ErrMissingCredentials = errors.New("missing credentials")

// StorageBackend selects which remote storage adapter is active.
type StorageBackend string

const (
	BackendMega   StorageBackend = "mega"
	BackendGDrive StorageBackend = "gdrive"
	BackendS3     StorageBackend = "s3"
)

// LedgerBackend selects how posted items are tracked.
type LedgerBackend string

const (
	LedgerSQLite LedgerBackend = "sqlite"
	LedgerJSON   LedgerBackend = "json"
)

type Config struct {
	// X API credentials
	XAPIKey       string
	XAPISecret    string
	XAccessToken  string
	XAccessSecret string

	DataDir   string
	PostLimit int

	// Remote-storage posting mode
	UseRemote  bool
	Backend    StorageBackend
	PublicURL  string // bypasses the ledger check when set
	HardDelete bool

	// MEGA
	MegaEmail    string
	MegaPassword string
	MegaFolder   string

	// Google Drive (service account)
	GDriveServiceAccountJSON string
	GDriveServiceAccountFile string
	GDriveFolderID           string
	GDriveFolderName         string
	GDriveDriveID            string

	// S3
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	// Ledger
	Ledger         LedgerBackend
	DBPath         string
	LedgerJSONPath string

	// Optional operator notifications
	TelegramToken  string
	TelegramChatID int64

	// Cron expression; empty means run once and exit
	CronSchedule string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		XAPIKey:       firstNonEmpty(os.Getenv("X_API_KEY"), os.Getenv("TWITTER_API_KEY"), os.Getenv("CONSUMER_KEY")),
		XAPISecret:    firstNonEmpty(os.Getenv("X_API_SECRET"), os.Getenv("TWITTER_API_SECRET"), os.Getenv("CONSUMER_SECRET")),
		XAccessToken:  firstNonEmpty(os.Getenv("X_ACCESS_TOKEN"), os.Getenv("TWITTER_ACCESS_TOKEN")),
		XAccessSecret: firstNonEmpty(os.Getenv("X_ACCESS_SECRET"), os.Getenv("TWITTER_ACCESS_SECRET")),

		DataDir:   firstNonEmpty(os.Getenv("DATA_DIR"), "data"),
		PostLimit: 1,

		Backend:   StorageBackend(firstNonEmpty(os.Getenv("STORAGE_BACKEND"), string(BackendMega))),
		PublicURL: firstNonEmpty(os.Getenv("STORAGE_PUBLIC_URL"), os.Getenv("MEGA_PUBLIC_URL")),

		MegaEmail:    os.Getenv("MEGA_EMAIL"),
		MegaPassword: os.Getenv("MEGA_PASSWORD"),
		MegaFolder:   firstNonEmpty(os.Getenv("MEGA_DIR_NAME"), "XYZBlob"),

		GDriveServiceAccountJSON: os.Getenv("GDRIVE_SERVICE_ACCOUNT_JSON"),
		GDriveServiceAccountFile: os.Getenv("GDRIVE_SERVICE_ACCOUNT_FILE"),
		GDriveFolderID:           os.Getenv("GDRIVE_FOLDER_ID"),
		GDriveFolderName:         firstNonEmpty(os.Getenv("GDRIVE_DIR_NAME"), "XYZBlob"),
		GDriveDriveID:            os.Getenv("GDRIVE_DRIVE_ID"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),
		S3Prefix:    firstNonEmpty(os.Getenv("S3_PREFIX"), "XYZBlob/"),

		Ledger:         LedgerBackend(firstNonEmpty(os.Getenv("LEDGER_BACKEND"), string(LedgerSQLite))),
		DBPath:         firstNonEmpty(os.Getenv("DB_PATH"), "data/twiper.db"),
		LedgerJSONPath: firstNonEmpty(os.Getenv("LEDGER_JSON_PATH"), "data/posted.json"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CronSchedule:  os.Getenv("CRON_SCHEDULE"),
	}

	if v := firstNonEmpty(os.Getenv("X_POST_LIMIT"), os.Getenv("POST_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PostLimit = n
		}
	}
	cfg.UseRemote = envBool(firstNonEmpty(os.Getenv("X_USE_REMOTE"), os.Getenv("X_USE_MEGA")))
	cfg.HardDelete = envBool(firstNonEmpty(os.Getenv("STORAGE_HARD_DELETE"), os.Getenv("MEGA_HARD_DELETE")))
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		}
	}

	if cfg.XAPIKey == "" || cfg.XAPISecret == "" || cfg.XAccessToken == "" || cfg.XAccessSecret == "" {
		return cfg, fmt.Errorf("%w: X API key/secret and access token/secret are required", ErrMissingCredentials)
	}

	// Backend credentials are only required when remote posting mode is
	// active and no public-URL override is configured.
	if cfg.UseRemote && cfg.PublicURL == "" {
		switch cfg.Backend {
		case BackendMega:
			if cfg.MegaEmail == "" || cfg.MegaPassword == "" {
				return cfg, fmt.Errorf("%w: MEGA_EMAIL and MEGA_PASSWORD are required", ErrMissingCredentials)
			}
		case BackendGDrive:
			if cfg.GDriveServiceAccountJSON == "" && cfg.GDriveServiceAccountFile == "" {
				return cfg, fmt.Errorf("%w: GDRIVE_SERVICE_ACCOUNT_JSON or GDRIVE_SERVICE_ACCOUNT_FILE is required", ErrMissingCredentials)
			}
		case BackendS3:
			if cfg.S3Endpoint == "" || cfg.S3Region == "" || cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
				return cfg, fmt.Errorf("%w: S3_* env vars are required", ErrMissingCredentials)
			}
		default:
			return cfg, fmt.Errorf("unknown storage backend %q", cfg.Backend)
		}
	}

	return cfg, nil
}

func envBool(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES":
		return true
	}
	return false
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
