package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"twiper/internal"
	"twiper/internal/ledger"
	"twiper/internal/logging"
	"twiper/internal/notify"
	"twiper/internal/poster"
	"twiper/internal/scheduler"
	"twiper/internal/storage"
	"twiper/internal/storage/gdrive"
	"twiper/internal/storage/mega"
	"twiper/internal/storage/s3blob"
	"twiper/internal/xapi"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	job, err := buildJob(ctx, cfg, log)
	if err != nil {
		log.Errorf("init: %v", err)
		os.Exit(1)
	}

	if cfg.CronSchedule != "" {
		runner, err := scheduler.NewRunner(cfg.CronSchedule, job, log)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		runner.Run(ctx)
		return
	}

	if err := job(ctx); err != nil {
		log.Errorf("posting run failed: %v", err)
		os.Exit(1)
	}
}

func buildJob(ctx context.Context, cfg internal.Config, log *logging.Logger) (scheduler.Job, error) {
	x := xapi.NewClient(cfg.XAPIKey, cfg.XAPISecret, cfg.XAccessToken, cfg.XAccessSecret, log)

	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		return nil, err
	}

	var (
		st  storage.Storage
		led ledger.Ledger
	)
	if cfg.UseRemote {
		st, err = newStorage(ctx, cfg, log)
		if err != nil {
			if cfg.PublicURL == "" {
				return nil, err
			}
			// Public-URL mode can fetch without an account session.
			log.Warnf("storage backend unavailable, continuing in public-URL mode: %v", err)
			st = nil
		}
		if cfg.PublicURL == "" {
			led, err = newLedger(cfg)
			if err != nil {
				return nil, err
			}
		}
	}

	p := poster.New(x, st, led, cfg.PublicURL, log)

	return func(ctx context.Context) error {
		if cfg.UseRemote {
			tweetID, err := p.PostVideoFromRemote(ctx, cfg.DataDir)
			if err != nil {
				notifier.PostFailed(err)
				return err
			}
			notifier.PostSucceeded(tweetID, 1)
			return nil
		}

		tweetIDs, err := p.PostMultipleFromDir(ctx, cfg.DataDir, cfg.PostLimit)
		if err != nil {
			notifier.PostFailed(err)
			return err
		}
		last := ""
		if len(tweetIDs) > 0 {
			last = tweetIDs[len(tweetIDs)-1]
		}
		notifier.PostSucceeded(last, len(tweetIDs))
		return nil
	}, nil
}

func newStorage(ctx context.Context, cfg internal.Config, log *logging.Logger) (storage.Storage, error) {
	switch cfg.Backend {
	case internal.BackendMega:
		return mega.New(cfg.MegaEmail, cfg.MegaPassword, cfg.MegaFolder, cfg.HardDelete, log)
	case internal.BackendGDrive:
		return gdrive.New(ctx, gdrive.Config{
			ServiceAccountJSON: cfg.GDriveServiceAccountJSON,
			ServiceAccountFile: cfg.GDriveServiceAccountFile,
			FolderID:           cfg.GDriveFolderID,
			FolderName:         cfg.GDriveFolderName,
			DriveID:            cfg.GDriveDriveID,
			HardDelete:         cfg.HardDelete,
		}, log)
	case internal.BackendS3:
		return s3blob.New(ctx, s3blob.Config{
			Endpoint:   cfg.S3Endpoint,
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Prefix:     cfg.S3Prefix,
			HardDelete: cfg.HardDelete,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newLedger(cfg internal.Config) (ledger.Ledger, error) {
	switch cfg.Ledger {
	case internal.LedgerJSON:
		return ledger.OpenJSONFile(cfg.LedgerJSONPath)
	default:
		return ledger.OpenSQLite(cfg.DBPath)
	}
}
