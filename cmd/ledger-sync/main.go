// ledger-sync pushes or pulls the JSON posted-item ledger between the
// local data directory and the configured remote storage folder, so
// several hosts can share one duplicate-suppression state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"twiper/internal"
	"twiper/internal/ledger"
	"twiper/internal/logging"
	"twiper/internal/storage"
	"twiper/internal/storage/gdrive"
	"twiper/internal/storage/mega"
	"twiper/internal/storage/s3blob"
)

func main() {
	push := flag.Bool("push", false, "upload the local ledger, replacing the remote copy")
	pull := flag.Bool("pull", false, "download the remote ledger, replacing local state")
	keepLocal := flag.Bool("keep-local", false, "with -push, keep the local file after upload")
	flag.Parse()

	if *push == *pull {
		fmt.Fprintln(os.Stderr, "usage: ledger-sync -push | -pull")
		os.Exit(2)
	}

	envPaths := []string{".env", "../.env"}
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

	ctx := context.Background()
	st, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Errorf("storage: %v", err)
		os.Exit(1)
	}

	led, err := ledger.OpenJSONFile(cfg.LedgerJSONPath)
	if err != nil {
		log.Errorf("ledger: %v", err)
		os.Exit(1)
	}

	if *pull {
		found, err := led.SyncFromRemote(ctx, st)
		if err != nil {
			log.Errorf("pull: %v", err)
			os.Exit(1)
		}
		if !found {
			log.Infof("no remote ledger found")
			return
		}
		log.Infof("pulled remote ledger to %s", cfg.LedgerJSONPath)
		return
	}

	if err := led.SyncToRemote(ctx, st, !*keepLocal, log); err != nil {
		log.Errorf("push: %v", err)
		os.Exit(1)
	}
	log.Infof("pushed ledger %s to remote folder", cfg.LedgerJSONPath)
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
