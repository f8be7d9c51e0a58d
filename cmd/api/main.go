package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/savegram-io/savegram/internal/api"
	"github.com/savegram-io/savegram/internal/auth"
	"github.com/savegram-io/savegram/internal/batch"
	"github.com/savegram-io/savegram/internal/config"
	"github.com/savegram-io/savegram/internal/database"
	"github.com/savegram-io/savegram/internal/fetch"
	"github.com/savegram-io/savegram/internal/gate"
	"github.com/savegram-io/savegram/internal/models"
	"github.com/savegram-io/savegram/internal/quota"
	"github.com/savegram-io/savegram/internal/storage"
	"github.com/savegram-io/savegram/internal/tasks"
)

const version = "0.0.1"

func initializeAPI(configPath string) (*api.Api, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, err := database.Init(cfg)
	if err != nil {
		return nil, err
	}

	if err := bootstrapOwner(store, cfg.OwnerID); err != nil {
		return nil, err
	}

	ledger := quota.NewLedger(store, cfg.Quota.DailyLimit)
	accessGate := gate.New(store, ledger)
	registry := tasks.NewRegistry()
	sessions := auth.NewStoreProvider(store)
	tokens := auth.NewTokenManager(cfg.AuthSecret)

	provider := fetch.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.Token,
		cfg.Downloads.Dir,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)

	var saver batch.Saver
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
			cfg.Storage.Bucket,
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
		)
		if err != nil {
			return nil, err
		}
		saver = s3Store
	} else {
		log.Println("Object storage not configured, artifacts stay in the download directory")
	}

	runner := batch.NewRunner(provider, ledger, registry, saver, sessions, batch.Options{
		Pace:           time.Duration(cfg.Downloads.PaceSeconds) * time.Second,
		FreeCapBytes:   cfg.Downloads.FreeSizeLimitMB << 20,
		PaidCapBytes:   cfg.Downloads.PremiumSizeLimitMB << 20,
		RemoveArtifact: saver != nil,
	})

	return api.NewApi(*cfg, store, accessGate, ledger, registry, runner, tokens)
}

// bootstrapOwner makes sure the configured owner holds the admin role so
// a fresh deployment has at least one administrator.
func bootstrapOwner(store *database.Store, ownerID int64) error {
	if ownerID == 0 {
		return nil
	}

	if err := store.UpsertProfile(ownerID, models.ProfileHint{}); err != nil {
		return err
	}
	owner, err := store.GetUser(ownerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if owner != nil && owner.Role == models.RoleAdmin {
		return nil
	}

	if err := store.SetRole(ownerID, models.RoleAdmin, 0); err != nil {
		return err
	}
	grant := &models.AdminGrant{ID: uuid.NewString(), UserID: ownerID, GrantedBy: ownerID}
	if err := store.AppendAdminGrant(grant); err != nil {
		return err
	}
	log.Printf("Bootstrapped owner %d as admin", ownerID)
	return nil
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Starting Savegram API v%s with config: %s", version, *configPath)

	api, err := initializeAPI(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	api.Serve()
}
