// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// modhost is the hosting platform server binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/hubdb"
)

// Config is the flat environment configuration.
type Config struct {
	DatabaseURL       string
	CacheURL          string
	CacheTTL          time.Duration
	BlobPublicBucket  string
	BlobPrivateBucket string
	SearchWriteAddrs  []string
	SearchReadAddr    string
	SelfAddr          string
	CDNURL            string
	SessionSecret     string
	OutboxInterval    time.Duration
	VocabTTL          time.Duration
}

func defaultConfig() Config {
	return Config{
		DatabaseURL:    "sqlite://modhost.db",
		CacheURL:       "memory://",
		CacheTTL:       5 * time.Minute,
		SelfAddr:       ":8000",
		OutboxInterval: 30 * time.Second,
		VocabTTL:       10 * time.Minute,
	}
}

// registerFlags declares the command line overrides; every flag shadows
// the environment variable of the same name.
func registerFlags(flags *pflag.FlagSet) {
	defaults := defaultConfig()
	flags.String("database-url", defaults.DatabaseURL, "database connection url")
	flags.String("cache-url", defaults.CacheURL, "cache connection url")
	flags.String("self-addr", defaults.SelfAddr, "listen address")
	flags.Duration("outbox-interval", defaults.OutboxInterval, "outbox retry interval")
}

func loadConfig(flags *pflag.FlagSet) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = v.BindPFlags(flags)

	// kebab-case keys resolve flags directly and environment variables
	// through the replacer, e.g. database-url <- DATABASE_URL
	cfg := defaultConfig()
	if s := v.GetString("database-url"); s != "" {
		cfg.DatabaseURL = s
	}
	if s := v.GetString("cache-url"); s != "" {
		cfg.CacheURL = s
	}
	if d := v.GetDuration("cache-ttl"); d > 0 {
		cfg.CacheTTL = d
	}
	cfg.BlobPublicBucket = v.GetString("blob-public-bucket")
	cfg.BlobPrivateBucket = v.GetString("blob-private-bucket")
	if s := v.GetString("search-write-addrs"); s != "" {
		cfg.SearchWriteAddrs = strings.Split(s, ",")
	}
	cfg.SearchReadAddr = v.GetString("search-read-addr")
	if s := v.GetString("self-addr"); s != "" {
		cfg.SelfAddr = s
	}
	cfg.CDNURL = v.GetString("cdn-url")
	cfg.SessionSecret = v.GetString("session-secret")
	if d := v.GetDuration("outbox-interval"); d > 0 {
		cfg.OutboxInterval = d
	}
	if d := v.GetDuration("vocab-ttl"); d > 0 {
		cfg.VocabTTL = d
	}
	return cfg
}

func main() {
	root := &cobra.Command{
		Use:   "modhost",
		Short: "modhost is a mod hosting platform",
	}
	registerFlags(root.PersistentFlags())
	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "run the platform core",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmdRun(loadConfig(cmd.Flags()))
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "bring the database schema up to date",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmdMigrate(loadConfig(cmd.Flags()))
			},
		},
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cmdMigrate(cfg Config) (err error) {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := hubdb.Open(log.Named("db"), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	return db.MigrateToLatest(context.Background())
}

func cmdRun(cfg Config) (err error) {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := hubdb.Open(log.Named("db"), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}

	cacheClient, err := cache.NewClient(log.Named("cache"), cache.Config{
		URL: cfg.CacheURL,
		TTL: cfg.CacheTTL,
	})
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, cacheClient.Close()) }()

	vocab := hub.NewVocabCache(db.Vocabulary(), cfg.VocabTTL)
	defer func() { err = errs.Combine(err, vocab.Close()) }()

	if cfg.SessionSecret == "" {
		return errs.New("SESSION_SECRET is required")
	}

	// the search indexer, webhook sink and blob store attach here once
	// their transports are configured; the outbox tolerates nil
	// collaborators and the services a nil blob store until then
	signer, err := hubauth.NewSigner([]byte(cfg.SessionSecret))
	if err != nil {
		return err
	}

	outbox := hub.NewOutbox(log.Named("outbox"), nil, nil)
	var blobs hub.BlobStore

	peer := struct {
		Auth     *hub.Authenticator
		Teams    *hub.TeamService
		Orgs     *hub.OrgService
		Projects *hub.ProjectService
		Versions *hub.VersionService
	}{
		Auth:     hub.NewAuthenticator(log.Named("auth"), db, signer),
		Teams:    hub.NewTeamService(log.Named("teams"), db, cacheClient),
		Orgs:     hub.NewOrgService(log.Named("orgs"), db, cacheClient, outbox),
		Projects: hub.NewProjectService(log.Named("projects"), db, cacheClient, vocab, blobs, outbox),
		Versions: hub.NewVersionService(log.Named("versions"), db, cacheClient, vocab, blobs, outbox),
	}
	log.Debug("services initialized",
		zap.Bool("session_auth", peer.Auth != nil),
		zap.Bool("blob_store", blobs != nil))

	log.Info("started",
		zap.String("database", cfg.DatabaseURL),
		zap.String("cache", cfg.CacheURL),
		zap.String("addr", cfg.SelfAddr))

	err = outbox.Run(ctx, cfg.OutboxInterval)
	if err == context.Canceled {
		err = nil
	}
	return err
}
