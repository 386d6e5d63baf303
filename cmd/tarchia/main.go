// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"
	"storj.io/common/process"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/catalog/devcatalog"
	"github.com/mabel-dev/tarchia/catalog/firestorecatalog"
	"github.com/mabel-dev/tarchia/catalog/rediscatalog"
	"github.com/mabel-dev/tarchia/commitlog"
	"github.com/mabel-dev/tarchia/eventing"
	"github.com/mabel-dev/tarchia/server"
	"github.com/mabel-dev/tarchia/storage"
	"github.com/mabel-dev/tarchia/storage/filestore"
	"github.com/mabel-dev/tarchia/storage/gcs"
	"github.com/mabel-dev/tarchia/storage/s3"
	"github.com/mabel-dev/tarchia/transaction"
)

var (
	rootCmd = &cobra.Command{
		Use:   "tarchia",
		Short: "Table metadata catalog server",
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the catalog server",
		RunE:  cmdRun,
	}
	confDir string

	runCfg   Config
	setupCfg Config
)

// Config is the full server configuration.
type Config struct {
	Catalog  catalog.Config
	Storage  storage.Config
	Eventing eventing.Config
	Server   server.Config

	MetadataRoot string `help:"prefix under which table metadata is stored" default:"warehouse"`
	SigningKey   string `help:"key signing transaction envelopes" default:"secret"`
}

// applyEnv overlays the documented environment variables onto the loaded
// configuration, so containerized deployments can skip the config file.
func applyEnv(config *Config) {
	overlay := func(name string, target *string) {
		if value, ok := os.LookupEnv(name); ok {
			*target = value
		}
	}
	overlay("CATALOG_PROVIDER", &config.Catalog.Provider)
	overlay("CATALOG_NAME", &config.Catalog.Name)
	overlay("STORAGE_PROVIDER", &config.Storage.Provider)
	overlay("METADATA_ROOT", &config.MetadataRoot)
	overlay("TRANSACTION_SIGNER", &config.SigningKey)
	overlay("AUTH_TOKEN", &config.Server.AuthToken)
	if port, ok := os.LookupEnv("PORT"); ok {
		config.Server.Address = ":" + port
	}
}

func openCatalog(ctx context.Context, config catalog.Config) (catalog.Provider, error) {
	switch strings.ToUpper(config.Provider) {
	case "DEVELOPMENT", "":
		return devcatalog.Open(config.Name)
	case "REDIS":
		return rediscatalog.Open(ctx, config.Address, config.Password, config.Database, config.Name)
	case "FIRESTORE":
		return firestorecatalog.Open(ctx, config.Project, config.Name)
	default:
		return nil, errs.New("unknown catalog provider %q", config.Provider)
	}
}

func openStorage(ctx context.Context, config storage.Config) (storage.Provider, error) {
	router := storage.NewRouter(filestore.New())

	switch strings.ToUpper(config.Provider) {
	case "LOCAL", "":
	case "GOOGLE":
		store, err := gcs.Open(ctx)
		if err != nil {
			return nil, err
		}
		router.Register("gs", store)
	case "S3":
		store, err := s3.Open(config.Endpoint, config.AccessKey, config.SecretKey)
		if err != nil {
			return nil, err
		}
		router.Register("s3", store)
	default:
		return nil, storage.ErrInvalidConfiguration.New("unknown storage provider %q", config.Provider)
	}
	return router, nil
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return fmt.Errorf("configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	applyEnv(&runCfg)

	cat, err := openCatalog(ctx, runCfg.Catalog)
	if err != nil {
		return errs.New("error opening catalog: %+v", err)
	}
	defer func() {
		err = errs.Combine(err, cat.Close())
	}()

	store, err := openStorage(ctx, runCfg.Storage)
	if err != nil {
		return errs.New("error opening blob storage: %+v", err)
	}

	events := eventing.NewDispatcher(log.Named("eventing"), runCfg.Eventing)
	defer func() {
		err = errs.Combine(err, events.Close())
	}()

	engine := commitlog.NewEngine(log.Named("commitlog"), cat, store, transaction.NewSigner(runCfg.SigningKey), events, commitlog.Config{
		MetadataRoot: runCfg.MetadataRoot,
	})

	api := server.New(log.Named("server"), cat, store, engine, events, runCfg.Server)
	return api.Run(ctx)
}

func init() {
	defaultConfDir := fpath.ApplicationDir("tarchia")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for tarchia configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
}

func main() {
	logger, _, _ := process.NewLogger("tarchia")
	zap.ReplaceGlobals(logger)

	process.Exec(rootCmd)
}
