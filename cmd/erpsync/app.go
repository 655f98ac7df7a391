package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"erpsync/internal/config"
	"erpsync/internal/directory"
	"erpsync/internal/infrastructure/odoo"
	"erpsync/internal/infrastructure/storage/postgres"
	"erpsync/internal/mapping"
	"erpsync/pkg/logger"
)

// app holds what every command shares once setup ran.
type app struct {
	envFile string

	cfg *config.Config
	log *logger.Logger
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "erpsync",
		Short: "Synchronize the ERP catalog into the business directory",
		Long: `erpsync reads products, prices, stock, accounts and sellers from the
catalog database and reconciles them into the business directory by natural
key: matching records are updated, missing ones created. Every run writes a
report of skipped and failed records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "read settings from this file before the environment (default .env)")

	root.AddCommand(a.runCommand())
	root.AddCommand(a.jobsCommand())
	root.AddCommand(a.mappingsCommand())
	return root
}

// setup loads configuration and the logger. Commands that talk to a store
// call it from PreRunE.
func (a *app) setup(*cobra.Command, []string) error {
	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) loadMappings() (*mapping.Registry, error) {
	codes, err := mapping.Load(a.cfg.MappingsFile)
	if err != nil {
		return nil, err
	}
	a.log.Infow("code tables loaded", "file", a.cfg.MappingsFile, "tables", codes.Tables())
	return codes, nil
}

// openCatalog connects to the catalog database.
func (a *app) openCatalog(ctx context.Context) (*postgres.TxManager, func(), error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(a.cfg.CatalogDatabaseURL))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		pool.LogStats(logger.WithLogger(ctx, a.log))
		pool.Close()
	}
	return postgres.NewTxManager(pool), closeFn, nil
}

// openDirectory logs in to the directory service up front, so bad
// credentials fail before any source row is read.
func (a *app) openDirectory(ctx context.Context, dryRun bool) (directory.Service, error) {
	client := odoo.New(odoo.Config{
		URL:      a.cfg.OdooURL,
		DB:       a.cfg.OdooDB,
		Username: a.cfg.OdooUsername,
		Password: a.cfg.OdooPassword,
		Timeout:  a.cfg.OdooTimeout,
	})
	if _, err := client.Login(logger.WithLogger(ctx, a.log)); err != nil {
		return nil, err
	}
	if dryRun {
		a.log.Warnw("dry run: directory writes are logged, not sent")
		return directory.DryRun(client), nil
	}
	return client, nil
}
