package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/partner"
	"erpsync/internal/domain/catalogs/pricelist"
	"erpsync/internal/domain/catalogs/product"
	"erpsync/internal/domain/catalogs/seller"
	"erpsync/internal/domain/registers/stock"
	"erpsync/internal/infrastructure/storage/postgres/catalog_repo"
	"erpsync/internal/mapping"
)

// jobDef describes a job the run command can build.
type jobDef struct {
	name  string
	short string

	// tables must be present in the mappings file.
	tables []string

	// catalog is false for jobs that only read the directory.
	catalog bool

	build func(d *deps, f *runFlags) (domain.Job, error)
}

var jobDefs = []jobDef{
	{
		name:    "products",
		short:   "articles for sale into product templates (--update-only)",
		tables:  []string{mapping.TableUOM},
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return product.NewSyncJob(catalog_repo.NewArticleRepo(d.txm), d.dir, d.codes, product.SyncConfig{
				Filter:     f.filter(),
				UpdateOnly: f.updateOnly,
				Images:     d.images(),
				Options:    d.options,
			}), nil
		},
	},
	{
		name:    "prices",
		short:   "changed sale prices into price list rules (--days, --foreign-only)",
		tables:  []string{mapping.TableCurrency},
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return pricelist.NewSyncJob(catalog_repo.NewPriceRepo(d.txm), d.dir, d.codes, pricelist.SyncConfig{
				Filter:      f.filter(),
				Days:        f.days,
				ForeignOnly: f.foreignOnly,
				Options:     d.options,
			}), nil
		},
	},
	{
		name:    "stock",
		short:   "on-hand quantities per article and deposit",
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return stock.NewSyncJob(catalog_repo.NewStockRepo(d.txm), d.dir, d.codes, stock.SyncConfig{
				Filter:   f.filter(),
				Location: d.cfg.StockLocation,
				Options:  d.options,
			}), nil
		},
	},
	{
		name:    "partners",
		short:   "customer and supplier accounts into partners",
		tables:  []string{mapping.TableCountry, mapping.TableState, mapping.TableIDType},
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return partner.NewSyncJob(catalog_repo.NewAccountRepo(d.txm), d.dir, d.codes, partner.SyncConfig{
				Filter:       f.filter(),
				LinkTemplate: d.cfg.PartnerLinkTemplate,
				Options:      d.options,
			}), nil
		},
	},
	{
		name:    "sellers",
		short:   "sellers into users, linked to their partner (--emails)",
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			filter := f.filter()
			if len(f.emails) > 0 {
				filter.Codes = f.emails
			}
			return seller.NewSyncJob(catalog_repo.NewSellerRepo(d.txm), d.dir, seller.SyncConfig{
				Filter:    filter,
				CompanyID: d.cfg.SellerCompanyID,
				Options:   d.options,
			}), nil
		},
	},
	{
		name:    "salesperson",
		short:   "assign a seller to the partners of its customers (--seller)",
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return partner.NewAssignJob(catalog_repo.NewAccountRepo(d.txm), d.dir, partner.AssignConfig{
				SellerID: f.seller,
				Options:  d.options,
			})
		},
	},
	{
		name:    "archive",
		short:   "archive templates of retired or suspended articles",
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return product.NewArchiveJob(catalog_repo.NewArticleRepo(d.txm), d.dir, product.ArchiveConfig{
				Filter:  f.filter(),
				Options: d.options,
			}), nil
		},
	},
	{
		name:    "images",
		short:   "upload changed pictures and clear the catalog flag",
		catalog: true,
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return product.NewImagesJob(catalog_repo.NewArticleRepo(d.txm), d.dir, d.txm, product.ImagesConfig{
				Filter:  f.filter(),
				Images:  d.images(),
				Options: d.options,
			}), nil
		},
	},
	{
		name:  "pricelist-duplicates",
		short: "report duplicated price rules, remove them with --fix (--keep, --pricelists, --product)",
		build: func(d *deps, f *runFlags) (domain.Job, error) {
			return pricelist.NewDuplicatesJob(d.dir, pricelist.DuplicatesConfig{
				Pricelists: f.pricelists,
				Product:    f.product,
				Keep:       f.keep,
				Fix:        f.fix,
			})
		},
	},
}

func findJob(name string) (jobDef, bool) {
	name = strings.TrimSpace(strings.ToLower(name))
	for _, def := range jobDefs {
		if def.name == name {
			return def, true
		}
	}
	return jobDef{}, false
}

func jobNames() []string {
	names := make([]string, len(jobDefs))
	for i, def := range jobDefs {
		names[i] = def.name
	}
	return names
}

func (a *app) jobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the available jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, def := range jobDefs {
				fmt.Fprintf(out, "%-22s %s\n", def.name, def.short)
			}
			return nil
		},
	}
}
