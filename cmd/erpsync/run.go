package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"erpsync/internal/config"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/pricelist"
	"erpsync/internal/domain/catalogs/product"
	"erpsync/internal/domain/filter"
	"erpsync/internal/guard"
	"erpsync/internal/infrastructure/storage/postgres"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
	"erpsync/internal/report"
)

type runFlags struct {
	dryRun        bool
	codes         []string
	where         []string
	skipUnchanged bool

	updateOnly  bool
	days        int
	foreignOnly bool
	seller      string
	emails      []string

	keep       string
	fix        bool
	pricelists []string
	product    string

	advanced []filter.Item
}

// parse checks the flags that need more than pflag does.
func (f *runFlags) parse() error {
	items, err := filter.ParseItems(f.where)
	if err != nil {
		return fmt.Errorf("--where: %w", err)
	}
	f.advanced = items
	return nil
}

func (f *runFlags) filter() domain.SourceFilter {
	return domain.SourceFilter{Codes: f.codes, Advanced: f.advanced}
}

// deps are the collaborators a job is built from.
type deps struct {
	cfg     *config.Config
	txm     *postgres.TxManager
	dir     directory.Service
	codes   *mapping.Registry
	options []reconcile.Option
}

func (d *deps) images() product.ImageStore {
	return product.ImageStore{Dir: d.cfg.ImagesDir, FallbackDir: d.cfg.ImagesFallbackDir}
}

func (a *app) runCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one synchronization job",
		Long: "Run one synchronization job. Record failures end up in the report and do not\n" +
			"change the exit status; a lost connection or an unreadable source does.\n\n" +
			"Jobs: " + strings.Join(jobNames(), ", "),
		Example: `  erpsync run products --codes A1,B2 --dry-run
  erpsync run prices --days 3
  erpsync run prices --foreign-only
  erpsync run products --where idfamilia:in:01,02 --where precio1:gt:0
  erpsync run salesperson --seller 12
  erpsync run pricelist-duplicates --pricelists "Lista 1" --keep highest_price --fix`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := f.parse(); err != nil {
				return err
			}
			return a.setup(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "read everything, write nothing to the directory or the catalog")
	fl.StringSliceVar(&f.codes, "codes", nil, "only these source keys (article or account codes)")
	fl.StringArrayVar(&f.where, "where", nil, "extra source condition field:op:value on a source column, repeatable (ops: eq neq lt gt lte gte in nin contains ncontains null not_null)")
	fl.BoolVar(&f.skipUnchanged, "skip-unchanged", false, "write only fields that differ from the directory")
	fl.BoolVar(&f.updateOnly, "update-only", false, "products: never create, skip articles missing in the directory")
	fl.IntVar(&f.days, "days", 1, "prices: look back this many days of price history")
	fl.BoolVar(&f.foreignOnly, "foreign-only", false, "prices: every rule of foreign-currency articles, ignoring --days")
	fl.StringVar(&f.seller, "seller", "", "salesperson: catalog seller id")
	fl.StringSliceVar(&f.emails, "emails", nil, "sellers: only sellers with these emails")
	fl.StringVar(&f.keep, "keep", pricelist.KeepLatest, "pricelist-duplicates: rule to keep, latest or highest_price")
	fl.BoolVar(&f.fix, "fix", false, "pricelist-duplicates: remove the duplicates")
	fl.StringSliceVar(&f.pricelists, "pricelists", nil, "pricelist-duplicates: only these price list names")
	fl.StringVar(&f.product, "product", "", "pricelist-duplicates: only this product code")
	return cmd
}

func (a *app) run(cmd *cobra.Command, name string, f *runFlags) error {
	def, ok := findJob(name)
	if !ok {
		return fmt.Errorf("unknown job %q, one of: %s", name, strings.Join(jobNames(), ", "))
	}
	ctx := cmd.Context()

	codes, err := a.loadMappings()
	if err != nil {
		return err
	}
	if err := codes.Validate(def.tables...); err != nil {
		return err
	}

	options, err := jobOptions(def.name, codes, f)
	if err != nil {
		return err
	}

	d := &deps{cfg: a.cfg, codes: codes, options: options}
	if def.catalog {
		txm, closeCatalog, err := a.openCatalog(ctx)
		if err != nil {
			return err
		}
		defer closeCatalog()
		d.txm = txm
	}
	if d.dir, err = a.openDirectory(ctx, f.dryRun); err != nil {
		return err
	}

	job, err := def.build(d, f)
	if err != nil {
		return err
	}

	sink := report.NewSink(a.cfg.ReportDir, report.Compression(a.cfg.ReportCompression))
	res, runErr := domain.NewRunner(sink, a.log, f.dryRun).Run(ctx, job)
	if res != nil && res.Report != nil {
		c := res.Report.Counts
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d created, %d updated, %d skipped, %d failed\n",
			job.Name(), c.Created, c.Updated, c.Skipped, c.Failed)
		for _, path := range []string{res.ReportPath, res.TablePath} {
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", path)
			}
		}
	}
	return runErr
}

// jobOptions turns the common flags and the job's skip rule into reconcile
// options. A skip rule that does not compile stops the run.
func jobOptions(job string, codes *mapping.Registry, f *runFlags) ([]reconcile.Option, error) {
	var options []reconcile.Option
	if f.skipUnchanged {
		options = append(options, reconcile.WithSkipUnchanged())
	}

	rule, err := guard.Compile(codes.SkipRule(job), postgres.StructToMap)
	if err != nil {
		return nil, fmt.Errorf("skip rule of %s: %w", job, err)
	}
	if rule != nil {
		options = append(options, reconcile.WithGuard(rule))
	}
	return options, nil
}
