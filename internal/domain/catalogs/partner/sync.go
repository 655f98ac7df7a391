package partner

import (
	"context"
	"fmt"
	"strings"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

var partnerFields = []string{
	"name", "phone", "email", "street", "city",
	"country_id", "state_id", "l10n_latam_identification_type_id",
	"l10n_ar_afip_responsibility_type_id", "vat",
	"is_company", "x_customer_link", "customer_rank", "supplier_rank",
	"active", "ref", "property_product_pricelist",
}

// SyncConfig configures SyncJob.
type SyncConfig struct {
	Filter domain.SourceFilter

	// LinkTemplate renders x_customer_link from the account code with
	// fmt.Sprintf. Empty disables the field.
	LinkTemplate string

	Options []reconcile.Option
}

// SyncJob pushes accounts into partners keyed by ref.
type SyncJob struct {
	repo     Repository
	svc      directory.Service
	codes    *mapping.Registry
	cfg      SyncConfig
	resolver *directory.Resolver
}

// NewSyncJob creates the "partners" job.
func NewSyncJob(repo Repository, svc directory.Service, codes *mapping.Registry, cfg SyncConfig) *SyncJob {
	return &SyncJob{
		repo:     repo,
		svc:      svc,
		codes:    codes,
		cfg:      cfg,
		resolver: directory.NewResolver(svc),
	}
}

// Name implements domain.Job.
func (j *SyncJob) Name() string { return "partners" }

// Run implements domain.Job.
func (j *SyncJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	accounts, err := j.repo.ListAccounts(ctx, j.cfg.Filter)
	if err != nil {
		return nil, apperror.NewDatabase("list accounts", err)
	}
	logger.Info(ctx, "accounts to sync", "count", len(accounts))

	spec := reconcile.Spec[Account]{
		Kind: string(directory.Partner),
		Key: func(a Account) (reconcile.NaturalKey, error) {
			return reconcile.Key(a.KeyParts()...), nil
		},
		// Archived partners are matched too, otherwise a retired account
		// would be created again on every run.
		Find:   reconcile.Finder[Account](j.svc, directory.Partner, "ref", partnerFields, directory.IncludeArchived()),
		Fields: j.fields,
		Apply:  reconcile.Upsert[Account](j.svc, directory.Partner),
	}
	return reconcile.Run(ctx, accounts, spec, j.cfg.Options...)
}

func (j *SyncJob) fields(ctx context.Context, a Account) (directory.FieldMap, error) {
	fields := directory.FieldMap{
		"is_company":    true,
		"customer_rank": rank(a.IsCustomer()),
		"supplier_rank": rank(a.IsSupplier()),
		"active":        !mapping.ParseFlag(a.Retired),
		"ref":           strings.TrimSpace(a.Code),
	}
	setText(fields, "name", a.Name)
	setText(fields, "phone", a.Phone)
	setText(fields, "email", a.Email)
	setText(fields, "street", a.Street)
	setText(fields, "city", a.City)
	if mapping.Clean(a.DocType) == DocTypeCUIT {
		setText(fields, "vat", a.DocNumber)
	}
	if j.cfg.LinkTemplate != "" {
		fields["x_customer_link"] = fmt.Sprintf(j.cfg.LinkTemplate, strings.TrimSpace(a.Code))
	}

	refs := []struct{ field, table, code string }{
		{"country_id", mapping.TableCountry, a.Country},
		{"state_id", mapping.TableState, a.State},
		{"l10n_latam_identification_type_id", mapping.TableIDType, a.DocType},
	}
	if j.codes.Has(mapping.TableTaxCondition) {
		refs = append(refs, struct{ field, table, code string }{
			"l10n_ar_afip_responsibility_type_id", mapping.TableTaxCondition, a.TaxCondition,
		})
	}
	for _, r := range refs {
		if err := j.codes.Ref(fields, r.field, r.table, r.code); err != nil {
			return nil, err
		}
	}

	if list := mapping.Clean(a.PriceList); list != "" {
		id, err := j.resolver.Resolve(ctx, directory.Pricelist, "x_idlista", list)
		switch {
		case apperror.IsNotFound(err):
			reconcile.Warn(ctx, "price list %s not in directory", list)
		case err != nil:
			return nil, err
		default:
			fields["property_product_pricelist"] = id
		}
	}
	return fields, nil
}

func rank(on bool) int {
	if on {
		return 1
	}
	return 0
}

// setText sets a trimmed string field, leaving blanks out.
func setText(fields directory.FieldMap, name, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[name] = v
	}
}
