package seller

import (
	"context"
	"strings"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/domain/filter"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

var userFields = []string{"name", "email", "phone", "street", "city", "zip"}

// SyncConfig configures SyncJob.
type SyncConfig struct {
	Filter domain.SourceFilter

	// CompanyID is the company of created users.
	CompanyID int64

	Options []reconcile.Option
}

// SyncJob creates a user per seller, keyed by login. Existing users only get
// their contact data refreshed.
type SyncJob struct {
	repo Repository
	svc  directory.Service
	cfg  SyncConfig
}

// NewSyncJob creates the "sellers" job.
func NewSyncJob(repo Repository, svc directory.Service, cfg SyncConfig) *SyncJob {
	if cfg.CompanyID == 0 {
		cfg.CompanyID = 1
	}
	return &SyncJob{repo: repo, svc: svc, cfg: cfg}
}

// Name implements domain.Job.
func (j *SyncJob) Name() string { return "sellers" }

// Run implements domain.Job.
func (j *SyncJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	sellers, err := j.repo.ListSellers(ctx, j.cfg.Filter)
	if err != nil {
		return nil, apperror.NewDatabase("list sellers", err)
	}
	logger.Info(ctx, "sellers to sync", "count", len(sellers))

	spec := reconcile.Spec[Seller]{
		Kind: string(directory.User),
		Key: func(s Seller) (reconcile.NaturalKey, error) {
			return reconcile.Key(s.KeyParts()...), nil
		},
		Find:   reconcile.Finder[Seller](j.svc, directory.User, "login", userFields, directory.IncludeArchived()),
		Fields: contactFields,
		Apply:  j.apply,
	}
	return reconcile.Run(ctx, sellers, spec, j.cfg.Options...)
}

func contactFields(_ context.Context, s Seller) (directory.FieldMap, error) {
	fields := directory.FieldMap{}
	for name, v := range map[string]string{
		"name":   s.Name,
		"email":  s.Email,
		"phone":  s.Phone,
		"street": s.Street,
		"city":   s.City,
		"zip":    s.Zip,
	} {
		if v = strings.TrimSpace(v); v != "" {
			fields[name] = v
		}
	}
	return fields, nil
}

func (j *SyncJob) apply(ctx context.Context, s Seller, target *reconcile.Target, fields directory.FieldMap) (reconcile.WriteResult, error) {
	var user int64
	if target == nil {
		create := directory.FieldMap{
			"login":             strings.TrimSpace(s.Email),
			"notification_type": "inbox",
			"active":            true,
			"company_id":        j.cfg.CompanyID,
			"ref":               strings.TrimSpace(s.ID),
		}
		for k, v := range fields {
			create[k] = v
		}
		id, err := j.svc.Create(ctx, directory.User, create)
		if err != nil {
			return reconcile.WriteResult{}, err
		}
		user = id
	} else {
		user = target.ID
		if len(fields) > 0 {
			if _, err := j.svc.Write(ctx, directory.User, []int64{user}, fields); err != nil {
				return reconcile.WriteResult{}, err
			}
		}
	}

	if err := j.linkPartner(ctx, s, user); err != nil {
		return reconcile.WriteResult{}, err
	}
	return reconcile.WriteResult{ID: user}, nil
}

// linkPartner makes the user the salesperson of the partner whose ref is the
// seller id. A missing partner is only a warning.
func (j *SyncJob) linkPartner(ctx context.Context, s Seller, user int64) error {
	ref := strings.TrimSpace(s.ID)
	if ref == "" {
		reconcile.Warn(ctx, "seller has no id, partner not linked")
		return nil
	}
	partner, err := reconcile.Lookup(ctx, j.svc, directory.Partner,
		filter.NewDomain(filter.Eq("ref", ref)), nil)
	if err != nil {
		return err
	}
	if partner == nil {
		reconcile.Warn(ctx, "no partner with ref %s", ref)
		return nil
	}
	_, err = j.svc.Write(ctx, directory.Partner, []int64{partner.ID}, directory.FieldMap{"user_id": user})
	return err
}
